package tests

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/user"
)

func Test_authApi_login(t *testing.T) {
	env := setup(t)

	tests := []httpTest{
		{
			name:     "missing credentials",
			body:     marshallObj(t, user.Credentials{}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"username": "ce champ est obligatoire",
				"password": "ce champ est obligatoire",
			}),
		},
		{
			name:     "wrong password",
			body:     marshallObj(t, user.Credentials{Username: "admin", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "Identifiants invalides"}),
		},
		{
			name:     "unknown user",
			body:     marshallObj(t, user.Credentials{Username: "ghost", Password: password}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "Identifiants invalides"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/login", tt.body)
			checkCodeAndData(t, tt, env.serve(req, rec))
		})
	}

	t.Run("success", func(t *testing.T) {
		// usernames are case insensitive
		req, rec := newRequest(http.MethodPost, "/login", marshallObj(t, user.Credentials{Username: " Encadrant ", Password: password}))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"token":`)
		assert.Contains(t, rec.Body.String(), `"role":"ENCADRANT"`)
		assert.Contains(t, rec.Header().Get("Set-Cookie"), cookieName+"=")
		assert.Contains(t, rec.Header().Get("Set-Cookie"), "HttpOnly")
	})
}

func Test_authPages(t *testing.T) {
	env := setup(t)

	t.Run("login form", func(t *testing.T) {
		req, rec := newBrowserRequest(http.MethodGet, "/login", "", nil)
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="username"`)
	})

	t.Run("login redirects to the role home", func(t *testing.T) {
		homes := map[string]string{
			"admin":     "/admin/planifications",
			"encadrant": "/encadrant/soutenances",
			"etudiant":  "/etudiant/soutenances",
		}
		for uname, home := range homes {
			form := url.Values{"username": {uname}, "password": {password}}
			req, rec := newBrowserRequest(http.MethodPost, "/login", "", form)
			env.serve(req, rec)
			assert.Equal(t, http.StatusSeeOther, rec.Code, uname)
			assert.Equal(t, home, rec.Header().Get("Location"), uname)
		}
	})

	t.Run("wrong password shows the form again", func(t *testing.T) {
		form := url.Values{"username": {"admin"}, "password": {"nope"}}
		req, rec := newBrowserRequest(http.MethodPost, "/login", "", form)
		env.serve(req, rec)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Identifiants invalides")
		assert.Contains(t, rec.Body.String(), `value="admin"`)
	})

	t.Run("home", func(t *testing.T) {
		req, rec := newBrowserRequest(http.MethodGet, "/", "", nil)
		env.serve(req, rec)
		assert.Equal(t, "/login", rec.Header().Get("Location"))

		token := env.login(t, "etudiant")
		req, rec = newBrowserRequest(http.MethodGet, "/", token, nil)
		env.serve(req, rec)
		assert.Equal(t, "/etudiant/soutenances", rec.Header().Get("Location"))

		req, rec = newBrowserRequest(http.MethodGet, "/login", token, nil)
		env.serve(req, rec)
		assert.Equal(t, "/etudiant/soutenances", rec.Header().Get("Location"), "already logged in")
	})

	t.Run("logout", func(t *testing.T) {
		req, rec := newBrowserRequest(http.MethodPost, "/logout", env.login(t, "admin"), url.Values{})
		env.serve(req, rec)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.True(t, strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0"))
	})

	t.Run("unreachable API", func(t *testing.T) {
		env.api.Close()

		form := url.Values{"username": {"admin"}, "password": {password}}
		req, rec := newBrowserRequest(http.MethodPost, "/login", "", form)
		env.serve(req, rec)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), core.MsgServerUnreachable)
	})
}

func Test_authMiddleware(t *testing.T) {
	env := setup(t)
	adminToken := env.login(t, "admin")
	etudiantToken := env.login(t, "etudiant")

	tests := []httpTest{
		{
			name:     "anonymous",
			path:     "/admin/planifications",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "forged token",
			path:     "/admin/planifications",
			token:    adminToken + "x",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "student on admin screen",
			path:     "/admin/planifications",
			token:    etudiantToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errForbidden),
		},
		{
			name:     "admin on supervisor screen",
			path:     "/encadrant/soutenances",
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errForbidden),
		},
		{
			name:     "admin on student screen",
			path:     "/etudiant/soutenances",
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			checkCodeAndData(t, tt, env.serve(req, rec))
		})
	}

	t.Run("browsers are sent to the login page", func(t *testing.T) {
		req, rec := newBrowserRequest(http.MethodGet, "/admin/planifications", "", nil)
		env.serve(req, rec)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("expired API session", func(t *testing.T) {
		env.api.RevokeTokens()

		req, rec := newAuthRequest(http.MethodGet, "/admin/planifications", adminToken)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: core.MsgSessionExpired}),
		}, env.serve(req, rec))
		assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0", "session cleared")

		req, rec = newBrowserRequest(http.MethodGet, "/admin/planifications", adminToken, nil)
		env.serve(req, rec)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}
