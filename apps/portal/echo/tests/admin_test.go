package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
)

func Test_adminApi_planificationQuery(t *testing.T) {
	env := setup(t)
	token := env.login(t, "admin")

	past := env.api.AddPlanification(planning.Planification{DateSoutenance: "2001-06-10", Encadrant: &encadrant})
	june := env.api.AddPlanification(planning.Planification{DateSoutenance: "2099-06-10", Encadrant: &encadrant})
	july := env.api.AddPlanification(planning.Planification{DateSoutenance: "2099-07-01", Encadrant: &other})

	tests := []httpTest{
		{
			name:     "all",
			path:     "/admin/planifications",
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []planning.Planification{past, june, july}),
		},
		{
			name:     "by month",
			path:     "/admin/planifications?date=2099-06",
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []planning.Planification{june}),
		},
		{
			name:     "no match",
			path:     "/admin/planifications?date=2050",
			wantCode: http.StatusOK,
			wantData: []byte("[]"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			checkCodeAndData(t, tt, env.serve(req, rec))
		})
	}

	t.Run("outcome toast", func(t *testing.T) {
		env.toasts(admin)
		req, rec := newAuthRequest(http.MethodGet, "/admin/planifications", token)
		env.serve(req, rec)

		toasts := env.toasts(admin)
		require.Len(t, toasts, 1, "loading toasts are dropped in quiet mode")
		assert.Equal(t, notification.KindSuccess, toasts[0].Kind)
		assert.Equal(t, "3 planification(s) chargée(s)", toasts[0].Message)
	})

	t.Run("page", func(t *testing.T) {
		req, rec := newBrowserRequest(http.MethodGet, "/admin/planifications", token, nil)
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `data-role="admin"`)
		assert.Contains(t, rec.Body.String(), "10 juin 2099")
		assert.Contains(t, rec.Body.String(), "Karim Bennani")
		assert.Empty(t, env.toasts(admin), "the page shows the pending toasts")
	})

	t.Run("remote failure", func(t *testing.T) {
		env.api.Fail = http.StatusInternalServerError
		defer func() { env.api.Fail = 0 }()

		req, rec := newAuthRequest(http.MethodGet, "/admin/planifications", token)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marshallObj(t, httpErr{Error: "Erreur du serveur de stages"}),
		}, env.serve(req, rec))
		toast := lastToast(t, env.toasts(admin))
		assert.Equal(t, notification.KindError, toast.Kind)
		assert.Equal(t, "Impossible de charger les planifications", toast.Message)

		// browsers still get the page, along with the error toast
		req, rec = newBrowserRequest(http.MethodGet, "/admin/planifications", token, nil)
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Aucune planification")
		assert.Contains(t, rec.Body.String(), `"kind":"error"`)
	})
}

func Test_adminApi_planificationCreate(t *testing.T) {
	env := setup(t)
	token := env.login(t, "admin")

	const msgMissing = "Veuillez renseigner la date, l'encadrant et la classe."

	tests := []httpTest{
		{
			name:     "empty",
			body:     marshallObj(t, planning.NewPlanification{}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"dateSoutenance": msgMissing,
				"encadrantId":    msgMissing,
				"classGroupId":   msgMissing,
			}),
		},
		{
			name:     "bad date",
			body:     marshallObj(t, planning.NewPlanification{DateSoutenance: "10/06/2099", EncadrantID: 5, ClassGroupID: 2}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"dateSoutenance": msgMissing}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/admin/planifications", token, tt.body)
			checkCodeAndData(t, tt, env.serve(req, rec))

			toast := lastToast(t, env.toasts(admin))
			assert.Equal(t, notification.KindError, toast.Kind)
			assert.Equal(t, msgMissing, toast.Message)
		})
	}

	t.Run("success", func(t *testing.T) {
		body := marshallObj(t, planning.NewPlanification{
			DateSoutenance: "2099-06-10", EncadrantID: 5, ClassGroupID: 2, AnneeScolaire: "2098-2099",
		})
		req, rec := newAuthRequest(http.MethodPost, "/admin/planifications", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created planning.Planification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		stored, ok := env.api.Planification(created.ID)
		require.True(t, ok)
		assert.Equal(t, "2099-06-10", stored.DateSoutenance)
		assert.Equal(t, &user.User{ID: 5, Role: user.RoleEncadrant}, stored.Encadrant)

		toast := lastToast(t, env.toasts(admin))
		assert.Equal(t, "Planification créée", toast.Title)
		assert.Equal(t, "Planification du 2099-06-10 créée avec succès", toast.Message)
	})

	t.Run("form", func(t *testing.T) {
		form := url.Values{
			"dateSoutenance": {"2099-07-01"},
			"encadrantId":    {"6"},
			"classGroupId":   {"3"},
		}
		req, rec := newBrowserRequest(http.MethodPost, "/admin/planifications", token, form)
		env.serve(req, rec)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/planifications", rec.Header().Get("Location"))
		assert.Equal(t, "Planification créée", lastToast(t, env.toasts(admin)).Title)

		// invalid forms are reported with a toast on the same page
		req, rec = newBrowserRequest(http.MethodPost, "/admin/planifications", token, url.Values{"encadrantId": {"6"}})
		env.serve(req, rec)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, notification.KindError, lastToast(t, env.toasts(admin)).Kind)
	})
}
