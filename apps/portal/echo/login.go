package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/user"
)

type (
	authHandlers struct {
		deps     ServerDeps
		sessions *sessionManager
	}

	loginPage struct {
		Username string
		Error    string
	}

	loginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
)

func registerAuthRoutes(app *echo.Echo, deps ServerDeps, sessions *sessionManager) {
	h := authHandlers{deps: deps, sessions: sessions}
	app.GET("/login", h.loginForm)
	app.POST("/login", h.login)
	app.POST("/logout", h.logout)
}

func (h *authHandlers) loginForm(ctx echo.Context) error {
	if sess, ok := h.sessions.fromCookie(ctx); ok {
		return ctx.Redirect(http.StatusSeeOther, sess.User.HomePath())
	}
	return ctx.Render(http.StatusOK, "login", newPage(ctx, "Connexion", loginPage{}))
}

func (h *authHandlers) login(ctx echo.Context) error {
	var creds user.Credentials
	if err := ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding credentials")
	}
	if err := creds.Validate(h.deps.Validate); err != nil {
		if wantsJSON(ctx) {
			return err
		}
		return h.loginFailed(ctx, creds, "Veuillez saisir votre identifiant et votre mot de passe.")
	}

	sess, err := h.deps.Auth.Login(ctx.Request().Context(), creds)
	if err != nil {
		if errors.Cause(err) != user.ErrAuthenticationFailed {
			if rErr, ok := core.AsRemoteError(err); ok && !wantsJSON(ctx) {
				return h.loginFailed(ctx, creds, rErr.Message)
			}
			return errors.Wrap(err, "logging in")
		}
		if wantsJSON(ctx) {
			return errAuthenticationFailed
		}
		return h.loginFailed(ctx, creds, "Identifiants invalides")
	}

	token, err := h.sessions.issue(ctx, sess)
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	h.deps.Logger.Info("user logged in", map[string]interface{}{"user_id": sess.User.ID, "role": sess.User.Role})

	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, loginResponse{Token: token, User: sess.User})
	}
	return ctx.Redirect(http.StatusSeeOther, sess.User.HomePath())
}

func (h *authHandlers) loginFailed(ctx echo.Context, creds user.Credentials, msg string) error {
	data := loginPage{Username: creds.Username, Error: msg}
	return ctx.Render(http.StatusUnauthorized, "login", newPage(ctx, "Connexion", data))
}

func (h *authHandlers) logout(ctx echo.Context) error {
	h.sessions.clear(ctx)
	if wantsJSON(ctx) {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.Redirect(http.StatusSeeOther, "/login")
}
