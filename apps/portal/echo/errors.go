package echoportal

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "Identifiants invalides")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Browsers get an error page (or the login page once the session is gone), API clients get JSON.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	translator ut.Translator,
	sessions *sessionManager,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		// the client went away
		if errors.Is(err, context.Canceled) {
			return
		}

		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, fErr := range core.TranslateFieldErrors(origErr, translator) {
				fldErrs[fErr.Field] = fErr.Error
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.RemoteError:
			switch origErr.Status {
			case http.StatusUnauthorized:
				code = http.StatusUnauthorized
			case http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest:
				code = origErr.Status
			default:
				code = http.StatusBadGateway
			}
			message = origErr.Message
		default:
			if errors.Is(err, core.ErrNotFound) {
				code = http.StatusNotFound
				message = errHttpNotFound.Message
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			if usr, uErr := getContextUser(ctx); uErr == nil {
				logger.Error(msg, errors.Wrap(err, msg), usr)
			} else {
				logger.Error(msg, errors.Wrap(err, msg))
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if code == http.StatusUnauthorized {
			sessions.clear(ctx)
		}

		if ctx.Response().Committed {
			return
		}

		if !wantsJSON(ctx) {
			if err = renderError(ctx, code, message); err != nil {
				ctx.Echo().Logger.Error(err)
			}
			return
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// renderError shows the error page; an anonymous or expired session is sent to the login page.
func renderError(ctx echo.Context, code int, message interface{}) error {
	if code == http.StatusUnauthorized {
		return ctx.Redirect(http.StatusSeeOther, "/login")
	}
	if ctx.Request().Method == http.MethodHead {
		return ctx.NoContent(code)
	}
	msg, ok := message.(string)
	if !ok {
		msg = http.StatusText(code)
	}
	return ctx.Render(code, "error", newPage(ctx, http.StatusText(code), errorPage{Code: code, Message: msg}))
}

type errorPage struct {
	Code    int
	Message string
}

// reported tells whether err has already been shown to the user as a toast,
// in which case a browser is simply sent back to the page.
func reported(ctx echo.Context, err error) bool {
	if wantsJSON(ctx) {
		return false
	}
	switch origErr := errors.Cause(err).(type) {
	case *core.RemoteError:
		return origErr.Status != http.StatusUnauthorized
	case *core.ValidationError:
		return true
	}
	return false
}
