package echoportal

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/core/user"
	"github.com/estbm/soutenances/services/stagesapi"
)

const (
	contextClaimsKey = "session"
	contextUserKey   = "user"
)

// Claims represents the portal session transmitted via a JWT cookie.
// APIToken is the bearer token issued by the stages API at login.
type Claims struct {
	jwt.StandardClaims
	User     user.User `json:"user"`
	APIToken string    `json:"api_token"`
}

func (c Claims) Session() user.Session {
	return user.Session{Token: c.APIToken, User: c.User}
}

type sessionManager struct {
	appName    string
	cookieName string
	secure     bool
	expiration time.Duration
	jwtConfig  middleware.JWTConfig
}

func newSessionManager(conf *core.Config) *sessionManager {
	return &sessionManager{
		appName:    conf.AppName,
		cookieName: conf.Server.SessionCookieName,
		secure:     conf.Server.SecureCookie,
		expiration: conf.Server.SessionExpirationDelta,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextClaimsKey,
			Claims:        new(Claims),
			TokenLookup:   "cookie:" + conf.Server.SessionCookieName,
		},
	}
}

func (sm *sessionManager) claims(sess user.Session) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    sm.appName,
			Subject:   sess.User.Key(),
			ExpiresAt: now.Add(sm.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		User:     sess.User,
		APIToken: sess.Token,
	}
}

// GenerateToken generates a signed JWT token string representing the session.
func (sm *sessionManager) GenerateToken(sess user.Session) (string, error) {
	method := jwt.GetSigningMethod(sm.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, sm.claims(sess))

	ss, err := token.SignedString(sm.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// issue stores the session in the cookie.
func (sm *sessionManager) issue(ctx echo.Context, sess user.Session) (string, error) {
	token, err := sm.GenerateToken(sess)
	if err != nil {
		return "", err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     sm.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(sm.expiration),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (sm *sessionManager) clear(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// fromCookie returns the session of a request that did not go through the auth middleware.
func (sm *sessionManager) fromCookie(ctx echo.Context) (user.Session, bool) {
	cookie, err := ctx.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return user.Session{}, false
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != sm.jwtConfig.SigningMethod {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return sm.jwtConfig.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return user.Session{}, false
	}
	return claims.Session(), true
}

// middleware authenticates the request with the session cookie, then binds the session to the request context:
// toasts go to the session user and stages API calls carry its token.
func (sm *sessionManager) middleware() echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(sm.jwtConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMiddleware(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, claims.User)

			req := ctx.Request()
			rctx := notification.WithRecipient(req.Context(), claims.User.Key())
			rctx = stagesapi.WithToken(rctx, claims.APIToken)
			ctx.SetRequest(req.WithContext(rctx))
			return next(ctx)
		})
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextClaimsKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	return claims.User, nil
}
