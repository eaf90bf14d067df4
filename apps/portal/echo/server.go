package echoportal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Auth          user.Authenticator
		PlanningSvc   *planning.Service
		Notifications *notification.Center
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		*http.Server
		app      *echo.Echo
		deps     ServerDeps
		sessions *sessionManager
		shutdown chan os.Signal
		errors   chan error
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:         deps.Conf.Server.Host,
			Handler:      app,
			ReadTimeout:  deps.Conf.Server.ReadTimeout,
			WriteTimeout: deps.Conf.Server.WriteTimeout,
		},
		app:      app,
		deps:     deps,
		sessions: newSessionManager(deps.Conf),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: newRequestID}))
	s.app.Use(notificationsMiddleware(s.deps.Notifications))
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.sessions, s.SignalShutdown)
	s.app.Renderer = newRenderer()
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	registerAuthRoutes(s.app, s.deps, s.sessions)

	auth := s.sessions.middleware()

	admin := s.app.Group("/admin", auth, roleMiddleware(user.RoleAdmin))
	registerAdminRoutes(admin, s.deps)

	encadrant := s.app.Group("/encadrant", auth, roleMiddleware(user.RoleEncadrant))
	registerEncadrantRoutes(encadrant, s.deps)

	etudiant := s.app.Group("/etudiant", auth, roleMiddleware(user.RoleEtudiant))
	registerEtudiantRoutes(etudiant, s.deps)

	notifs := s.app.Group("/notifications", auth)
	registerNotificationRoutes(notifs, s.deps)
}

// Start serves until the listener fails; the failure is reported on Errors.
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the application to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGSTOP:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	if sess, ok := s.sessions.fromCookie(ctx); ok {
		return ctx.Redirect(http.StatusSeeOther, sess.User.HomePath())
	}
	return ctx.Redirect(http.StatusSeeOther, "/login")
}
