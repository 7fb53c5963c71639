package echoapi

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

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/dashboard"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
)

type (
	ServerDeps struct {
		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		Cache        core.Cache
		Files        core.FileStorage
		Hub          *chat.Hub
		UserSvc      user.ServiceInterface
		AppSvc       application.ServiceInterface
		CertSvc      certificate.ServiceInterface
		ChatSvc      chat.ServiceInterface
		LessonSvc    lesson.ServiceInterface
		TaskSvc      task.ServiceInterface
		DashboardSvc dashboard.ServiceInterface
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		shutdown chan os.Signal
		errors   chan error
	}
)

var _ http.Handler = (*Server)(nil) // interface compliance check

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Cache, deps.UserSvc, deps.Logger),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{conf.FrontendBaseURL},
		ExposeHeaders: []string{headerTotalCount, echo.HeaderContentDisposition},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := s.auth.middleware()

	registerUserAPI(g, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerApplicationAPI(g, jwt, s.deps.AppSvc, s.deps.UserSvc, s.deps.Validate)
	registerCertificateAPI(g, jwt, s.deps.CertSvc, s.deps.UserSvc, s.deps.Validate)
	registerChatAPI(g, jwt, s.auth, s.deps.ChatSvc, s.deps.UserSvc, s.deps.Hub, s.deps.Validate)
	registerLessonAPI(g, jwt, s.deps.LessonSvc, s.deps.UserSvc, s.deps.Validate)
	registerTaskAPI(g, jwt, s.deps.TaskSvc, s.deps.UserSvc, s.deps.Validate)
	registerDashboardAPI(g, jwt, s.deps.DashboardSvc)
}

// Start blocks until the server stops. Errors other than a graceful shutdown are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
