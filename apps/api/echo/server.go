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

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/contact"
	"github.com/trezcool/tutorhub/core/dashboard"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
)

type (
	Deps struct {
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		Metrics       *metricsvc.Metrics
		Events        core.EventBroker
		UserSvc       user.Service
		ProfileSvc    profile.Service
		ClassSvc      class.Service
		EnrollmentSvc enrollment.Service
		AssignmentSvc assignment.Service
		DashboardSvc  dashboard.Service
		ContactSvc    contact.Service
	}

	Server struct {
		app      *echo.Echo
		addr     string
		auth     *authenticator
		shutdown chan os.Signal
		errors   chan error
	}
)

// NewServer sets up the API. Request logs are off in test mode.
func NewServer(deps *Deps) *Server {
	s := &Server{
		app:      echo.New(),
		addr:     deps.Conf.Server.Address,
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps *Deps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if deps.Metrics != nil {
		s.app.Use(deps.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home(conf.AppName))

	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware()

	h := &handlers{
		validate:   deps.Validate,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		events:     deps.Events,
		auth:       s.auth,
		usrSvc:     deps.UserSvc,
		profSvc:    deps.ProfileSvc,
		classSvc:   deps.ClassSvc,
		enrollSvc:  deps.EnrollmentSvc,
		asgmtSvc:   deps.AssignmentSvc,
		dashSvc:    deps.DashboardSvc,
		contactSvc: deps.ContactSvc,
	}
	h.registerAuthAPI(v1, jwt)
	h.registerProfileAPI(v1, jwt)
	h.registerClassAPI(v1, jwt)
	h.registerAssignmentAPI(v1, jwt)
	h.registerDashboardAPI(v1, jwt)
	h.registerAdminAPI(v1, jwt)
	h.registerContactAPI(v1, newRateLimiter(conf.Server.ContactRatePerMinute))
}

// Start blocks until the server stops; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
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
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(appName string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+appName+" API!")
	}
}
