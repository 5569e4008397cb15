package dig_container

import (
	"fmt"
	"log"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tutorhub/apps/api/echo"
	"github.com/trezcool/tutorhub/apps/shared"
	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/contact"
	"github.com/trezcool/tutorhub/core/dashboard"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
	"github.com/trezcool/tutorhub/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// MailCloserParam releases the mail broker connection, if any.
type MailCloserParam struct {
	dig.In
	Close func() error `name:"mailCloser"`
}

type mailResult struct {
	dig.Out
	Service core.EmailService
	Close   func() error `name:"mailCloser"`
}

type repositoriesResult struct {
	dig.Out
	Tx          core.Transactor
	Users       user.Repository
	Profiles    profile.Repository
	Classes     class.Repository
	Enrollments enrollment.Repository
	Assignments assignment.Repository
}

type depsParams struct {
	dig.In
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

func newLogger(conf *core.Config) core.Logger {
	return shared.NewLogger(conf, "api")
}

func newDBLogger(conf *core.Config) core.Logger {
	return shared.NewLogger(conf, "db")
}

// newRepositories creates the database on first run and applies pending migrations.
func newRepositories(conf *core.Config, loggerParam DBLoggerParam) *shared.Repositories {
	logger := loggerParam.Logger
	setUp := func() (*shared.Repositories, error) {
		if conf.Database.Engine != shared.MemoryEngine {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
		}

		repos, err := shared.OpenRepositories(conf)
		if err != nil {
			return nil, err
		}

		if err = repos.Migrate(); err != nil {
			_ = repos.Close()
			return nil, err
		}
		return repos, nil
	}

	repos, err := setUp()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	logger.Info("database ready", map[string]interface{}{"engine": conf.Database.Engine})
	return repos
}

func splitRepositories(repos *shared.Repositories) repositoriesResult {
	return repositoriesResult{
		Tx:          repos.Tx,
		Users:       repos.Users,
		Profiles:    repos.Profiles,
		Classes:     repos.Classes,
		Enrollments: repos.Enrollments,
		Assignments: repos.Assignments,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) (mailResult, error) {
	svc, closeFn, err := shared.NewEmailService(conf, logger)
	if err != nil {
		return mailResult{}, err
	}
	return mailResult{Service: svc, Close: closeFn}, nil
}

func newMetrics(conf *core.Config) *metricsvc.Metrics {
	return metricsvc.New(strings.ToLower(conf.AppName))
}

func newDeps(p depsParams) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Metrics:       p.Metrics,
		Events:        p.Events,
		UserSvc:       p.UserSvc,
		ProfileSvc:    p.ProfileSvc,
		ClassSvc:      p.ClassSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		AssignmentSvc: p.AssignmentSvc,
		DashboardSvc:  p.DashboardSvc,
		ContactSvc:    p.ContactSvc,
	}
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	// platform
	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(shared.NewTranslator))
	must(c.Provide(shared.NewValidator))
	must(c.Provide(shared.NewRedisClient))
	must(c.Provide(shared.NewCache))
	must(c.Provide(shared.NewEventBroker))
	must(c.Provide(shared.NewFileStore))
	must(c.Provide(newEmailService))
	must(c.Provide(newMetrics))

	// storage
	must(c.Provide(newRepositories))
	must(c.Provide(splitRepositories))

	// domain
	must(c.Provide(user.NewService))
	must(c.Provide(profile.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(contact.NewService))

	// transport
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
