// Package shared builds the infrastructure the tutorhub binaries have in common.
// Every backing service falls back to an in-process implementation when it is not configured.
package shared

import (
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	cachesvc "github.com/trezcool/tutorhub/services/cache"
	emailsvc "github.com/trezcool/tutorhub/services/email"
	eventsvc "github.com/trezcool/tutorhub/services/events"
	logsvc "github.com/trezcool/tutorhub/services/logger"
	storagesvc "github.com/trezcool/tutorhub/services/storage"
	"github.com/trezcool/tutorhub/storage/database"
	inmemdb "github.com/trezcool/tutorhub/storage/database/inmem"
	sqlxrepos "github.com/trezcool/tutorhub/storage/database/sqlx"
)

// MemoryEngine selects the in-memory database (DATABASE_ENGINE=memory).
const MemoryEngine = "memory"

// NewLogger returns the logger of one component of the platform (api, db, admin, mailer...).
func NewLogger(conf *core.Config, component string) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf).Component(component)
	logger.Enable(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")
	return logger
}

func NewTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

// NewValidator returns a validator knowing every custom validation of the domain.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	class.InitValidators(validate, translator)
	return validate
}

// NewRedisClient returns nil when no redis address is configured.
func NewRedisClient(conf *core.Config) *redis.Client {
	if conf.Redis.Addr == "" {
		return nil
	}
	return cachesvc.NewRedisClient(conf)
}

func NewCache(conf *core.Config, client *redis.Client) core.Cache {
	if client == nil {
		return cachesvc.NewMemoryCache()
	}
	return cachesvc.NewRedisCache(client, conf)
}

// NewEventBroker fans auth events out through redis pub/sub so that every API instance sees them.
func NewEventBroker(conf *core.Config, client *redis.Client, logger core.Logger) core.EventBroker {
	if client == nil {
		return eventsvc.NewMemoryBroker()
	}
	return eventsvc.NewRedisBroker(client, conf, logger)
}

func NewFileStore(conf *core.Config) (core.FileStore, error) {
	if conf.Storage.Endpoint == "" {
		return storagesvc.NewMemoryStore(conf), nil
	}
	store, err := storagesvc.NewMinioStore(conf)
	return store, errors.Wrap(err, "setting up file storage")
}

// NewDeliverer returns the service that actually hands messages over: sendgrid when an API key is set.
func NewDeliverer(conf *core.Config, logger core.Logger) emailsvc.Deliverer {
	if conf.SendgridApiKey == "" || conf.Debug {
		return emailsvc.NewConsoleService(conf, logger).(emailsvc.Deliverer)
	}
	return emailsvc.NewSendgridService(conf, logger).(emailsvc.Deliverer)
}

// NewEmailService queues the messages on the broker when one is configured,
// else delivers them from the calling process. The returned func releases the broker connection.
func NewEmailService(conf *core.Config, logger core.Logger) (core.EmailService, func() error, error) {
	if conf.AMQP.URL == "" {
		return NewDeliverer(conf, logger).(core.EmailService), func() error { return nil }, nil
	}
	svc, err := emailsvc.NewQueueService(conf, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setting up mail queue")
	}
	return svc, svc.Close, nil
}

// Repositories holds the storage of every aggregate, backed by one database.
type Repositories struct {
	SQL         *sqlx.DB // nil with the memory engine
	Tx          core.Transactor
	Users       user.Repository
	Profiles    profile.Repository
	Classes     class.Repository
	Enrollments enrollment.Repository
	Assignments assignment.Repository
}

// OpenRepositories connects to the configured database. Schema migrations are left to the caller.
func OpenRepositories(conf *core.Config) (*Repositories, error) {
	if conf.Database.Engine == MemoryEngine {
		db := inmemdb.Open()
		return &Repositories{
			Tx:          db,
			Users:       inmemdb.NewUserRepository(db),
			Profiles:    inmemdb.NewProfileRepository(db),
			Classes:     inmemdb.NewClassRepository(db),
			Enrollments: inmemdb.NewEnrollmentRepository(db),
			Assignments: inmemdb.NewAssignmentRepository(db),
		}, nil
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		SQL:         db,
		Tx:          database.NewTransactor(db),
		Users:       sqlxrepos.NewUserRepository(db),
		Profiles:    sqlxrepos.NewProfileRepository(db),
		Classes:     sqlxrepos.NewClassRepository(db),
		Enrollments: sqlxrepos.NewEnrollmentRepository(db),
		Assignments: sqlxrepos.NewAssignmentRepository(db),
	}, nil
}

// Migrate brings the schema up to date. It is a no-op with the memory engine.
func (r *Repositories) Migrate() error {
	if r.SQL == nil {
		return nil
	}
	return database.Migrate(r.SQL.DB)
}

func (r *Repositories) Close() error {
	if r.SQL == nil {
		return nil
	}
	return r.SQL.Close()
}
