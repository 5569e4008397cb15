// Package testutil wires the whole app in memory for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorhub/apps/shared"
	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/contact"
	"github.com/trezcool/tutorhub/core/dashboard"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	cachesvc "github.com/trezcool/tutorhub/services/cache"
	emailsvc "github.com/trezcool/tutorhub/services/email"
	eventsvc "github.com/trezcool/tutorhub/services/events"
	storagesvc "github.com/trezcool/tutorhub/services/storage"
	inmemdb "github.com/trezcool/tutorhub/storage/database/inmem"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = NopLogger{} // interface compliance check

// App holds an in-memory instance of every service.
type App struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB     *inmemdb.DB
	Store  *storagesvc.MemoryStore
	Cache  core.Cache
	Events core.EventBroker

	UserRepo   user.Repository
	ProfRepo   profile.Repository
	ClassRepo  class.Repository
	EnrollRepo enrollment.Repository
	AsgmtRepo  assignment.Repository

	UserSvc       user.Service
	ProfileSvc    profile.Service
	ClassSvc      class.Service
	EnrollmentSvc enrollment.Service
	AssignmentSvc assignment.Service
	DashboardSvc  dashboard.Service
	ContactSvc    contact.Service
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	class.InitValidators(validate, translator)
	return validate, translator
}

func NewApp() *App {
	db := inmemdb.Open()
	app := NewAppWithRepos(&shared.Repositories{
		Tx:          db,
		Users:       inmemdb.NewUserRepository(db),
		Profiles:    inmemdb.NewProfileRepository(db),
		Classes:     inmemdb.NewClassRepository(db),
		Enrollments: inmemdb.NewEnrollmentRepository(db),
		Assignments: inmemdb.NewAssignmentRepository(db),
	})
	app.DB = db
	return app
}

// NewAppWithRepos wires the services over repos, e.g. the ones of shared.OpenRepositories.
func NewAppWithRepos(repos *shared.Repositories) *App {
	conf := core.NewTestConfig()
	logger := NopLogger{}
	validate, translator := NewValidator()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	app := &App{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Store:      storagesvc.NewMemoryStore(conf),
		Cache:      cachesvc.NewMemoryCache(),
		Events:     eventsvc.NewMemoryBroker(),
		UserRepo:   repos.Users,
		ProfRepo:   repos.Profiles,
		ClassRepo:  repos.Classes,
		EnrollRepo: repos.Enrollments,
		AsgmtRepo:  repos.Assignments,
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	app.UserSvc = user.NewService(conf, app.UserRepo, mailSvc, app.Events, logger)
	app.ProfileSvc = profile.NewService(conf, app.ProfRepo, app.UserSvc, app.Cache, app.Store, app.Events, logger)
	app.ClassSvc = class.NewService(app.ClassRepo, app.ProfileSvc, logger)
	app.EnrollmentSvc = enrollment.NewService(repos.Tx, app.EnrollRepo, app.ClassRepo, app.ProfileSvc, logger)
	app.AssignmentSvc = assignment.NewService(conf, app.AsgmtRepo, app.ClassSvc, app.EnrollmentSvc, app.Store, logger)
	app.DashboardSvc = dashboard.NewService(app.ClassSvc, app.EnrollmentSvc, app.AssignmentSvc, app.ProfileSvc, logger)
	app.ContactSvc = contact.NewService(conf, mailSvc, logger)
	return app
}

// Reset empties the database and the outbox. Cached entries are keyed by IDs that never repeat.
func (app *App) Reset() {
	app.DB.Flush()
	emailsvc.ResetSentMessages()
}

// CreateUser stores a confirmed, active user. An empty pwd leaves the account without a password.
func CreateUser(t *testing.T, repo user.Repository, email, pwd, role string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Email:            email,
		Role:             role,
		IsActive:         true,
		EmailConfirmedAt: &tstamp,
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateProfile stores the profile of usr with the given approval status.
func CreateProfile(t *testing.T, repo profile.Repository, usr user.User, status, firstName, lastName string) profile.Profile {
	t.Helper()
	now := time.Now().UTC()
	p, err := repo.CreateProfile(context.Background(), profile.Profile{
		UserID:         usr.ID,
		Role:           usr.Role,
		FirstName:      firstName,
		LastName:       lastName,
		ApprovalStatus: status,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

// CreateTutor stores an approved tutor.
func CreateTutor(t *testing.T, app *App, email string) user.User {
	t.Helper()
	usr := CreateUser(t, app.UserRepo, email, "", user.RoleTutor)
	CreateProfile(t, app.ProfRepo, usr, profile.StatusApproved, "Tutor", email)
	return usr
}

// CreateStudent stores a student with a profile.
func CreateStudent(t *testing.T, app *App, email string) user.User {
	t.Helper()
	usr := CreateUser(t, app.UserRepo, email, "", user.RoleStudent)
	CreateProfile(t, app.ProfRepo, usr, profile.StatusApproved, "Student", email)
	return usr
}

// CreateClass stores an active class taught by tutor.
func CreateClass(t *testing.T, repo class.Repository, tutor user.User, title string, maxStudents int) class.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), class.Class{
		TutorID:     tutor.ID,
		Title:       title,
		Subject:     "Maths",
		MaxStudents: maxStudents,
		Status:      class.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

// CreateAssignment stores an assignment of cls due at due.
func CreateAssignment(t *testing.T, repo assignment.Repository, cls class.Class, title string, due time.Time) assignment.Assignment {
	t.Helper()
	now := time.Now().UTC()
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		ClassID:   cls.ID,
		Title:     title,
		DueDate:   due.UTC(),
		Points:    100,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}
