package class_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/tests"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestService_Create(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	approved := testutil.CreateTutor(t, app, "approved@tutorhub.test")
	pending := testutil.CreateUser(t, app.UserRepo, "pending@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, app.ProfRepo, pending, profile.StatusPending, "Pat", "Pending")
	noProfile := testutil.CreateUser(t, app.UserRepo, "noprofile@tutorhub.test", "", user.RoleTutor)
	student := testutil.CreateStudent(t, app, "student@tutorhub.test")
	admin := testutil.CreateUser(t, app.UserRepo, "admin@tutorhub.test", "", user.RoleAdmin)

	nc := class.NewClass{Title: "Algebra", Subject: "Maths", MaxStudents: 10}
	tests := []struct {
		name    string
		caller  user.User
		wantErr error
	}{
		{"approved tutor", approved, nil},
		{"admin", admin, nil},
		{"pending tutor", pending, class.ErrTutorNotApproved},
		{"tutor without profile", noProfile, class.ErrTutorNotApproved},
		{"student", student, core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := app.ClassSvc.Create(ctx, tt.caller, nc)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.caller.ID, cls.TutorID)
			assert.Equal(t, class.StatusActive, cls.Status)
			assert.NotEmpty(t, cls.ID)
		})
	}
}

func TestService_UpdateAndStatus(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	other := testutil.CreateTutor(t, app, "other@tutorhub.test")
	admin := testutil.CreateUser(t, app.UserRepo, "admin@tutorhub.test", "", user.RoleAdmin)
	cls := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", 10)

	_, err := app.ClassSvc.Update(ctx, other, cls.ID, class.UpdateClass{Title: strPtr("Hijacked")})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	updated, err := app.ClassSvc.Update(ctx, tutor, cls.ID, class.UpdateClass{Title: strPtr("Algebra II"), MaxStudents: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, "Algebra II", updated.Title)
	assert.Equal(t, 4, updated.MaxStudents)
	assert.Equal(t, "Maths", updated.Subject)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, -1, 0)
	_, err = app.ClassSvc.Update(ctx, tutor, cls.ID, class.UpdateClass{StartDate: &start, EndDate: &end})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = app.ClassSvc.SetStatus(ctx, tutor, cls.ID, "archived")
	assert.True(t, errors.As(err, &vErr))

	completed, err := app.ClassSvc.SetStatus(ctx, admin, cls.ID, class.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, class.StatusCompleted, completed.Status)

	_, err = app.ClassSvc.Get(ctx, "not-an-id")
	assert.Equal(t, class.ErrNotFound, errors.Cause(err))
}

func TestService_SchedulesAndResources(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	student := testutil.CreateStudent(t, app, "student@tutorhub.test")
	cls := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", 10)

	ns := class.NewSchedule{DayOfWeek: intPtr(1), StartTime: "09:00", EndTime: "10:30", Location: "Room 4"}
	_, err := app.ClassSvc.AddSchedule(ctx, student, cls.ID, ns)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	sch, err := app.ClassSvc.AddSchedule(ctx, tutor, cls.ID, ns)
	require.NoError(t, err)
	assert.True(t, sch.IsRecurring())

	res, err := app.ClassSvc.AddResource(ctx, tutor, cls.ID, class.NewResource{Title: "Notes", URL: "https://tutorhub.test/notes"})
	require.NoError(t, err)

	schedules, err := app.ClassSvc.Schedules(ctx, cls.ID)
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
	resources, err := app.ClassSvc.Resources(ctx, cls.ID, cls.ID)
	require.NoError(t, err)
	assert.Len(t, resources, 1)

	err = app.ClassSvc.DeleteSchedule(ctx, tutor, cls.ID, core.NewID())
	assert.Equal(t, class.ErrScheduleNotFound, errors.Cause(err))
	require.NoError(t, app.ClassSvc.DeleteSchedule(ctx, tutor, cls.ID, sch.ID))
	require.NoError(t, app.ClassSvc.DeleteResource(ctx, tutor, cls.ID, res.ID))

	schedules, err = app.ClassSvc.Schedules(ctx, cls.ID)
	require.NoError(t, err)
	assert.Empty(t, schedules)
	resources, err = app.ClassSvc.Resources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestService_Query(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	other := testutil.CreateTutor(t, app, "other@tutorhub.test")
	algebra := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", 10)
	biology := testutil.CreateClass(t, app.ClassRepo, other, "Biology", 10)
	_, err := app.ClassSvc.SetStatus(ctx, other, biology.ID, class.StatusInactive)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter *class.QueryFilter
		want   []string
	}{
		{"all", nil, []string{algebra.ID, biology.ID}},
		{"by tutor", &class.QueryFilter{TutorID: tutor.ID}, []string{algebra.ID}},
		{"by status", &class.QueryFilter{Statuses: []string{class.StatusInactive}}, []string{biology.ID}},
		{"by search", &class.QueryFilter{Search: "  alg "}, []string{algebra.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes, err := app.ClassSvc.Query(ctx, tt.filter, []core.DBOrdering{{Field: "title", Ascending: true}})
			require.NoError(t, err)
			ids := make([]string, 0, len(classes))
			for _, cls := range classes {
				ids = append(ids, cls.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err = app.ClassSvc.Query(ctx, &class.QueryFilter{Statuses: []string{"archived"}}, nil)
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestNewSchedule_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	day := time.Date(2026, 10, 20, 15, 4, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ns      class.NewSchedule
		wantErr bool
	}{
		{"weekly", class.NewSchedule{DayOfWeek: intPtr(3), StartTime: "08:00", EndTime: "09:00"}, false},
		{"one-off", class.NewSchedule{SessionDate: &day, StartTime: "08:00", EndTime: "09:00"}, false},
		{"both kinds", class.NewSchedule{DayOfWeek: intPtr(3), SessionDate: &day, StartTime: "08:00", EndTime: "09:00"}, true},
		{"no kind", class.NewSchedule{StartTime: "08:00", EndTime: "09:00"}, true},
		{"ends before start", class.NewSchedule{DayOfWeek: intPtr(0), StartTime: "10:00", EndTime: "09:59"}, true},
		{"bad day", class.NewSchedule{DayOfWeek: intPtr(7), StartTime: "08:00", EndTime: "09:00"}, true},
		{"bad time", class.NewSchedule{DayOfWeek: intPtr(1), StartTime: "8am", EndTime: "09:00"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	ns := class.NewSchedule{SessionDate: &day, StartTime: "08:00", EndTime: "09:00"}
	require.NoError(t, ns.Validate(validate))
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), *ns.SessionDate)
}

func TestClass_RemainingSpots(t *testing.T) {
	cls := class.Class{MaxStudents: 3}
	assert.Equal(t, 3, cls.RemainingSpots(0))
	assert.Equal(t, 1, cls.RemainingSpots(2))
	assert.Equal(t, 0, cls.RemainingSpots(5))
}
