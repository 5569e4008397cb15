package enrollment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/tests"
)

func TestService_Enroll(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	alice := testutil.CreateStudent(t, app, "alice@tutorhub.test")
	bob := testutil.CreateStudent(t, app, "bob@tutorhub.test")
	cls := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", 1)

	inactive := testutil.CreateClass(t, app.ClassRepo, tutor, "Geometry", 5)
	inactive.Status = class.StatusInactive
	_, err := app.ClassRepo.UpdateClass(ctx, inactive)
	require.NoError(t, err)

	res, err := app.EnrollmentSvc.Enroll(ctx, alice, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusActive, res.Enrollment.Status)
	assert.Equal(t, 0, res.RemainingSpots)

	tests := []struct {
		name    string
		enroll  func() (enrollment.Result, error)
		wantErr error
	}{
		{"twice", func() (enrollment.Result, error) { return app.EnrollmentSvc.Enroll(ctx, alice, cls.ID) }, enrollment.ErrAlreadyEnrolled},
		{"full", func() (enrollment.Result, error) { return app.EnrollmentSvc.Enroll(ctx, bob, cls.ID) }, enrollment.ErrClassFull},
		{"inactive", func() (enrollment.Result, error) { return app.EnrollmentSvc.Enroll(ctx, bob, inactive.ID) }, enrollment.ErrClassNotActive},
		{"tutor", func() (enrollment.Result, error) { return app.EnrollmentSvc.Enroll(ctx, tutor, inactive.ID) }, core.ErrForbidden},
		{"unknown class", func() (enrollment.Result, error) { return app.EnrollmentSvc.Enroll(ctx, bob, core.NewID()) }, class.ErrNotFound},
		{"bad id", func() (enrollment.Result, error) { return app.EnrollmentSvc.Enroll(ctx, bob, "42") }, class.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.enroll()
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}

func TestService_DropAndReenroll(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	alice := testutil.CreateStudent(t, app, "alice@tutorhub.test")
	cls := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", 2)

	_, err := app.EnrollmentSvc.Drop(ctx, alice, cls.ID)
	assert.Equal(t, enrollment.ErrNotEnrolled, errors.Cause(err))

	first, err := app.EnrollmentSvc.Enroll(ctx, alice, cls.ID)
	require.NoError(t, err)

	dropped, err := app.EnrollmentSvc.Drop(ctx, alice, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusDropped, dropped.Status)
	assert.NotNil(t, dropped.DroppedAt)

	_, err = app.EnrollmentSvc.Drop(ctx, alice, cls.ID)
	assert.Equal(t, enrollment.ErrNotEnrolled, errors.Cause(err))

	again, err := app.EnrollmentSvc.Enroll(ctx, alice, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Enrollment.ID, again.Enrollment.ID, "re-enrolling reuses the row")
	assert.Nil(t, again.Enrollment.DroppedAt)
	assert.Equal(t, 1, again.RemainingSpots)

	ok, err := app.EnrollmentSvc.IsActivelyEnrolled(ctx, cls.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_EnrollConcurrently(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	const capacity = 3
	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	cls := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	enrolled, full := 0, 0
	for i := 0; i < 10; i++ {
		student := testutil.CreateStudent(t, app, fmt.Sprintf("student%d@tutorhub.test", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.EnrollmentSvc.Enroll(ctx, student, cls.ID)
			mu.Lock()
			defer mu.Unlock()
			switch errors.Cause(err) {
			case nil:
				enrolled++
			case enrollment.ErrClassFull:
				full++
			default:
				t.Errorf("Enroll() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, enrolled)
	assert.Equal(t, 10-capacity, full)
	spots, err := app.EnrollmentSvc.RemainingSpots(ctx, cls)
	require.NoError(t, err)
	assert.Equal(t, 0, spots)
}

func TestService_ForClass(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, app, "tutor@tutorhub.test")
	other := testutil.CreateTutor(t, app, "other@tutorhub.test")
	alice := testutil.CreateStudent(t, app, "alice@tutorhub.test")
	bob := testutil.CreateStudent(t, app, "bob@tutorhub.test")
	cls := testutil.CreateClass(t, app.ClassRepo, tutor, "Algebra", 5)

	_, err := app.EnrollmentSvc.Enroll(ctx, alice, cls.ID)
	require.NoError(t, err)
	_, err = app.EnrollmentSvc.Enroll(ctx, bob, cls.ID)
	require.NoError(t, err)
	_, err = app.EnrollmentSvc.Drop(ctx, bob, cls.ID)
	require.NoError(t, err)

	roster, err := app.EnrollmentSvc.ForClass(ctx, tutor, cls.ID, "")
	require.NoError(t, err)
	assert.Len(t, roster, 2)
	for _, entry := range roster {
		if assert.NotNil(t, entry.Student) {
			assert.Equal(t, entry.StudentID, entry.Student.UserID)
		}
	}

	roster, err = app.EnrollmentSvc.ForClass(ctx, tutor, cls.ID, enrollment.StatusActive)
	require.NoError(t, err)
	if assert.Len(t, roster, 1) {
		assert.Equal(t, alice.ID, roster[0].StudentID)
	}

	_, err = app.EnrollmentSvc.ForClass(ctx, other, cls.ID, "")
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	_, err = app.EnrollmentSvc.ForClass(ctx, tutor, cls.ID, "pending")
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	mine, err := app.EnrollmentSvc.ForStudent(ctx, bob.ID, enrollment.StatusDropped)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
