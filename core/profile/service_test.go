package profile_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/tests"
)

func strPtr(s string) *string { return &s }

func TestService_Ensure(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	tests := []struct {
		name       string
		role       string
		wantRole   string
		wantStatus string
	}{
		{"student", user.RoleStudent, user.RoleStudent, profile.StatusApproved},
		{"tutor", user.RoleTutor, user.RoleTutor, profile.StatusPending},
		{"unknown role", "wizard", user.RoleStudent, profile.StatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := testutil.CreateUser(t, app.UserRepo, tt.name+"@tutorhub.test", "", tt.role)

			p, created, err := app.ProfileSvc.Ensure(ctx, usr)
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, tt.wantRole, p.Role)
			assert.Equal(t, tt.wantStatus, p.ApprovalStatus)

			again, created, err := app.ProfileSvc.Ensure(ctx, usr)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, p.ID, again.ID)
		})
	}
}

func TestService_GetAndUpdate(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	usr := testutil.CreateStudent(t, app, "student@tutorhub.test")

	_, err := app.ProfileSvc.Get(ctx, core.NewID())
	assert.Equal(t, profile.ErrNotFound, errors.Cause(err))
	_, err = app.ProfileSvc.Get(ctx, "nope")
	assert.Equal(t, profile.ErrNotFound, errors.Cause(err))

	p, err := app.ProfileSvc.Get(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Student", p.FirstName)

	events, err := app.Events.Subscribe(ctx, usr.ID)
	require.NoError(t, err)

	data := profile.UpdateProfile{FirstName: strPtr("  Ada "), Bio: strPtr("Loves maths")}
	require.NoError(t, data.Validate(app.Validate))
	updated, err := app.ProfileSvc.Update(ctx, usr.ID, data)
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Loves maths", updated.Bio)

	select {
	case evt := <-events:
		assert.Equal(t, core.EventUserUpdated, evt.Type)
	case <-time.After(time.Second):
		t.Error("no user_updated event")
	}

	// the cached copy was dropped on update
	p, err = app.ProfileSvc.Get(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)

	tooLong := profile.UpdateProfile{Phone: strPtr(strings.Repeat("9", 40))}
	assert.Error(t, tooLong.Validate(app.Validate))
}

func TestService_SetAvatar(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	usr := testutil.CreateStudent(t, app, "student@tutorhub.test")

	_, err := app.ProfileSvc.SetAvatar(ctx, usr.ID, strings.NewReader("not an image"))
	assert.Equal(t, profile.ErrInvalidImage, errors.Cause(err))

	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		for y := 0; y < 480; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	p, err := app.ProfileSvc.SetAvatar(ctx, usr.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "avatars/"+usr.ID+".jpg", p.AvatarKey)
	assert.True(t, strings.HasPrefix(p.AvatarURL, "memory://tutorhub-test/avatars/"), p.AvatarURL)

	stored, ok := app.Store.Get(p.AvatarKey)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", stored.ContentType)
	thumb, err := imaging.Decode(bytes.NewReader(stored.Data))
	require.NoError(t, err)
	assert.Equal(t, profile.AvatarSize, thumb.Bounds().Dx())
	assert.Equal(t, profile.AvatarSize, thumb.Bounds().Dy())
}

func TestService_Approvals(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()

	admin := testutil.CreateUser(t, app.UserRepo, "admin@tutorhub.test", "", user.RoleAdmin)
	ann := testutil.CreateUser(t, app.UserRepo, "ann@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, app.ProfRepo, ann, profile.StatusPending, "Ann", "Tutor")
	ben := testutil.CreateUser(t, app.UserRepo, "ben@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, app.ProfRepo, ben, profile.StatusPending, "Ben", "Tutor")

	pending, err := app.ProfileSvc.PendingApprovals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.ElementsMatch(t, []string{"ann@tutorhub.test", "ben@tutorhub.test"}, []string{pending[0].Email, pending[1].Email})

	_, err = app.ProfileSvc.Approve(ctx, ann, ann.ID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	ok, err := app.ProfileSvc.IsApprovedTutor(ctx, ann.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	approved, err := app.ProfileSvc.Approve(ctx, admin, ann.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved())
	if assert.NotNil(t, approved.DecidedBy) {
		assert.Equal(t, admin.ID, *approved.DecidedBy)
	}

	ok, err = app.ProfileSvc.IsApprovedTutor(ctx, ann.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = app.ProfileSvc.Approve(ctx, admin, ann.ID)
	assert.Equal(t, profile.ErrNotPending, errors.Cause(err))

	rejected, err := app.ProfileSvc.Reject(ctx, admin, ben.ID, "  missing diploma ")
	require.NoError(t, err)
	assert.Equal(t, profile.StatusRejected, rejected.ApprovalStatus)
	assert.Equal(t, "missing diploma", rejected.ApprovalNote)

	pending, err = app.ProfileSvc.PendingApprovals(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	recent, err := app.ProfileSvc.RecentApprovals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	recent, err = app.ProfileSvc.RecentApprovals(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestProfile_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", profile.Profile{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", profile.Profile{FirstName: "Ada"}.FullName())
	assert.Equal(t, "Lovelace", profile.Profile{LastName: "Lovelace"}.FullName())
}
