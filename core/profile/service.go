package profile

import (
	"bytes"
	"context"
	"io"
	"sort"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/user"
)

const (
	AvatarSize        = 256
	avatarJPEGQuality = 85
	recentWindow      = 30 * 24 * time.Hour
)

var (
	// errors
	ErrNotFound     = errors.New("profile not found")
	ErrNotPending   = errors.New("profile is not pending approval")
	ErrInvalidImage = errors.New("invalid image")
)

type (
	Repository interface {
		// CreateProfile returns core.ErrConflict if the user already has a profile.
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		QueryProfiles(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Profile, error)
	}

	Service interface {
		Get(ctx context.Context, userID string) (Profile, error)
		GetMany(ctx context.Context, userIDs ...string) (map[string]Profile, error)
		Ensure(ctx context.Context, usr user.User) (Profile, bool, error)
		Update(ctx context.Context, userID string, data UpdateProfile) (Profile, error)
		SetAvatar(ctx context.Context, userID string, r io.Reader) (Profile, error)
		IsApprovedTutor(ctx context.Context, userID string) (bool, error)
		Approve(ctx context.Context, admin user.User, userID string) (Profile, error)
		Reject(ctx context.Context, admin user.User, userID, note string) (Profile, error)
		PendingApprovals(ctx context.Context) ([]Approval, error)
		RecentApprovals(ctx context.Context, since time.Time) ([]Approval, error)
	}

	service struct {
		repo      Repository
		usrSvc    user.Service
		cache     core.Cache
		store     core.FileStore
		events    core.EventBroker
		logger    core.Logger
		cacheTTL  time.Duration
		urlExpiry time.Duration
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	repo Repository,
	usrSvc user.Service,
	cache core.Cache,
	store core.FileStore,
	events core.EventBroker,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		usrSvc:    usrSvc,
		cache:     cache,
		store:     store,
		events:    events,
		logger:    logger,
		cacheTTL:  conf.ProfileCacheTTL,
		urlExpiry: conf.Storage.URLExpiry,
	}
}

func cacheKey(userID string) string { return "profile:" + userID }

// InitialStatus is the approval status a new profile gets: only tutors wait for an admin.
func InitialStatus(role string) string {
	if role == user.RoleTutor {
		return StatusPending
	}
	return StatusApproved
}

// withAvatarURL resolves the presigned avatar link; a storage failure only hides the avatar.
func (svc *service) withAvatarURL(ctx context.Context, p Profile) Profile {
	p.AvatarURL = ""
	if p.AvatarKey == "" {
		return p
	}
	url, err := svc.store.URL(ctx, p.AvatarKey, svc.urlExpiry)
	if err != nil {
		svc.logger.Warn("resolving avatar URL", errors.Wrap(err, p.AvatarKey))
		return p
	}
	p.AvatarURL = url
	return p
}

func (svc *service) cacheProfile(ctx context.Context, p Profile) {
	p.AvatarURL = ""
	if err := svc.cache.Set(ctx, cacheKey(p.UserID), p, svc.cacheTTL); err != nil {
		svc.logger.Warn("caching profile", errors.Wrap(err, p.UserID))
	}
}

func (svc *service) invalidate(ctx context.Context, userID string) {
	if err := svc.cache.Delete(ctx, cacheKey(userID)); err != nil {
		svc.logger.Warn("invalidating cached profile", errors.Wrap(err, userID))
	}
}

func (svc *service) notify(ctx context.Context, userID string) {
	if err := svc.events.Publish(ctx, core.NewAuthEvent(core.EventUserUpdated, userID)); err != nil {
		svc.logger.Warn("publishing auth event", errors.Wrap(err, "publishing user_updated"))
	}
}

// Get looks the profile up in the cache first. A missing profile is ErrNotFound.
func (svc *service) Get(ctx context.Context, userID string) (Profile, error) {
	if !core.IsValidID(userID) {
		return Profile{}, ErrNotFound
	}

	var p Profile
	found, err := svc.cache.Get(ctx, cacheKey(userID), &p)
	if err != nil {
		svc.logger.Warn("reading cached profile", errors.Wrap(err, userID))
	}
	if found && err == nil {
		return svc.withAvatarURL(ctx, p), nil
	}

	p, err = svc.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Profile{}, ErrNotFound
		}
		return Profile{}, errors.Wrap(err, "getting profile")
	}
	svc.cacheProfile(ctx, p)
	return svc.withAvatarURL(ctx, p), nil
}

// GetMany batches the lookup of many profiles, keyed by user ID. Missing profiles are skipped.
func (svc *service) GetMany(ctx context.Context, userIDs ...string) (map[string]Profile, error) {
	userIDs = core.UniqueStrings(userIDs)
	found := make(map[string]Profile, len(userIDs))
	if len(userIDs) == 0 {
		return found, nil
	}
	profiles, err := svc.repo.QueryProfiles(ctx, &QueryFilter{UserIDs: userIDs}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	for _, p := range profiles {
		found[p.UserID] = svc.withAvatarURL(ctx, p)
	}
	return found, nil
}

// Ensure returns the user's profile, creating it if missing from the role captured at sign up.
// Names are left empty. Concurrent calls all end up with the same row.
func (svc *service) Ensure(ctx context.Context, usr user.User) (Profile, bool, error) {
	p, err := svc.Get(ctx, usr.ID)
	if err == nil {
		return p, false, nil
	} else if err != ErrNotFound {
		return Profile{}, false, err
	}

	role := usr.Role
	if !core.StringIn(role, user.AllRoles...) {
		role = user.RoleStudent
	}
	now := time.Now().UTC()
	p = Profile{
		UserID:         usr.ID,
		Role:           role,
		ApprovalStatus: InitialStatus(role),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.IsApproved() {
		p.DecidedAt = &now
	}

	p, err = svc.repo.CreateProfile(ctx, p)
	if err != nil {
		if errors.Cause(err) == core.ErrConflict { // lost a creation race
			p, err = svc.repo.GetProfile(ctx, usr.ID)
			if err != nil {
				return Profile{}, false, errors.Wrap(err, "getting profile")
			}
			return svc.withAvatarURL(ctx, p), false, nil
		}
		return Profile{}, false, errors.Wrap(err, "creating profile")
	}
	svc.cacheProfile(ctx, p)
	return p, true, nil
}

func (svc *service) Update(ctx context.Context, userID string, data UpdateProfile) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if data.FirstName != nil {
		p.FirstName = *data.FirstName
	}
	if data.LastName != nil {
		p.LastName = *data.LastName
	}
	if data.Bio != nil {
		p.Bio = *data.Bio
	}
	if data.Phone != nil {
		p.Phone = *data.Phone
	}
	return svc.save(ctx, p)
}

func (svc *service) save(ctx context.Context, p Profile) (Profile, error) {
	p.UpdatedAt = time.Now().UTC()
	p, err := svc.repo.UpdateProfile(ctx, p)
	if err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	svc.invalidate(ctx, p.UserID)
	svc.notify(ctx, p.UserID)
	return svc.withAvatarURL(ctx, p), nil
}

// SetAvatar crops the image to a square JPEG thumbnail and stores it.
func (svc *service) SetAvatar(ctx context.Context, userID string, r io.Reader) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return Profile{}, ErrInvalidImage
	}
	thumb := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(avatarJPEGQuality)); err != nil {
		return Profile{}, errors.Wrap(err, "encoding avatar")
	}

	key := "avatars/" + userID + ".jpg"
	if err := svc.store.Put(ctx, key, &buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return Profile{}, errors.Wrap(err, "storing avatar")
	}
	p.AvatarKey = key
	return svc.save(ctx, p)
}

func (svc *service) IsApprovedTutor(ctx context.Context, userID string) (bool, error) {
	p, err := svc.Get(ctx, userID)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return p.Role == user.RoleTutor && p.IsApproved(), nil
}

func (svc *service) decide(ctx context.Context, admin user.User, userID, status, note string) (Profile, error) {
	if !admin.IsAdmin() {
		return Profile{}, core.ErrForbidden
	}
	p, err := svc.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if !p.IsPending() {
		return Profile{}, ErrNotPending
	}
	now := time.Now().UTC()
	p.ApprovalStatus = status
	p.ApprovalNote = note
	p.DecidedBy = &admin.ID
	p.DecidedAt = &now
	return svc.save(ctx, p)
}

func (svc *service) Approve(ctx context.Context, admin user.User, userID string) (Profile, error) {
	return svc.decide(ctx, admin, userID, StatusApproved, "")
}

func (svc *service) Reject(ctx context.Context, admin user.User, userID, note string) (Profile, error) {
	return svc.decide(ctx, admin, userID, StatusRejected, core.CleanString(note))
}

// withEmails joins the account emails of profiles in one lookup.
func (svc *service) withEmails(ctx context.Context, profiles []Profile) ([]Approval, error) {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	users, err := svc.usrSvc.GetByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "getting users")
	}
	approvals := make([]Approval, 0, len(profiles))
	for _, p := range profiles {
		approvals = append(approvals, Approval{Profile: svc.withAvatarURL(ctx, p), Email: users[p.UserID].Email})
	}
	return approvals, nil
}

// PendingApprovals lists tutors waiting for a decision, oldest first.
func (svc *service) PendingApprovals(ctx context.Context) ([]Approval, error) {
	profiles, err := svc.repo.QueryProfiles(ctx,
		&QueryFilter{Roles: []string{user.RoleTutor}, Statuses: []string{StatusPending}},
		[]core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying pending profiles")
	}
	return svc.withEmails(ctx, profiles)
}

// RecentApprovals lists the decisions taken since `since` (30 days ago if zero), most recent first.
func (svc *service) RecentApprovals(ctx context.Context, since time.Time) ([]Approval, error) {
	if since.IsZero() {
		since = time.Now().UTC().Add(-recentWindow)
	}
	profiles, err := svc.repo.QueryProfiles(ctx,
		&QueryFilter{Statuses: []string{StatusApproved, StatusRejected}, DecidedFrom: since.UTC()},
		[]core.DBOrdering{{Field: "decided_at"}})
	if err != nil {
		return nil, errors.Wrap(err, "querying decided profiles")
	}
	// auto-approved accounts were never reviewed
	reviewed := profiles[:0]
	for _, p := range profiles {
		if p.DecidedBy != nil {
			reviewed = append(reviewed, p)
		}
	}
	sort.SliceStable(reviewed, func(i, j int) bool { return reviewed[i].DecidedAt.After(*reviewed[j].DecidedAt) })
	return svc.withEmails(ctx, reviewed)
}
