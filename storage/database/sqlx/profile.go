package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
)

const profileColumns = "id, user_id, role, first_name, last_name, bio, phone, avatar_key, approval_status, approval_note, " +
	"decided_by, decided_at, created_at, updated_at"

type profileRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	Role           string      `db:"role"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	Bio            string      `db:"bio"`
	Phone          string      `db:"phone"`
	AvatarKey      null.String `db:"avatar_key"`
	ApprovalStatus string      `db:"approval_status"`
	ApprovalNote   string      `db:"approval_note"`
	DecidedBy      null.String `db:"decided_by"`
	DecidedAt      null.Time   `db:"decided_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toProfileRow(p profile.Profile) profileRow {
	return profileRow{
		ID:             p.ID,
		UserID:         p.UserID,
		Role:           p.Role,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Bio:            p.Bio,
		Phone:          p.Phone,
		AvatarKey:      null.NewString(p.AvatarKey, p.AvatarKey != ""),
		ApprovalStatus: p.ApprovalStatus,
		ApprovalNote:   p.ApprovalNote,
		DecidedBy:      null.StringFromPtr(p.DecidedBy),
		DecidedAt:      null.TimeFromPtr(p.DecidedAt),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (r profileRow) profile() profile.Profile {
	return profile.Profile{
		ID:             r.ID,
		UserID:         r.UserID,
		Role:           r.Role,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Bio:            r.Bio,
		Phone:          r.Phone,
		AvatarKey:      r.AvatarKey.String,
		ApprovalStatus: r.ApprovalStatus,
		ApprovalNote:   r.ApprovalNote,
		DecidedBy:      r.DecidedBy.Ptr(),
		DecidedAt:      utcPtr(r.DecidedAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type profileRepository struct {
	repository
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) profile.Repository {
	return &profileRepository{repository{db: db}}
}

func (repo *profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	p.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO profiles (`+profileColumns+`)
		VALUES (:id, :user_id, :role, :first_name, :last_name, :bio, :phone, :avatar_key, :approval_status, :approval_note,
		:decided_by, :decided_at, :created_at, :updated_at)`,
		toProfileRow(p))
	if err != nil {
		return profile.Profile{}, trapConflictErr(err, "inserting profile")
	}
	return p, nil
}

func (repo *profileRepository) GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (profile.Profile, error) {
	if !core.IsValidID(userID) {
		return profile.Profile{}, profile.ErrNotFound
	}
	var row profileRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID)
	if err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "getting profile")
	}
	return row.profile(), nil
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE profiles SET first_name = :first_name, last_name = :last_name, bio = :bio, phone = :phone,
		avatar_key = :avatar_key, approval_status = :approval_status, approval_note = :approval_note,
		decided_by = :decided_by, decided_at = :decided_at, updated_at = :updated_at
		WHERE user_id = :user_id`,
		toProfileRow(p))
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return profile.Profile{}, profile.ErrNotFound
	}
	p.AvatarURL = ""
	return p, nil
}

func (repo *profileRepository) QueryProfiles(ctx context.Context, filter *profile.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]profile.Profile, error) {
	q := newQuery("SELECT " + profileColumns + " FROM profiles")
	if filter != nil {
		q.anyID("user_id", filter.UserIDs)
		q.anyOf("role", filter.Roles)
		q.anyOf("approval_status", filter.Statuses)
		if !filter.DecidedFrom.IsZero() {
			q.where("decided_at >= ?", filter.DecidedFrom.UTC())
		}
	}
	q.order(ordering, "created_at ASC")

	var rows []profileRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	profiles := make([]profile.Profile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.profile())
	}
	return profiles, nil
}
