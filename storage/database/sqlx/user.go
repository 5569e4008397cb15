package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/user"
)

const userColumns = "id, email, password_hash, role, is_active, email_confirmed_at, session_version, created_at, updated_at, last_login"

type userRow struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	PasswordHash     []byte    `db:"password_hash"`
	Role             string    `db:"role"`
	IsActive         bool      `db:"is_active"`
	EmailConfirmedAt null.Time `db:"email_confirmed_at"`
	SessionVersion   int       `db:"session_version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	LastLogin        null.Time `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		Email:            usr.Email,
		PasswordHash:     usr.PasswordHash,
		Role:             usr.Role,
		IsActive:         usr.IsActive,
		EmailConfirmedAt: null.TimeFromPtr(usr.EmailConfirmedAt),
		SessionVersion:   usr.SessionVersion,
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
		LastLogin:        null.TimeFromPtr(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:               r.ID,
		Email:            r.Email,
		Role:             r.Role,
		IsActive:         r.IsActive,
		EmailConfirmedAt: utcPtr(r.EmailConfirmedAt),
		SessionVersion:   r.SessionVersion,
		PasswordHash:     r.PasswordHash,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		LastLogin:        utcPtr(r.LastLogin),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repository{db: db}}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := newQuery("SELECT EXISTS(SELECT 1 FROM users").where("email = ?", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q.where("NOT (id = ANY(?::uuid[]))", pq.Array(validIDs(ids)))
	}
	q.suffix = ")"

	var exists bool
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q.String(), q.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :password_hash, :role, :is_active, :email_confirmed_at, :session_version, :created_at, :updated_at, :last_login)`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, trapConflictErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := newQuery("SELECT " + userColumns + " FROM users")
	if filter != nil {
		if filter.Search != "" {
			q.where("email ILIKE ?", "%"+filter.Search+"%")
		}
		q.anyOf("role", filter.Roles)
		if filter.IsActive != nil {
			q.where("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q.where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q.where("created_at <= ?", filter.CreatedTo.UTC())
		}
		q.anyID("id", filter.IDs)
	}
	q.order(ordering, "created_at ASC")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := newQuery("SELECT " + userColumns + " FROM users")
	switch {
	case filter.ID != "":
		q.where("id = ?", filter.ID)
	case filter.Email != "":
		q.where("email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q.String(), q.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE users SET email = :email, password_hash = :password_hash, role = :role, is_active = :is_active,
		email_confirmed_at = :email_confirmed_at, session_version = :session_version, updated_at = :updated_at,
		last_login = :last_login
		WHERE id = :id`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, trapConflictErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// UpdateOrCreateUser upserts on the email, keeping the ID and creation date of an existing account.
func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	var row userRow
	q, args, err := sqlx.Named(
		`INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :password_hash, :role, :is_active, :email_confirmed_at, :session_version, :created_at, :updated_at, :last_login)
		ON CONFLICT (LOWER(email)) DO UPDATE SET
			password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, is_active = EXCLUDED.is_active,
			email_confirmed_at = EXCLUDED.email_confirmed_at, session_version = users.session_version + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "binding user upsert")
	}
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &row, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return user.User{}, errors.Wrap(err, "upserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1::uuid[])", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(n), nil
}
