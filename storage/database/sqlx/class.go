package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/class"
)

const (
	classColumns    = "id, tutor_id, title, subject, description, max_students, status, start_date, end_date, created_at, updated_at"
	scheduleColumns = "id, class_id, day_of_week, session_date, start_time, end_time, location, created_at"
	resourceColumns = "id, class_id, title, url, description, created_at"
)

type classRow struct {
	ID          string    `db:"id"`
	TutorID     string    `db:"tutor_id"`
	Title       string    `db:"title"`
	Subject     string    `db:"subject"`
	Description string    `db:"description"`
	MaxStudents int       `db:"max_students"`
	Status      string    `db:"status"`
	StartDate   null.Time `db:"start_date"`
	EndDate     null.Time `db:"end_date"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toClassRow(cls class.Class) classRow {
	return classRow{
		ID:          cls.ID,
		TutorID:     cls.TutorID,
		Title:       cls.Title,
		Subject:     cls.Subject,
		Description: cls.Description,
		MaxStudents: cls.MaxStudents,
		Status:      cls.Status,
		StartDate:   null.TimeFromPtr(cls.StartDate),
		EndDate:     null.TimeFromPtr(cls.EndDate),
		CreatedAt:   cls.CreatedAt.UTC(),
		UpdatedAt:   cls.UpdatedAt.UTC(),
	}
}

func (r classRow) class() class.Class {
	return class.Class{
		ID:          r.ID,
		TutorID:     r.TutorID,
		Title:       r.Title,
		Subject:     r.Subject,
		Description: r.Description,
		MaxStudents: r.MaxStudents,
		Status:      r.Status,
		StartDate:   utcPtr(r.StartDate),
		EndDate:     utcPtr(r.EndDate),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type scheduleRow struct {
	ID          string    `db:"id"`
	ClassID     string    `db:"class_id"`
	DayOfWeek   null.Int  `db:"day_of_week"`
	SessionDate null.Time `db:"session_date"`
	StartTime   string    `db:"start_time"`
	EndTime     string    `db:"end_time"`
	Location    string    `db:"location"`
	CreatedAt   time.Time `db:"created_at"`
}

func toScheduleRow(sch class.Schedule) scheduleRow {
	return scheduleRow{
		ID:          sch.ID,
		ClassID:     sch.ClassID,
		DayOfWeek:   null.IntFromPtr(sch.DayOfWeek),
		SessionDate: null.TimeFromPtr(sch.SessionDate),
		StartTime:   sch.StartTime,
		EndTime:     sch.EndTime,
		Location:    sch.Location,
		CreatedAt:   sch.CreatedAt.UTC(),
	}
}

func (r scheduleRow) schedule() class.Schedule {
	return class.Schedule{
		ID:          r.ID,
		ClassID:     r.ClassID,
		DayOfWeek:   r.DayOfWeek.Ptr(),
		SessionDate: utcPtr(r.SessionDate),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Location:    r.Location,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type classRepository struct {
	repository
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{repository{db: db}}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	cls.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO classes (`+classColumns+`)
		VALUES (:id, :tutor_id, :title, :subject, :description, :max_students, :status, :start_date, :end_date, :created_at, :updated_at)`,
		toClassRow(cls))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *classRepository) getClass(ctx context.Context, id, suffix string, exec []core.DBExecutor) (class.Class, error) {
	var row classRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+classColumns+" FROM classes WHERE id = $1"+suffix, id)
	if err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "getting class")
	}
	return row.class(), nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	return repo.getClass(ctx, id, "", exec)
}

func (repo *classRepository) GetClassForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	return repo.getClass(ctx, id, " FOR UPDATE", exec)
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE classes SET title = :title, subject = :subject, description = :description, max_students = :max_students,
		status = :status, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
		WHERE id = :id`,
		toClassRow(cls))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return cls, nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]class.Class, error) {
	q := newQuery("SELECT " + classColumns + " FROM classes")
	if filter != nil {
		if filter.TutorID != "" {
			q.anyID("tutor_id", []string{filter.TutorID})
		}
		q.anyID("id", filter.IDs)
		q.anyOf("status", filter.Statuses)
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q.where("title ILIKE ? OR subject ILIKE ?", val, val)
		}
	}
	q.order(ordering, "created_at DESC")

	var rows []classRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes, nil
}

func (repo *classRepository) CountActiveEnrollments(ctx context.Context, classIDs []string, exec ...core.DBExecutor) (map[string]int, error) {
	q := newQuery("SELECT class_id::text AS key, COUNT(*) AS count FROM enrollments").
		anyID("class_id", classIDs).
		where("status = 'active'")
	q.suffix = "GROUP BY class_id"

	var rows []countRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "counting active enrollments")
	}
	return countsByKey(rows), nil
}

func (repo *classRepository) CreateSchedule(ctx context.Context, sch class.Schedule, exec ...core.DBExecutor) (class.Schedule, error) {
	sch.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (:id, :class_id, :day_of_week, :session_date, :start_time, :end_time, :location, :created_at)`,
		toScheduleRow(sch))
	if err != nil {
		return class.Schedule{}, errors.Wrap(err, "inserting schedule")
	}
	return sch, nil
}

func (repo *classRepository) deleteChild(ctx context.Context, table, classID, id string, notFound error, exec []core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1 AND class_id = $2", id, classID)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

func (repo *classRepository) DeleteSchedule(ctx context.Context, classID, id string, exec ...core.DBExecutor) error {
	return repo.deleteChild(ctx, "schedules", classID, id, class.ErrScheduleNotFound, exec)
}

func (repo *classRepository) QuerySchedules(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]class.Schedule, error) {
	q := newQuery("SELECT " + scheduleColumns + " FROM schedules").anyID("class_id", classIDs)
	q.orderBy = []string{"day_of_week ASC NULLS LAST", "session_date ASC", "start_time ASC"}

	var rows []scheduleRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	schedules := make([]class.Schedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, r.schedule())
	}
	return schedules, nil
}

type resourceRow struct {
	ID          string    `db:"id"`
	ClassID     string    `db:"class_id"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (repo *classRepository) CreateResource(ctx context.Context, res class.Resource, exec ...core.DBExecutor) (class.Resource, error) {
	res.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO resources (`+resourceColumns+`) VALUES (:id, :class_id, :title, :url, :description, :created_at)`,
		resourceRow(res))
	if err != nil {
		return class.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

func (repo *classRepository) DeleteResource(ctx context.Context, classID, id string, exec ...core.DBExecutor) error {
	return repo.deleteChild(ctx, "resources", classID, id, class.ErrResourceNotFound, exec)
}

func (repo *classRepository) QueryResources(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]class.Resource, error) {
	q := newQuery("SELECT " + resourceColumns + " FROM resources").anyID("class_id", classIDs)
	q.orderBy = []string{"created_at ASC"}

	var rows []resourceRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	resources := make([]class.Resource, 0, len(rows))
	for _, r := range rows {
		r.CreatedAt = r.CreatedAt.UTC()
		resources = append(resources, class.Resource(r))
	}
	return resources, nil
}
