package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/enrollment"
)

const enrollmentColumns = "id, class_id, student_id, status, enrolled_at, dropped_at, updated_at"

type enrollmentRow struct {
	ID         string    `db:"id"`
	ClassID    string    `db:"class_id"`
	StudentID  string    `db:"student_id"`
	Status     string    `db:"status"`
	EnrolledAt time.Time `db:"enrolled_at"`
	DroppedAt  null.Time `db:"dropped_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func toEnrollmentRow(e enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:         e.ID,
		ClassID:    e.ClassID,
		StudentID:  e.StudentID,
		Status:     e.Status,
		EnrolledAt: e.EnrolledAt.UTC(),
		DroppedAt:  null.TimeFromPtr(e.DroppedAt),
		UpdatedAt:  e.UpdatedAt.UTC(),
	}
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:         r.ID,
		ClassID:    r.ClassID,
		StudentID:  r.StudentID,
		Status:     r.Status,
		EnrolledAt: r.EnrolledAt.UTC(),
		DroppedAt:  utcPtr(r.DroppedAt),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{repository{db: db}}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	e.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (:id, :class_id, :student_id, :status, :enrolled_at, :dropped_at, :updated_at)`,
		toEnrollmentRow(e))
	if err != nil {
		return enrollment.Enrollment{}, trapConflictErr(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	if !core.IsValidID(classID) || !core.IsValidID(studentID) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE class_id = $1 AND student_id = $2", classID, studentID)
	if err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE enrollments SET status = :status, enrolled_at = :enrolled_at, dropped_at = :dropped_at, updated_at = :updated_at
		WHERE id = :id`,
		toEnrollmentRow(e))
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	q := newQuery("SELECT " + enrollmentColumns + " FROM enrollments")
	if filter != nil {
		q.anyID("class_id", filter.ClassIDs)
		q.anyID("student_id", filter.StudentIDs)
		q.anyOf("status", filter.Statuses)
	}
	q.orderBy = []string{"enrolled_at DESC"}

	var rows []enrollmentRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.enrollment())
	}
	return enrollments, nil
}
