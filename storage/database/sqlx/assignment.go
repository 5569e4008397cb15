package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
)

const (
	assignmentColumns = "id, class_id, title, description, due_date, points, file_key, created_at, updated_at"
	submissionColumns = "id, assignment_id, student_id, content, file_key, submitted_at, updated_at, grade, feedback, " +
		"graded_at, graded_by"
)

type assignmentRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	DueDate     time.Time   `db:"due_date"`
	Points      int         `db:"points"`
	FileKey     null.String `db:"file_key"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toAssignmentRow(a assignment.Assignment) assignmentRow {
	return assignmentRow{
		ID:          a.ID,
		ClassID:     a.ClassID,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate.UTC(),
		Points:      a.Points,
		FileKey:     null.NewString(a.FileKey, a.FileKey != ""),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

func (r assignmentRow) assignment() assignment.Assignment {
	return assignment.Assignment{
		ID:          r.ID,
		ClassID:     r.ClassID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.UTC(),
		Points:      r.Points,
		FileKey:     r.FileKey.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID           string       `db:"id"`
	AssignmentID string       `db:"assignment_id"`
	StudentID    string       `db:"student_id"`
	Content      string       `db:"content"`
	FileKey      null.String  `db:"file_key"`
	SubmittedAt  time.Time    `db:"submitted_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	Grade        null.Float64 `db:"grade"`
	Feedback     string       `db:"feedback"`
	GradedAt     null.Time    `db:"graded_at"`
	GradedBy     null.String  `db:"graded_by"`
}

func toSubmissionRow(s assignment.Submission) submissionRow {
	return submissionRow{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		Content:      s.Content,
		FileKey:      null.NewString(s.FileKey, s.FileKey != ""),
		SubmittedAt:  s.SubmittedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
		Grade:        null.Float64FromPtr(s.Grade),
		Feedback:     s.Feedback,
		GradedAt:     null.TimeFromPtr(s.GradedAt),
		GradedBy:     null.StringFromPtr(s.GradedBy),
	}
}

func (r submissionRow) submission() assignment.Submission {
	return assignment.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Content:      r.Content,
		FileKey:      r.FileKey.String,
		SubmittedAt:  r.SubmittedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		Grade:        r.Grade.Ptr(),
		Feedback:     r.Feedback,
		GradedAt:     utcPtr(r.GradedAt),
		GradedBy:     r.GradedBy.Ptr(),
	}
}

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{repository{db: db}}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	a.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (:id, :class_id, :title, :description, :due_date, :points, :file_key, :created_at, :updated_at)`,
		toAssignmentRow(a))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	var row assignmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+assignmentColumns+" FROM assignments WHERE id = $1", id)
	if err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return row.assignment(), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE assignments SET title = :title, description = :description, due_date = :due_date, points = :points,
		file_key = :file_key, updated_at = :updated_at
		WHERE id = :id`,
		toAssignmentRow(a))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	q := newQuery("SELECT " + assignmentColumns + " FROM assignments")
	if filter != nil {
		q.anyID("class_id", filter.ClassIDs)
		q.anyID("id", filter.IDs)
	}
	q.orderBy = []string{"due_date ASC"}

	var rows []assignmentRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	s.ID = core.NewID()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO submissions (`+submissionColumns+`)
		VALUES (:id, :assignment_id, :student_id, :content, :file_key, :submitted_at, :updated_at, :grade, :feedback,
		:graded_at, :graded_by)`,
		toSubmissionRow(s))
	if err != nil {
		return assignment.Submission{}, trapConflictErr(err, "inserting submission")
	}
	return s, nil
}

func (repo *assignmentRepository) getSubmission(ctx context.Context, where string, args []interface{}, exec []core.DBExecutor) (assignment.Submission, error) {
	var row submissionRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+submissionColumns+" FROM submissions WHERE "+where, args...)
	if err != nil {
		return assignment.Submission{}, trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return row.submission(), nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Submission, error) {
	return repo.getSubmission(ctx, "id = $1", []interface{}{id}, exec)
}

func (repo *assignmentRepository) GetStudentSubmission(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (assignment.Submission, error) {
	return repo.getSubmission(ctx, "assignment_id = $1 AND student_id = $2", []interface{}{assignmentID, studentID}, exec)
}

func (repo *assignmentRepository) ResubmitSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE submissions SET content = :content, file_key = :file_key, submitted_at = :submitted_at,
		updated_at = :updated_at
		WHERE id = :id AND grade IS NULL`,
		toSubmissionRow(s))
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "resubmitting submission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// either gone or graded
		if _, err := repo.GetSubmission(ctx, s.ID, exec...); err != nil {
			return assignment.Submission{}, err
		}
		return assignment.Submission{}, assignment.ErrAlreadyGraded
	}
	return repo.GetSubmission(ctx, s.ID, exec...)
}

func (repo *assignmentRepository) GradeSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE submissions SET grade = :grade, feedback = :feedback, graded_at = :graded_at, graded_by = :graded_by,
		updated_at = :updated_at
		WHERE id = :id`,
		toSubmissionRow(s))
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "grading submission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return repo.GetSubmission(ctx, s.ID, exec...)
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, filter *assignment.SubmissionFilter, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	q := newQuery("SELECT " + submissionColumns + " FROM submissions")
	if filter != nil {
		q.anyID("assignment_id", filter.AssignmentIDs)
		q.anyID("student_id", filter.StudentIDs)
		if filter.Graded != nil {
			if *filter.Graded {
				q.where("grade IS NOT NULL")
			} else {
				q.where("grade IS NULL")
			}
		}
	}
	q.orderBy = []string{"submitted_at DESC"}

	var rows []submissionRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (repo *assignmentRepository) CountUngraded(ctx context.Context, classIDs []string, exec ...core.DBExecutor) (map[string]int, error) {
	q := newQuery("SELECT a.class_id::text AS key, COUNT(*) AS count FROM submissions s JOIN assignments a ON a.id = s.assignment_id").
		anyID("a.class_id", classIDs).
		where("s.grade IS NULL")
	q.suffix = "GROUP BY a.class_id"

	var rows []countRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q.String(), q.args...); err != nil {
		return nil, errors.Wrap(err, "counting ungraded submissions")
	}
	return countsByKey(rows), nil
}
