package inmemdb

import (
	"context"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = core.NewID()
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, a assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignments, id)
	for subID, sub := range repo.db.submissions {
		if sub.AssignmentID == id {
			delete(repo.db.submissions, subID)
		}
	}
	return nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter != nil {
			if len(filter.ClassIDs) > 0 && !core.StringIn(a.ClassID, filter.ClassIDs...) {
				continue
			}
			if len(filter.IDs) > 0 && !core.StringIn(a.ID, filter.IDs...) {
				continue
			}
		}
		assignments = append(assignments, a)
	}
	orderBy(assignments, nil, nil, func(a, b assignment.Assignment) int { return compareTimes(a.DueDate, b.DueDate) })
	return assignments, nil
}

func (repo *assignmentRepository) findSubmission(assignmentID, studentID string) (assignment.Submission, bool) {
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return sub, true
		}
	}
	return assignment.Submission{}, false
}

func (repo *assignmentRepository) CreateSubmission(_ context.Context, s assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.findSubmission(s.AssignmentID, s.StudentID); ok {
		return assignment.Submission{}, core.ErrConflict
	}
	s.ID = core.NewID()
	repo.db.submissions[s.ID] = s
	return s, nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, id string, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetStudentSubmission(_ context.Context, assignmentID, studentID string, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.findSubmission(assignmentID, studentID); ok {
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) ResubmitSubmission(_ context.Context, s assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.submissions[s.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	if stored.IsGraded() {
		return assignment.Submission{}, assignment.ErrAlreadyGraded
	}
	stored.Content = s.Content
	stored.FileKey = s.FileKey
	stored.SubmittedAt = s.SubmittedAt
	stored.UpdatedAt = s.UpdatedAt
	repo.db.submissions[s.ID] = stored
	return stored, nil
}

func (repo *assignmentRepository) GradeSubmission(_ context.Context, s assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.submissions[s.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	stored.Grade = s.Grade
	stored.Feedback = s.Feedback
	stored.GradedAt = s.GradedAt
	stored.GradedBy = s.GradedBy
	stored.UpdatedAt = s.UpdatedAt
	repo.db.submissions[s.ID] = stored
	return stored, nil
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, filter *assignment.SubmissionFilter, _ ...core.DBExecutor) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]assignment.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter != nil {
			if len(filter.AssignmentIDs) > 0 && !core.StringIn(s.AssignmentID, filter.AssignmentIDs...) {
				continue
			}
			if len(filter.StudentIDs) > 0 && !core.StringIn(s.StudentID, filter.StudentIDs...) {
				continue
			}
			if filter.Graded != nil && s.IsGraded() != *filter.Graded {
				continue
			}
		}
		subs = append(subs, s)
	}
	orderBy(subs, nil, nil, func(a, b assignment.Submission) int { return compareTimes(b.SubmittedAt, a.SubmittedAt) })
	return subs, nil
}

func (repo *assignmentRepository) CountUngraded(_ context.Context, classIDs []string, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := idSet(classIDs)
	counts := make(map[string]int, len(classIDs))
	for _, s := range repo.db.submissions {
		if s.IsGraded() {
			continue
		}
		if a, ok := repo.db.assignments[s.AssignmentID]; ok && wanted[a.ClassID] {
			counts[a.ClassID]++
		}
	}
	return counts, nil
}
