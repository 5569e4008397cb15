package inmemdb

import (
	"context"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) find(classID, studentID string) (enrollment.Enrollment, bool) {
	for _, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			return e, true
		}
	}
	return enrollment.Enrollment{}, false
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.find(e.ClassID, e.StudentID); ok {
		return enrollment.Enrollment{}, core.ErrConflict
	}
	e.ID = core.NewID()
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, classID, studentID string, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.find(classID, studentID); ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter *enrollment.QueryFilter, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter != nil {
			if len(filter.ClassIDs) > 0 && !core.StringIn(e.ClassID, filter.ClassIDs...) {
				continue
			}
			if len(filter.StudentIDs) > 0 && !core.StringIn(e.StudentID, filter.StudentIDs...) {
				continue
			}
			if len(filter.Statuses) > 0 && !core.StringIn(e.Status, filter.Statuses...) {
				continue
			}
		}
		enrollments = append(enrollments, e)
	}
	orderBy(enrollments, nil, nil, func(a, b enrollment.Enrollment) int { return compareTimes(b.EnrolledAt, a.EnrolledAt) })
	return enrollments, nil
}
