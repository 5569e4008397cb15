package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("already enrolled in this class")
	ErrClassFull       = errors.New("class is full")
	ErrClassNotActive  = errors.New("class is not accepting enrollments")
	ErrNotEnrolled     = errors.New("not enrolled in this class")
	ErrInvalidStatus   = errors.New("invalid enrollment status")
	errStudentsOnly    = errors.Wrap(core.ErrForbidden, "only students can enroll")
)

type (
	Repository interface {
		// CreateEnrollment returns core.ErrConflict if the student already has a row for the class.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		// QueryEnrollments applies AND operation on available QueryFilter fields, most recent first.
		QueryEnrollments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Enrollment, error)
	}

	Service interface {
		Enroll(ctx context.Context, student user.User, classID string) (Result, error)
		Drop(ctx context.Context, student user.User, classID string) (Enrollment, error)
		ForStudent(ctx context.Context, studentID, status string) ([]Enrollment, error)
		ForClass(ctx context.Context, caller user.User, classID, status string) ([]RosterEntry, error)
		IsActivelyEnrolled(ctx context.Context, classID, studentID string) (bool, error)
		RemainingSpots(ctx context.Context, cls class.Class) (int, error)
	}

	service struct {
		tx        core.Transactor
		repo      Repository
		classRepo class.Repository
		profSvc   profile.Service
		logger    core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	tx core.Transactor,
	repo Repository,
	classRepo class.Repository,
	profSvc profile.Service,
	logger core.Logger,
) Service {
	return &service{
		tx:        tx,
		repo:      repo,
		classRepo: classRepo,
		profSvc:   profSvc,
		logger:    logger,
	}
}

// Enroll adds the student to the class, or reactivates their dropped enrollment.
// The class row stays locked for the whole check-then-write, so concurrent requests
// can never push the class over capacity.
func (svc *service) Enroll(ctx context.Context, student user.User, classID string) (Result, error) {
	if !student.IsStudent() {
		return Result{}, errStudentsOnly
	}
	if !core.IsValidID(classID) {
		return Result{}, class.ErrNotFound
	}

	var res Result
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		cls, err := svc.classRepo.GetClassForUpdate(ctx, classID, exec)
		if err != nil {
			return err
		}
		if !cls.IsActive() {
			return ErrClassNotActive
		}

		existing, err := svc.repo.GetEnrollment(ctx, classID, student.ID, exec)
		switch {
		case err == nil && existing.IsActive():
			return ErrAlreadyEnrolled
		case err != nil && errors.Cause(err) != ErrNotFound:
			return errors.Wrap(err, "getting enrollment")
		}

		counts, err := svc.classRepo.CountActiveEnrollments(ctx, []string{classID}, exec)
		if err != nil {
			return errors.Wrap(err, "counting active enrollments")
		}
		active := counts[classID]
		if active >= cls.MaxStudents {
			return ErrClassFull
		}

		now := time.Now().UTC()
		if existing.ID != "" { // dropped earlier
			existing.Status = StatusActive
			existing.EnrolledAt = now
			existing.DroppedAt = nil
			existing.UpdatedAt = now
			res.Enrollment, err = svc.repo.UpdateEnrollment(ctx, existing, exec)
		} else {
			res.Enrollment, err = svc.repo.CreateEnrollment(ctx, Enrollment{
				ClassID:    classID,
				StudentID:  student.ID,
				Status:     StatusActive,
				EnrolledAt: now,
				UpdatedAt:  now,
			}, exec)
		}
		if err != nil {
			if errors.Cause(err) == core.ErrConflict {
				return ErrAlreadyEnrolled
			}
			return errors.Wrap(err, "saving enrollment")
		}
		res.RemainingSpots = cls.RemainingSpots(active + 1)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (svc *service) Drop(ctx context.Context, student user.User, classID string) (Enrollment, error) {
	if !core.IsValidID(classID) {
		return Enrollment{}, ErrNotEnrolled
	}
	e, err := svc.repo.GetEnrollment(ctx, classID, student.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Enrollment{}, ErrNotEnrolled
		}
		return Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	if !e.IsActive() {
		return Enrollment{}, ErrNotEnrolled
	}

	now := time.Now().UTC()
	e.Status = StatusDropped
	e.DroppedAt = &now
	e.UpdatedAt = now
	if e, err = svc.repo.UpdateEnrollment(ctx, e); err != nil {
		return Enrollment{}, errors.Wrap(err, "dropping enrollment")
	}
	return e, nil
}

func statusFilter(status string) ([]string, error) {
	if status == "" {
		return nil, nil
	}
	if !core.StringIn(status, AllStatuses...) {
		return nil, core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}
	return []string{status}, nil
}

// ForStudent lists the enrollments of a student, optionally restricted to one status.
func (svc *service) ForStudent(ctx context.Context, studentID, status string) ([]Enrollment, error) {
	statuses, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, &QueryFilter{StudentIDs: []string{studentID}, Statuses: statuses})
	if err != nil {
		return nil, errors.Wrap(err, "querying student enrollments")
	}
	return enrollments, nil
}

// ForClass is the roster of a class as seen by its tutor (or an admin).
func (svc *service) ForClass(ctx context.Context, caller user.User, classID, status string) ([]RosterEntry, error) {
	statuses, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	if !core.IsValidID(classID) {
		return nil, class.ErrNotFound
	}
	cls, err := svc.classRepo.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !class.CanManage(caller, cls) {
		return nil, core.ErrForbidden
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, &QueryFilter{ClassIDs: []string{classID}, Statuses: statuses})
	if err != nil {
		return nil, errors.Wrap(err, "querying class enrollments")
	}
	studentIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		studentIDs = append(studentIDs, e.StudentID)
	}
	profiles, err := svc.profSvc.GetMany(ctx, studentIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "getting student profiles")
	}

	roster := make([]RosterEntry, 0, len(enrollments))
	for _, e := range enrollments {
		entry := RosterEntry{Enrollment: e}
		if p, ok := profiles[e.StudentID]; ok {
			entry.Student = &p
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

func (svc *service) IsActivelyEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	e, err := svc.repo.GetEnrollment(ctx, classID, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting enrollment")
	}
	return e.IsActive(), nil
}

func (svc *service) RemainingSpots(ctx context.Context, cls class.Class) (int, error) {
	counts, err := svc.classRepo.CountActiveEnrollments(ctx, []string{cls.ID})
	if err != nil {
		return 0, errors.Wrap(err, "counting active enrollments")
	}
	return cls.RemainingSpots(counts[cls.ID]), nil
}
