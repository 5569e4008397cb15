package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("class not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrTutorNotApproved = errors.New("tutor account is not approved yet")
	ErrInvalidStatus    = errors.New("invalid class status")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		// GetClassForUpdate locks the class row until the end of the transaction exec belongs to.
		GetClassForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// QueryClasses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Class.Title and Class.Subject.
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		// CountActiveEnrollments returns the number of active enrollments per class ID.
		CountActiveEnrollments(ctx context.Context, classIDs []string, exec ...core.DBExecutor) (map[string]int, error)

		CreateSchedule(ctx context.Context, sch Schedule, exec ...core.DBExecutor) (Schedule, error)
		DeleteSchedule(ctx context.Context, classID, id string, exec ...core.DBExecutor) error
		QuerySchedules(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]Schedule, error)

		CreateResource(ctx context.Context, res Resource, exec ...core.DBExecutor) (Resource, error)
		DeleteResource(ctx context.Context, classID, id string, exec ...core.DBExecutor) error
		QueryResources(ctx context.Context, classIDs []string, exec ...core.DBExecutor) ([]Resource, error)
	}

	Service interface {
		Create(ctx context.Context, tutor user.User, nc NewClass) (Class, error)
		Get(ctx context.Context, id string) (Class, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		Update(ctx context.Context, caller user.User, id string, uc UpdateClass) (Class, error)
		SetStatus(ctx context.Context, caller user.User, id, status string) (Class, error)
		// Manageable returns the class if caller may edit it (its tutor or an admin).
		Manageable(ctx context.Context, caller user.User, id string) (Class, error)
		RemainingSpots(ctx context.Context, cls Class) (int, error)
		ActiveCounts(ctx context.Context, classIDs ...string) (map[string]int, error)

		AddSchedule(ctx context.Context, caller user.User, classID string, ns NewSchedule) (Schedule, error)
		DeleteSchedule(ctx context.Context, caller user.User, classID, id string) error
		Schedules(ctx context.Context, classIDs ...string) ([]Schedule, error)

		AddResource(ctx context.Context, caller user.User, classID string, nr NewResource) (Resource, error)
		DeleteResource(ctx context.Context, caller user.User, classID, id string) error
		Resources(ctx context.Context, classIDs ...string) ([]Resource, error)
	}

	service struct {
		repo    Repository
		profSvc profile.Service
		logger  core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, profSvc profile.Service, logger core.Logger) Service {
	return &service{repo: repo, profSvc: profSvc, logger: logger}
}

// CanManage reports whether usr may edit cls.
func CanManage(usr user.User, cls Class) bool {
	return usr.IsAdmin() || (usr.ID != "" && usr.ID == cls.TutorID)
}

func (svc *service) Create(ctx context.Context, tutor user.User, nc NewClass) (Class, error) {
	if !tutor.IsAdmin() {
		if !tutor.IsTutor() {
			return Class{}, core.ErrForbidden
		}
		approved, err := svc.profSvc.IsApprovedTutor(ctx, tutor.ID)
		if err != nil {
			return Class{}, errors.Wrap(err, "checking tutor approval")
		}
		if !approved {
			return Class{}, ErrTutorNotApproved
		}
	}

	now := time.Now().UTC()
	cls := Class{
		TutorID:     tutor.ID,
		Title:       nc.Title,
		Subject:     nc.Subject,
		Description: nc.Description,
		MaxStudents: nc.MaxStudents,
		Status:      StatusActive,
		StartDate:   nc.StartDate,
		EndDate:     nc.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cls, err := svc.repo.CreateClass(ctx, cls)
	if err != nil {
		return Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (svc *service) Get(ctx context.Context, id string) (Class, error) {
	if !core.IsValidID(id) {
		return Class{}, ErrNotFound
	}
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	if filter != nil {
		filter.Clean()
		for _, st := range filter.Statuses {
			if !core.StringIn(st, AllStatuses...) {
				return nil, core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
			}
		}
	}
	return svc.repo.QueryClasses(ctx, filter, core.FilterOrderings(ordering, OrderingFields...))
}

func (svc *service) Manageable(ctx context.Context, caller user.User, id string) (Class, error) {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if !CanManage(caller, cls) {
		return Class{}, core.ErrForbidden
	}
	return cls, nil
}

func (svc *service) Update(ctx context.Context, caller user.User, id string, uc UpdateClass) (Class, error) {
	cls, err := svc.Manageable(ctx, caller, id)
	if err != nil {
		return Class{}, err
	}
	if uc.Title != nil {
		cls.Title = *uc.Title
	}
	if uc.Subject != nil {
		cls.Subject = *uc.Subject
	}
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
	if uc.MaxStudents != nil {
		cls.MaxStudents = *uc.MaxStudents
	}
	if uc.Status != nil {
		cls.Status = *uc.Status
	}
	if uc.StartDate != nil {
		cls.StartDate = uc.StartDate
	}
	if uc.EndDate != nil {
		cls.EndDate = uc.EndDate
	}
	if cls.StartDate != nil && cls.EndDate != nil && cls.EndDate.Before(*cls.StartDate) {
		return Class{}, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: endDateText})
	}
	return svc.save(ctx, cls)
}

func (svc *service) SetStatus(ctx context.Context, caller user.User, id, status string) (Class, error) {
	if !core.StringIn(status, AllStatuses...) {
		return Class{}, core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}
	cls, err := svc.Manageable(ctx, caller, id)
	if err != nil {
		return Class{}, err
	}
	if cls.Status == status {
		return cls, nil
	}
	cls.Status = status
	return svc.save(ctx, cls)
}

func (svc *service) save(ctx context.Context, cls Class) (Class, error) {
	cls.UpdatedAt = time.Now().UTC()
	cls, err := svc.repo.UpdateClass(ctx, cls)
	if err != nil {
		return Class{}, errors.Wrap(err, "updating class")
	}
	return cls, nil
}

func (svc *service) RemainingSpots(ctx context.Context, cls Class) (int, error) {
	counts, err := svc.ActiveCounts(ctx, cls.ID)
	if err != nil {
		return 0, err
	}
	return cls.RemainingSpots(counts[cls.ID]), nil
}

func (svc *service) ActiveCounts(ctx context.Context, classIDs ...string) (map[string]int, error) {
	classIDs = core.UniqueStrings(classIDs)
	if len(classIDs) == 0 {
		return map[string]int{}, nil
	}
	counts, err := svc.repo.CountActiveEnrollments(ctx, classIDs)
	if err != nil {
		return nil, errors.Wrap(err, "counting active enrollments")
	}
	return counts, nil
}

func (svc *service) AddSchedule(ctx context.Context, caller user.User, classID string, ns NewSchedule) (Schedule, error) {
	if _, err := svc.Manageable(ctx, caller, classID); err != nil {
		return Schedule{}, err
	}
	sch, err := svc.repo.CreateSchedule(ctx, Schedule{
		ClassID:     classID,
		DayOfWeek:   ns.DayOfWeek,
		SessionDate: ns.SessionDate,
		StartTime:   ns.StartTime,
		EndTime:     ns.EndTime,
		Location:    ns.Location,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Schedule{}, errors.Wrap(err, "creating schedule")
	}
	return sch, nil
}

func (svc *service) DeleteSchedule(ctx context.Context, caller user.User, classID, id string) error {
	if _, err := svc.Manageable(ctx, caller, classID); err != nil {
		return err
	}
	if !core.IsValidID(id) {
		return ErrScheduleNotFound
	}
	return svc.repo.DeleteSchedule(ctx, classID, id)
}

func (svc *service) Schedules(ctx context.Context, classIDs ...string) ([]Schedule, error) {
	classIDs = core.UniqueStrings(classIDs)
	if len(classIDs) == 0 {
		return []Schedule{}, nil
	}
	schedules, err := svc.repo.QuerySchedules(ctx, classIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	return schedules, nil
}

func (svc *service) AddResource(ctx context.Context, caller user.User, classID string, nr NewResource) (Resource, error) {
	if _, err := svc.Manageable(ctx, caller, classID); err != nil {
		return Resource{}, err
	}
	res, err := svc.repo.CreateResource(ctx, Resource{
		ClassID:     classID,
		Title:       nr.Title,
		URL:         nr.URL,
		Description: nr.Description,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Resource{}, errors.Wrap(err, "creating resource")
	}
	return res, nil
}

func (svc *service) DeleteResource(ctx context.Context, caller user.User, classID, id string) error {
	if _, err := svc.Manageable(ctx, caller, classID); err != nil {
		return err
	}
	if !core.IsValidID(id) {
		return ErrResourceNotFound
	}
	return svc.repo.DeleteResource(ctx, classID, id)
}

func (svc *service) Resources(ctx context.Context, classIDs ...string) ([]Resource, error) {
	classIDs = core.UniqueStrings(classIDs)
	if len(classIDs) == 0 {
		return []Resource{}, nil
	}
	resources, err := svc.repo.QueryResources(ctx, classIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	return resources, nil
}
