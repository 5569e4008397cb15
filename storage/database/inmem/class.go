package inmemdb

import (
	"context"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

var classComparators = map[string]comparator[class.Class]{
	"title":        func(a, b class.Class) int { return compareStrings(a.Title, b.Title) },
	"subject":      func(a, b class.Class) int { return compareStrings(a.Subject, b.Subject) },
	"status":       func(a, b class.Class) int { return compareStrings(a.Status, b.Status) },
	"max_students": func(a, b class.Class) int { return compareInts(a.MaxStudents, b.MaxStudents) },
	"start_date":   func(a, b class.Class) int { return compareTimePtrs(a.StartDate, b.StartDate) },
	"created_at":   func(a, b class.Class) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at":   func(a, b class.Class) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = core.NewID()
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo *classRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

// GetClassForUpdate relies on DB.WithinTx serializing units of work.
func (repo *classRepository) GetClassForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	return repo.GetClass(ctx, id, exec...)
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.classes {
		if filter != nil {
			if filter.TutorID != "" && cls.TutorID != filter.TutorID {
				continue
			}
			if len(filter.IDs) > 0 && !core.StringIn(cls.ID, filter.IDs...) {
				continue
			}
			if len(filter.Statuses) > 0 && !core.StringIn(cls.Status, filter.Statuses...) {
				continue
			}
			if filter.Search != "" && !containsFold(cls.Title, filter.Search) && !containsFold(cls.Subject, filter.Search) {
				continue
			}
		}
		classes = append(classes, cls)
	}
	orderBy(classes, ordering, classComparators, func(a, b class.Class) int { return compareTimes(b.CreatedAt, a.CreatedAt) })
	return classes, nil
}

func (repo *classRepository) CountActiveEnrollments(_ context.Context, classIDs []string, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := idSet(classIDs)
	counts := make(map[string]int, len(classIDs))
	for _, e := range repo.db.enrollments {
		if wanted[e.ClassID] && e.Status == enrollment.StatusActive {
			counts[e.ClassID]++
		}
	}
	return counts, nil
}

func (repo *classRepository) CreateSchedule(_ context.Context, sch class.Schedule, _ ...core.DBExecutor) (class.Schedule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sch.ID = core.NewID()
	repo.db.schedules[sch.ID] = sch
	return sch, nil
}

func (repo *classRepository) DeleteSchedule(_ context.Context, classID, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if sch, ok := repo.db.schedules[id]; !ok || sch.ClassID != classID {
		return class.ErrScheduleNotFound
	}
	delete(repo.db.schedules, id)
	return nil
}

// QuerySchedules lists weekly slots first (by day and time), then one-off sessions by date.
func (repo *classRepository) QuerySchedules(_ context.Context, classIDs []string, _ ...core.DBExecutor) ([]class.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := idSet(classIDs)
	schedules := make([]class.Schedule, 0)
	for _, sch := range repo.db.schedules {
		if wanted[sch.ClassID] {
			schedules = append(schedules, sch)
		}
	}
	orderBy(schedules, nil, nil, compareSchedules)
	return schedules, nil
}

func compareSchedules(a, b class.Schedule) int {
	switch {
	case a.IsRecurring() && !b.IsRecurring():
		return -1
	case !a.IsRecurring() && b.IsRecurring():
		return 1
	case a.IsRecurring():
		if c := compareInts(*a.DayOfWeek, *b.DayOfWeek); c != 0 {
			return c
		}
	default:
		if c := compareTimePtrs(a.SessionDate, b.SessionDate); c != 0 {
			return c
		}
	}
	return compareStrings(a.StartTime, b.StartTime)
}

func (repo *classRepository) CreateResource(_ context.Context, res class.Resource, _ ...core.DBExecutor) (class.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.ID = core.NewID()
	repo.db.resources[res.ID] = res
	return res, nil
}

func (repo *classRepository) DeleteResource(_ context.Context, classID, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if res, ok := repo.db.resources[id]; !ok || res.ClassID != classID {
		return class.ErrResourceNotFound
	}
	delete(repo.db.resources, id)
	return nil
}

func (repo *classRepository) QueryResources(_ context.Context, classIDs []string, _ ...core.DBExecutor) ([]class.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := idSet(classIDs)
	resources := make([]class.Resource, 0)
	for _, res := range repo.db.resources {
		if wanted[res.ClassID] {
			resources = append(resources, res)
		}
	}
	orderBy(resources, nil, nil, func(a, b class.Resource) int { return compareTimes(a.CreatedAt, b.CreatedAt) })
	return resources, nil
}
