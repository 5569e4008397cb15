package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorhub/core"
)

// Class statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCompleted = "completed"
)

var AllStatuses = []string{StatusActive, StatusInactive, StatusCompleted}

type Class struct {
	ID          string     `json:"id"`
	TutorID     string     `json:"tutor_id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	MaxStudents int        `json:"max_students"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

func (c Class) IsActive() bool { return c.Status == StatusActive }

// RemainingSpots never goes below zero, even when capacity was lowered under the active count.
func (c Class) RemainingSpots(activeCount int) int {
	if left := c.MaxStudents - activeCount; left > 0 {
		return left
	}
	return 0
}

type NewClass struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Subject     string     `json:"subject" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=5000"`
	MaxStudents int        `json:"max_students" validate:"required,min=1,max=1000"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass defines what may be changed on a Class. Nil fields are left unchanged.
type UpdateClass struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Subject     *string    `json:"subject" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	MaxStudents *int       `json:"max_students" validate:"omitempty,min=1,max=1000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=active inactive completed"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{uc.Title, uc.Subject, uc.Description, uc.Status} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	return validate.Struct(uc)
}

type QueryFilter struct {
	TutorID  string   `query:"tutor_id"`
	IDs      []string `query:"id"`
	Statuses []string `query:"status"`
	Search   string   `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.TutorID = core.CleanString(qf.TutorID)
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields lists the fields classes can be ordered by.
var OrderingFields = []string{"title", "subject", "status", "max_students", "start_date", "created_at", "updated_at"}

// Schedule is either a weekly slot (DayOfWeek, 0 is Sunday) or a one-off session (SessionDate).
type Schedule struct {
	ID          string     `json:"id"`
	ClassID     string     `json:"class_id"`
	DayOfWeek   *int       `json:"day_of_week"`
	SessionDate *time.Time `json:"session_date"`
	StartTime   string     `json:"start_time"` // HH:MM
	EndTime     string     `json:"end_time"`   // HH:MM
	Location    string     `json:"location"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
}

func (s Schedule) IsRecurring() bool { return s.DayOfWeek != nil }

type NewSchedule struct {
	DayOfWeek   *int       `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	SessionDate *time.Time `json:"session_date"`
	StartTime   string     `json:"start_time" validate:"required,hhmm"`
	EndTime     string     `json:"end_time" validate:"required,hhmm"`
	Location    string     `json:"location" validate:"max=200"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.StartTime = core.CleanString(ns.StartTime)
	ns.EndTime = core.CleanString(ns.EndTime)
	ns.Location = core.CleanString(ns.Location)
	if ns.SessionDate != nil {
		d := ns.SessionDate.UTC().Truncate(24 * time.Hour)
		ns.SessionDate = &d
	}
	return validate.Struct(ns)
}

type Resource struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type NewResource struct {
	Title       string `json:"title" validate:"required,max=200"`
	URL         string `json:"url" validate:"required,weburl"`
	Description string `json:"description" validate:"max=2000"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.URL = core.CleanString(nr.URL)
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}
