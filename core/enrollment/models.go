package enrollment

import (
	"time"

	"github.com/trezcool/tutorhub/core/profile"
)

// Enrollment statuses
const (
	StatusActive  = "active"
	StatusDropped = "dropped"
)

var AllStatuses = []string{StatusActive, StatusDropped}

// Enrollment links a student to a class. There is at most one per (class, student):
// dropping and re-enrolling flips the same row.
type Enrollment struct {
	ID         string     `json:"id"`
	ClassID    string     `json:"class_id"`
	StudentID  string     `json:"student_id"`
	Status     string     `json:"status"`
	EnrolledAt time.Time  `json:"enrolled_at"` // UTC
	DroppedAt  *time.Time `json:"dropped_at"`  // UTC
	UpdatedAt  time.Time  `json:"updated_at"`  // UTC
}

func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

// Result is what a successful Enroll returns.
type Result struct {
	Enrollment     Enrollment `json:"enrollment"`
	RemainingSpots int        `json:"remaining_spots"`
}

// RosterEntry is an enrollment of a class roster, with the student's profile.
type RosterEntry struct {
	Enrollment
	Student *profile.Profile `json:"student"`
}

type QueryFilter struct {
	ClassIDs   []string
	StudentIDs []string
	Statuses   []string
}
