package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorhub/core"
)

type Assignment struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"` // UTC
	Points      int       `json:"points"`
	FileKey     string    `json:"file_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (a Assignment) HasFile() bool { return a.FileKey != "" }

type NewAssignment struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Points      int       `json:"points" validate:"required,min=1,max=1000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.DueDate = na.DueDate.UTC()
	return validate.Struct(na)
}

// UpdateAssignment defines what may be changed on an Assignment. Nil fields are left unchanged.
type UpdateAssignment struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	DueDate     *time.Time `json:"due_date"`
	Points      *int       `json:"points" validate:"omitempty,min=1,max=1000"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		*ua.Title = core.CleanString(*ua.Title)
	}
	if ua.Description != nil {
		*ua.Description = core.CleanString(*ua.Description)
	}
	if ua.DueDate != nil {
		d := ua.DueDate.UTC()
		ua.DueDate = &d
	}
	return validate.Struct(ua)
}

// Submission is the work of one student for one assignment.
// Grade is nil exactly while the submission is not graded.
type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Content      string     `json:"content"`
	FileKey      string     `json:"file_key,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"`   // UTC
	Grade        *float64   `json:"grade"`
	Feedback     string     `json:"feedback"`
	GradedAt     *time.Time `json:"graded_at"` // UTC
	GradedBy     *string    `json:"graded_by"`
}

func (s Submission) IsGraded() bool { return s.Grade != nil }

type NewSubmission struct {
	Content string `json:"content" validate:"max=20000"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Content = core.CleanString(ns.Content)
	return validate.Struct(ns)
}

type GradeSubmission struct {
	Grade    *float64 `json:"grade" validate:"required,min=0"`
	Feedback string   `json:"feedback" validate:"max=5000"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type QueryFilter struct {
	ClassIDs []string
	IDs      []string
}

type SubmissionFilter struct {
	AssignmentIDs []string
	StudentIDs    []string
	// Graded restricts the results to graded (true) or ungraded (false) submissions.
	Graded *bool
}
