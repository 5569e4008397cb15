package assignment

import (
	"sort"
	"time"
)

// DueSoonWindow is how close a due date must be for an unsubmitted assignment to be "due soon".
const DueSoonWindow = 72 * time.Hour

// Work pairs an assignment with the student's submission for it.
type Work struct {
	Assignment Assignment `json:"assignment"`
	Submission Submission `json:"submission"`
}

// Progress buckets the assignments of one student. Every assignment lands in exactly one bucket.
type Progress struct {
	PastDue   []Assignment `json:"past_due"`
	DueSoon   []Assignment `json:"due_soon"`
	Upcoming  []Assignment `json:"upcoming"`
	Submitted []Work       `json:"submitted"`
	Graded    []Work       `json:"graded"`

	Total int `json:"total"`
	// CompletionRate is the share of assignments with a submission, between 0 and 1.
	CompletionRate float64 `json:"completion_rate"`
	// AverageGrade is the mean grade percentage of graded submissions; nil when nothing is graded.
	AverageGrade *float64 `json:"average_grade"`
}

// ComputeProgress buckets assignments against the submissions of a single student, as of now.
// Unsubmitted buckets are sorted by due date; submitted ones by submission date, most recent first.
func ComputeProgress(now time.Time, assignments []Assignment, submissions []Submission) Progress {
	byAssignment := make(map[string]Submission, len(submissions))
	for _, sub := range submissions {
		byAssignment[sub.AssignmentID] = sub
	}

	prog := Progress{
		PastDue:   []Assignment{},
		DueSoon:   []Assignment{},
		Upcoming:  []Assignment{},
		Submitted: []Work{},
		Graded:    []Work{},
		Total:     len(assignments),
	}
	var pctSum float64
	for _, a := range assignments {
		sub, ok := byAssignment[a.ID]
		switch {
		case ok && sub.IsGraded():
			prog.Graded = append(prog.Graded, Work{Assignment: a, Submission: sub})
			if a.Points > 0 {
				pctSum += *sub.Grade / float64(a.Points) * 100
			}
		case ok:
			prog.Submitted = append(prog.Submitted, Work{Assignment: a, Submission: sub})
		case a.DueDate.Before(now):
			prog.PastDue = append(prog.PastDue, a)
		case a.DueDate.Sub(now) <= DueSoonWindow:
			prog.DueSoon = append(prog.DueSoon, a)
		default:
			prog.Upcoming = append(prog.Upcoming, a)
		}
	}

	if prog.Total > 0 {
		prog.CompletionRate = float64(len(prog.Submitted)+len(prog.Graded)) / float64(prog.Total)
	}
	if n := len(prog.Graded); n > 0 {
		avg := pctSum / float64(n)
		prog.AverageGrade = &avg
	}

	for _, bucket := range [][]Assignment{prog.PastDue, prog.DueSoon, prog.Upcoming} {
		b := bucket
		sort.SliceStable(b, func(i, j int) bool { return b[i].DueDate.Before(b[j].DueDate) })
	}
	for _, bucket := range [][]Work{prog.Submitted, prog.Graded} {
		b := bucket
		sort.SliceStable(b, func(i, j int) bool { return b[i].Submission.SubmittedAt.After(b[j].Submission.SubmittedAt) })
	}
	return prog
}
