package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	grade := func(g float64) *float64 { return &g }

	pastDue := Assignment{ID: "past", DueDate: now.Add(-time.Hour), Points: 10}
	soon := Assignment{ID: "soon", DueDate: now.Add(DueSoonWindow), Points: 10}
	sooner := Assignment{ID: "sooner", DueDate: now.Add(time.Hour), Points: 10}
	later := Assignment{ID: "later", DueDate: now.Add(DueSoonWindow + time.Minute), Points: 10}
	submitted := Assignment{ID: "submitted", DueDate: now.Add(-48 * time.Hour), Points: 10}
	gradedA := Assignment{ID: "graded-a", DueDate: now.Add(-24 * time.Hour), Points: 20}
	gradedB := Assignment{ID: "graded-b", DueDate: now.Add(24 * time.Hour), Points: 50}

	subs := []Submission{
		{AssignmentID: "submitted", SubmittedAt: now.Add(-72 * time.Hour)},
		{AssignmentID: "graded-a", SubmittedAt: now.Add(-30 * time.Hour), Grade: grade(15)},
		{AssignmentID: "graded-b", SubmittedAt: now.Add(-2 * time.Hour), Grade: grade(50)},
		{AssignmentID: "not-listed", SubmittedAt: now},
	}
	prog := ComputeProgress(now, []Assignment{later, soon, pastDue, submitted, gradedA, sooner, gradedB}, subs)

	ids := func(as []Assignment) []string {
		out := make([]string, 0, len(as))
		for _, a := range as {
			out = append(out, a.ID)
		}
		return out
	}
	workIDs := func(ws []Work) []string {
		out := make([]string, 0, len(ws))
		for _, w := range ws {
			out = append(out, w.Assignment.ID)
		}
		return out
	}

	assert.Equal(t, []string{"past"}, ids(prog.PastDue))
	assert.Equal(t, []string{"sooner", "soon"}, ids(prog.DueSoon), "due exactly at the window edge is still due soon")
	assert.Equal(t, []string{"later"}, ids(prog.Upcoming))
	assert.Equal(t, []string{"submitted"}, workIDs(prog.Submitted))
	assert.Equal(t, []string{"graded-b", "graded-a"}, workIDs(prog.Graded), "most recent submission first")
	assert.Equal(t, 7, prog.Total)
	assert.InDelta(t, 3.0/7.0, prog.CompletionRate, 1e-9)
	if assert.NotNil(t, prog.AverageGrade) {
		assert.InDelta(t, 87.5, *prog.AverageGrade, 1e-9) // (75% + 100%) / 2
	}
}

func TestComputeProgress_Empty(t *testing.T) {
	prog := ComputeProgress(time.Now(), nil, nil)
	assert.Equal(t, 0, prog.Total)
	assert.Zero(t, prog.CompletionRate)
	assert.Nil(t, prog.AverageGrade)
	assert.NotNil(t, prog.PastDue)
	assert.NotNil(t, prog.Graded)
}

func TestFileKey(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "essay.pdf", "p/essay.pdf"},
		{"spaces", " my essay.pdf ", "p/my_essay.pdf"},
		{"traversal", "../../etc/passwd", "p/passwd"},
		{"backslash", `c:\docs\x.txt`, `p/c:_docs_x.txt`},
		{"empty", "", "p/file"},
		{"slash", "/", "p/file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileKey("p", tt.in))
		})
	}
}
