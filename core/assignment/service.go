package assignment

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadyGraded      = errors.New("submission already graded")
	ErrNoFile             = errors.New("no file attached")
	errStudentsOnly       = errors.Wrap(core.ErrForbidden, "only students can submit work")

	errGradeRange = "grade must be between 0 and the assignment points"
)

// File is an upload to attach to an assignment or a submission.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		// DeleteAssignment removes the assignment and its submissions.
		DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryAssignments applies AND operation on available QueryFilter fields, ordered by due date.
		QueryAssignments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Assignment, error)

		// CreateSubmission returns core.ErrConflict if the student already submitted for the assignment.
		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		GetStudentSubmission(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (Submission, error)
		// ResubmitSubmission replaces the submitted work (content, file and submission time) of s.
		// It returns ErrAlreadyGraded if the stored submission is graded.
		ResubmitSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		// GradeSubmission stores the grade, feedback and grader of s, leaving the submitted work as is.
		GradeSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions applies AND operation on available SubmissionFilter fields, most recent first.
		QuerySubmissions(ctx context.Context, filter *SubmissionFilter, exec ...core.DBExecutor) ([]Submission, error)
		// CountUngraded returns the number of ungraded submissions per class ID.
		CountUngraded(ctx context.Context, classIDs []string, exec ...core.DBExecutor) (map[string]int, error)
	}

	Service interface {
		Create(ctx context.Context, caller user.User, classID string, na NewAssignment) (Assignment, error)
		Update(ctx context.Context, caller user.User, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, caller user.User, id string) error
		Get(ctx context.Context, id string) (Assignment, error)
		ForClass(ctx context.Context, classIDs ...string) ([]Assignment, error)
		AttachFile(ctx context.Context, caller user.User, id string, f File) (Assignment, error)
		FileURL(ctx context.Context, id string) (string, error)

		Submit(ctx context.Context, student user.User, assignmentID string, ns NewSubmission) (Submission, error)
		AttachSubmissionFile(ctx context.Context, student user.User, assignmentID string, f File) (Submission, error)
		SubmissionFileURL(ctx context.Context, caller user.User, submissionID string) (string, error)
		// Submissions lists the submissions of an assignment: all of them for its tutor, the caller's own otherwise.
		Submissions(ctx context.Context, caller user.User, assignmentID string) ([]Submission, error)
		StudentSubmissions(ctx context.Context, studentID string, assignmentIDs ...string) ([]Submission, error)
		Grade(ctx context.Context, tutor user.User, submissionID string, gs GradeSubmission) (Submission, error)
		CountUngraded(ctx context.Context, classIDs ...string) (map[string]int, error)
	}

	service struct {
		repo      Repository
		classSvc  class.Service
		enrollSvc enrollment.Service
		store     core.FileStore
		logger    core.Logger
		urlExpiry time.Duration
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	repo Repository,
	classSvc class.Service,
	enrollSvc enrollment.Service,
	store core.FileStore,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		classSvc:  classSvc,
		enrollSvc: enrollSvc,
		store:     store,
		logger:    logger,
		urlExpiry: conf.Storage.URLExpiry,
	}
}

// fileKey builds a storage key from a client provided file name, keeping only its base name.
func fileKey(prefix, name string) string {
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\\' {
			return '_'
		}
		return r
	}, path.Base(strings.TrimSpace(name)))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return prefix + "/" + name
}

func (svc *service) removeFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := svc.store.Delete(ctx, key); err != nil {
		svc.logger.Warn("deleting stored file", errors.Wrap(err, key))
	}
}

func (svc *service) Create(ctx context.Context, caller user.User, classID string, na NewAssignment) (Assignment, error) {
	if _, err := svc.classSvc.Manageable(ctx, caller, classID); err != nil {
		return Assignment{}, err
	}
	now := time.Now().UTC()
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		ClassID:     classID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		Points:      na.Points,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return a, nil
}

// manageable returns the assignment if caller may edit it.
func (svc *service) manageable(ctx context.Context, caller user.User, id string) (Assignment, error) {
	a, err := svc.Get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if _, err := svc.classSvc.Manageable(ctx, caller, a.ClassID); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *service) Update(ctx context.Context, caller user.User, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.manageable(ctx, caller, id)
	if err != nil {
		return Assignment{}, err
	}
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.DueDate != nil {
		a.DueDate = ua.DueDate.UTC()
	}
	if ua.Points != nil {
		a.Points = *ua.Points
	}
	a.UpdatedAt = time.Now().UTC()
	if a, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return a, nil
}

func (svc *service) Delete(ctx context.Context, caller user.User, id string) error {
	a, err := svc.manageable(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteAssignment(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	svc.removeFile(ctx, a.FileKey)
	return nil
}

func (svc *service) Get(ctx context.Context, id string) (Assignment, error) {
	if !core.IsValidID(id) {
		return Assignment{}, ErrNotFound
	}
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) ForClass(ctx context.Context, classIDs ...string) ([]Assignment, error) {
	classIDs = core.UniqueStrings(classIDs)
	if len(classIDs) == 0 {
		return []Assignment{}, nil
	}
	assignments, err := svc.repo.QueryAssignments(ctx, &QueryFilter{ClassIDs: classIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

func (svc *service) AttachFile(ctx context.Context, caller user.User, id string, f File) (Assignment, error) {
	a, err := svc.manageable(ctx, caller, id)
	if err != nil {
		return Assignment{}, err
	}
	key := fileKey("assignments/"+a.ID, f.Name)
	if err := svc.store.Put(ctx, key, f.Content, f.Size, f.ContentType); err != nil {
		return Assignment{}, errors.Wrap(err, "storing assignment file")
	}
	oldKey := a.FileKey
	a.FileKey = key
	a.UpdatedAt = time.Now().UTC()
	if a, err = svc.repo.UpdateAssignment(ctx, a); err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if oldKey != key {
		svc.removeFile(ctx, oldKey)
	}
	return a, nil
}

func (svc *service) FileURL(ctx context.Context, id string) (string, error) {
	a, err := svc.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !a.HasFile() {
		return "", ErrNoFile
	}
	url, err := svc.store.URL(ctx, a.FileKey, svc.urlExpiry)
	if err != nil {
		return "", errors.Wrap(err, "presigning assignment file")
	}
	return url, nil
}

// submittable returns the assignment and the student's current submission (zero if none),
// checking that the student may (re)submit work for it.
func (svc *service) submittable(ctx context.Context, student user.User, assignmentID string) (Assignment, Submission, error) {
	if !student.IsStudent() {
		return Assignment{}, Submission{}, errStudentsOnly
	}
	a, err := svc.Get(ctx, assignmentID)
	if err != nil {
		return Assignment{}, Submission{}, err
	}
	enrolled, err := svc.enrollSvc.IsActivelyEnrolled(ctx, a.ClassID, student.ID)
	if err != nil {
		return Assignment{}, Submission{}, err
	}
	if !enrolled {
		return Assignment{}, Submission{}, enrollment.ErrNotEnrolled
	}

	sub, err := svc.repo.GetStudentSubmission(ctx, a.ID, student.ID)
	if err != nil {
		if errors.Cause(err) == ErrSubmissionNotFound {
			return a, Submission{}, nil
		}
		return Assignment{}, Submission{}, errors.Wrap(err, "getting submission")
	}
	if sub.IsGraded() {
		return Assignment{}, Submission{}, ErrAlreadyGraded
	}
	return a, sub, nil
}

// upsert creates the submission or, when one exists (possibly created concurrently), updates it.
func (svc *service) upsert(ctx context.Context, sub Submission, apply func(*Submission)) (Submission, error) {
	now := time.Now().UTC()
	if sub.ID == "" {
		created := Submission{AssignmentID: sub.AssignmentID, StudentID: sub.StudentID, SubmittedAt: now, UpdatedAt: now}
		apply(&created)
		created, err := svc.repo.CreateSubmission(ctx, created)
		if err == nil {
			return created, nil
		}
		if errors.Cause(err) != core.ErrConflict {
			return Submission{}, errors.Wrap(err, "creating submission")
		}
		if sub, err = svc.repo.GetStudentSubmission(ctx, sub.AssignmentID, sub.StudentID); err != nil {
			return Submission{}, errors.Wrap(err, "getting submission")
		}
		if sub.IsGraded() {
			return Submission{}, ErrAlreadyGraded
		}
	}

	apply(&sub)
	sub.SubmittedAt = now
	sub.UpdatedAt = now
	sub, err := svc.repo.ResubmitSubmission(ctx, sub)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyGraded {
			return Submission{}, ErrAlreadyGraded
		}
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	return sub, nil
}

// Submit records the student's work. Work can be resubmitted until it is graded.
func (svc *service) Submit(ctx context.Context, student user.User, assignmentID string, ns NewSubmission) (Submission, error) {
	a, sub, err := svc.submittable(ctx, student, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	sub.AssignmentID, sub.StudentID = a.ID, student.ID
	return svc.upsert(ctx, sub, func(s *Submission) { s.Content = ns.Content })
}

func (svc *service) AttachSubmissionFile(ctx context.Context, student user.User, assignmentID string, f File) (Submission, error) {
	a, sub, err := svc.submittable(ctx, student, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	key := fileKey("submissions/"+a.ID+"/"+student.ID, f.Name)
	if err := svc.store.Put(ctx, key, f.Content, f.Size, f.ContentType); err != nil {
		return Submission{}, errors.Wrap(err, "storing submission file")
	}
	oldKey := sub.FileKey
	sub.AssignmentID, sub.StudentID = a.ID, student.ID
	sub, err = svc.upsert(ctx, sub, func(s *Submission) { s.FileKey = key })
	if err != nil {
		if oldKey != key {
			svc.removeFile(ctx, key)
		}
		return Submission{}, err
	}
	if oldKey != key {
		svc.removeFile(ctx, oldKey)
	}
	return sub, nil
}

// readableSubmission returns the submission if caller is its author or manages its class.
func (svc *service) readableSubmission(ctx context.Context, caller user.User, id string) (Submission, Assignment, error) {
	if !core.IsValidID(id) {
		return Submission{}, Assignment{}, ErrSubmissionNotFound
	}
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, Assignment{}, err
	}
	a, err := svc.Get(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, Assignment{}, err
	}
	if sub.StudentID == caller.ID {
		return sub, a, nil
	}
	if _, err := svc.classSvc.Manageable(ctx, caller, a.ClassID); err != nil {
		return Submission{}, Assignment{}, err
	}
	return sub, a, nil
}

func (svc *service) SubmissionFileURL(ctx context.Context, caller user.User, submissionID string) (string, error) {
	sub, _, err := svc.readableSubmission(ctx, caller, submissionID)
	if err != nil {
		return "", err
	}
	if sub.FileKey == "" {
		return "", ErrNoFile
	}
	url, err := svc.store.URL(ctx, sub.FileKey, svc.urlExpiry)
	if err != nil {
		return "", errors.Wrap(err, "presigning submission file")
	}
	return url, nil
}

func (svc *service) Submissions(ctx context.Context, caller user.User, assignmentID string) ([]Submission, error) {
	a, err := svc.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	filter := &SubmissionFilter{AssignmentIDs: []string{a.ID}}
	cls, err := svc.classSvc.Get(ctx, a.ClassID)
	if err != nil {
		return nil, err
	}
	if !class.CanManage(caller, cls) {
		filter.StudentIDs = []string{caller.ID}
	}
	subs, err := svc.repo.QuerySubmissions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (svc *service) StudentSubmissions(ctx context.Context, studentID string, assignmentIDs ...string) ([]Submission, error) {
	assignmentIDs = core.UniqueStrings(assignmentIDs)
	if len(assignmentIDs) == 0 {
		return []Submission{}, nil
	}
	subs, err := svc.repo.QuerySubmissions(ctx, &SubmissionFilter{AssignmentIDs: assignmentIDs, StudentIDs: []string{studentID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying student submissions")
	}
	return subs, nil
}

// Grade sets (or overwrites) the grade and feedback of an existing submission.
func (svc *service) Grade(ctx context.Context, tutor user.User, submissionID string, gs GradeSubmission) (Submission, error) {
	if !core.IsValidID(submissionID) {
		return Submission{}, ErrSubmissionNotFound
	}
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	a, err := svc.manageable(ctx, tutor, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if gs.Grade == nil || *gs.Grade < 0 || *gs.Grade > float64(a.Points) {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: errGradeRange})
	}

	now := time.Now().UTC()
	grade := *gs.Grade
	sub.Grade = &grade
	sub.Feedback = gs.Feedback
	sub.GradedAt = &now
	sub.GradedBy = &tutor.ID
	sub.UpdatedAt = now
	if sub, err = svc.repo.GradeSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "grading submission")
	}
	return sub, nil
}

func (svc *service) CountUngraded(ctx context.Context, classIDs ...string) (map[string]int, error) {
	classIDs = core.UniqueStrings(classIDs)
	if len(classIDs) == 0 {
		return map[string]int{}, nil
	}
	counts, err := svc.repo.CountUngraded(ctx, classIDs)
	if err != nil {
		return nil, errors.Wrap(err, "counting ungraded submissions")
	}
	return counts, nil
}
