package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

type (
	// ClassDetail is everything the class page shows, assembled in one response.
	ClassDetail struct {
		Class          class.Class             `json:"class"`
		Tutor          *profile.Profile        `json:"tutor"`
		Schedules      []class.Schedule        `json:"schedules"`
		Resources      []class.Resource        `json:"resources"`
		Assignments    []assignment.Assignment `json:"assignments"`
		RemainingSpots int                     `json:"remaining_spots"`
		// Enrollment is the caller's own enrollment, if any.
		Enrollment *enrollment.Enrollment `json:"enrollment"`
	}

	EnrolledClass struct {
		Class      class.Class           `json:"class"`
		Enrollment enrollment.Enrollment `json:"enrollment"`
	}

	StudentDashboard struct {
		Classes  []EnrolledClass     `json:"classes"`
		Progress assignment.Progress `json:"progress"`
	}

	TutorClass struct {
		Class          class.Class `json:"class"`
		ActiveStudents int         `json:"active_students"`
		RemainingSpots int         `json:"remaining_spots"`
		Ungraded       int         `json:"ungraded_submissions"`
	}

	TutorDashboard struct {
		Classes       []TutorClass `json:"classes"`
		UngradedTotal int          `json:"ungraded_total"`
	}

	Service interface {
		ClassDetail(ctx context.Context, caller user.User, classID string) (ClassDetail, error)
		Student(ctx context.Context, student user.User, now time.Time) (StudentDashboard, error)
		Tutor(ctx context.Context, tutor user.User) (TutorDashboard, error)
	}

	service struct {
		classSvc  class.Service
		enrollSvc enrollment.Service
		asgmtSvc  assignment.Service
		profSvc   profile.Service
		logger    core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	classSvc class.Service,
	enrollSvc enrollment.Service,
	asgmtSvc assignment.Service,
	profSvc profile.Service,
	logger core.Logger,
) Service {
	return &service{
		classSvc:  classSvc,
		enrollSvc: enrollSvc,
		asgmtSvc:  asgmtSvc,
		profSvc:   profSvc,
		logger:    logger,
	}
}

// ClassDetail fetches the parts of a class page concurrently; any failure fails the whole detail.
func (svc *service) ClassDetail(ctx context.Context, caller user.User, classID string) (ClassDetail, error) {
	cls, err := svc.classSvc.Get(ctx, classID)
	if err != nil {
		return ClassDetail{}, err
	}

	detail := ClassDetail{Class: cls}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profiles, err := svc.profSvc.GetMany(gctx, cls.TutorID)
		if err != nil {
			return err
		}
		if p, ok := profiles[cls.TutorID]; ok {
			detail.Tutor = &p
		}
		return nil
	})
	g.Go(func() (err error) {
		detail.Schedules, err = svc.classSvc.Schedules(gctx, cls.ID)
		return err
	})
	g.Go(func() (err error) {
		detail.Resources, err = svc.classSvc.Resources(gctx, cls.ID)
		return err
	})
	g.Go(func() (err error) {
		detail.Assignments, err = svc.asgmtSvc.ForClass(gctx, cls.ID)
		return err
	})
	g.Go(func() (err error) {
		detail.RemainingSpots, err = svc.enrollSvc.RemainingSpots(gctx, cls)
		return err
	})
	if caller.IsStudent() {
		g.Go(func() error {
			enrollments, err := svc.enrollSvc.ForStudent(gctx, caller.ID, "")
			if err != nil {
				return err
			}
			for i := range enrollments {
				if enrollments[i].ClassID == cls.ID {
					detail.Enrollment = &enrollments[i]
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ClassDetail{}, errors.Wrap(err, "assembling class detail")
	}
	return detail, nil
}

// Student is the student home: active classes and progress over all their assignments.
func (svc *service) Student(ctx context.Context, student user.User, now time.Time) (StudentDashboard, error) {
	enrollments, err := svc.enrollSvc.ForStudent(ctx, student.ID, enrollment.StatusActive)
	if err != nil {
		return StudentDashboard{}, err
	}
	classIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		classIDs = append(classIDs, e.ClassID)
	}

	dash := StudentDashboard{Classes: []EnrolledClass{}}
	if len(classIDs) == 0 {
		dash.Progress = assignment.ComputeProgress(now, nil, nil)
		return dash, nil
	}

	var (
		classes     []class.Class
		assignments []assignment.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		classes, err = svc.classSvc.Query(gctx, &class.QueryFilter{IDs: classIDs}, nil)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = svc.asgmtSvc.ForClass(gctx, classIDs...)
		return err
	})
	if err := g.Wait(); err != nil {
		return StudentDashboard{}, errors.Wrap(err, "loading student classes")
	}

	assignmentIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		assignmentIDs = append(assignmentIDs, a.ID)
	}
	subs, err := svc.asgmtSvc.StudentSubmissions(ctx, student.ID, assignmentIDs...)
	if err != nil {
		return StudentDashboard{}, err
	}

	byID := make(map[string]class.Class, len(classes))
	for _, cls := range classes {
		byID[cls.ID] = cls
	}
	for _, e := range enrollments {
		if cls, ok := byID[e.ClassID]; ok {
			dash.Classes = append(dash.Classes, EnrolledClass{Class: cls, Enrollment: e})
		}
	}
	dash.Progress = assignment.ComputeProgress(now, assignments, subs)
	return dash, nil
}

// Tutor is the tutor home: own classes with enrollment figures, and the grading backlog.
func (svc *service) Tutor(ctx context.Context, tutor user.User) (TutorDashboard, error) {
	classes, err := svc.classSvc.Query(ctx, &class.QueryFilter{TutorID: tutor.ID}, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return TutorDashboard{}, err
	}
	dash := TutorDashboard{Classes: make([]TutorClass, 0, len(classes))}
	if len(classes) == 0 {
		return dash, nil
	}
	classIDs := make([]string, 0, len(classes))
	for _, cls := range classes {
		classIDs = append(classIDs, cls.ID)
	}

	var active, ungraded map[string]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		active, err = svc.classSvc.ActiveCounts(gctx, classIDs...)
		return err
	})
	g.Go(func() (err error) {
		ungraded, err = svc.asgmtSvc.CountUngraded(gctx, classIDs...)
		return err
	})
	if err := g.Wait(); err != nil {
		return TutorDashboard{}, errors.Wrap(err, "loading tutor figures")
	}

	for _, cls := range classes {
		dash.Classes = append(dash.Classes, TutorClass{
			Class:          cls,
			ActiveStudents: active[cls.ID],
			RemainingSpots: cls.RemainingSpots(active[cls.ID]),
			Ungraded:       ungraded[cls.ID],
		})
		dash.UngradedTotal += ungraded[cls.ID]
	}
	return dash, nil
}
