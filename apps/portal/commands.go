package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/client"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/session"
)

const timeLayout = "Mon 2 Jan 15:04"

var (
	errNotSignedIn  = errors.New("you are not signed in: run `signin -email EMAIL`")
	errUnverified   = errors.New("confirm your email address with the link we sent you, then sign in")
	errSessionEnded = errors.New("your session has ended: sign in again")
	errNoDashboard  = errors.New("only students and tutors have a dashboard")
)

// withSession runs fn with the session token, once the session is known to be usable.
func (cli *commandLine) withSession(st session.State, initErr error, fn func(token string) error) error {
	if initErr != nil {
		return initErr
	}
	switch {
	case st.Status == session.StatusUnverified:
		return errUnverified
	case !st.SignedIn():
		return errNotSignedIn
	}
	err := fn(st.Token)
	if client.IsUnauthorized(err) {
		_, _ = cli.sess.SignOut(context.Background())
		return errSessionEnded
	}
	return err
}

func (cli *commandLine) signUp(ctx context.Context, email, pwd, role string) error {
	st, err := cli.sess.SignUp(ctx, email, pwd, role)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "Account created. Open the link sent to %s, then sign in.\n", st.Email)
	return nil
}

func (cli *commandLine) signIn(ctx context.Context, email, pwd string) error {
	st, err := cli.sess.SignIn(ctx, email, pwd)
	if err != nil {
		if st.Status == session.StatusUnverified {
			return errUnverified
		}
		return err
	}
	cli.whoami(st)
	return nil
}

func (cli *commandLine) signOut(ctx context.Context) error {
	if _, err := cli.sess.SignOut(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, "Signed out.")
	return nil
}

func (cli *commandLine) clear(ctx context.Context) error {
	if _, err := cli.sess.ClearAll(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, "Signed out; every local data was deleted.")
	return nil
}

func (cli *commandLine) whoami(st session.State) {
	switch st.Status {
	case session.StatusAuthenticated:
		p := st.Profile
		name := p.FullName()
		if name == "" {
			name = "(no name yet)"
		}
		_, _ = fmt.Fprintf(cli.out, "Signed in as %s <%s>, %s", name, st.User.Email, st.User.Role)
		if st.User.Role == user.RoleTutor && !p.IsApproved() {
			_, _ = fmt.Fprintf(cli.out, " (approval %s)", p.ApprovalStatus)
		}
		_, _ = fmt.Fprintln(cli.out)
	case session.StatusNoProfile:
		_, _ = fmt.Fprintf(cli.out, "Signed in as %s, but the profile could not be loaded: %s\n", st.User.Email, st.Message)
	case session.StatusUnverified:
		_, _ = fmt.Fprintf(cli.out, "%s has not confirmed its email address yet.\n", st.Email)
	default:
		_, _ = fmt.Fprintln(cli.out, "Not signed in.")
		if st.Message != "" {
			_, _ = fmt.Fprintln(cli.out, st.Message)
		}
	}
}

func (cli *commandLine) listClasses(ctx context.Context, token, search string) error {
	classes, err := cli.api.Classes(ctx, token, search)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		_, _ = fmt.Fprintln(cli.out, "no class found")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSUBJECT\tSEATS")
	for _, cls := range classes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", cls.ID, cls.Title, cls.Subject, cls.MaxStudents)
	}
	return w.Flush()
}

func (cli *commandLine) showClass(ctx context.Context, token, classID string) error {
	detail, err := cli.api.ClassDetail(ctx, token, classID)
	if err != nil {
		return err
	}
	cls := detail.Class
	_, _ = fmt.Fprintf(cli.out, "%s (%s) - %s\n", cls.Title, cls.Subject, cls.Status)
	if detail.Tutor != nil {
		_, _ = fmt.Fprintf(cli.out, "Tutor: %s\n", detail.Tutor.FullName())
	}
	if cls.Description != "" {
		_, _ = fmt.Fprintln(cli.out, cls.Description)
	}
	_, _ = fmt.Fprintf(cli.out, "%d of %d seats left\n", detail.RemainingSpots, cls.MaxStudents)
	if detail.Enrollment != nil {
		_, _ = fmt.Fprintf(cli.out, "Your enrollment: %s\n", detail.Enrollment.Status)
	}
	if len(detail.Assignments) > 0 {
		_, _ = fmt.Fprintln(cli.out, "Assignments:")
		cli.printAssignments(detail.Assignments)
	}
	return nil
}

func (cli *commandLine) enroll(ctx context.Context, token, classID string) error {
	res, err := cli.api.Enroll(ctx, token, classID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "Enrolled; %d seat(s) left.\n", res.RemainingSpots)
	return nil
}

func (cli *commandLine) drop(ctx context.Context, token, classID string) error {
	if _, err := cli.api.Drop(ctx, token, classID); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, "Class dropped.")
	return nil
}

func (cli *commandLine) submit(ctx context.Context, token, assignmentID, content string) error {
	sub, err := cli.api.Submit(ctx, token, assignmentID, content)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "Submitted at %s.\n", sub.UpdatedAt.Local().Format(timeLayout))
	return nil
}

func (cli *commandLine) dashboard(ctx context.Context, token string, st session.State) error {
	if st.Role() == user.RoleTutor {
		return cli.tutorDashboard(ctx, token)
	}
	if st.Role() != user.RoleStudent {
		return errNoDashboard
	}

	dash, err := cli.api.StudentDashboard(ctx, token)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "Classes (%d):\n", len(dash.Classes))
	for _, ec := range dash.Classes {
		_, _ = fmt.Fprintf(cli.out, "  %s  %s\n", ec.Class.ID, ec.Class.Title)
	}

	prog := dash.Progress
	_, _ = fmt.Fprintf(cli.out, "Assignments: %d, %.0f%% completed", prog.Total, prog.CompletionRate*100)
	if prog.AverageGrade != nil {
		_, _ = fmt.Fprintf(cli.out, ", average grade %.1f%%", *prog.AverageGrade)
	}
	_, _ = fmt.Fprintln(cli.out)
	for _, bucket := range []struct {
		title       string
		assignments []assignment.Assignment
	}{
		{"Past due", prog.PastDue},
		{"Due soon", prog.DueSoon},
		{"Upcoming", prog.Upcoming},
	} {
		if len(bucket.assignments) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(cli.out, "%s:\n", bucket.title)
		cli.printAssignments(bucket.assignments)
	}
	for _, work := range prog.Graded {
		_, _ = fmt.Fprintf(cli.out, "Graded: %s %.1f/%d\n", work.Assignment.Title, *work.Submission.Grade, work.Assignment.Points)
	}
	return nil
}

func (cli *commandLine) tutorDashboard(ctx context.Context, token string) error {
	dash, err := cli.api.TutorDashboard(ctx, token)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTUDENTS\tSEATS LEFT\tTO GRADE")
	for _, tc := range dash.Classes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", tc.Class.ID, tc.Class.Title, tc.ActiveStudents, tc.RemainingSpots, tc.Ungraded)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d submission(s) to grade\n", dash.UngradedTotal)
	return nil
}

func (cli *commandLine) printAssignments(assignments []assignment.Assignment) {
	for _, a := range assignments {
		_, _ = fmt.Fprintf(cli.out, "  %s  %s (due %s)\n", a.ID, a.Title, a.DueDate.In(time.Local).Format(timeLayout))
	}
}
