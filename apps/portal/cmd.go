package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/dashboard"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp             = errors.New("help provided")
	errPasswordMismatch = errors.New("the passwords do not match")
)

// portalAPI is what the portal calls with the session token.
type portalAPI interface {
	Classes(ctx context.Context, token, search string) ([]class.Class, error)
	ClassDetail(ctx context.Context, token, classID string) (dashboard.ClassDetail, error)
	Enroll(ctx context.Context, token, classID string) (enrollment.Result, error)
	Drop(ctx context.Context, token, classID string) (enrollment.Enrollment, error)
	Submit(ctx context.Context, token, assignmentID, content string) (assignment.Submission, error)
	StudentDashboard(ctx context.Context, token string) (dashboard.StudentDashboard, error)
	TutorDashboard(ctx context.Context, token string) (dashboard.TutorDashboard, error)
}

type commandLine struct {
	sess *session.Manager
	api  portalAPI
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  signup -email EMAIL [-role ROLE] - create a student or tutor account")
	_, _ = fmt.Fprintln(cli.out, "  signin -email EMAIL - sign in; the password is prompted")
	_, _ = fmt.Fprintln(cli.out, "  signout - sign out everywhere")
	_, _ = fmt.Fprintln(cli.out, "  whoami - show the current session")
	_, _ = fmt.Fprintln(cli.out, "  classes [-search TEXT] - list the classes")
	_, _ = fmt.Fprintln(cli.out, "  class -id CLASS_ID - show a class")
	_, _ = fmt.Fprintln(cli.out, "  enroll -class CLASS_ID - enroll in a class")
	_, _ = fmt.Fprintln(cli.out, "  drop -class CLASS_ID - drop a class")
	_, _ = fmt.Fprintln(cli.out, "  dashboard - show your classes and assignments")
	_, _ = fmt.Fprintln(cli.out, "  submit -assignment ASSIGNMENT_ID -content TEXT - submit (or resubmit) your work")
	_, _ = fmt.Fprintln(cli.out, "  clear - sign out and delete every local data")
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword(label string) (string, error) {
	_, _ = fmt.Fprint(cli.out, label+":")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	signUpCmd := flag.NewFlagSet("signup", flag.ExitOnError)
	signUpEmail := signUpCmd.String("email", "", "Your email. The password will be prompted next.")
	signUpRole := signUpCmd.String("role", user.RoleStudent, "One of: student, tutor.")

	signInCmd := flag.NewFlagSet("signin", flag.ExitOnError)
	signInEmail := signInCmd.String("email", "", "Your email. The password will be prompted next.")

	classesCmd := flag.NewFlagSet("classes", flag.ExitOnError)
	classesSearch := classesCmd.String("search", "", "Only list the classes whose title, subject or description match.")

	classCmd := flag.NewFlagSet("class", flag.ExitOnError)
	classID := classCmd.String("id", "", "The class ID.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	enrollClass := enrollCmd.String("class", "", "The class ID.")

	dropCmd := flag.NewFlagSet("drop", flag.ExitOnError)
	dropClass := dropCmd.String("class", "", "The class ID.")

	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	submitAssignment := submitCmd.String("assignment", "", "The assignment ID.")
	submitContent := submitCmd.String("content", "", "Your answer.")

	// every command starts from the persisted session
	st, initErr := cli.sess.Init(ctx)

	switch args[1] {
	case "signup":
		if err := signUpCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *signUpEmail == "" {
			signUpCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Choose a password")
		if err != nil {
			return err
		}
		confirm, err := cli.promptPassword("Confirm password")
		if err != nil {
			return err
		}
		if pwd != confirm {
			return errPasswordMismatch
		}
		return cli.signUp(ctx, *signUpEmail, pwd, *signUpRole)

	case "signin":
		if err := signInCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *signInEmail == "" {
			signInCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Password")
		if err != nil {
			return err
		}
		return cli.signIn(ctx, *signInEmail, pwd)

	case "signout":
		return cli.signOut(ctx)

	case "clear":
		return cli.clear(ctx)

	case "whoami":
		if initErr != nil {
			return initErr
		}
		cli.whoami(st)
		return nil

	case "classes":
		if err := classesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.withSession(st, initErr, func(token string) error {
			return cli.listClasses(ctx, token, *classesSearch)
		})

	case "class":
		if err := classCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *classID == "" {
			classCmd.Usage()
			return errHelp
		}
		return cli.withSession(st, initErr, func(token string) error {
			return cli.showClass(ctx, token, *classID)
		})

	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enrollClass == "" {
			enrollCmd.Usage()
			return errHelp
		}
		return cli.withSession(st, initErr, func(token string) error {
			return cli.enroll(ctx, token, *enrollClass)
		})

	case "drop":
		if err := dropCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *dropClass == "" {
			dropCmd.Usage()
			return errHelp
		}
		return cli.withSession(st, initErr, func(token string) error {
			return cli.drop(ctx, token, *dropClass)
		})

	case "dashboard":
		return cli.withSession(st, initErr, func(token string) error {
			return cli.dashboard(ctx, token, st)
		})

	case "submit":
		if err := submitCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *submitAssignment == "" || *submitContent == "" {
			submitCmd.Usage()
			return errHelp
		}
		return cli.withSession(st, initErr, func(token string) error {
			return cli.submit(ctx, token, *submitAssignment, *submitContent)
		})

	default:
		cli.printUsage()
		return errHelp
	}
}
