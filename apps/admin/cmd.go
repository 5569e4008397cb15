package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp  = errors.New("help provided")
	errNoSQL = errors.New("migrations need a SQL database")
)

type commandLine struct {
	db       *sql.DB // nil with the memory engine
	validate *validator.Validate
	usrRepo  user.Repository
	usrSvc   user.Service
	profSvc  profile.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, redo...)")
	_, _ = fmt.Fprintln(cli.out, "  adduser -email EMAIL [-role ROLE] - create or update an active, confirmed user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset a user's password and sign them out everywhere")
	_, _ = fmt.Fprintln(cli.out, "  pending - list the tutors awaiting approval")
	_, _ = fmt.Fprintln(cli.out, "  approve -email EMAIL [-by ADMIN_EMAIL] - approve a tutor")
	_, _ = fmt.Fprintln(cli.out, "  reject -email EMAIL -note NOTE [-by ADMIN_EMAIL] - reject a tutor")
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword(label string) (string, error) {
	_, _ = fmt.Fprint(cli.out, label+":")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "One of: student, tutor, admin.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	approveCmd := flag.NewFlagSet("approve", flag.ExitOnError)
	approveEmail := approveCmd.String("email", "", "The tutor's email.")
	approveBy := approveCmd.String("by", "", "The deciding admin's email. Defaults to the oldest admin.")

	rejectCmd := flag.NewFlagSet("reject", flag.ExitOnError)
	rejectEmail := rejectCmd.String("email", "", "The tutor's email.")
	rejectNote := rejectCmd.String("note", "", "Why the tutor is rejected.")
	rejectBy := rejectCmd.String("by", "", "The deciding admin's email. Defaults to the oldest admin.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password")
		if err != nil {
			return err
		}
		return cli.addUser(*addUserEmail, *addUserRole, pwd, confirm)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "pending":
		return cli.listPending()

	case "approve":
		if err := approveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveEmail == "" {
			approveCmd.Usage()
			return errHelp
		}
		return cli.decide(*approveEmail, *approveBy, true, "")

	case "reject":
		if err := rejectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectEmail == "" {
			rejectCmd.Usage()
			return errHelp
		}
		return cli.decide(*rejectEmail, *rejectBy, false, *rejectNote)

	default:
		cli.printUsage()
		return errHelp
	}
}
