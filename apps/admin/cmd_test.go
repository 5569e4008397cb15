package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	"github.com/trezcool/tutorhub/tests"
)

const goodPwd = "Tr1cky#Pass"

func setup(t *testing.T) (*commandLine, *testutil.App, *bytes.Buffer) {
	t.Helper()
	app := testutil.NewApp()
	out := new(bytes.Buffer)
	return &commandLine{
		db:       new(sql.DB), // only handed to the mocked goose runner
		validate: app.Validate,
		usrRepo:  app.UserRepo,
		usrSvc:   app.UserSvc,
		profSvc:  app.ProfileSvc,
		out:      out,
	}, app, out
}

// mockPasswords makes the password prompt answer pwds in order, then empty strings.
func mockPasswords(pwds ...string) {
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "waitlist", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	cli.db = nil
	assert.Equal(t, errNoSQL, cli.run([]string{"admin", "migrate", "up"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli, app, out := setup(t)
	ctx := context.Background()

	type extra struct {
		pwds []string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "root@tutorhub.test"}, wantErr: errHelp},
		{name: "bad role", args: []string{"adduser", "-email", "root@tutorhub.test", "-role", "wizard"}, extra: extra{pwds: []string{goodPwd, goodPwd}}, wantErr: errInvalidRole},
		{name: "weak password", args: []string{"adduser", "-email", "root@tutorhub.test"}, extra: extra{pwds: []string{"12345678", "12345678"}}},
		{name: "confirmation mismatch", args: []string{"adduser", "-email", "root@tutorhub.test"}, extra: extra{pwds: []string{goodPwd, goodPwd + "!"}}},
		{name: "admin", args: []string{"adduser", "-email", " Root@tutorhub.test"}, extra: extra{pwds: []string{goodPwd, goodPwd}}},
		{name: "tutor", args: []string{"adduser", "-email", "tutor@tutorhub.test", "-role", "tutor"}, extra: extra{pwds: []string{goodPwd, goodPwd}}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if extra, ok := tt.extra.(extra); ok {
			mockPasswords(extra.pwds...)
		} else {
			mockPasswords()
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.name == "weak password" || tt.name == "confirmation mismatch" {
				var vErrs validator.ValidationErrors
				assert.True(t, errors.As(err, &vErrs), "%v", err)
				return
			}
			tt.check(t, err)
		})
	}

	root, err := app.UserSvc.GetByEmail(ctx, "root@tutorhub.test")
	require.NoError(t, err)
	assert.True(t, root.IsAdmin())
	assert.True(t, root.IsConfirmed())
	assert.True(t, root.IsActive)
	assert.NoError(t, root.CheckPassword(goodPwd))
	assert.Contains(t, out.String(), "admin root@tutorhub.test saved")

	tutor, err := app.UserSvc.GetByEmail(ctx, "tutor@tutorhub.test")
	require.NoError(t, err)
	p, err := app.ProfileSvc.Get(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.StatusPending, p.ApprovalStatus)

	// running it again updates the same account and signs it out
	mockPasswords("N3w#Secret!", "N3w#Secret!")
	require.NoError(t, cli.run([]string{"admin", "adduser", "-email", "root@tutorhub.test"}))
	updated, err := app.UserSvc.GetByEmail(ctx, "root@tutorhub.test")
	require.NoError(t, err)
	assert.Equal(t, root.ID, updated.ID)
	assert.Equal(t, root.SessionVersion+1, updated.SessionVersion)
	assert.NoError(t, updated.CheckPassword("N3w#Secret!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, app, _ := setup(t)

	usr := testutil.CreateUser(t, app.UserRepo, "awe@tutorhub.test", goodPwd, user.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@tutorhub.test"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@tutorhub.test"}, extra: extra{pwd: "N3w#Secret!"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@tutorhub.test"}, extra: extra{pwd: "N3w#Secret!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if extra, ok := tt.extra.(extra); ok {
			mockPasswords(extra.pwd)
		} else {
			mockPasswords()
		}

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	refreshed, err := app.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "failed to update new password")
	assert.Equal(t, usr.SessionVersion+1, refreshed.SessionVersion)

	mockPasswords("short")
	var vErrs validator.ValidationErrors
	assert.True(t, errors.As(cli.run([]string{"admin", "resetpassword", "-email", usr.Email}), &vErrs))
}

func Test_commandLine_approvals(t *testing.T) {
	cli, app, out := setup(t)
	ctx := context.Background()

	ann := testutil.CreateUser(t, app.UserRepo, "ann@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, app.ProfRepo, ann, profile.StatusPending, "Ann", "Tutor")
	ben := testutil.CreateUser(t, app.UserRepo, "ben@tutorhub.test", "", user.RoleTutor)
	testutil.CreateProfile(t, app.ProfRepo, ben, profile.StatusPending, "Ben", "Tutor")

	tests := []cliTest{
		{name: "approve: no admin yet", args: []string{"approve", "-email", ann.Email}, wantErr: errNoAdmin},
		{name: "approve: no email", args: []string{"approve"}, wantErr: errHelp},
		{name: "reject: no email", args: []string{"reject", "-note", "nope"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	require.NoError(t, cli.run([]string{"admin", "pending"}))
	assert.Contains(t, out.String(), "ann@tutorhub.test")
	assert.Contains(t, out.String(), "Ben Tutor")

	testutil.CreateUser(t, app.UserRepo, "admin@tutorhub.test", "", user.RoleAdmin)

	tests = []cliTest{
		{name: "decided by a non admin", args: []string{"approve", "-email", ann.Email, "-by", ben.Email}, wantErr: core.ErrForbidden},
		{name: "unknown tutor", args: []string{"approve", "-email", "ghost@tutorhub.test"}, wantErr: user.ErrNotFound},
		{name: "approve", args: []string{"approve", "-email", ann.Email}},
		{name: "approve twice", args: []string{"approve", "-email", ann.Email}, wantErr: profile.ErrNotPending},
		{name: "reject", args: []string{"reject", "-email", ben.Email, "-note", "missing diploma", "-by", "admin@tutorhub.test"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	ok, err := app.ProfileSvc.IsApprovedTutor(ctx, ann.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	p, err := app.ProfileSvc.Get(ctx, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.StatusRejected, p.ApprovalStatus)
	assert.Equal(t, "missing diploma", p.ApprovalNote)

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "pending"}))
	assert.Contains(t, out.String(), "no tutor awaiting approval")
}
