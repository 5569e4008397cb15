package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/user"
)

var errInvalidRole = errors.New("role must be one of: student, tutor, admin")

// addUser updates or creates an active, confirmed user.User, and makes sure it has a profile.
func (cli *commandLine) addUser(email, role, pwd, pwdConfirm string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	if !core.StringIn(role, user.AllRoles...) {
		return errInvalidRole
	}

	creds := user.UpdateCredentials{Email: email, Password: pwd, PasswordConfirm: pwdConfirm}
	if err := cli.validate.Struct(creds); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Email: email, CreatedAt: now}
	} else {
		usr.RevokeSessions()
	}
	usr.Role = role
	usr.IsActive = true
	if usr.EmailConfirmedAt == nil {
		usr.EmailConfirmedAt = &now
	}
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}

	if _, _, err := cli.profSvc.Ensure(ctx, usr); err != nil {
		return errors.Wrap(err, "creating profile")
	}
	_, _ = fmt.Fprintf(cli.out, "%s %s saved\n", usr.Role, usr.Email)
	return nil
}
