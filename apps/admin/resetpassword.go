package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/tutorhub/core/user"
)

// resetPassword sets a new password and revokes every session of the user.
func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	data := user.ResetUserPassword{UID: usr.ID, Token: "admin", Password: pwd, PasswordConfirm: pwd}
	if err := cli.validate.Struct(data); err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.RevokeSessions()
	usr.UpdatedAt = time.Now().UTC()
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "password reset for %s\n", usr.Email)
	return nil
}
