package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/user"
)

var errNoAdmin = errors.New("no admin user to record the decision; run adduser first")

// deciderAdmin returns the admin with the given email, or the oldest admin when email is empty.
func (cli *commandLine) deciderAdmin(ctx context.Context, email string) (user.User, error) {
	if email != "" {
		admin, err := cli.usrSvc.GetByEmail(ctx, email)
		if err != nil {
			return user.User{}, err
		}
		if !admin.IsAdmin() {
			return user.User{}, core.ErrForbidden
		}
		return admin, nil
	}

	admins, err := cli.usrSvc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleAdmin}}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return user.User{}, err
	}
	if len(admins) == 0 {
		return user.User{}, errNoAdmin
	}
	return admins[0], nil
}

func (cli *commandLine) decide(email, adminEmail string, approve bool, note string) error {
	ctx := context.Background()
	admin, err := cli.deciderAdmin(ctx, adminEmail)
	if err != nil {
		return err
	}
	tutor, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if approve {
		_, err = cli.profSvc.Approve(ctx, admin, tutor.ID)
	} else {
		_, err = cli.profSvc.Reject(ctx, admin, tutor.ID, note)
	}
	if err != nil {
		return err
	}
	verb := "rejected"
	if approve {
		verb = "approved"
	}
	_, _ = fmt.Fprintf(cli.out, "%s %s by %s\n", tutor.Email, verb, admin.Email)
	return nil
}

func (cli *commandLine) listPending() error {
	pending, err := cli.profSvc.PendingApprovals(context.Background())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		_, _ = fmt.Fprintln(cli.out, "no tutor awaiting approval")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EMAIL\tNAME\tSIGNED UP")
	for _, p := range pending {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Email, p.FullName(), p.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
