package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/user"
)

var errInactiveUser = errors.New("user is deactivated: pass -activate to reactivate the account")

// resetPassword sets a new password. A deactivated account is only reset along with its reactivation.
func (cli *commandLine) resetPassword(email, pwd string, activate bool) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.IsActive && !activate {
		return errInactiveUser
	}

	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.IsActive = true
	usr.UpdatedAt = core.Now()
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "saving user")
	}
	cli.logger.Info(fmt.Sprintf("password reset for %s %s", usr.Role, usr.Email))
	return nil
}
