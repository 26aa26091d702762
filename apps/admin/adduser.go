package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, major string, role user.Role, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	major = core.CleanString(major)
	if role != user.RoleStudent || major == "" {
		major = user.MajorNone
	}
	if !user.IsValidMajor(major) {
		return fmt.Errorf("unknown major %q", major)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	create := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := core.Now()
		usr = user.User{Email: email, CreatedAt: now}
		create = true
	}

	usr.Name = name
	usr.Role = role
	usr.Major = major
	usr.IsActive = true
	usr.UpdatedAt = core.Now()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if create {
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		fmt.Printf("user %s (%s) created\n", usr.Email, usr.Role)
		return nil
	}
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Printf("user %s (%s) updated\n", usr.Email, usr.Role)
	return nil
}
