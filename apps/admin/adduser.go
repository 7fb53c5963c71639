package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

var cliRoles = map[string][]string{
	"owner":       {user.RoleAdminOwner},
	"admin":       {user.RoleAdmin},
	"instructor":  {user.RoleInstructor},
	"participant": {user.RoleParticipant},
}

// addUser updates or creates an active user.User holding the given role.
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	roles, ok := cliRoles[role]
	if !ok {
		return errors.Errorf("unknown role %q", role)
	}
	if name == "" {
		name = uname
	}
	if err := user.ValidatePassword(pwd, name, uname, email); err != nil {
		return err
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	found := err == nil

	if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email, usr); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr.Name = core.CleanString(name)
	usr.Username = uname
	usr.Email = email
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if found {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr.CreatedAt = now
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
