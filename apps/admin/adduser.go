package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GanpatGang/GanpatStudy/core"
	"github.com/GanpatGang/GanpatStudy/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin, isTeacher bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr, err = cli.usrRepo.GetUserByEmail(ctx, email)
	}

	roles := []string{user.RoleStudent}
	switch {
	case isAdmin:
		roles = user.AllRoles
	case isTeacher:
		roles = user.TeacherRoles
	}

	now := time.Now().UTC()
	active := true

	if err == user.ErrNotFound {
		usr = user.User{
			ID:        uuid.New().String(),
			Username:  uname,
			Email:     email,
			IsActive:  &active,
			Roles:     roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	if err != nil {
		return err
	}

	usr.Username = uname
	usr.Email = email
	usr.Roles = roles
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &active)
	return err
}
