package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/GanpatGang/GanpatStudy/core/user"
	inmemdb "github.com/GanpatGang/GanpatStudy/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()
	usrRepo = inmemdb.NewUserRepository(inmemdb.NewDB())

	return &commandLine{
		db:      new(sqlx.DB), // migrations are mocked; never dialed
		usrRepo: usrRepo,
	}
}

func createUser(t *testing.T, uname, email, pwd string) user.User {
	t.Helper()
	active := true
	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Username:  uname,
		Email:     email,
		IsActive:  &active,
		Roles:     []string{user.RoleStudent},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword(): %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	extra   interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "down", "redo", "reset", "status", "version": // pass
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	if err := cli.run([]string{"admin", "migrate"}); err != errHelp {
		t.Errorf("cli.run() error = %v, wantErr %v", err, errHelp)
	}
	if err := cli.run([]string{"admin", "migrate", "up"}); err != nil {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
	if gotCommand != "up" {
		t.Errorf("migrate command = %q; want %q", gotCommand, "up")
	}
	if err := cli.run([]string{"admin", "migrate", "lol"}); err == nil || err.Error() != "\"lol\": no such command" {
		t.Errorf("cli.run() error = %v", err)
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no email", args: []string{"adduser", "-username", "jdoe12"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "jdoe12", "-email", "jdoe@test.cm"}, wantErr: errHelp},
		{name: "create student", args: []string{"adduser", "-username", "jdoe12", "-email", "jdoe@test.cm"}, extra: extra{pwd: "s3cr3t"}},
		{name: "create teacher", args: []string{"adduser", "-username", "prof01", "-email", "prof@test.cm", "-teacher"}, extra: extra{pwd: "s3cr3t"}},
		{name: "create admin", args: []string{"adduser", "-username", "root01", "-email", "root@test.cm", "-admin"}, extra: extra{pwd: "s3cr3t"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	usr, err := usrRepo.GetUserByUsername(context.Background(), "prof01")
	if err != nil {
		t.Fatalf("GetUserByUsername(): %v", err)
	}
	if !usr.IsTeacher() {
		t.Errorf("user roles = %v; want teacher", usr.Roles)
	}

	usr, err = usrRepo.GetUserByUsername(context.Background(), "root01")
	if err != nil {
		t.Fatalf("GetUserByUsername(): %v", err)
	}
	if !usr.IsAdmin() {
		t.Errorf("user roles = %v; want admin", usr.Roles)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := createUser(t, "awesome", "awe@test.cm", "mdr")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
