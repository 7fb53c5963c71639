package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/user"
	testutil "github.com/trezcool/hackcamp/tests"
)

const strongPwd = "Tr0ub4dor&3x"

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.Setup(t)
	cli := &commandLine{
		usrRepo: env.UserRepo,
		appSvc:  env.AppSvc,
		taskSvc: env.TaskSvc,
		out:     new(bytes.Buffer),
	}
	return cli, env
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
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
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	existing := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	testutil.CreateInstructor(t, env.UserRepo)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "boss"}, pwd: strongPwd, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-role", "god"}, pwd: strongPwd,
			wantErrStr: `unknown role "god"`},
		{name: "weak password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"}, pwd: "12345678",
			wantErrStr: "password: password cannot be entirely numeric"},
		{name: "email taken", args: []string{"adduser", "-username", "boss", "-email", "instructor@test.cd"}, pwd: strongPwd,
			wantErr: user.ErrEmailExists},
		{name: "create owner", args: []string{"adduser", "-username", "Boss", "-email", "Boss@test.cd", "-name", "The Boss"}, pwd: strongPwd},
		{name: "promote existing", args: []string{"adduser", "-username", "hero01", "-email", "hero01@test.cd", "-role", "instructor"}, pwd: strongPwd},
	})

	boss, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "The Boss", boss.Name)
	assert.Equal(t, "boss@test.cd", boss.Email)
	assert.Equal(t, []string{user.RoleAdminOwner}, boss.Roles)
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword(strongPwd))

	promoted, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleInstructor}, promoted.Roles)
	assert.Equal(t, existing.CreatedAt, promoted.CreatedAt)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "Old-pwd-123", nil, true)

	runCLITests(t, cli, []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: strongPwd, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", usr.Username}, pwd: "short", wantErrStr: "password: password must contain at least 8 characters"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: strongPwd},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "An0ther-Secret"},
	})

	refreshed, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("An0ther-Secret"))
}

func Test_commandLine_export(t *testing.T) {
	cli, env := setup(t)
	testutil.CreateApplication(t, env.AppRepo, "Jane", "jane@test.cd")
	testutil.CreateApplication(t, env.AppRepo, "John", "john@test.cd", application.StatusRejected)
	dir := t.TempDir()
	out := filepath.Join(dir, "apps.xlsx")

	runCLITests(t, cli, []cliTest{
		{name: "no target", args: []string{"export"}, wantErr: errHelp},
		{name: "no output", args: []string{"export", "applications"}, wantErr: errHelp},
		{name: "unknown target", args: []string{"export", "users", "-o", out}, wantErr: errHelp},
		{name: "unknown status", args: []string{"export", "applications", "-o", out, "-status", "lost"}, wantErrStr: `unknown application status "lost"`},
		{name: "submissions", args: []string{"export", "submissions", "-o", filepath.Join(dir, "subs.xlsx")}},
		{name: "pending applications", args: []string{"export", "applications", "-o", out, "-status", "pending"}},
	})

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Applications")
	require.NoError(t, err)
	require.Len(t, rows, 2) // headers + Jane
	assert.Equal(t, "Jane", rows[1][0])
}
