package application_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/user"
	inmemdb "github.com/trezcool/hackcamp/storage/database/inmem"
	testutil "github.com/trezcool/hackcamp/tests"
)

// failingRepo fails every application update.
type failingRepo struct {
	application.Repository
}

func (failingRepo) UpdateApplication(context.Context, application.Application) (application.Application, error) {
	return application.Application{}, errors.New("disk full")
}

func TestService_Approve_rollback(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.UserRepo)
	app := testutil.CreateApplication(t, env.AppRepo, "Jane Doe", "jane.doe@test.cd")

	svc := application.NewService(failingRepo{env.AppRepo}, env.UserSvc, inmemdb.NewTransactor(env.DB), env.Mail, env.Cache, env.Logger)
	_, err := svc.Approve(ctx, app.ID, admin, "welcome")
	require.Error(t, err)

	_, err = env.UserSvc.GetByEmail(ctx, app.Email)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err), "participant account should be rolled back")

	got, err := env.AppSvc.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPending())
	assert.Empty(t, env.Mail.SentMessages())
}

func TestService_Approve(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.UserRepo)
	app := testutil.CreateApplication(t, env.AppRepo, "Jane Doe", "jane.doe@test.cd")

	approval, err := env.AppSvc.Approve(ctx, app.ID, admin, "welcome")
	require.NoError(t, err)
	assert.Equal(t, application.StatusApproved, approval.Application.Status)
	assert.Equal(t, approval.User.ID, approval.Application.UserID)
	assert.Equal(t, admin.ID, approval.Application.ReviewerID)
	assert.Equal(t, "jane_doe", approval.User.Username)
	assert.True(t, approval.User.IsParticipant())
	assert.NoError(t, approval.User.CheckPassword(approval.Password))

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "application_approved", sent[0].TemplateName)
	assert.Equal(t, app.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "username: jane_doe")
	assert.Contains(t, sent[0].TextContent, "password: "+approval.Password)
	assert.Contains(t, sent[0].TextContent, env.Conf.AppName)
	assert.Contains(t, sent[0].HTMLContent, "<code>jane_doe</code>")

	_, err = env.AppSvc.Approve(ctx, app.ID, admin, "")
	assert.Equal(t, application.ErrAlreadyReviewed, err)
	_, err = env.AppSvc.Reject(ctx, app.ID, admin, "too late")
	assert.Equal(t, application.ErrAlreadyReviewed, err)
}

func TestService_Approve_emailTaken(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, env.UserRepo)
	app := testutil.CreateApplication(t, env.AppRepo, "Hero", "hero01@test.cd")
	testutil.CreateParticipant(t, env.UserRepo, "hero01") // registered after applying

	_, err := env.AppSvc.Approve(ctx, app.ID, admin, "")
	require.Error(t, err)
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok, "want a validation error, got %v", err)

	got, err := env.AppSvc.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPending())
}

func TestService_CheckEmailAvailable(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	testutil.CreateApplication(t, env.AppRepo, "Pending", "pending@test.cd")
	testutil.CreateApplication(t, env.AppRepo, "Rejected", "rejected@test.cd", application.StatusRejected)
	testutil.CreateParticipant(t, env.UserRepo, "hero01")

	tests := []struct {
		email   string
		wantErr bool
	}{
		{email: "pending@test.cd", wantErr: true},
		{email: "hero01@test.cd", wantErr: true},
		{email: "rejected@test.cd", wantErr: false},
		{email: "new@test.cd", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := env.AppSvc.CheckEmailAvailable(ctx, tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Submit_duplicateEmail(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	na := application.NewApplication{FullName: "Jane Doe", Email: "jane.doe@test.cd", Track: "backend", Motivation: "I want to learn"}

	// both requests passed CheckEmailAvailable before either was stored
	_, err := env.AppSvc.Submit(ctx, na)
	require.NoError(t, err)

	na.Email = "Jane.Doe@test.cd"
	_, err = env.AppSvc.Submit(ctx, na)
	assert.Equal(t, application.ErrEmailInUse, errors.Cause(err))
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok)
}
