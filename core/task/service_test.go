package task_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/task"
	inmemdb "github.com/trezcool/hackcamp/storage/database/inmem"
	testutil "github.com/trezcool/hackcamp/tests"
)

func textUpload(content string) *core.Upload {
	return &core.Upload{Filename: "notes.TXT", Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func TestService_Submit(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	instr := testutil.CreateInstructor(t, env.UserRepo)
	past := time.Now().Add(-time.Hour).UTC()
	tk := testutil.CreateTask(t, env.TaskRepo, "Write notes", task.TypeFile, 10, &past)

	first, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{}, textUpload("first draft"))
	require.NoError(t, err)
	assert.True(t, first.Late)
	assert.Equal(t, task.StatusSubmitted, first.Status)
	assert.True(t, strings.HasPrefix(first.FileKey, "submissions/"+tk.ID+"/"+hero.ID+"/"))
	assert.True(t, strings.HasSuffix(first.FileKey, ".txt"))

	t.Run("resubmitting replaces the file", func(t *testing.T) {
		second, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{Comment: "fixed"}, textUpload("final version"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.NotEqual(t, first.FileKey, second.FileKey)

		_, err = env.Files.Open(ctx, first.FileKey)
		assert.Equal(t, core.ErrFileNotFound, err)
		first = second
	})

	t.Run("resubmitting resets the evaluation", func(t *testing.T) {
		score := 4
		_, err := env.TaskSvc.Evaluate(ctx, first, task.Evaluation{Status: task.StatusRejected, Score: &score, Feedback: "too short"}, instr)
		require.NoError(t, err)

		sub, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{}, textUpload("longer version"))
		require.NoError(t, err)
		assert.Equal(t, task.StatusSubmitted, sub.Status)
		assert.Nil(t, sub.Score)
		assert.Empty(t, sub.Feedback)
		assert.Nil(t, sub.EvaluatedAt)
		first = sub
	})

	t.Run("accepted submissions are final", func(t *testing.T) {
		score := 10
		_, err := env.TaskSvc.Evaluate(ctx, first, task.Evaluation{Status: task.StatusAccepted, Score: &score}, instr)
		require.NoError(t, err)

		_, err = env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{}, textUpload("another one"))
		assert.Equal(t, task.ErrAlreadyAccepted, err)

		rc, err := env.TaskSvc.OpenFile(ctx, first)
		require.NoError(t, err)
		_ = rc.Close()
	})
}

func TestService_Submit_fileExtension(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	tk := testutil.CreateTask(t, env.TaskRepo, "Write notes", task.TypeFile, 10, nil)

	body := "hello\n<script>alert(document.cookie)</script>"
	up := &core.Upload{Filename: "x.html", Size: int64(len(body)), Reader: strings.NewReader(body)}
	sub, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{}, up)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sub.FileKey, ".txt"), sub.FileKey)
	assert.Equal(t, "text/plain; charset=utf-8", core.ContentTypeOf(sub.FileKey))
}

// staleRepo never sees an existing submission, like a request that read before a concurrent one committed.
type staleRepo struct {
	task.Repository
}

func (staleRepo) GetUserSubmission(context.Context, string, string) (task.Submission, error) {
	return task.Submission{}, task.ErrSubmissionNotFound
}

func TestService_Submit_concurrent(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	tk := testutil.CreateTask(t, env.TaskRepo, "Share a link", task.TypeLink, 10, nil)

	first, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{LinkURL: "https://example.com/a"}, nil)
	require.NoError(t, err)

	svc := task.NewService(env.Conf, staleRepo{env.TaskRepo}, env.LessonSvc, env.UserSvc, inmemdb.NewTransactor(env.DB), env.Files, env.Mail, env.Cache, env.Logger)
	_, err = svc.Submit(ctx, tk.ID, hero, task.NewSubmission{LinkURL: "https://example.com/b"}, nil)
	assert.Equal(t, task.ErrAlreadySubmitted, errors.Cause(err))

	got, err := env.TaskSvc.GetSubmission(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", got.LinkURL)
}

func TestService_DeleteTask(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	other := testutil.CreateParticipant(t, env.UserRepo, "other01")
	tk := testutil.CreateTask(t, env.TaskRepo, "Write notes", task.TypeAny, 10, nil)

	withFile, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{}, textUpload("my notes"))
	require.NoError(t, err)
	withLink, err := env.TaskSvc.Submit(ctx, tk.ID, other, task.NewSubmission{LinkURL: "https://example.com/notes"}, nil)
	require.NoError(t, err)

	require.NoError(t, env.TaskSvc.DeleteTask(ctx, tk.ID))

	_, err = env.TaskSvc.GetTask(ctx, tk.ID)
	assert.Equal(t, task.ErrNotFound, err)
	for _, id := range []string{withFile.ID, withLink.ID} {
		_, err = env.TaskSvc.GetSubmission(ctx, id)
		assert.Equal(t, task.ErrSubmissionNotFound, err)
	}
	_, err = env.Files.Open(ctx, withFile.FileKey)
	assert.Equal(t, core.ErrFileNotFound, err)

	assert.Equal(t, task.ErrNotFound, env.TaskSvc.DeleteTask(ctx, tk.ID))
}

func TestService_GetSubmissionFor(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	other := testutil.CreateParticipant(t, env.UserRepo, "other01")
	instr := testutil.CreateInstructor(t, env.UserRepo)
	tk := testutil.CreateTask(t, env.TaskRepo, "Share a link", task.TypeLink, 5, nil)

	sub, err := env.TaskSvc.Submit(ctx, tk.ID, hero, task.NewSubmission{LinkURL: "https://example.com"}, nil)
	require.NoError(t, err)

	_, err = env.TaskSvc.GetSubmissionFor(ctx, sub.ID, hero)
	assert.NoError(t, err)
	_, err = env.TaskSvc.GetSubmissionFor(ctx, sub.ID, instr)
	assert.NoError(t, err)
	_, err = env.TaskSvc.GetSubmissionFor(ctx, sub.ID, other)
	assert.Equal(t, core.ErrPermissionDenied, err)

	_, err = env.TaskSvc.OpenFile(ctx, sub)
	assert.Equal(t, task.ErrNoFile, err)
}
