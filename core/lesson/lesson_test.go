package lesson_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	testutil "github.com/trezcool/hackcamp/tests"
)

func TestEditLesson_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	el := lesson.EditLesson{Title: "  Intro to Go ", VideoURL: " https://youtu.be/x "}
	require.NoError(t, el.Validate(validate))
	assert.Equal(t, "Intro to Go", el.Title)
	assert.Equal(t, "https://youtu.be/x", el.VideoURL)

	el = lesson.EditLesson{Title: "   ", Position: -1}
	assert.Error(t, el.Validate(validate))
}

func TestService_ListPublished(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	third := testutil.CreateLesson(t, env.LessonRepo, "Third", 3, true)
	first := testutil.CreateLesson(t, env.LessonRepo, "First", 1, true)
	draft := testutil.CreateLesson(t, env.LessonRepo, "Draft", 2, false)

	lessons, err := env.LessonSvc.ListPublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, []lesson.Lesson{first, third}, lessons)

	_, err = env.LessonSvc.GetPublished(ctx, draft.ID)
	assert.Equal(t, lesson.ErrNotFound, err)
	got, err := env.LessonSvc.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft, got)
}

func TestService_Delete_detachesTasks(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	instr := testutil.CreateInstructor(t, env.UserRepo)
	intro := testutil.CreateLesson(t, env.LessonRepo, "Intro", 1, true)

	tk, err := env.TaskSvc.CreateTask(ctx, task.EditTask{
		LessonID:       intro.ID,
		Title:          "Hello world",
		SubmissionType: task.TypeLink,
		MaxScore:       10,
	}, instr)
	require.NoError(t, err)
	assert.Equal(t, intro.ID, tk.LessonID)

	require.NoError(t, env.LessonSvc.Delete(ctx, intro.ID))
	assert.Equal(t, lesson.ErrNotFound, env.LessonSvc.Delete(ctx, intro.ID))

	got, err := env.TaskSvc.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, got.LessonID)
}
