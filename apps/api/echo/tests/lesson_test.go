package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core/lesson"
	testutil "github.com/trezcool/hackcamp/tests"
)

func Test_lessonApi_staff(t *testing.T) {
	app := setup(t)
	instr := testutil.CreateInstructor(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	token := app.getToken(t, instr)

	intro := testutil.CreateLesson(t, app.LessonRepo, "Intro to Go", 1, true)
	draft := testutil.CreateLesson(t, app.LessonRepo, "Concurrency", 3, false)
	http101 := testutil.CreateLesson(t, app.LessonRepo, "HTTP servers", 2, true)

	runTests(t, app, []httpTest{
		{name: "participant", method: http.MethodGet, path: "/api/instructor/lessons", token: app.getToken(t, hero), wantCode: http.StatusForbidden},
		{name: "by position", method: http.MethodGet, path: "/api/instructor/lessons", token: token, wantData: marchallList(t, intro, http101, draft)},
		{name: "by title desc", method: http.MethodGet, path: "/api/instructor/lessons?ordering=-title", token: token, wantData: marchallList(t, intro, http101, draft)},
		{name: "drafts", method: http.MethodGet, path: "/api/instructor/lessons?published=false", token: token, wantData: marchallList(t, draft)},
		{name: "search", method: http.MethodGet, path: "/api/instructor/lessons?search=http", token: token, wantData: marchallList(t, http101)},
		{name: "retrieve draft", method: http.MethodGet, path: "/api/instructor/lessons/" + draft.ID, token: token, wantData: marchallObj(t, draft)},
		{name: "invalid", method: http.MethodPost, path: "/api/instructor/lessons", token: token, body: []byte(`{"title":"","position":-1,"video_url":"nope"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"title":"this field is required","position":"position must be 0 or greater","video_url":"video_url must be a valid URL"}`)},
	})

	var created lesson.Lesson
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/instructor/lessons", token,
			marchallObj(t, lesson.EditLesson{Title: " Databases ", Content: "# SQL", Position: 4}))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &created)
		assert.Equal(t, "Databases", created.Title)
		assert.Equal(t, instr.ID, created.CreatedBy)
		assert.False(t, created.Published)
	})

	t.Run("publish", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/instructor/lessons/"+created.ID, token,
			marchallObj(t, lesson.EditLesson{Title: "Databases", Content: "# SQL", Position: 4, Published: true}))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got lesson.Lesson
		unmarshal(t, rec, &got)
		assert.True(t, got.Published)
		assert.Equal(t, created.CreatedAt, got.CreatedAt)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/instructor/lessons/"+created.ID, token)
		app.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/api/instructor/lessons/"+created.ID, token)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "lesson not found"})}, rec)
	})
}

func Test_lessonApi_published(t *testing.T) {
	app := setup(t)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	token := app.getToken(t, hero)

	second := testutil.CreateLesson(t, app.LessonRepo, "Second", 2, true)
	first := testutil.CreateLesson(t, app.LessonRepo, "First", 1, true)
	draft := testutil.CreateLesson(t, app.LessonRepo, "Draft", 0, false)

	runTests(t, app, []httpTest{
		{name: "no token", method: http.MethodGet, path: "/api/lessons", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list", method: http.MethodGet, path: "/api/lessons", token: token, wantData: marchallList(t, first, second)},
		{name: "retrieve", method: http.MethodGet, path: "/api/lessons/" + first.ID, token: token, wantData: marchallObj(t, first)},
		{name: "draft is hidden", method: http.MethodGet, path: "/api/lessons/" + draft.ID, token: token, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "lesson not found"})},
	})
}
