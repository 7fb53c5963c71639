package tests

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hackcamp/core/task"
	testutil "github.com/trezcool/hackcamp/tests"
)

func Test_taskApi_tasks(t *testing.T) {
	app := setup(t)
	instr := testutil.CreateInstructor(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	token := app.getToken(t, instr)
	heroToken := app.getToken(t, hero)
	lsn := testutil.CreateLesson(t, app.LessonRepo, "Intro to Go", 1, true)

	tk := testutil.CreateTask(t, app.TaskRepo, "Hello world", task.TypeLink, 10, nil)

	runTests(t, app, []httpTest{
		{name: "participant creates", method: http.MethodPost, path: "/api/instructor/tasks", token: heroToken, body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "invalid", method: http.MethodPost, path: "/api/instructor/tasks", token: token,
			body:     []byte(`{"title":"API","submission_type":"video","max_score":0,"lesson_id":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"lesson_id":"lesson_id must be a valid UUID","submission_type":"submission_type must be one of: file, link, any","max_score":"this field is required"}`)},
		{name: "unknown lesson", method: http.MethodPost, path: "/api/instructor/tasks", token: token,
			body:     []byte(`{"title":"API","submission_type":"file","max_score":10,"lesson_id":"0b5c6f0e-5d0a-4a57-9f3e-0f3d0f6b8e52"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"lesson_id":"lesson not found"}`)},
		{name: "participant lists", method: http.MethodGet, path: "/api/tasks", token: heroToken, wantData: marchallList(t, tk)},
		{name: "participant retrieves", method: http.MethodGet, path: "/api/tasks/" + tk.ID, token: heroToken, wantData: marchallObj(t, tk)},
		{name: "unknown", method: http.MethodGet, path: "/api/tasks/nope", token: heroToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "task not found"})},
	})

	var created task.Task
	due := time.Date(2030, 1, 15, 18, 0, 0, 0, time.UTC)
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/instructor/tasks", token, marchallObj(t, task.EditTask{
			LessonID:       lsn.ID,
			Title:          "Build an API",
			SubmissionType: "FILE",
			MaxScore:       20,
			DueAt:          &due,
		}))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &created)
		assert.Equal(t, lsn.ID, created.LessonID)
		assert.Equal(t, task.TypeFile, created.SubmissionType)
		assert.Equal(t, instr.ID, created.CreatedBy)
		require.NotNil(t, created.DueAt)
		assert.True(t, due.Equal(*created.DueAt))
	})

	t.Run("filter by lesson", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/instructor/tasks?lesson_id="+lsn.ID, token)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, created)}, rec)
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/instructor/tasks/"+created.ID, token, marchallObj(t, task.EditTask{
			Title:          "Build a REST API",
			SubmissionType: task.TypeAny,
			MaxScore:       25,
		}))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got task.Task
		unmarshal(t, rec, &got)
		assert.Equal(t, "Build a REST API", got.Title)
		assert.Empty(t, got.LessonID)
		assert.Nil(t, got.DueAt)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/instructor/tasks/"+created.ID, token)
		app.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/api/tasks/"+created.ID, heroToken)
		app.serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_taskApi_submissions(t *testing.T) {
	app := setup(t)
	instr := testutil.CreateInstructor(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	other := testutil.CreateParticipant(t, app.UserRepo, "other01")
	token := app.getToken(t, instr)
	heroToken := app.getToken(t, hero)

	past := time.Now().Add(-time.Hour)
	linkTask := testutil.CreateTask(t, app.TaskRepo, "Share your repo", task.TypeLink, 10, nil)
	fileTask := testutil.CreateTask(t, app.TaskRepo, "Upload your notes", task.TypeFile, 20, &past)

	runTests(t, app, []httpTest{
		{name: "instructor submits", method: http.MethodPost, path: "/api/tasks/" + linkTask.ID + "/submissions", token: token,
			body: []byte(`{"link_url":"https://github.com/hero/api"}`), wantCode: http.StatusForbidden},
		{name: "link missing", method: http.MethodPost, path: "/api/tasks/" + linkTask.ID + "/submissions", token: heroToken,
			body: []byte(`{"comment":"done"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"link_url":"this field is required"}`)},
		{name: "invalid link", method: http.MethodPost, path: "/api/tasks/" + linkTask.ID + "/submissions", token: heroToken,
			body: []byte(`{"link_url":"github"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"link_url":"link_url must be a valid URL"}`)},
		{name: "file task given a link", method: http.MethodPost, path: "/api/tasks/" + fileTask.ID + "/submissions", token: heroToken,
			body: []byte(`{"link_url":"https://github.com/hero/api"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"link_url":"this task expects a file"}`)},
		{name: "unknown task", method: http.MethodPost, path: "/api/tasks/nope/submissions", token: heroToken,
			body: []byte(`{"link_url":"https://github.com/hero/api"}`), wantCode: http.StatusNotFound},
	})

	var linkSub, fileSub task.Submission
	t.Run("submit link", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/tasks/"+linkTask.ID+"/submissions", heroToken,
			[]byte(`{"link_url":"https://github.com/hero/api","comment":"first try"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &linkSub)
		assert.Equal(t, task.StatusSubmitted, linkSub.Status)
		assert.Equal(t, hero.ID, linkSub.UserID)
		assert.False(t, linkSub.Late)
	})

	t.Run("submit file", func(t *testing.T) {
		path := "/api/tasks/" + fileTask.ID + "/submissions"

		req, rec := newUploadRequest(t, http.MethodPost, path, heroToken, "", nil, map[string]string{"comment": "notes"})
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"file":"this field is required"}`)}, rec)

		req, rec = newUploadRequest(t, http.MethodPost, path, heroToken, "notes.txt", []byte("my notes"), map[string]string{"comment": "notes"})
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &fileSub)
		assert.Equal(t, "notes", fileSub.Comment)
		assert.True(t, fileSub.Late)
		assert.NotEmpty(t, fileSub.FileURL)

		for _, tkn := range []string{heroToken, token} {
			req, rec = newAuthRequest(http.MethodGet, "/api/submissions/"+fileSub.ID+"/file", tkn)
			app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "my notes", rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "submission-"+fileSub.ID+".txt")
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/submissions/"+fileSub.ID+"/file", app.getToken(t, other))
		app.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/api/submissions/"+linkSub.ID+"/file", heroToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission has no file"})}, rec)
	})

	t.Run("mine", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/submissions/me", heroToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []task.Submission
		unmarshal(t, rec, &got)
		require.Len(t, got, 2)

		req, rec = newAuthRequest(http.MethodGet, "/api/submissions/me", app.getToken(t, other))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})

	runTests(t, app, []httpTest{
		{name: "accept without score", method: http.MethodPost, path: "/api/instructor/submissions/" + linkSub.ID + "/evaluate", token: token,
			body: []byte(`{"status":"accepted"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"score":"score is required when accepting"}`)},
		{name: "score above max", method: http.MethodPost, path: "/api/instructor/submissions/" + linkSub.ID + "/evaluate", token: token,
			body: []byte(`{"status":"accepted","score":11}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"score":"score must not exceed the task's max score"}`)},
		{name: "bad status", method: http.MethodPost, path: "/api/instructor/submissions/" + linkSub.ID + "/evaluate", token: token,
			body: []byte(`{"status":"maybe"}`), wantCode: http.StatusBadRequest},
		{name: "participant evaluates", method: http.MethodPost, path: "/api/instructor/submissions/" + linkSub.ID + "/evaluate", token: heroToken,
			body: []byte(`{"status":"rejected"}`), wantCode: http.StatusForbidden},
		{name: "other participant reads", method: http.MethodGet, path: "/api/submissions/" + linkSub.ID, token: app.getToken(t, other), wantCode: http.StatusForbidden},
	})

	t.Run("evaluate", func(t *testing.T) {
		app.Mail.Flush()
		req, rec := newAuthRequest(http.MethodPost, "/api/instructor/submissions/"+linkSub.ID+"/evaluate", token,
			[]byte(`{"status":"Accepted","score":9,"feedback":"well done"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got task.Submission
		unmarshal(t, rec, &got)
		assert.Equal(t, task.StatusAccepted, got.Status)
		require.NotNil(t, got.Score)
		assert.Equal(t, 9, *got.Score)
		assert.Equal(t, instr.ID, got.EvaluatedBy)
		assert.NotNil(t, got.EvaluatedAt)

		sent := app.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, hero.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "well done")

		req, rec = newAuthRequest(http.MethodPost, "/api/tasks/"+linkTask.ID+"/submissions", heroToken, []byte(`{"link_url":"https://github.com/hero/api2"}`))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "submission already accepted"})}, rec)
	})

	t.Run("resubmit replaces", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPost, "/api/tasks/"+fileTask.ID+"/submissions", heroToken, "v2.txt", []byte("better notes"), nil)
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got task.Submission
		unmarshal(t, rec, &got)
		assert.Equal(t, fileSub.ID, got.ID)
		assert.Empty(t, got.Comment)

		req, rec = newAuthRequest(http.MethodGet, "/api/submissions/"+got.ID+"/file", heroToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "better notes", rec.Body.String())
	})

	t.Run("query", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/instructor/submissions?status=accepted", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []task.Submission
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, linkSub.ID, got[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/api/instructor/submissions?late=true", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, fileSub.ID, got[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/api/instructor/submissions?status=lost", token)
		app.serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("export", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/instructor/submissions/export?task_id="+linkTask.ID, token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "submissions_")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		rows, err := f.GetRows("Submissions")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"Share your repo", hero.Name, "accepted", "9", "no"}, rows[1][:5])
	})
}
