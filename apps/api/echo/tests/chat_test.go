package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/user"
	testutil "github.com/trezcool/hackcamp/tests"
)

func Test_chatApi_channels(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateAdmin(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	adminToken := app.getToken(t, admin)
	general := testutil.CreateChannel(t, app.ChatRepo, "general", false)

	runTests(t, app, []httpTest{
		{name: "participant creates", method: http.MethodPost, path: "/api/chat/channels", token: app.getToken(t, hero),
			body: []byte(`{"name":"random"}`), wantCode: http.StatusForbidden},
		{name: "duplicate name", method: http.MethodPost, path: "/api/chat/channels", token: adminToken,
			body: []byte(`{"name":" general "}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"name":"a channel with this name already exists"}`)},
		{name: "blank name", method: http.MethodPost, path: "/api/chat/channels", token: adminToken,
			body: []byte(`{"name":"   "}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"name":"this field is required"}`)},
		{name: "retrieve", method: http.MethodGet, path: "/api/chat/channels/" + general.ID, token: app.getToken(t, hero), wantData: marchallObj(t, general)},
		{name: "retrieve unknown", method: http.MethodGet, path: "/api/chat/channels/nope", token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "channel not found"})},
	})

	var announcements chat.Channel
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/chat/channels", adminToken, []byte(`{"name":"announcements","read_only":true}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &announcements)
		assert.True(t, announcements.ReadOnly)
		assert.Equal(t, admin.ID, announcements.CreatedBy)
	})

	t.Run("list with unread counts", func(t *testing.T) {
		_, err := app.ChatSvc.PostMessage(context.Background(), general.ID, admin, chat.NewMessage{Body: "hello"})
		require.NoError(t, err)
		_, err = app.ChatSvc.PostMessage(context.Background(), general.ID, admin, chat.NewMessage{Body: "anyone?"})
		require.NoError(t, err)

		list := func() []chat.ChannelSummary {
			req, rec := newAuthRequest(http.MethodGet, "/api/chat/channels", app.getToken(t, hero))
			app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code)
			var got []chat.ChannelSummary
			unmarshal(t, rec, &got)
			return got
		}

		got := list()
		require.Len(t, got, 2)
		assert.Equal(t, "announcements", got[0].Name)
		assert.Equal(t, 0, got[0].UnreadCount)
		assert.Nil(t, got[0].LastMessageAt)
		assert.Equal(t, "general", got[1].Name)
		assert.Equal(t, 2, got[1].UnreadCount)
		assert.NotNil(t, got[1].LastMessageAt)

		req, rec := newAuthRequest(http.MethodPost, "/api/chat/channels/"+general.ID+"/read", app.getToken(t, hero))
		app.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, list()[1].UnreadCount)
	})

	t.Run("update & delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/chat/channels/"+announcements.ID, adminToken, []byte(`{"name":"news","read_only":true}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ch chat.Channel
		unmarshal(t, rec, &ch)
		assert.Equal(t, "news", ch.Name)

		req, rec = newAuthRequest(http.MethodDelete, "/api/chat/channels/"+announcements.ID, adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/api/chat/channels/"+announcements.ID, adminToken)
		app.serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_chatApi_messages(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateAdmin(t, app.UserRepo)
	instr := testutil.CreateInstructor(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	other := testutil.CreateParticipant(t, app.UserRepo, "other01")
	heroToken := app.getToken(t, hero)
	general := testutil.CreateChannel(t, app.ChatRepo, "general", false)
	news := testutil.CreateChannel(t, app.ChatRepo, "news", true)

	post := func(t *testing.T, channelID, token, body string) chat.Message {
		req, rec := newAuthRequest(http.MethodPost, "/api/chat/channels/"+channelID+"/messages", token, marchallObj(t, chat.NewMessage{Body: body}))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var msg chat.Message
		unmarshal(t, rec, &msg)
		return msg
	}

	runTests(t, app, []httpTest{
		{name: "read-only channel", method: http.MethodPost, path: "/api/chat/channels/" + news.ID + "/messages", token: heroToken,
			body: []byte(`{"body":"hi"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "channel is read-only"})},
		{name: "empty body", method: http.MethodPost, path: "/api/chat/channels/" + general.ID + "/messages", token: heroToken,
			body: []byte(`{"body":" "}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"body":"this field is required"}`)},
		{name: "unknown channel", method: http.MethodGet, path: "/api/chat/channels/nope/messages", token: heroToken, wantCode: http.StatusNotFound},
		{name: "bad limit", method: http.MethodGet, path: "/api/chat/channels/" + general.ID + "/messages?limit=many", token: heroToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"limit":"invalid value"}`)},
	})

	staffMsg := post(t, news.ID, app.getToken(t, instr), "Demo day is on Friday")
	assert.Equal(t, instr.Name, staffMsg.AuthorName)

	m1 := post(t, general.ID, heroToken, "first")
	time.Sleep(2 * time.Millisecond)
	m2 := post(t, general.ID, heroToken, "second")

	t.Run("newest first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/chat/channels/"+general.ID+"/messages", heroToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, m2, m1)}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/api/chat/channels/"+general.ID+"/messages?limit=1", heroToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, m2)}, rec)

		before := m2.CreatedAt.Format(time.RFC3339Nano)
		req, rec = newAuthRequest(http.MethodGet, "/api/chat/channels/"+general.ID+"/messages?before="+before, heroToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, m1)}, rec)
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/chat/channels/" + general.ID + "/messages/"

		req, rec := newAuthRequest(http.MethodDelete, path+m1.ID, app.getToken(t, other))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

		req, rec = newAuthRequest(http.MethodDelete, "/api/chat/channels/"+news.ID+"/messages/"+m1.ID, heroToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "message not found"})}, rec)

		req, rec = newAuthRequest(http.MethodDelete, path+m1.ID, heroToken)
		app.serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, path+m2.ID, app.getToken(t, admin))
		app.serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/api/chat/channels/"+general.ID+"/messages", heroToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})
}

func Test_chatApi_messagesPaging(t *testing.T) {
	app := setup(t)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	heroToken := app.getToken(t, hero)
	general := testutil.CreateChannel(t, app.ChatRepo, "general", false)

	const total = chat.MaxMessageLimit + 5
	start := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	for i := 0; i < total; i++ {
		testutil.CreateMessage(t, app.ChatRepo, general.ID, hero, strconv.Itoa(i), start.Add(time.Duration(i)*time.Second))
	}

	get := func(t *testing.T, query string) []chat.Message {
		req, rec := newAuthRequest(http.MethodGet, "/api/chat/channels/"+general.ID+"/messages"+query, heroToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var msgs []chat.Message
		unmarshal(t, rec, &msgs)
		return msgs
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "default limit", query: "", want: chat.DefaultMessageLimit},
		{name: "limit", query: "?limit=10", want: 10},
		{name: "max limit", query: "?limit=200", want: chat.MaxMessageLimit},
		{name: "limit over max", query: "?limit=1000", want: chat.MaxMessageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := get(t, tt.query)
			require.Len(t, msgs, tt.want)
			assert.Equal(t, strconv.Itoa(total-1), msgs[0].Body)
		})
	}

	t.Run("before", func(t *testing.T) {
		var bodies []string
		query := "?limit=" + strconv.Itoa(chat.MaxMessageLimit)
		for page := 0; page < 3; page++ {
			msgs := get(t, query)
			if len(msgs) == 0 {
				break
			}
			for _, msg := range msgs {
				bodies = append(bodies, msg.Body)
			}
			last := msgs[len(msgs)-1]
			query = "?limit=" + strconv.Itoa(chat.MaxMessageLimit) + "&before=" + url.QueryEscape(last.CreatedAt.Format(time.RFC3339))
		}

		require.Len(t, bodies, total)
		for i, body := range bodies {
			assert.Equal(t, strconv.Itoa(total-1-i), body)
		}

		// the second page starts right after the boundary
		msgs := get(t, "?limit=5&before="+url.QueryEscape(start.Add(5*time.Second).Format(time.RFC3339)))
		require.Len(t, msgs, 5)
		assert.Equal(t, "4", msgs[0].Body)
		assert.Equal(t, "0", msgs[4].Body)
	})
}

func Test_chatApi_readOnlyChannel(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateAdmin(t, app.UserRepo)
	instr := testutil.CreateInstructor(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	news := testutil.CreateChannel(t, app.ChatRepo, "news", true)
	path := "/api/chat/channels/" + news.ID + "/messages"

	runTests(t, app, []httpTest{
		{name: "participant", method: http.MethodPost, path: path, token: app.getToken(t, hero),
			body: []byte(`{"body":"hi"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "channel is read-only"})},
	})

	for _, usr := range []user.User{instr, admin} {
		t.Run(usr.Username, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, app.getToken(t, usr), []byte(`{"body":"Demo day is on Friday"}`))
			app.serve(req, rec)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var msg chat.Message
			unmarshal(t, rec, &msg)
			assert.Equal(t, usr.ID, msg.AuthorID)
		})
	}

	// participants still read it
	req, rec := newAuthRequest(http.MethodGet, path, app.getToken(t, hero))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []chat.Message
	unmarshal(t, rec, &msgs)
	assert.Len(t, msgs, 2)
}

func Test_chatApi_websocket(t *testing.T) {
	app := setup(t)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	other := testutil.CreateParticipant(t, app.UserRepo, "other01")
	general := testutil.CreateChannel(t, app.ChatRepo, "general", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Hub.Run(ctx)

	ts := httptest.NewServer(app.srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"

	t.Run("no token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+app.getToken(t, other), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	time.Sleep(100 * time.Millisecond) // let the hub register the client

	req, rec := newAuthRequest(http.MethodPost, "/api/chat/channels/"+general.ID+"/messages", app.getToken(t, hero), []byte(`{"body":"hello world"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt struct {
		Type    string       `json:"type"`
		Payload chat.Message `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, chat.EventMessageCreated, evt.Type)
	assert.Equal(t, "hello world", evt.Payload.Body)
	assert.Equal(t, hero.ID, evt.Payload.AuthorID)
	assert.Equal(t, general.ID, evt.Payload.ChannelID)
}
