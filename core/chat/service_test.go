package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/chat"
	testutil "github.com/trezcool/hackcamp/tests"
)

type recorder struct {
	mu     sync.Mutex
	events []chat.Event
}

func (r *recorder) Broadcast(evt chat.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		types = append(types, evt.Type)
	}
	return types
}

func setup(t *testing.T) (*testutil.Env, *chat.Service, *recorder) {
	env := testutil.Setup(t)
	rec := new(recorder)
	return env, chat.NewService(env.ChatRepo, rec, env.Cache, env.Logger), rec
}

func TestService_PostMessage(t *testing.T) {
	env, svc, rec := setup(t)
	ctx := context.Background()
	instr := testutil.CreateInstructor(t, env.UserRepo)
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	general := testutil.CreateChannel(t, env.ChatRepo, "general", false)
	news := testutil.CreateChannel(t, env.ChatRepo, "news", true)

	msg, err := svc.PostMessage(ctx, general.ID, hero, chat.NewMessage{Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, hero.Name, msg.AuthorName)

	_, err = svc.PostMessage(ctx, news.ID, hero, chat.NewMessage{Body: "hi"})
	assert.Equal(t, chat.ErrChannelReadOnly, err)
	_, err = svc.PostMessage(ctx, news.ID, instr, chat.NewMessage{Body: "demo day on friday"})
	assert.NoError(t, err)

	_, err = svc.PostMessage(ctx, "unknown", hero, chat.NewMessage{Body: "hi"})
	assert.Equal(t, chat.ErrChannelNotFound, err)

	assert.Equal(t, core.ErrPermissionDenied, svc.DeleteMessage(ctx, general.ID, msg.ID, instr))
	assert.Equal(t, chat.ErrMessageNotFound, svc.DeleteMessage(ctx, news.ID, msg.ID, hero))
	require.NoError(t, svc.DeleteMessage(ctx, general.ID, msg.ID, hero))

	assert.Equal(t, []string{chat.EventMessageCreated, chat.EventMessageCreated, chat.EventMessageDeleted}, rec.types())
}

func TestService_ListChannels(t *testing.T) {
	env, svc, _ := setup(t)
	ctx := context.Background()
	instr := testutil.CreateInstructor(t, env.UserRepo)
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	random := testutil.CreateChannel(t, env.ChatRepo, "random", false)
	general := testutil.CreateChannel(t, env.ChatRepo, "general", false)

	for _, body := range []string{"one", "two"} {
		_, err := svc.PostMessage(ctx, general.ID, instr, chat.NewMessage{Body: body})
		require.NoError(t, err)
	}
	_, err := svc.PostMessage(ctx, general.ID, hero, chat.NewMessage{Body: "mine"})
	require.NoError(t, err)

	summaries, err := svc.ListChannels(ctx, hero)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, general.ID, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].UnreadCount, "own messages are not unread")
	assert.NotNil(t, summaries[0].LastMessageAt)
	assert.Equal(t, random.ID, summaries[1].ID)
	assert.Zero(t, summaries[1].UnreadCount)
	assert.Nil(t, summaries[1].LastMessageAt)

	require.NoError(t, svc.MarkRead(ctx, general.ID, hero))
	summaries, err = svc.ListChannels(ctx, hero)
	require.NoError(t, err)
	assert.Zero(t, summaries[0].UnreadCount)
}

func TestService_Messages(t *testing.T) {
	env, svc, _ := setup(t)
	ctx := context.Background()
	hero := testutil.CreateParticipant(t, env.UserRepo, "hero01")
	general := testutil.CreateChannel(t, env.ChatRepo, "general", false)

	var posted []chat.Message
	for _, body := range []string{"one", "two", "three"} {
		msg, err := svc.PostMessage(ctx, general.ID, hero, chat.NewMessage{Body: body})
		require.NoError(t, err)
		posted = append(posted, msg)
		time.Sleep(2 * time.Millisecond) // distinct timestamps
	}

	msgs, err := svc.Messages(ctx, general.ID, chat.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "three", msgs[0].Body)

	msgs, err = svc.Messages(ctx, general.ID, chat.MessageQuery{Before: posted[2].CreatedAt, Limit: 1})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Body)

	_, err = svc.Messages(ctx, "unknown", chat.MessageQuery{})
	assert.Equal(t, chat.ErrChannelNotFound, err)
}

func TestService_channelNames(t *testing.T) {
	env, svc, _ := setup(t)
	ctx := context.Background()
	instr := testutil.CreateInstructor(t, env.UserRepo)

	general, err := svc.CreateChannel(ctx, chat.NewChannel{Name: "general"}, instr)
	require.NoError(t, err)
	random, err := svc.CreateChannel(ctx, chat.NewChannel{Name: "random"}, instr)
	require.NoError(t, err)

	_, err = svc.CreateChannel(ctx, chat.NewChannel{Name: "General"}, instr)
	assert.Error(t, err)
	_, err = svc.UpdateChannel(ctx, random, chat.NewChannel{Name: "GENERAL"})
	assert.Error(t, err)

	updated, err := svc.UpdateChannel(ctx, general, chat.NewChannel{Name: "General", ReadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "General", updated.Name)
	assert.True(t, updated.ReadOnly)

	require.NoError(t, svc.DeleteChannel(ctx, general.ID))
	assert.Equal(t, chat.ErrChannelNotFound, svc.DeleteChannel(ctx, general.ID))
}

// blindRepo misses existing names, like a request racing another one with the same name.
type blindRepo struct {
	chat.Repository
}

func (blindRepo) ChannelNameExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestService_channelNames_concurrent(t *testing.T) {
	env, _, rec := setup(t)
	ctx := context.Background()
	instr := testutil.CreateInstructor(t, env.UserRepo)
	svc := chat.NewService(blindRepo{env.ChatRepo}, rec, env.Cache, env.Logger)

	_, err := svc.CreateChannel(ctx, chat.NewChannel{Name: "general"}, instr)
	require.NoError(t, err)
	random, err := svc.CreateChannel(ctx, chat.NewChannel{Name: "random"}, instr)
	require.NoError(t, err)

	_, err = svc.CreateChannel(ctx, chat.NewChannel{Name: "General"}, instr)
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "name", verr.Fields[0].Field)

	_, err = svc.UpdateChannel(ctx, random, chat.NewChannel{Name: "GENERAL"})
	_, ok = errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok, "got %v", err)
}
