package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hackcamp/core/chat"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) ChannelNameExists(ctx context.Context, name, excludedID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.nameTaken(name, excludedID), nil
}

// nameTaken mirrors the unique index on lower(name). Callers hold db.mu.
func (repo *chatRepository) nameTaken(name, excludedID string) bool {
	for _, ch := range repo.db.channels {
		if ch.ID != excludedID && strings.EqualFold(ch.Name, name) {
			return true
		}
	}
	return false
}

func (repo *chatRepository) CreateChannel(ctx context.Context, ch chat.Channel) (chat.Channel, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.nameTaken(ch.Name, "") {
		return chat.Channel{}, chat.ErrNameExists
	}
	ch.ID = uuid.New().String()
	put(ctx, repo.db.channels, ch.ID, ch)
	return ch, nil
}

func (repo *chatRepository) QueryChannels(ctx context.Context) ([]chat.Channel, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	channels := make([]chat.Channel, 0, len(repo.db.channels))
	for _, ch := range repo.db.channels {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels, nil
}

func (repo *chatRepository) GetChannel(ctx context.Context, id string) (chat.Channel, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ch, ok := repo.db.channels[id]; ok {
		return ch, nil
	}
	return chat.Channel{}, chat.ErrChannelNotFound
}

func (repo *chatRepository) UpdateChannel(ctx context.Context, ch chat.Channel) (chat.Channel, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.channels[ch.ID]; !ok {
		return chat.Channel{}, chat.ErrChannelNotFound
	}
	if repo.nameTaken(ch.Name, ch.ID) {
		return chat.Channel{}, chat.ErrNameExists
	}
	put(ctx, repo.db.channels, ch.ID, ch)
	return ch, nil
}

func (repo *chatRepository) DeleteChannel(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.channels[id]; !ok {
		return chat.ErrChannelNotFound
	}
	remove(ctx, repo.db.channels, id)
	for mid, msg := range repo.db.messages {
		if msg.ChannelID == id {
			remove(ctx, repo.db.messages, mid)
		}
	}
	for key := range repo.db.reads {
		if key.channelID == id {
			remove(ctx, repo.db.reads, key)
		}
	}
	return nil
}

func (repo *chatRepository) CountChannels(ctx context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.channels), nil
}

func (repo *chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.channels[msg.ChannelID]; !ok {
		return chat.Message{}, chat.ErrChannelNotFound
	}
	msg.ID = uuid.New().String()
	put(ctx, repo.db.messages, msg.ID, msg)
	return msg, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]chat.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.ChannelID != channelID {
			continue
		}
		if !before.IsZero() && !msg.CreatedAt.Before(before) {
			continue
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (repo *chatRepository) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if msg, ok := repo.db.messages[id]; ok {
		return msg, nil
	}
	return chat.Message{}, chat.ErrMessageNotFound
}

func (repo *chatRepository) DeleteMessage(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.messages[id]; !ok {
		return chat.ErrMessageNotFound
	}
	remove(ctx, repo.db.messages, id)
	return nil
}

func (repo *chatRepository) MarkRead(ctx context.Context, channelID, userID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	put(ctx, repo.db.reads, readKey{channelID: channelID, userID: userID}, at)
	return nil
}

func (repo *chatRepository) ChannelActivity(ctx context.Context, userID string) (map[string]chat.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	activity := make(map[string]chat.Activity)
	for _, msg := range repo.db.messages {
		act := activity[msg.ChannelID]
		if msg.CreatedAt.After(act.LastMessageAt) {
			act.LastMessageAt = msg.CreatedAt
		}
		if msg.AuthorID != userID {
			lastRead, ok := repo.db.reads[readKey{channelID: msg.ChannelID, userID: userID}]
			if !ok || msg.CreatedAt.After(lastRead) {
				act.UnreadCount++
			}
		}
		activity[msg.ChannelID] = act
	}
	return activity, nil
}
