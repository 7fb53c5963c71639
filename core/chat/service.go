package chat

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

var (
	// errors
	ErrChannelNotFound = core.NewNotFoundError("channel not found")
	ErrMessageNotFound = core.NewNotFoundError("message not found")
	ErrNameExists      = errors.New("a channel with this name already exists")
	errNameTaken       = core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	ErrChannelReadOnly = core.NewPermissionError("channel is read-only")
)

type (
	Repository interface {
		// ChannelNameExists does a case-insensitive match, ignoring the channel excludedID.
		ChannelNameExists(ctx context.Context, name, excludedID string) (bool, error)
		CreateChannel(ctx context.Context, ch Channel) (Channel, error)
		QueryChannels(ctx context.Context) ([]Channel, error)
		GetChannel(ctx context.Context, id string) (Channel, error)
		UpdateChannel(ctx context.Context, ch Channel) (Channel, error)
		// DeleteChannel deletes the channel, its messages and read markers.
		DeleteChannel(ctx context.Context, id string) error
		CountChannels(ctx context.Context) (int, error)

		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns up to limit messages created before `before` (when set), newest first.
		QueryMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		DeleteMessage(ctx context.Context, id string) error

		// MarkRead sets the user's last read time on the channel.
		MarkRead(ctx context.Context, channelID, userID string, at time.Time) error
		// ChannelActivity returns, per channel ID, the count of messages not authored by the user
		// created after their last read time, and the channel's latest message time.
		ChannelActivity(ctx context.Context, userID string) (map[string]Activity, error)
	}

	ServiceInterface interface {
		ListChannels(ctx context.Context, usr user.User) ([]ChannelSummary, error)
		GetChannel(ctx context.Context, id string) (Channel, error)
		CreateChannel(ctx context.Context, nc NewChannel, creator user.User) (Channel, error)
		UpdateChannel(ctx context.Context, ch Channel, uc NewChannel) (Channel, error)
		DeleteChannel(ctx context.Context, id string) error
		CountChannels(ctx context.Context) (int, error)
		Messages(ctx context.Context, channelID string, mq MessageQuery) ([]Message, error)
		PostMessage(ctx context.Context, channelID string, author user.User, nm NewMessage) (Message, error)
		DeleteMessage(ctx context.Context, channelID, msgID string, actor user.User) error
		MarkRead(ctx context.Context, channelID string, usr user.User) error
	}

	Service struct {
		repo   Repository
		hub    Broadcaster
		cache  core.Cache
		logger core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, hub Broadcaster, cache core.Cache, logger core.Logger) *Service {
	return &Service{repo: repo, hub: hub, cache: cache, logger: logger}
}

func (svc *Service) checkName(ctx context.Context, name, excludedID string) error {
	exists, err := svc.repo.ChannelNameExists(ctx, name, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking channel name")
	}
	if exists {
		return errNameTaken
	}
	return nil
}

// nameConflict maps ErrNameExists from a write that raced past checkName.
func nameConflict(err error) error {
	if errors.Cause(err) == ErrNameExists {
		return errNameTaken
	}
	return err
}

// ListChannels lists channels by name along with the user's unread counts.
func (svc *Service) ListChannels(ctx context.Context, usr user.User) ([]ChannelSummary, error) {
	channels, err := svc.repo.QueryChannels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying channels")
	}
	activity, err := svc.repo.ChannelActivity(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "computing channel activity")
	}

	summaries := make([]ChannelSummary, 0, len(channels))
	for _, ch := range channels {
		sum := ChannelSummary{Channel: ch}
		if act, ok := activity[ch.ID]; ok {
			sum.UnreadCount = act.UnreadCount
			if !act.LastMessageAt.IsZero() {
				last := act.LastMessageAt
				sum.LastMessageAt = &last
			}
		}
		summaries = append(summaries, sum)
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

func (svc *Service) GetChannel(ctx context.Context, id string) (Channel, error) {
	return svc.repo.GetChannel(ctx, id)
}

func (svc *Service) CreateChannel(ctx context.Context, nc NewChannel, creator user.User) (Channel, error) {
	if err := svc.checkName(ctx, nc.Name, ""); err != nil {
		return Channel{}, err
	}
	now := time.Now().UTC()
	ch, err := svc.repo.CreateChannel(ctx, Channel{
		Name:        nc.Name,
		Description: nc.Description,
		ReadOnly:    nc.ReadOnly,
		CreatedBy:   creator.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Channel{}, errors.Wrap(nameConflict(err), "creating channel")
	}
	svc.invalidateDashboard(ctx)
	return ch, nil
}

func (svc *Service) UpdateChannel(ctx context.Context, ch Channel, uc NewChannel) (Channel, error) {
	if err := svc.checkName(ctx, uc.Name, ch.ID); err != nil {
		return Channel{}, err
	}
	ch.Name = uc.Name
	ch.Description = uc.Description
	ch.ReadOnly = uc.ReadOnly
	ch.UpdatedAt = time.Now().UTC()
	ch, err := svc.repo.UpdateChannel(ctx, ch)
	if err != nil {
		return Channel{}, errors.Wrap(nameConflict(err), "updating channel")
	}
	return ch, nil
}

func (svc *Service) DeleteChannel(ctx context.Context, id string) error {
	if _, err := svc.repo.GetChannel(ctx, id); err != nil {
		return err
	}
	if err := svc.repo.DeleteChannel(ctx, id); err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	svc.invalidateDashboard(ctx)
	return nil
}

func (svc *Service) CountChannels(ctx context.Context) (int, error) {
	return svc.repo.CountChannels(ctx)
}

func (svc *Service) Messages(ctx context.Context, channelID string, mq MessageQuery) ([]Message, error) {
	if _, err := svc.repo.GetChannel(ctx, channelID); err != nil {
		return nil, err
	}
	mq.Clean()
	return svc.repo.QueryMessages(ctx, channelID, mq.Before, mq.Limit)
}

func (svc *Service) PostMessage(ctx context.Context, channelID string, author user.User, nm NewMessage) (Message, error) {
	ch, err := svc.repo.GetChannel(ctx, channelID)
	if err != nil {
		return Message{}, err
	}
	if ch.ReadOnly && !author.IsStaff() {
		return Message{}, ErrChannelReadOnly
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		ChannelID:  ch.ID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Body:       nm.Body,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	svc.hub.Broadcast(Event{Type: EventMessageCreated, Payload: msg})
	return msg, nil
}

// DeleteMessage deletes a message of the channel. Only its author or an admin may delete it.
func (svc *Service) DeleteMessage(ctx context.Context, channelID, msgID string, actor user.User) error {
	msg, err := svc.repo.GetMessage(ctx, msgID)
	if err != nil {
		return err
	}
	if msg.ChannelID != channelID {
		return ErrMessageNotFound
	}
	if msg.AuthorID != actor.ID && !actor.IsAdmin() {
		return core.ErrPermissionDenied
	}

	if err = svc.repo.DeleteMessage(ctx, msg.ID); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	svc.hub.Broadcast(Event{
		Type:    EventMessageDeleted,
		Payload: map[string]string{"id": msg.ID, "channel_id": msg.ChannelID},
	})
	return nil
}

func (svc *Service) MarkRead(ctx context.Context, channelID string, usr user.User) error {
	if _, err := svc.repo.GetChannel(ctx, channelID); err != nil {
		return err
	}
	return svc.repo.MarkRead(ctx, channelID, usr.ID, time.Now().UTC())
}

func (svc *Service) invalidateDashboard(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, core.CacheKeyAdminDashboard); err != nil {
		svc.logger.Warn("invalidating admin dashboard cache", err)
	}
}
