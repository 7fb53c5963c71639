package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hackcamp/core/chat"
)

const (
	channelColumns = `id, name, description, read_only, created_by, created_at, updated_at`
	messageColumns = `id, channel_id, author_id, author_name, body, created_at, edited_at`
)

type channelRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Description string      `db:"description"`
	ReadOnly    bool        `db:"read_only"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toChannelRow(ch chat.Channel) channelRow {
	return channelRow{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		ReadOnly:    ch.ReadOnly,
		CreatedBy:   null.NewString(ch.CreatedBy, ch.CreatedBy != ""),
		CreatedAt:   ch.CreatedAt.UTC(),
		UpdatedAt:   ch.UpdatedAt.UTC(),
	}
}

func (r channelRow) channel() chat.Channel {
	return chat.Channel{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		ReadOnly:    r.ReadOnly,
		CreatedBy:   r.CreatedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type messageRow struct {
	ID         string      `db:"id"`
	ChannelID  string      `db:"channel_id"`
	AuthorID   null.String `db:"author_id"`
	AuthorName string      `db:"author_name"`
	Body       string      `db:"body"`
	CreatedAt  time.Time   `db:"created_at"`
	EditedAt   null.Time   `db:"edited_at"`
}

func toMessageRow(msg chat.Message) messageRow {
	return messageRow{
		ID:         msg.ID,
		ChannelID:  msg.ChannelID,
		AuthorID:   null.NewString(msg.AuthorID, msg.AuthorID != ""),
		AuthorName: msg.AuthorName,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt.UTC(),
		EditedAt:   null.TimeFromPtr(msg.EditedAt),
	}
}

func (r messageRow) message() chat.Message {
	return chat.Message{
		ID:         r.ID,
		ChannelID:  r.ChannelID,
		AuthorID:   r.AuthorID.String,
		AuthorName: r.AuthorName,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt.UTC(),
		EditedAt:   r.EditedAt.Ptr(),
	}
}

type chatRepository struct {
	base
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) chat.Repository {
	return &chatRepository{base{db: db}}
}

func (repo *chatRepository) ChannelNameExists(ctx context.Context, name, excludedID string) (bool, error) {
	var w where
	w.add("lower(name) = lower(?)", name)
	if validID(excludedID) {
		w.add("id <> ?", excludedID)
	}

	var found bool
	err := repo.get(ctx, &found, "SELECT EXISTS (SELECT 1 FROM channels"+w.String()+")", w.args...)
	return found, errors.Wrap(err, "checking channel name")
}

func (repo *chatRepository) CreateChannel(ctx context.Context, ch chat.Channel) (chat.Channel, error) {
	ch.ID = newID()
	q := `INSERT INTO channels (` + channelColumns + `) VALUES (
		:id, :name, :description, :read_only, :created_by, :created_at, :updated_at)`
	if _, err := repo.namedExec(ctx, q, toChannelRow(ch)); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return chat.Channel{}, chat.ErrNameExists
		}
		return chat.Channel{}, errors.Wrap(err, "inserting channel")
	}
	return ch, nil
}

func (repo *chatRepository) QueryChannels(ctx context.Context) ([]chat.Channel, error) {
	var rows []channelRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+channelColumns+" FROM channels ORDER BY name ASC"); err != nil {
		return nil, errors.Wrap(err, "selecting channels")
	}

	channels := make([]chat.Channel, 0, len(rows))
	for _, r := range rows {
		channels = append(channels, r.channel())
	}
	return channels, nil
}

func (repo *chatRepository) GetChannel(ctx context.Context, id string) (chat.Channel, error) {
	if !validID(id) {
		return chat.Channel{}, chat.ErrChannelNotFound
	}

	var r channelRow
	if err := repo.get(ctx, &r, "SELECT "+channelColumns+" FROM channels WHERE id = ?", id); err != nil {
		return chat.Channel{}, trapNoRows(err, chat.ErrChannelNotFound, "selecting channel")
	}
	return r.channel(), nil
}

func (repo *chatRepository) UpdateChannel(ctx context.Context, ch chat.Channel) (chat.Channel, error) {
	q := `UPDATE channels SET name = :name, description = :description, read_only = :read_only, updated_at = :updated_at
		WHERE id = :id`
	n, err := repo.namedExec(ctx, q, toChannelRow(ch))
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return chat.Channel{}, chat.ErrNameExists
		}
		return chat.Channel{}, errors.Wrap(err, "updating channel")
	}
	if n == 0 {
		return chat.Channel{}, chat.ErrChannelNotFound
	}
	return ch, nil
}

// DeleteChannel relies on ON DELETE CASCADE for messages and read markers.
func (repo *chatRepository) DeleteChannel(ctx context.Context, id string) error {
	if !validID(id) {
		return chat.ErrChannelNotFound
	}
	n, err := repo.exec(ctx, "DELETE FROM channels WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	if n == 0 {
		return chat.ErrChannelNotFound
	}
	return nil
}

func (repo *chatRepository) CountChannels(ctx context.Context) (int, error) {
	n, err := repo.count(ctx, "channels", where{})
	return n, errors.Wrap(err, "counting channels")
}

func (repo *chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = newID()
	q := `INSERT INTO messages (` + messageColumns + `) VALUES (
		:id, :channel_id, :author_id, :author_name, :body, :created_at, :edited_at)`
	if _, err := repo.namedExec(ctx, q, toMessageRow(msg)); err != nil {
		if foreignKeyViolation(err) {
			return chat.Message{}, chat.ErrChannelNotFound
		}
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]chat.Message, error) {
	if !validID(channelID) {
		return []chat.Message{}, nil
	}

	var w where
	w.add("channel_id = ?", channelID)
	if !before.IsZero() {
		w.add("created_at < ?", before.UTC())
	}
	q := "SELECT " + messageColumns + " FROM messages" + w.String() + " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		q += " LIMIT ?"
		w.args = append(w.args, limit)
	}

	var rows []messageRow
	if err := repo.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}

	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.message())
	}
	return msgs, nil
}

func (repo *chatRepository) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	if !validID(id) {
		return chat.Message{}, chat.ErrMessageNotFound
	}

	var r messageRow
	if err := repo.get(ctx, &r, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id); err != nil {
		return chat.Message{}, trapNoRows(err, chat.ErrMessageNotFound, "selecting message")
	}
	return r.message(), nil
}

func (repo *chatRepository) DeleteMessage(ctx context.Context, id string) error {
	if !validID(id) {
		return chat.ErrMessageNotFound
	}
	n, err := repo.exec(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting message")
	}
	if n == 0 {
		return chat.ErrMessageNotFound
	}
	return nil
}

func (repo *chatRepository) MarkRead(ctx context.Context, channelID, userID string, at time.Time) error {
	q := `INSERT INTO channel_reads (channel_id, user_id, last_read_at) VALUES (?, ?, ?)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET last_read_at = EXCLUDED.last_read_at`
	_, err := repo.exec(ctx, q, channelID, userID, at.UTC())
	if foreignKeyViolation(err) {
		return chat.ErrChannelNotFound
	}
	return errors.Wrap(err, "marking channel read")
}

func (repo *chatRepository) ChannelActivity(ctx context.Context, userID string) (map[string]chat.Activity, error) {
	var rows []struct {
		ChannelID     string    `db:"channel_id"`
		UnreadCount   int       `db:"unread_count"`
		LastMessageAt time.Time `db:"last_message_at"`
	}
	q := `SELECT m.channel_id,
			COUNT(*) FILTER (
				WHERE m.author_id IS DISTINCT FROM ?::uuid
				AND (r.last_read_at IS NULL OR m.created_at > r.last_read_at)
			) AS unread_count,
			MAX(m.created_at) AS last_message_at
		FROM messages m
		LEFT JOIN channel_reads r ON r.channel_id = m.channel_id AND r.user_id = ?::uuid
		GROUP BY m.channel_id`
	if err := repo.selectAll(ctx, &rows, q, userID, userID); err != nil {
		return nil, errors.Wrap(err, "selecting channel activity")
	}

	activity := make(map[string]chat.Activity, len(rows))
	for _, r := range rows {
		activity[r.ChannelID] = chat.Activity{UnreadCount: r.UnreadCount, LastMessageAt: r.LastMessageAt.UTC()}
	}
	return activity, nil
}
