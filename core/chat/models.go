package chat

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
)

// message page sizes
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ReadOnly    bool      `json:"read_only"` // only staff may post
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChannelSummary is a channel as listed for a given user.
type ChannelSummary struct {
	Channel
	UnreadCount   int        `json:"unread_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// Activity holds a user's unread count and the latest message time of a channel.
type Activity struct {
	UnreadCount   int
	LastMessageAt time.Time
}

type Message struct {
	ID         string     `json:"id"`
	ChannelID  string     `json:"channel_id"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
	EditedAt   *time.Time `json:"edited_at"`
}

type NewChannel struct {
	Name        string `json:"name" validate:"required,notblank,max=80"`
	Description string `json:"description" validate:"omitempty,max=500"`
	ReadOnly    bool   `json:"read_only"`
}

func (nc *NewChannel) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewMessage struct {
	Body string `json:"body" validate:"required,notblank,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

// MessageQuery selects a page of messages, newest first, created strictly before Before.
type MessageQuery struct {
	Before time.Time `query:"before"`
	Limit  int       `query:"limit"`
}

func (mq *MessageQuery) Clean() {
	if mq.Limit <= 0 {
		mq.Limit = DefaultMessageLimit
	}
	if mq.Limit > MaxMessageLimit {
		mq.Limit = MaxMessageLimit
	}
}

// realtime event types
const (
	EventMessageCreated = "message.created"
	EventMessageDeleted = "message.deleted"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broadcaster pushes events to connected clients, best-effort.
type Broadcaster interface {
	Broadcast(evt Event)
}
