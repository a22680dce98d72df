package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MaxChatTitleLength caps chat titles.
	MaxChatTitleLength = 100
	// MaxChatMessages caps the number of messages stored per chat.
	MaxChatMessages = 1000
	// MaxMessageLength caps a single message body.
	MaxMessageLength = 5000

	defaultChatTitle = "New Chat"
)

// ChatMessage is a single transcript entry. IsUser distinguishes the human
// turn from the bot reply.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a persisted conversation transcript owned by a single user.
// Messages are stored in order as a JSON column.
type Chat struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Title      string                           `gorm:"not null" json:"title"`
	Messages   datatypes.JSONSlice[ChatMessage] `json:"messages"`
	IsArchived bool                             `gorm:"default:false;index" json:"is_archived"`
}

// BeforeCreate derives the title from the first user message when the
// caller left the default in place.
func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}

	if c.Title == "" {
		c.Title = defaultChatTitle
	}

	if c.Title == defaultChatTitle && len(c.Messages) > 0 {
		first := c.Messages[0]
		if first.IsUser && strings.TrimSpace(first.Text) != "" {
			c.Title = TitleFromMessage(first.Text)
		}
	}

	return nil
}

// TitleFromMessage truncates a message body into a display title.
func TitleFromMessage(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= 50 {
		return text
	}
	return strings.TrimSpace(string(runes[:50])) + "..."
}

// AppendMessage adds a message to the transcript, assigning an ID and
// timestamp when absent.
func (c *Chat) AppendMessage(msg ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.Messages = append(c.Messages, msg)
}

// LastMessage returns the newest transcript entry, or nil for an empty chat.
func (c *Chat) LastMessage() *ChatMessage {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// MessageCount reports the transcript length.
func (c *Chat) MessageCount() int {
	return len(c.Messages)
}
