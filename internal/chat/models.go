package chat

import "time"

// Conversation is a persisted chat. OwnerID is nil for conversations created by
// anonymous connections; those carry assistant output only.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID   *uint64   `gorm:"index" json:"-"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:varchar(64);not null;index" json:"conversation_id"`
	AuthorID       *uint64   `gorm:"index" json:"-"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Model          string    `gorm:"type:varchar(64)" json:"model"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// ConversationSummary is the list-view shape returned to clients.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
