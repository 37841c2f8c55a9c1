package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrConversationNotFound = errors.New("chat: conversation not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// EnsureConversation returns the conversation, creating it with the given id if
// it does not exist yet (clients may supply their own ids).
func (r *Repo) EnsureConversation(ctx context.Context, id string, ownerID *uint64, title string) (*Conversation, error) {
	c, err := r.GetConversation(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}
	c = &Conversation{ID: id, OwnerID: ownerID, Title: title}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListRecentMessagesDesc returns the most recent messages in DESC id order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesAsc returns messages oldest-first, optionally paged before an id.
func (r *Repo) ListMessagesAsc(ctx context.Context, conversationID string, limit int, beforeID uint64) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) ListConversations(ctx context.Context, ownerID uint64) ([]ConversationSummary, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("conversation_id = ?", c.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		out = append(out, ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: count,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return out, nil
}

func (r *Repo) UpdateTitle(ctx context.Context, id string, title string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
}

func (r *Repo) DeleteConversation(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Delete(&Message{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Conversation{}).Error
}
