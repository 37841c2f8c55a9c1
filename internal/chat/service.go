package chat

import (
	"context"
	"errors"

	"github.com/vortexchat/backend/internal/ai"
	"github.com/vortexchat/backend/internal/common"
)

var ErrNotOwner = errors.New("chat: not the conversation owner")

const (
	defaultTitle   = "New Chat"
	maxTitleLength = 50
)

type Service struct {
	repo              *Repo
	contextWindowSize int
}

func NewService(repo *Repo, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{repo: repo, contextWindowSize: contextWindowSize}
}

// CreateConversation starts a conversation with a server-generated id.
// ownerID is nil for anonymous connections.
func (s *Service) CreateConversation(ctx context.Context, ownerID *uint64, title string) (*Conversation, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = defaultTitle
	}
	c := &Conversation{ID: id, OwnerID: ownerID, Title: title}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AppendUserMessage stores an inbound user turn, creating the conversation on
// first use with a title derived from the message.
func (s *Service) AppendUserMessage(ctx context.Context, conversationID string, userID uint64, content, model string) error {
	conv, err := s.repo.EnsureConversation(ctx, conversationID, &userID, generateTitle(content))
	if err != nil {
		return err
	}
	if conv.Title == defaultTitle {
		if t := generateTitle(content); t != defaultTitle {
			_ = s.repo.UpdateTitle(ctx, conversationID, t)
		}
	}
	return s.repo.InsertMessage(ctx, &Message{
		ConversationID: conversationID,
		AuthorID:       &userID,
		Role:           "user",
		Content:        content,
		Model:          model,
	})
}

// AppendAssistantMessage stores a completed assistant turn. authorID is nil for
// anonymous sessions.
func (s *Service) AppendAssistantMessage(ctx context.Context, conversationID string, authorID *uint64, content, model string) error {
	if _, err := s.repo.EnsureConversation(ctx, conversationID, authorID, defaultTitle); err != nil {
		return err
	}
	return s.repo.InsertMessage(ctx, &Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Role:           "assistant",
		Content:        content,
		Model:          model,
	})
}

// RecentHistoryAsc returns the most recent turns oldest-first, shaped for the
// generation provider. The window is bounded by the configured context size.
func (s *Service) RecentHistoryAsc(ctx context.Context, conversationID string, limit int) ([]ai.Message, error) {
	if limit <= 0 || limit > s.contextWindowSize {
		limit = s.contextWindowSize
	}
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	out := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

func (s *Service) Conversation(ctx context.Context, id string) (*Conversation, error) {
	return s.repo.GetConversation(ctx, id)
}

func (s *Service) History(ctx context.Context, conversationID string, limit int, beforeID uint64) ([]Message, error) {
	return s.repo.ListMessagesAsc(ctx, conversationID, limit, beforeID)
}

func (s *Service) ListConversations(ctx context.Context, ownerID uint64) ([]ConversationSummary, error) {
	return s.repo.ListConversations(ctx, ownerID)
}

func (s *Service) RenameConversation(ctx context.Context, id string, ownerID *uint64, title string) error {
	if err := s.checkOwner(ctx, id, ownerID); err != nil {
		return err
	}
	return s.repo.UpdateTitle(ctx, id, title)
}

func (s *Service) DeleteConversation(ctx context.Context, id string, ownerID *uint64) error {
	if err := s.checkOwner(ctx, id, ownerID); err != nil {
		return err
	}
	return s.repo.DeleteConversation(ctx, id)
}

func (s *Service) checkOwner(ctx context.Context, id string, ownerID *uint64) error {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv.OwnerID == nil {
		return nil
	}
	if ownerID == nil || *conv.OwnerID != *ownerID {
		return ErrNotOwner
	}
	return nil
}

func generateTitle(content string) string {
	if content == "" {
		return defaultTitle
	}
	if len(content) <= maxTitleLength {
		return content
	}
	return content[:maxTitleLength] + "..."
}
