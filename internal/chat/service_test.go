package chat

import (
	"context"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Conversation{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewService(NewRepo(db), 20), db
}

func TestCreateConversation(t *testing.T) {
	svc, _ := newTestService(t)

	owner := uint64(1)
	conv, err := svc.CreateConversation(context.Background(), &owner, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.ID == "" {
		t.Fatalf("expected generated id")
	}
	if conv.Title != "New Chat" {
		t.Fatalf("expected default title, got %q", conv.Title)
	}

	got, err := svc.Conversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.OwnerID == nil || *got.OwnerID != 1 {
		t.Fatalf("owner not persisted: %+v", got)
	}
}

func TestAppendUserMessage_CreatesConversationWithTitle(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.AppendUserMessage(context.Background(), "conv-1", 1, "What is the capital of France?", "test-model"); err != nil {
		t.Fatalf("append user message: %v", err)
	}

	conv, err := svc.Conversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Title != "What is the capital of France?" {
		t.Fatalf("title should come from the first message, got %q", conv.Title)
	}
}

func TestAppendUserMessage_TruncatesLongTitle(t *testing.T) {
	svc, _ := newTestService(t)

	long := strings.Repeat("a", 80)
	if err := svc.AppendUserMessage(context.Background(), "conv-1", 1, long, "test-model"); err != nil {
		t.Fatalf("append user message: %v", err)
	}

	conv, err := svc.Conversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(conv.Title) != maxTitleLength+3 || !strings.HasSuffix(conv.Title, "...") {
		t.Fatalf("expected truncated title, got %q (len %d)", conv.Title, len(conv.Title))
	}
}

func TestRecentHistoryAsc_WindowAndOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := svc.AppendUserMessage(ctx, "conv-1", 1, "question", "m"); err != nil {
			t.Fatalf("append user: %v", err)
		}
		uid := uint64(1)
		if err := svc.AppendAssistantMessage(ctx, "conv-1", &uid, "answer", "m"); err != nil {
			t.Fatalf("append assistant: %v", err)
		}
	}

	history, err := svc.RecentHistoryAsc(ctx, "conv-1", 20)
	if err != nil {
		t.Fatalf("recent history: %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("expected window of 20, got %d", len(history))
	}
	// oldest-first: alternating user/assistant, ending with the newest assistant turn
	if history[len(history)-1].Role != "assistant" {
		t.Fatalf("newest turn should be last, got role %q", history[len(history)-1].Role)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Role == history[i-1].Role {
			t.Fatalf("expected alternating roles at %d", i)
		}
	}
}

func TestAppendAssistantMessage_AnonymousHasNoAuthor(t *testing.T) {
	svc, db := newTestService(t)

	if err := svc.AppendAssistantMessage(context.Background(), "anonymous-x", nil, "reply", "m"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	var msg Message
	if err := db.Where("conversation_id = ?", "anonymous-x").First(&msg).Error; err != nil {
		t.Fatalf("query message: %v", err)
	}
	if msg.AuthorID != nil {
		t.Fatalf("anonymous assistant message must have no author")
	}

	conv, err := svc.Conversation(context.Background(), "anonymous-x")
	if err != nil {
		t.Fatalf("conversation should be auto-created: %v", err)
	}
	if conv.OwnerID != nil {
		t.Fatalf("anonymous conversation must have no owner")
	}
}

func TestRenameConversation_OwnerEnforced(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	owner := uint64(1)
	conv, err := svc.CreateConversation(ctx, &owner, "mine")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stranger := uint64(2)
	if err := svc.RenameConversation(ctx, conv.ID, &stranger, "stolen"); err != ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.RenameConversation(ctx, conv.ID, &owner, "renamed"); err != nil {
		t.Fatalf("owner rename: %v", err)
	}

	got, _ := svc.Conversation(ctx, conv.ID)
	if got.Title != "renamed" {
		t.Fatalf("title = %q, want renamed", got.Title)
	}
}

func TestDeleteConversation_RemovesMessages(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := uint64(1)
	conv, err := svc.CreateConversation(ctx, &owner, "doomed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AppendUserMessage(ctx, conv.ID, 1, "hello", "m"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := svc.DeleteConversation(ctx, conv.ID, &owner); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Conversation(ctx, conv.ID); err != ErrConversationNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	var count int64
	if err := db.Model(&Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("messages should be gone, got %d", count)
	}
}

func TestListConversations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	owner := uint64(1)
	for _, title := range []string{"first", "second"} {
		conv, err := svc.CreateConversation(ctx, &owner, title)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := svc.AppendUserMessage(ctx, conv.ID, 1, "hi", "m"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	list, err := svc.ListConversations(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	for _, c := range list {
		if c.MessageCount != 1 {
			t.Fatalf("expected message count 1, got %d", c.MessageCount)
		}
	}
}
