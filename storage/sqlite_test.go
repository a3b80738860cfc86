package storage

import (
	"context"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndLoadSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "Total revenue by region")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a session ID")
	}

	loaded, err := store.Session(ctx, created.ID)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected session to exist")
	}
	if loaded.Title != "Total revenue by region" {
		t.Errorf("expected title to round-trip, got %q", loaded.Title)
	}
}

func TestSessionReturnsNilForUnknown(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Session(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for unknown session, got %+v", loaded)
	}
}

func TestAppendAndLoadMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "test")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	turns := []struct{ role, content string }{
		{"user", "What is total revenue?"},
		{"assistant", "Total revenue is 1,650."},
		{"user", "And by region?"},
	}
	for _, turn := range turns {
		if _, err := store.AppendMessage(ctx, session.ID, turn.role, turn.content); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	messages, err := store.Messages(ctx, session.ID)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, turn := range turns {
		if messages[i].Role != turn.role || messages[i].Content != turn.content {
			t.Errorf("message %d = %s/%q, want %s/%q",
				i, messages[i].Role, messages[i].Content, turn.role, turn.content)
		}
	}

	history, err := store.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history turns, got %d", len(history))
	}
	if history[1].Role != "assistant" || history[1].Content != "Total revenue is 1,650." {
		t.Errorf("history not in append order: %+v", history[1])
	}
}

func TestMessagesForUnknownSessionIsEmpty(t *testing.T) {
	store := newTestStore(t)

	messages, err := store.Messages(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if messages == nil || len(messages) != 0 {
		t.Errorf("expected empty slice, got %v", messages)
	}
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSession(ctx, "first")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	second, err := store.CreateSession(ctx, "second")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Touching the first session moves it to the top.
	if _, err := store.AppendMessage(ctx, first.ID, "user", "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != first.ID || sessions[1].ID != second.ID {
		t.Errorf("expected most recently updated first, got %s then %s",
			sessions[0].Title, sessions[1].Title)
	}
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "doomed")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := store.AppendMessage(ctx, session.ID, "user", "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := store.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	loaded, err := store.Session(ctx, session.ID)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if loaded != nil {
		t.Error("expected session gone after delete")
	}

	messages, err := store.Messages(ctx, session.ID)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected cascade to remove messages, got %d", len(messages))
	}
}

func TestTitleFromQuestion(t *testing.T) {
	if got := TitleFromQuestion("short question"); got != "short question" {
		t.Errorf("short titles pass through, got %q", got)
	}

	long := strings.Repeat("revenue ", 20)
	got := TitleFromQuestion(long)
	if len([]rune(got)) != titleLimit+3 {
		t.Errorf("expected truncation to %d runes plus ellipsis, got %d", titleLimit, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}
