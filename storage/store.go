// Package storage provides chat session persistence.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping backends without API changes

package storage

import (
	"context"
	"time"

	"github.com/richinex/tabula/llm"
)

// Session is one stored conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one stored conversation turn.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// SessionStore defines the interface for session persistence. Messages
// form an append log per session; sessions are listed most recent
// first.
type SessionStore interface {
	// CreateSession creates a session with the given title.
	CreateSession(ctx context.Context, title string) (*Session, error)

	// Session returns one session, or nil if it does not exist.
	Session(ctx context.Context, id string) (*Session, error)

	// ListSessions lists all sessions, most recently updated first.
	ListSessions(ctx context.Context) ([]Session, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage appends one turn to a session's log and bumps the
	// session timestamp.
	AppendMessage(ctx context.Context, sessionID, role, content string) (*Message, error)

	// Messages returns a session's turns in append order. Empty slice
	// (not nil) for an unknown session.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// History returns a session's turns as chat messages for the
	// analyst's conversation context.
	History(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)
}

// titleLimit bounds session titles derived from questions.
const titleLimit = 60

// TitleFromQuestion derives a session title from its first question.
func TitleFromQuestion(question string) string {
	runes := []rune(question)
	if len(runes) <= titleLimit {
		return question
	}
	return string(runes[:titleLimit]) + "..."
}
