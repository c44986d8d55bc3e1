package interview

import (
	"context"
	"errors"
	"fmt"

	"aiinterviewer/internal/models"
)

// SessionStore is the persistence contract the engine needs. One Save is
// one transaction over the session row plus its new messages.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// Memory is the conversation memory keyed by session id. It is the sole
// path by which prior turns re-enter model context: every completion call
// loads the full ordered log through it.
type Memory struct {
	store SessionStore
}

// NewMemory wraps the store.
func NewMemory(store SessionStore) *Memory {
	return &Memory{store: store}
}

// Load returns the full ordered message log of the session, internal
// turns included.
func (m *Memory) Load(ctx context.Context, sessionID string) ([]*models.Message, error) {
	session, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", sessionID, err)
	}
	return session.Messages, nil
}

// Append persists one message at the end of the session log.
func (m *Memory) Append(ctx context.Context, sessionID string, role models.Role, content string, internal bool) (*models.Message, error) {
	session, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("append to conversation %s: %w", sessionID, err)
	}
	msg := session.Append(role, content, internal)
	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("append to conversation %s: %w", sessionID, err)
	}
	return msg, nil
}

// Clear is not supported: the message log is append-only for the lifetime
// of the session.
func (m *Memory) Clear(context.Context, string) error {
	return errors.New("conversation memory is append-only and cannot be cleared")
}
