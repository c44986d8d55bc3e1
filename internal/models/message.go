package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role tags who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a stored role value back to its Role.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(value), nil
	}
	return "", fmt.Errorf("%w: unknown message role %q", ErrInvalidInput, value)
}

// Message is one turn of an interview conversation. Messages are
// append-only: once added to a session they are never edited or removed.
// Internal marks turns that exist only as LLM context (for example the
// synthetic echo of a control phrase) and must not be shown to the user.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessage(role Role, content string, internal bool) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Internal:  internal,
		CreatedAt: time.Now().UTC(),
	}
}
