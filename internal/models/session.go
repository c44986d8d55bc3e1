package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an interview session. A session
// only ever moves forward: PLANNED -> ONGOING -> FEEDBACK -> COMPLETED,
// with FEEDBACK optional and COMPLETED terminal.
type SessionStatus string

const (
	StatusPlanned   SessionStatus = "planned"
	StatusOngoing   SessionStatus = "ongoing"
	StatusFeedback  SessionStatus = "feedback"
	StatusCompleted SessionStatus = "completed"
)

// ParseStatus maps a stored status value back to its SessionStatus.
func ParseStatus(value string) (SessionStatus, error) {
	switch SessionStatus(value) {
	case StatusPlanned, StatusOngoing, StatusFeedback, StatusCompleted:
		return SessionStatus(value), nil
	}
	return "", fmt.Errorf("%w: unknown session status %q", ErrInvalidInput, value)
}

// SessionMode selects how the interview subject was sourced.
type SessionMode string

const (
	ModeVacancy SessionMode = "vacancy"
	ModeRole    SessionMode = "role"
)

// ParseMode maps a request value to its SessionMode.
func ParseMode(value string) (SessionMode, error) {
	switch SessionMode(value) {
	case ModeVacancy, ModeRole:
		return SessionMode(value), nil
	}
	return "", fmt.Errorf("%w: unknown session mode %q", ErrInvalidInput, value)
}

// InterviewFormat tunes how strictly the interviewer behaves.
type InterviewFormat string

const (
	FormatTraining  InterviewFormat = "training"
	FormatRealistic InterviewFormat = "realistic"
)

// ParseFormat maps a request value to its InterviewFormat.
func ParseFormat(value string) (InterviewFormat, error) {
	switch InterviewFormat(value) {
	case FormatTraining, FormatRealistic:
		return InterviewFormat(value), nil
	}
	return "", fmt.Errorf("%w: unknown interview format %q", ErrInvalidInput, value)
}

// SessionParams are the immutable parameters fixed at creation and passed
// into every LLM call as prompt context.
type SessionParams struct {
	Mode                       SessionMode
	VacancyURL                 string
	VacancyText                string
	RoleName                   string
	NumQuestions               int
	InterviewFormat            InterviewFormat
	CommunicationStylePreset   string
	CommunicationStyleFreeform string
	PlanPreferences            string
}

// Session is the aggregate root of one interview. It owns its ordered
// message log exclusively; the storage adapter always materializes the
// full list, never a partial view.
type Session struct {
	ID            string
	Status        SessionStatus
	InterviewPlan string
	StartedAt     *time.Time
	EndedAt       *time.Time
	CreatedAt     time.Time
	Messages      []*Message

	SessionParams

	// Number of leading messages already persisted. Maintained by the
	// storage adapter so Save only inserts new rows.
	flushed int
}

// NewSession creates a session in PLANNED status with a fresh id.
func NewSession(params SessionParams) *Session {
	return &Session{
		ID:            uuid.NewString(),
		Status:        StatusPlanned,
		CreatedAt:     time.Now().UTC(),
		SessionParams: params,
	}
}

// Append adds a new message to the end of the log and returns it.
func (s *Session) Append(role Role, content string, internal bool) *Message {
	m := newMessage(role, content, internal)
	s.Messages = append(s.Messages, m)
	return m
}

// Unflushed returns the suffix of messages not yet persisted.
func (s *Session) Unflushed() []*Message {
	if s.flushed >= len(s.Messages) {
		return nil
	}
	return s.Messages[s.flushed:]
}

// MarkFlushed records that every current message has been persisted.
func (s *Session) MarkFlushed() {
	s.flushed = len(s.Messages)
}

// VisibleMessages filters out internal turns that exist only as LLM
// context.
func (s *Session) VisibleMessages() []*Message {
	visible := make([]*Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Internal {
			continue
		}
		visible = append(visible, m)
	}
	return visible
}

// Subject returns a short label of what the interview is about.
func (s *Session) Subject() string {
	switch s.Mode {
	case ModeRole:
		return s.RoleName
	default:
		if s.VacancyURL != "" {
			return s.VacancyURL
		}
		return "vacancy"
	}
}
