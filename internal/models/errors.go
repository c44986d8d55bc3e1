package models

import "errors"

// Error taxonomy of the interview engine. The HTTP layer translates these
// with errors.Is; everything else wraps them via fmt.Errorf("%w").
var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidInput is returned for a malformed request, for example
	// when neither vacancy source is given.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition is returned when a control phrase is not
	// allowed in the session's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSessionCompleted is returned for any operation on a session
	// that already reached its terminal status.
	ErrSessionCompleted = errors.New("session is already completed")
	// ErrVacancyNotParsable is returned when content acquisition cannot
	// turn the provided source into vacancy text.
	ErrVacancyNotParsable = errors.New("vacancy not parsable")
	// ErrUnsupportedAudioFormat is returned when an uploaded buffer is
	// not valid WAV audio within the configured bounds.
	ErrUnsupportedAudioFormat = errors.New("unsupported audio format")
	// ErrFileTooLarge is returned when an uploaded buffer exceeds the
	// configured size limit.
	ErrFileTooLarge = errors.New("audio file too large")
)
