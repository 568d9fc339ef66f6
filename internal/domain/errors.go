package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema marks a question record rejected while loading a question source.
	ErrSchema = errors.New("invalid question record")
	// ErrValidation marks a rejected input on a mutating call (e.g. adding a question at runtime).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for unknown question ids.
	ErrNotFound = errors.New("question not found")
	// ErrNoQuestionsAvailable is returned when the selection filters match nothing.
	ErrNoQuestionsAvailable = errors.New("no questions match the requested filters")
	// ErrSessionNotFound is returned for unknown or expired session tokens.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidStateTransition is returned when a session operation is called out of order.
	ErrInvalidStateTransition = errors.New("invalid session state transition")
	// ErrInvalidChoiceIndex is returned when a submitted answer is outside the option range.
	ErrInvalidChoiceIndex = errors.New("answer index out of range")
	// ErrStatsInvariant is returned when a correct answer would exceed the recorded exposures.
	ErrStatsInvariant = errors.New("times correct would exceed times shown")
	// ErrGeneratorUnavailable indicates no question generator is configured.
	ErrGeneratorUnavailable = errors.New("question generator not configured")
)

// RecordErrors lists source records that could not be decoded. Loaders return it
// together with the records they did decode; each element wraps ErrSchema.
type RecordErrors []error

func (e RecordErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d undecodable question records: %s", len(e), strings.Join(msgs, "; "))
}

func (e RecordErrors) Unwrap() []error { return e }
