package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"trivia-service/internal/domain"
)

// Error codes used in response envelopes.
const (
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeValidationFailed   = "validation_failed"
	ErrCodeInvalidChoice      = "invalid_choice"
	ErrCodeNotFound           = "not_found"
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeNoQuestions        = "no_questions_available"
	ErrCodeInvalidState       = "invalid_state"
	ErrCodeGeneratorDisabled  = "generator_unavailable"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeUpstreamError      = "upstream_error"
	ErrCodeInternalError      = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondError writes a standardized error response.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// classify maps a service error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, ErrCodeSessionNotFound
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict, ErrCodeInvalidState
	case errors.Is(err, domain.ErrInvalidChoiceIndex):
		return http.StatusBadRequest, ErrCodeInvalidChoice
	case errors.Is(err, domain.ErrNoQuestionsAvailable):
		return http.StatusUnprocessableEntity, ErrCodeNoQuestions
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrSchema):
		return http.StatusUnprocessableEntity, ErrCodeValidationFailed
	case errors.Is(err, domain.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable, ErrCodeGeneratorDisabled
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// RespondServiceError maps err to a status and code. Internal errors are logged
// and their detail is not sent to the client.
func RespondServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	RespondError(w, status, code, msg)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
