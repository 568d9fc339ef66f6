package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// WSHandler lets a client play one session over a websocket.
type WSHandler struct {
	service  *app.GameService
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Choice *int `json:"choice"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades the request and serves the session named by ?sessionId=.
// Every inbound message gets exactly one reply, written by a single writer goroutine.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		RespondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "missing sessionId")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	h.serve(r.Context(), conn, sessionID)
}

// wsConn is the part of *websocket.Conn the play loop uses.
type wsConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

func (h *WSHandler) serve(ctx context.Context, conn wsConn, sessionID string) {
	logger := h.logger.With().Str("session_id", sessionID).Logger()
	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				// unblock the reader
				_ = conn.Close()
				return
			}
		}
	}()

loop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		select {
		case send <- h.handle(ctx, sessionID, inbound):
		case <-writerDone:
			break loop
		}
	}

	close(send)
	<-writerDone
}

// handle runs one inbound message against the session and builds its reply.
func (h *WSHandler) handle(ctx context.Context, sessionID string, inbound inboundMessage) outboundMessage {
	switch inbound.Type {
	case "question":
		q, err := h.service.CurrentQuestion(ctx, sessionID)
		return reply("question", q, err)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Choice == nil {
			return errorMessage(ErrCodeInvalidRequest, "answer payload must be {\"choice\": <option index>}")
		}
		res, err := h.service.SubmitAnswer(ctx, sessionID, *payload.Choice)
		return reply("answerResult", res, err)
	case "next":
		info, err := h.service.Advance(ctx, sessionID)
		if err != nil {
			return reply("", nil, err)
		}
		if info.Status == domain.StatusCompleted {
			return outboundMessage{Type: "completed", Payload: info}
		}
		q, err := h.service.CurrentQuestion(ctx, sessionID)
		return reply("question", q, err)
	case "summary":
		sum, err := h.service.Summary(ctx, sessionID)
		return reply("summary", sum, err)
	default:
		return errorMessage(ErrCodeUnknownMessageType, "unsupported message type")
	}
}

func reply(typ string, payload any, err error) outboundMessage {
	if err != nil {
		_, code := classify(err)
		msg := err.Error()
		if code == ErrCodeInternalError {
			msg = "internal error"
		}
		return errorMessage(code, msg)
	}
	return outboundMessage{Type: typ, Payload: payload}
}

func errorMessage(code, message string) outboundMessage {
	return outboundMessage{Type: "error", Payload: ErrorResponse{Error: code, Message: message}}
}
