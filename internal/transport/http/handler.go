package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/logging"
)

// Handler serves the REST session, statistics and question admin endpoints.
type Handler struct {
	service *app.GameService
	logger  zerolog.Logger
}

func NewHandler(service *app.GameService, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger.With().Str("component", "http").Logger()}
}

// Register adds the REST routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/{id}/question", h.currentQuestion)
	mux.HandleFunc("POST /api/sessions/{id}/answer", h.submitAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/next", h.advance)
	mux.HandleFunc("GET /api/sessions/{id}/summary", h.summary)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.endSession)
	mux.HandleFunc("GET /api/stats", h.statsOverview)
	mux.HandleFunc("GET /api/stats/{questionId}", h.questionStats)
	mux.HandleFunc("POST /api/questions", h.addQuestion)
	mux.HandleFunc("POST /api/questions/generate", h.generateQuestion)
}

type createSessionRequest struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

type answerRequest struct {
	Answer *int `json:"answer"`
}

type generateRequest struct {
	Category string `json:"category"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// an empty body means an unfiltered game of the default length
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	info, err := h.service.CreateSession(r.Context(), domain.Filter{Category: req.Category, Difficulty: req.Difficulty}, req.Count)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger := logging.FromContext(r.Context())
	logger.Info().Str("session_id", info.ID).Int("questions", info.Total).Msg("session created")
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.CurrentQuestion(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == nil {
		RespondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "body must be {\"answer\": <option index>}")
		return
	}
	res, err := h.service.SubmitAnswer(r.Context(), r.PathValue("id"), *req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndSession(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) statsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.StatsOverview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) questionStats(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.QuestionStats(r.Context(), r.PathValue("questionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		QuestionID string `json:"questionId"`
		domain.QuestionReport
		TimesIncorrect int64 `json:"timesIncorrect"`
	}{rec.QuestionID, rec.Report(), rec.TimesIncorrect()})
}

func (h *Handler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		RespondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if err := h.service.AddQuestion(r.Context(), q); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) generateQuestion(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	q, err := h.service.GenerateQuestion(r.Context(), req.Category)
	if err != nil {
		if status, _ := classify(err); status == http.StatusInternalServerError {
			h.logger.Warn().Err(err).Str("category", req.Category).Msg("question generation failed")
			RespondError(w, http.StatusBadGateway, ErrCodeUpstreamError, "question generation failed")
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	if app.IsClientError(err) {
		logger.Debug().Err(err).Msg("request rejected")
	}
	RespondServiceError(w, h.logger, err)
}
