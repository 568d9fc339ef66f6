package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"trivia-service/internal/domain"
	"trivia-service/internal/metrics"
)

// QuestionRepository abstracts the indexed question store.
type QuestionRepository interface {
	QuestionQuerier
	GetByID(id string) (domain.Question, error)
	Add(question domain.Question) error
	Categories() []string
	Difficulties() []string
}

// SessionRepository abstracts how live sessions are kept (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
	// Expire removes sessions idle for longer than idle and returns their ids.
	Expire(now time.Time, idle time.Duration) []string
	Len() int
}

// QuestionGenerator produces one candidate question for a category.
type QuestionGenerator interface {
	Generate(ctx context.Context, category string) (domain.Question, error)
}

// QuestionPersister stores accepted generated questions outside the process.
type QuestionPersister interface {
	Append(ctx context.Context, question domain.Question) error
}

// ServiceOptions tunes GameService; zero values fall back to defaults.
type ServiceOptions struct {
	DefaultCount int
	IdleTTL      time.Duration
	Generator    QuestionGenerator
	Persister    QuestionPersister
	Logger       zerolog.Logger
	NewID        func() string
	Clock        func() time.Time
}

// SessionInfo describes a freshly created or advanced session.
type SessionInfo struct {
	ID           string               `json:"sessionId"`
	Total        int                  `json:"totalQuestions"`
	Requested    int                  `json:"requested"`
	Status       domain.SessionStatus `json:"status"`
	Categories   []string             `json:"categories,omitempty"`
	Difficulties []string             `json:"difficulties,omitempty"`
}

// StatsOverview is the global statistics report.
type StatsOverview struct {
	GlobalAccuracy float64              `json:"globalAccuracy"`
	Questions      []domain.StatsRecord `json:"questions"`
}

// GameService contains the trivia use cases exposed to the transport layer.
type GameService struct {
	questions QuestionRepository
	selector  *Selector
	sessions  SessionRepository
	stats     *StatsAggregator
	notifier  StatsNotifier
	generator QuestionGenerator
	persister QuestionPersister
	logger    zerolog.Logger

	defaultCount int
	idleTTL      time.Duration
	newID        func() string
	now          func() time.Time
	sf           singleflight.Group
}

func NewGameService(questions QuestionRepository, selector *Selector, sessions SessionRepository, stats *StatsAggregator, notifier StatsNotifier, opts ServiceOptions) *GameService {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 10
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if selector == nil {
		selector = NewSelector(questions, nil)
	}
	return &GameService{
		questions:    questions,
		selector:     selector,
		sessions:     sessions,
		stats:        stats,
		notifier:     notifier,
		generator:    opts.Generator,
		persister:    opts.Persister,
		logger:       opts.Logger.With().Str("component", "game").Logger(),
		defaultCount: opts.DefaultCount,
		idleTTL:      opts.IdleTTL,
		newID:        opts.NewID,
		now:          opts.Clock,
	}
}

// CreateSession selects questions and registers a new session. A count of 0 uses the default.
func (s *GameService) CreateSession(_ context.Context, filter domain.Filter, count int) (SessionInfo, error) {
	if count == 0 {
		count = s.defaultCount
	}
	picked, err := s.selector.Select(filter, count)
	if err != nil {
		return SessionInfo{}, err
	}

	session := NewSessionWithClock(s.newID(), picked, count, s.notifier, s.now)
	s.sessions.Put(session)
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(s.sessions.Len()))

	if len(picked) < count {
		s.logger.Info().Str("session_id", session.ID()).Int("requested", count).Int("granted", len(picked)).
			Msg("question pool smaller than requested; session shortened")
	}
	return SessionInfo{
		ID:           session.ID(),
		Total:        session.Total(),
		Requested:    count,
		Status:       session.Status(),
		Categories:   s.questions.Categories(),
		Difficulties: s.questions.Difficulties(),
	}, nil
}

// CurrentQuestion serves the current question, decorated with its global stats.
func (s *GameService) CurrentQuestion(ctx context.Context, sessionID string) (domain.PublicQuestion, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.PublicQuestion{}, err
	}
	q, err := session.CurrentQuestion()
	if err != nil {
		return domain.PublicQuestion{}, err
	}
	if rec, err := s.stats.Stats(ctx, q.ID); err == nil {
		report := rec.Report()
		q.GlobalStats = &report
	} else {
		s.logger.Warn().Err(err).Str("question_id", q.ID).Msg("global stats unavailable")
	}
	return q, nil
}

// SubmitAnswer scores the player's choice for the current question.
func (s *GameService) SubmitAnswer(_ context.Context, sessionID string, choice int) (domain.AnswerResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return session.SubmitAnswer(choice)
}

// Advance moves the session to its next question or completes it.
func (s *GameService) Advance(_ context.Context, sessionID string) (SessionInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := session.Advance(); err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		ID:        session.ID(),
		Total:     session.Total(),
		Requested: session.Requested(),
		Status:    session.Status(),
	}, nil
}

// Summary returns the result of a completed session.
func (s *GameService) Summary(_ context.Context, sessionID string) (domain.Summary, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Summary{}, err
	}
	return session.Summary()
}

// EndSession drops a session. Statistics already recorded are kept.
func (s *GameService) EndSession(_ context.Context, sessionID string) error {
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	metrics.SessionsActive.Set(float64(s.sessions.Len()))
	return nil
}

// QuestionStats returns the shared counters for one question.
func (s *GameService) QuestionStats(ctx context.Context, questionID string) (domain.StatsRecord, error) {
	return s.stats.Stats(ctx, questionID)
}

// GlobalAccuracy is the accuracy across every recorded exposure.
func (s *GameService) GlobalAccuracy(ctx context.Context) (float64, error) {
	return s.stats.GlobalAccuracy(ctx)
}

// StatsOverview reports every question's counters plus the global accuracy.
func (s *GameService) StatsOverview(ctx context.Context) (StatsOverview, error) {
	records, err := s.stats.All(ctx)
	if err != nil {
		return StatsOverview{}, err
	}
	acc, err := s.stats.GlobalAccuracy(ctx)
	if err != nil {
		return StatsOverview{}, err
	}
	return StatsOverview{GlobalAccuracy: acc, Questions: records}, nil
}

// AddQuestion appends a validated record to the repository.
func (s *GameService) AddQuestion(_ context.Context, question domain.Question) error {
	return s.questions.Add(question)
}

// GenerateQuestion asks the external generator for a question, validates and stores it.
// Concurrent requests for the same category share one upstream call.
func (s *GameService) GenerateQuestion(ctx context.Context, category string) (domain.Question, error) {
	if s.generator == nil {
		return domain.Question{}, domain.ErrGeneratorUnavailable
	}
	key := strings.ToLower(strings.TrimSpace(category))
	// the shared call must outlive any single caller; the generator applies its own timeout
	flightCtx := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		q, err := s.generator.Generate(flightCtx, category)
		if err != nil {
			metrics.GeneratorCalls.WithLabelValues("error").Inc()
			return domain.Question{}, err
		}
		if err := s.questions.Add(q); err != nil {
			metrics.GeneratorCalls.WithLabelValues("rejected").Inc()
			return domain.Question{}, err
		}
		metrics.GeneratorCalls.WithLabelValues("accepted").Inc()
		if s.persister != nil {
			if err := s.persister.Append(flightCtx, q); err != nil {
				// the question is already playable; losing the file copy is not fatal
				s.logger.Error().Err(err).Str("question_id", q.ID).Msg("persist generated question")
			}
		}
		return q, nil
	})
	select {
	case <-ctx.Done():
		return domain.Question{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Question{}, res.Err
		}
		return res.Val.(domain.Question), nil
	}
}

// ExpireIdle evicts sessions idle for longer than the configured TTL.
func (s *GameService) ExpireIdle() int {
	expired := s.sessions.Expire(s.now(), s.idleTTL)
	if len(expired) > 0 {
		metrics.SessionsExpired.Add(float64(len(expired)))
		s.logger.Debug().Int("count", len(expired)).Msg("expired idle sessions")
	}
	metrics.SessionsActive.Set(float64(s.sessions.Len()))
	return len(expired)
}

// RunSweeper expires idle sessions every interval until ctx is done.
func (s *GameService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ExpireIdle()
		}
	}
}

func (s *GameService) session(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty session id", domain.ErrSessionNotFound)
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// IsClientError reports whether err was caused by the caller rather than the service.
func IsClientError(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrNoQuestionsAvailable,
		domain.ErrSessionNotFound,
		domain.ErrInvalidStateTransition,
		domain.ErrInvalidChoiceIndex,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
