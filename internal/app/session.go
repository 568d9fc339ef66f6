package app

import (
	"fmt"
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// StatsNotifier receives exposure and answer events from sessions.
// Calls must not block on storage; delivery is the notifier's job.
type StatsNotifier interface {
	Shown(questionID string)
	Answered(questionID string, correct bool)
}

// Session drives one player through a fixed, ordered list of questions.
type Session struct {
	id        string
	questions []domain.Question
	requested int
	notifier  StatsNotifier
	createdAt time.Time
	now       func() time.Time

	mu         sync.Mutex
	status     domain.SessionStatus
	position   int
	score      int
	answers    []domain.AnswerRecord
	lastActive time.Time
}

// NewSession builds a session in the created state. requested is the count the
// player asked for; the playable length is len(questions). A session with no
// questions starts completed.
func NewSession(id string, questions []domain.Question, requested int, notifier StatsNotifier) *Session {
	return NewSessionWithClock(id, questions, requested, notifier, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, questions []domain.Question, requested int, notifier StatsNotifier, now func() time.Time) *Session {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	created := now()
	status := domain.StatusCreated
	if len(questions) == 0 {
		status = domain.StatusCompleted
	}
	return &Session{
		id:         id,
		questions:  append([]domain.Question(nil), questions...),
		requested:  requested,
		notifier:   notifier,
		createdAt:  created,
		now:        now,
		status:     status,
		answers:    make([]domain.AnswerRecord, 0, len(questions)),
		lastActive: created,
	}
}

func (s *Session) ID() string { return s.id }

// Total is the number of questions actually granted by selection.
func (s *Session) Total() int { return len(s.questions) }

// Requested is the number of questions originally asked for.
func (s *Session) Requested() int { return s.requested }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// QuestionIDs returns the fixed play order.
func (s *Session) QuestionIDs() []string {
	ids := make([]string, len(s.questions))
	for i, q := range s.questions {
		ids[i] = q.ID
	}
	return ids
}

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// LastActive is the time of the last operation on the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// CurrentQuestion serves the question at the current position without its answer key.
// The first call for a position counts as an exposure; repeated calls do not.
func (s *Session) CurrentQuestion() (domain.PublicQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusCompleted {
		return domain.PublicQuestion{}, fmt.Errorf("%w: session is completed", domain.ErrInvalidStateTransition)
	}
	s.lastActive = s.now()

	q := s.questions[s.position]
	if s.status == domain.StatusCreated {
		s.status = domain.StatusAwaitingAnswer
		s.notifier.Shown(q.ID)
	}
	return domain.NewPublicQuestion(q, s.position+1, len(s.questions)), nil
}

// SubmitAnswer scores choice against the current question. It is accepted once per position.
func (s *Session) SubmitAnswer(choice int) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusAwaitingAnswer {
		return domain.AnswerResult{}, fmt.Errorf("%w: cannot answer while %s", domain.ErrInvalidStateTransition, s.status)
	}
	q := s.questions[s.position]
	if choice < 0 || choice >= len(q.Options) {
		return domain.AnswerResult{}, fmt.Errorf("%w: %d not in 0..%d", domain.ErrInvalidChoiceIndex, choice, len(q.Options)-1)
	}

	now := s.now()
	correct := q.IsCorrect(choice)
	s.answers = append(s.answers, domain.AnswerRecord{
		QuestionID: q.ID,
		Question:   q.Question,
		Choice:     choice,
		Correct:    correct,
		CorrectIdx: q.CorrectAnswer,
		AnsweredAt: now,
	})
	if correct {
		s.score++
	}
	s.status = domain.StatusEvaluated
	s.lastActive = now
	s.notifier.Answered(q.ID, correct)

	return domain.AnswerResult{
		Correct:        correct,
		CorrectIndex:   q.CorrectAnswer,
		CorrectAnswer:  q.Options[q.CorrectAnswer],
		Explanation:    q.Explanation,
		FunFact:        q.FunFact,
		Score:          s.score,
		IsLastQuestion: s.position == len(s.questions)-1,
	}, nil
}

// Advance moves past an evaluated question, completing the session after the last one.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusEvaluated {
		return fmt.Errorf("%w: cannot advance while %s", domain.ErrInvalidStateTransition, s.status)
	}
	s.position++
	s.lastActive = s.now()
	if s.position >= len(s.questions) {
		s.status = domain.StatusCompleted
		return nil
	}
	s.status = domain.StatusCreated
	return nil
}

// Summary reports the final score of a completed session.
func (s *Session) Summary() (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusCompleted {
		return domain.Summary{}, fmt.Errorf("%w: session is %s", domain.ErrInvalidStateTransition, s.status)
	}
	s.lastActive = s.now()

	total := len(s.questions)
	var pct float64
	if total > 0 {
		pct = domain.RoundPercent(float64(s.score) / float64(total))
	}
	return domain.Summary{
		Score:      s.score,
		Total:      total,
		Percentage: pct,
		Answers:    append([]domain.AnswerRecord(nil), s.answers...),
	}, nil
}

type nopNotifier struct{}

func (nopNotifier) Shown(string)          {}
func (nopNotifier) Answered(string, bool) {}
