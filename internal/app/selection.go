package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// QuestionQuerier returns the questions matching a filter in repository order.
type QuestionQuerier interface {
	Query(filter domain.Filter) []domain.Question
}

// Selector draws the play order for new sessions.
type Selector struct {
	questions QuestionQuerier

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector returns a selector; a nil rnd gets a time-seeded source.
func NewSelector(questions QuestionQuerier, rnd *rand.Rand) *Selector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{questions: questions, rnd: rnd}
}

// Select returns min(count, pool size) distinct questions in random order.
// A pool smaller than count shortens the game instead of failing; callers
// must use len(result) as the session length.
func (s *Selector) Select(filter domain.Filter, count int) ([]domain.Question, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: question count must be positive, got %d", domain.ErrValidation, count)
	}
	pool := s.questions.Query(filter.Normalized())
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}

	n := count
	if n > len(pool) {
		n = len(pool)
	}

	// partial Fisher-Yates over a copy: the first n slots are a uniform sample without replacement
	picked := make([]domain.Question, len(pool))
	copy(picked, pool)
	s.mu.Lock()
	for i := 0; i < n; i++ {
		j := i + s.rnd.Intn(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	s.mu.Unlock()

	return picked[:n], nil
}
