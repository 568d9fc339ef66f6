package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"trivia-service/internal/domain"
)

// QuestionLoader fetches raw question records from a backing source (file, database, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// LoadReport summarizes a bulk load.
type LoadReport struct {
	Accepted int
	Rejected []error
}

type categoryDifficulty struct {
	category   string
	difficulty string
}

// QuestionRepository holds validated questions with lookups by id, category and
// (category, difficulty). Query results keep load order.
type QuestionRepository struct {
	logger zerolog.Logger

	mu         sync.RWMutex
	ordered    []domain.Question
	byID       map[string]int
	byCategory map[string][]int
	byCatDiff  map[categoryDifficulty][]int
}

func NewQuestionRepository(logger zerolog.Logger) *QuestionRepository {
	return &QuestionRepository{
		logger:     logger.With().Str("component", "questions").Logger(),
		byID:       make(map[string]int),
		byCategory: make(map[string][]int),
		byCatDiff:  make(map[categoryDifficulty][]int),
	}
}

// LoadQuestionRepository builds a repository from loader. Invalid or undecodable
// records are skipped and reported; only a failing loader is an error.
func LoadQuestionRepository(ctx context.Context, loader QuestionLoader, logger zerolog.Logger) (*QuestionRepository, LoadReport, error) {
	records, err := loader.LoadQuestions(ctx)
	var undecodable domain.RecordErrors
	if err != nil && !errors.As(err, &undecodable) {
		return nil, LoadReport{}, fmt.Errorf("load questions: %w", err)
	}
	repo := NewQuestionRepository(logger)
	for _, err := range undecodable {
		repo.logger.Warn().Err(err).Msg("question rejected")
	}
	report := repo.Load(records)
	report.Rejected = append([]error(undecodable), report.Rejected...)
	return repo, report, nil
}

// Load validates and indexes records in order, skipping the ones that fail.
func (r *QuestionRepository) Load(records []domain.Question) LoadReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report LoadReport
	for i, rec := range records {
		if err := r.insertLocked(rec); err != nil {
			err = fmt.Errorf("%w: record %d (id %q): %v", domain.ErrSchema, i, rec.ID, err)
			r.logger.Warn().Err(err).Msg("question rejected")
			report.Rejected = append(report.Rejected, err)
			continue
		}
		report.Accepted++
	}
	r.logger.Info().Int("accepted", report.Accepted).Int("rejected", len(report.Rejected)).Msg("questions loaded")
	return report
}

// Add appends one record through the same validation as Load.
func (r *QuestionRepository) Add(question domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertLocked(question); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func (r *QuestionRepository) insertLocked(rec domain.Question) error {
	if err := domain.ValidateQuestion(rec); err != nil {
		return err
	}
	q := rec.Normalized()
	if _, dup := r.byID[q.ID]; dup {
		return fmt.Errorf("duplicate id %q", q.ID)
	}

	idx := len(r.ordered)
	r.ordered = append(r.ordered, q)
	r.byID[q.ID] = idx
	r.byCategory[q.Category] = append(r.byCategory[q.Category], idx)
	key := categoryDifficulty{category: q.Category, difficulty: q.Difficulty}
	r.byCatDiff[key] = append(r.byCatDiff[key], idx)
	return nil
}

// Query returns every question matching filter in insertion order.
func (r *QuestionRepository) Query(filter domain.Filter) []domain.Question {
	f := filter.Normalized()

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case f.Category != "" && f.Difficulty != "":
		return r.collectLocked(r.byCatDiff[categoryDifficulty{category: f.Category, difficulty: f.Difficulty}])
	case f.Category != "":
		return r.collectLocked(r.byCategory[f.Category])
	case f.Difficulty != "":
		out := make([]domain.Question, 0)
		for _, q := range r.ordered {
			if q.Difficulty == f.Difficulty {
				out = append(out, q)
			}
		}
		return out
	default:
		return append([]domain.Question(nil), r.ordered...)
	}
}

func (r *QuestionRepository) collectLocked(idxs []int) []domain.Question {
	out := make([]domain.Question, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, r.ordered[i])
	}
	return out
}

func (r *QuestionRepository) GetByID(id string) (domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[id]
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return r.ordered[idx], nil
}

// Categories lists the distinct categories, sorted.
func (r *QuestionRepository) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byCategory))
	for c := range r.byCategory {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Difficulties lists the distinct difficulties in use, sorted.
func (r *QuestionRepository) Difficulties() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range r.byCatDiff {
		seen[k.difficulty] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (r *QuestionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// StaticQuestionLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return append([]domain.Question(nil), l.questions...), nil
}

// DefaultQuestions is the built-in set used when no question source is configured.
func DefaultQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "default_001",
			Category:      "general",
			Subcategory:   "Geography",
			Difficulty:    domain.DifficultyEasy,
			Question:      "What is the capital of France?",
			Options:       []string{"London", "Berlin", "Paris", "Madrid"},
			CorrectAnswer: 2,
			Explanation:   "Paris has been the capital of France since 987 AD.",
		},
		{
			ID:            "default_002",
			Category:      "stem",
			Subcategory:   "Chemistry",
			Difficulty:    domain.DifficultyEasy,
			Question:      "What is the chemical symbol for gold?",
			Options:       []string{"Au", "Ag", "Gd", "Go"},
			CorrectAnswer: 0,
			Explanation:   "Au comes from the Latin word for gold, aurum.",
			FunFact:       "Nearly all of the gold on Earth arrived via meteorite impacts.",
		},
		{
			ID:            "default_003",
			Category:      "history",
			Subcategory:   "Ancient World",
			Difficulty:    domain.DifficultyMedium,
			Question:      "Which civilization built Machu Picchu?",
			Options:       []string{"Aztec", "Maya", "Olmec", "Inca"},
			CorrectAnswer: 3,
			Explanation:   "Machu Picchu was built by the Inca in the 15th century.",
		},
	}
}
