package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-service/internal/domain"
)

// StatsStore keeps question counters in process memory. Both counters of a
// question are updated under one lock so the pair is never observed torn.
type StatsStore struct {
	mu      sync.RWMutex
	records map[string]*domain.StatsRecord
}

func NewStatsStore() *StatsStore {
	return &StatsStore{records: make(map[string]*domain.StatsRecord)}
}

func (s *StatsStore) IncrementShown(_ context.Context, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[questionID]
	if !ok {
		rec = &domain.StatsRecord{QuestionID: questionID}
		s.records[questionID] = rec
	}
	rec.TimesShown++
	return nil
}

func (s *StatsStore) IncrementCorrect(_ context.Context, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[questionID]
	if !ok || rec.TimesCorrect >= rec.TimesShown {
		return domain.ErrStatsInvariant
	}
	rec.TimesCorrect++
	return nil
}

func (s *StatsStore) Get(_ context.Context, questionID string) (domain.StatsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[questionID]; ok {
		return *rec, nil
	}
	return domain.StatsRecord{QuestionID: questionID}, nil
}

func (s *StatsStore) All(_ context.Context) ([]domain.StatsRecord, error) {
	s.mu.RLock()
	out := make([]domain.StatsRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *StatsStore) Totals(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var shown, correct int64
	for _, rec := range s.records {
		shown += rec.TimesShown
		correct += rec.TimesCorrect
	}
	return shown, correct, nil
}
