package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"trivia-service/internal/domain"
	"trivia-service/internal/metrics"
)

// StatsStore persists per-question counters. Every increment must be a single
// atomic step in the backing store, and IncrementCorrect must refuse (with
// domain.ErrStatsInvariant) to take times_correct past times_shown.
type StatsStore interface {
	IncrementShown(ctx context.Context, questionID string) error
	IncrementCorrect(ctx context.Context, questionID string) error
	Get(ctx context.Context, questionID string) (domain.StatsRecord, error)
	All(ctx context.Context) ([]domain.StatsRecord, error)
	Totals(ctx context.Context) (shown, correct int64, err error)
}

// StatsAggregator is the shared statistics surface used by every session.
type StatsAggregator struct {
	store  StatsStore
	logger zerolog.Logger
}

func NewStatsAggregator(store StatsStore, logger zerolog.Logger) *StatsAggregator {
	return &StatsAggregator{store: store, logger: logger.With().Str("component", "stats").Logger()}
}

// RecordShown counts one exposure of a question.
func (a *StatsAggregator) RecordShown(ctx context.Context, questionID string) error {
	if err := a.store.IncrementShown(ctx, questionID); err != nil {
		return fmt.Errorf("record shown %s: %w", questionID, err)
	}
	metrics.QuestionsShown.Inc()
	return nil
}

// RecordAnswer counts one answer. Incorrect answers only move the derived incorrect count.
func (a *StatsAggregator) RecordAnswer(ctx context.Context, questionID string, correct bool) error {
	if correct {
		if err := a.store.IncrementCorrect(ctx, questionID); err != nil {
			return fmt.Errorf("record answer %s: %w", questionID, err)
		}
	}
	metrics.ObserveAnswer(correct)
	return nil
}

// Stats returns the counters for a question, zeroed if it was never shown.
func (a *StatsAggregator) Stats(ctx context.Context, questionID string) (domain.StatsRecord, error) {
	rec, err := a.store.Get(ctx, questionID)
	if err != nil {
		return domain.StatsRecord{}, fmt.Errorf("get stats %s: %w", questionID, err)
	}
	rec.QuestionID = questionID
	return rec, nil
}

// All returns every record the store holds.
func (a *StatsAggregator) All(ctx context.Context) ([]domain.StatsRecord, error) {
	return a.store.All(ctx)
}

// GlobalAccuracy is the sum of correct answers over the sum of exposures, 0 when nothing was shown.
func (a *StatsAggregator) GlobalAccuracy(ctx context.Context) (float64, error) {
	shown, correct, err := a.store.Totals(ctx)
	if err != nil {
		return 0, fmt.Errorf("stats totals: %w", err)
	}
	if shown == 0 {
		return 0, nil
	}
	return float64(correct) / float64(shown), nil
}

type statsEventKind int

const (
	eventShown statsEventKind = iota
	eventAnswered
	eventFlush
)

type statsEvent struct {
	kind       statsEventKind
	questionID string
	correct    bool
	done       chan struct{}
}

// StatsDispatcher delivers session events to the aggregator from a single
// goroutine. Events are applied in the order they were queued, so an exposure
// always lands before the answer to it.
type StatsDispatcher struct {
	agg    *StatsAggregator
	logger zerolog.Logger
	events chan statsEvent

	mu       sync.RWMutex
	closed   bool
	finished chan struct{}
	start    sync.Once
}

var _ StatsNotifier = (*StatsDispatcher)(nil)

func NewStatsDispatcher(agg *StatsAggregator, queueSize int, logger zerolog.Logger) *StatsDispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &StatsDispatcher{
		agg:      agg,
		logger:   logger.With().Str("component", "stats_dispatcher").Logger(),
		events:   make(chan statsEvent, queueSize),
		finished: make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling it more than once is a no-op.
func (d *StatsDispatcher) Start() {
	d.start.Do(func() {
		go d.run()
	})
}

func (d *StatsDispatcher) run() {
	defer close(d.finished)
	for ev := range d.events {
		d.apply(ev)
	}
}

func (d *StatsDispatcher) apply(ev statsEvent) {
	// events outlive the request that produced them
	ctx := context.Background()
	var err error
	switch ev.kind {
	case eventShown:
		err = d.agg.RecordShown(ctx, ev.questionID)
	case eventAnswered:
		err = d.agg.RecordAnswer(ctx, ev.questionID, ev.correct)
	case eventFlush:
		close(ev.done)
		return
	}
	if err != nil {
		metrics.StatsEventsDropped.Inc()
		d.logger.Error().Err(err).Str("question_id", ev.questionID).Msg("stats event failed")
	}
}

// Shown queues an exposure event.
func (d *StatsDispatcher) Shown(questionID string) {
	d.enqueue(statsEvent{kind: eventShown, questionID: questionID})
}

// Answered queues an answer event.
func (d *StatsDispatcher) Answered(questionID string, correct bool) {
	d.enqueue(statsEvent{kind: eventAnswered, questionID: questionID, correct: correct})
}

// enqueue blocks while the queue is full. After Close events are applied inline.
func (d *StatsDispatcher) enqueue(ev statsEvent) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.apply(ev)
		return
	}
	d.events <- ev
	d.mu.RUnlock()
}

// Flush waits until every event queued before the call has been applied.
func (d *StatsDispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	d.enqueue(statsEvent{kind: eventFlush, done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting queued events, drains the queue and waits for the consumer.
func (d *StatsDispatcher) Close() {
	d.Start()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.finished
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	<-d.finished
}
