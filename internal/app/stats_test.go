package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

func TestAggregatorRecordsAndReports(t *testing.T) {
	ctx := context.Background()
	agg := app.NewStatsAggregator(memory.NewStatsStore(), zerolog.Nop())

	for i := 0; i < 4; i++ {
		require.NoError(t, agg.RecordShown(ctx, "q1"))
	}
	require.NoError(t, agg.RecordAnswer(ctx, "q1", true))
	require.NoError(t, agg.RecordAnswer(ctx, "q1", false))
	require.NoError(t, agg.RecordAnswer(ctx, "q1", true))
	require.NoError(t, agg.RecordShown(ctx, "q2"))

	rec, err := agg.Stats(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.TimesShown)
	assert.Equal(t, int64(2), rec.TimesCorrect)
	assert.Equal(t, int64(2), rec.TimesIncorrect())
	assert.Equal(t, 50.0, rec.Report().Accuracy)

	acc, err := agg.GlobalAccuracy(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, acc, 1e-9)

	all, err := agg.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAggregatorUnseenQuestion(t *testing.T) {
	ctx := context.Background()
	agg := app.NewStatsAggregator(memory.NewStatsStore(), zerolog.Nop())

	rec, err := agg.Stats(ctx, "never")
	require.NoError(t, err)
	assert.Equal(t, "never", rec.QuestionID)
	assert.Zero(t, rec.TimesShown)
	assert.Zero(t, rec.Accuracy())

	acc, err := agg.GlobalAccuracy(ctx)
	require.NoError(t, err)
	assert.Zero(t, acc)
}

func TestAggregatorRejectsCorrectWithoutExposure(t *testing.T) {
	ctx := context.Background()
	agg := app.NewStatsAggregator(memory.NewStatsStore(), zerolog.Nop())

	err := agg.RecordAnswer(ctx, "q1", true)
	assert.True(t, errors.Is(err, domain.ErrStatsInvariant), "got %v", err)
	// incorrect answers never touch the counters
	assert.NoError(t, agg.RecordAnswer(ctx, "q1", false))
}

func TestDispatcherPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsStore()
	d := app.NewStatsDispatcher(app.NewStatsAggregator(store, zerolog.Nop()), 1, zerolog.Nop())
	d.Start()
	defer d.Close()

	// a queue of one forces the producers to interleave with the consumer
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Shown("q")
			d.Answered("q", true)
		}()
	}
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(flushCtx))

	rec, err := store.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.TimesShown)
	assert.Equal(t, int64(20), rec.TimesCorrect)
}

func TestDispatcherCloseDrainsAndFallsBackInline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsStore()
	d := app.NewStatsDispatcher(app.NewStatsAggregator(store, zerolog.Nop()), 0, zerolog.Nop())
	d.Start()

	d.Shown("q")
	d.Close()
	rec, _ := store.Get(ctx, "q")
	assert.Equal(t, int64(1), rec.TimesShown, "close must drain queued events")

	d.Answered("q", true)
	rec, _ = store.Get(ctx, "q")
	assert.Equal(t, int64(1), rec.TimesCorrect, "events after close are applied inline")

	d.Close()
	require.NoError(t, d.Flush(ctx))
}

func TestDispatcherFlushHonoursContext(t *testing.T) {
	d := app.NewStatsDispatcher(app.NewStatsAggregator(memory.NewStatsStore(), zerolog.Nop()), 4, zerolog.Nop())
	// never started: the marker is queued but never consumed
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Flush(ctx), context.DeadlineExceeded)
	d.Close()
}
