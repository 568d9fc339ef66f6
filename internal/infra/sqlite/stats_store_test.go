package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-service/internal/domain"
)

func openTestStore(t *testing.T) (*StatsStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStatsStoreCounts(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	require.NoError(t, store.IncrementShown(ctx, "b"))
	require.NoError(t, store.IncrementShown(ctx, "b"))
	require.NoError(t, store.IncrementCorrect(ctx, "b"))
	require.NoError(t, store.IncrementShown(ctx, "a"))

	rec, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.StatsRecord{QuestionID: "b", TimesShown: 2, TimesCorrect: 1}, rec)

	unseen, err := store.Get(ctx, "zzz")
	require.NoError(t, err)
	assert.Zero(t, unseen.TimesShown)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].QuestionID)

	shown, correct, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), shown)
	assert.Equal(t, int64(1), correct)
}

func TestStatsStoreRejectsCorrectBeyondShown(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	err := store.IncrementCorrect(ctx, "q")
	assert.True(t, errors.Is(err, domain.ErrStatsInvariant), "got %v", err)

	require.NoError(t, store.IncrementShown(ctx, "q"))
	require.NoError(t, store.IncrementCorrect(ctx, "q"))
	err = store.IncrementCorrect(ctx, "q")
	assert.True(t, errors.Is(err, domain.ErrStatsInvariant), "got %v", err)
}

func TestStatsStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	const workers = 24
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementShown(ctx, "q"))
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), rec.TimesShown)
}

func TestStatsStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)
	require.NoError(t, store.IncrementShown(ctx, "q"))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	rec, err := reopened.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.TimesShown)
}
