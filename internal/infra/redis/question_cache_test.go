package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

type failingLoader struct{}

func (failingLoader) LoadQuestions(context.Context) ([]domain.Question, error) {
	return nil, errors.New("database down")
}

func TestQuestionCacheFillsRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(memory.DefaultQuestions())}
	cache := NewQuestionCache(client, loader, time.Minute, zerolog.Nop())

	first, err := cache.LoadQuestions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if ttl := mr.TTL(questionsKey); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	second, err := cache.LoadQuestions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(second) != len(first) || second[0].ID != first[0].ID || second[0].Options[2] != first[0].Options[2] {
		t.Fatalf("cached questions differ: %+v vs %+v", second, first)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.LoadQuestions(ctx)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestQuestionCacheReloadsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(memory.DefaultQuestions())}
	cache := NewQuestionCache(client, loader, time.Minute, zerolog.Nop())

	_, _ = cache.LoadQuestions(ctx)
	mr.FastForward(2 * time.Minute)
	_, _ = cache.LoadQuestions(ctx)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

func TestQuestionCachePropagatesLoaderError(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewQuestionCache(client, failingLoader{}, time.Minute, zerolog.Nop())
	if _, err := cache.LoadQuestions(context.Background()); err == nil {
		t.Fatalf("expected loader error")
	}
}

type partialLoader struct {
	records []domain.Question
}

func (l partialLoader) LoadQuestions(context.Context) ([]domain.Question, error) {
	return l.records, domain.RecordErrors{errors.Join(domain.ErrSchema, errors.New("row 1: wrong type"))}
}

func TestQuestionCachePassesThroughUndecodableRecords(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	cache := NewQuestionCache(client, partialLoader{records: memory.DefaultQuestions()[:2]}, time.Minute, zerolog.Nop())

	qs, err := cache.LoadQuestions(ctx)
	var undecodable domain.RecordErrors
	if !errors.As(err, &undecodable) || len(undecodable) != 1 {
		t.Fatalf("expected one undecodable record, got %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected decoded records returned, got %d", len(qs))
	}
	if n := client.LLen(ctx, questionsKey).Val(); n != 2 {
		t.Fatalf("expected decoded records cached, got %d", n)
	}
}
