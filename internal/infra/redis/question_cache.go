package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

const questionsKey = "trivia:questions"

// QuestionCache fronts a slower QuestionLoader (e.g. Postgres) with a Redis copy
// of the question set. Records are stored as one JSON string per list entry:
//
//	RPUSH trivia:questions {json}...
type QuestionCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	logger zerolog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

var _ memory.QuestionLoader = (*QuestionCache)(nil)

func NewQuestionCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration, logger zerolog.Logger) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger.With().Str("component", "question_cache").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// re-check in case another caller filled it
		if qs, ok := c.cached(ctx); ok {
			return loaded{questions: qs}, nil
		}
		qs, err := c.loader.LoadQuestions(ctx)
		var undecodable domain.RecordErrors
		if err != nil && !errors.As(err, &undecodable) {
			return nil, err
		}
		if err := c.fill(ctx, qs); err != nil {
			c.logger.Warn().Err(err).Msg("fill question cache")
		}
		return loaded{questions: qs, undecodable: undecodable}, nil
	})
	if err != nil {
		return nil, err
	}
	v := result.(loaded)
	if len(v.undecodable) > 0 {
		return v.questions, v.undecodable
	}
	return v.questions, nil
}

type loaded struct {
	questions   []domain.Question
	undecodable domain.RecordErrors
}

// Invalidate drops the cached copy so the next load goes to the loader.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, questionsKey).Err()
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.LRange(ctx, questionsKey, 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	qs := make([]domain.Question, 0, len(raw))
	for _, item := range raw {
		var q domain.Question
		if err := json.Unmarshal([]byte(item), &q); err != nil {
			c.logger.Warn().Err(err).Msg("corrupt cache entry; reloading")
			return nil, false
		}
		qs = append(qs, q)
	}
	return qs, true
}

func (c *QuestionCache) fill(ctx context.Context, qs []domain.Question) error {
	if len(qs) == 0 {
		return nil
	}
	values := make([]interface{}, len(qs))
	for i, q := range qs {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		values[i] = data
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, questionsKey)
	pipe.RPush(ctx, questionsKey, values...)
	if ttl := c.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, questionsKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
