package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"trivia-service/internal/domain"
)

const statsIDsKey = "trivia:stats:ids"

// Both counters of a question live in one hash, and every change runs as a
// single script so concurrent instances never interleave inside an update.
var (
	incrShownScript = redis.NewScript(`
redis.call('SADD', KEYS[2], ARGV[1])
return redis.call('HINCRBY', KEYS[1], 'shown', 1)
`)
	incrCorrectScript = redis.NewScript(`
local shown = tonumber(redis.call('HGET', KEYS[1], 'shown') or '0')
local correct = tonumber(redis.call('HGET', KEYS[1], 'correct') or '0')
if correct >= shown then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'correct', 1)
`)
)

// StatsStore persists question counters in Redis hashes:
//
//	HSET trivia:stats:{questionID} shown {n} correct {m}
//	SADD trivia:stats:ids {questionID}
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

func (s *StatsStore) IncrementShown(ctx context.Context, questionID string) error {
	if err := incrShownScript.Run(ctx, s.client, []string{s.key(questionID), statsIDsKey}, questionID).Err(); err != nil {
		return fmt.Errorf("redis incr shown: %w", err)
	}
	return nil
}

func (s *StatsStore) IncrementCorrect(ctx context.Context, questionID string) error {
	n, err := incrCorrectScript.Run(ctx, s.client, []string{s.key(questionID)}).Int64()
	if err != nil {
		return fmt.Errorf("redis incr correct: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("%w: %s has no unanswered exposure", domain.ErrStatsInvariant, questionID)
	}
	return nil
}

func (s *StatsStore) Get(ctx context.Context, questionID string) (domain.StatsRecord, error) {
	vals, err := s.client.HMGet(ctx, s.key(questionID), "shown", "correct").Result()
	if err != nil {
		return domain.StatsRecord{}, fmt.Errorf("redis get stats: %w", err)
	}
	return domain.StatsRecord{
		QuestionID:   questionID,
		TimesShown:   toInt64(vals[0]),
		TimesCorrect: toInt64(vals[1]),
	}, nil
}

func (s *StatsStore) All(ctx context.Context) ([]domain.StatsRecord, error) {
	ids, err := s.client.SMembers(ctx, statsIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list stats: %w", err)
	}
	sort.Strings(ids)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.key(id), "shown", "correct")
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis read stats: %w", err)
		}
	}

	out := make([]domain.StatsRecord, len(ids))
	for i, id := range ids {
		vals := cmds[i].Val()
		out[i] = domain.StatsRecord{QuestionID: id, TimesShown: toInt64(vals[0]), TimesCorrect: toInt64(vals[1])}
	}
	return out, nil
}

func (s *StatsStore) Totals(ctx context.Context) (int64, int64, error) {
	records, err := s.All(ctx)
	if err != nil {
		return 0, 0, err
	}
	var shown, correct int64
	for _, r := range records {
		shown += r.TimesShown
		correct += r.TimesCorrect
	}
	return shown, correct, nil
}

func (s *StatsStore) key(questionID string) string {
	return "trivia:stats:" + questionID
}

func toInt64(v interface{}) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
