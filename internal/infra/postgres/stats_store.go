package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-service/internal/domain"
)

// StatsStore keeps question counters in the question_stats table. Each
// increment is one statement, so concurrent writers serialize on the row.
type StatsStore struct {
	pool *pgxpool.Pool
}

func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

func (s *StatsStore) IncrementShown(ctx context.Context, questionID string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO question_stats (question_id, times_shown, times_correct)
VALUES ($1, 1, 0)
ON CONFLICT (question_id) DO UPDATE
SET times_shown = question_stats.times_shown + 1, updated_at = now()`, questionID)
	if err != nil {
		return fmt.Errorf("incr shown %s: %w", questionID, err)
	}
	return nil
}

func (s *StatsStore) IncrementCorrect(ctx context.Context, questionID string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE question_stats
SET times_correct = times_correct + 1, updated_at = now()
WHERE question_id = $1 AND times_correct < times_shown`, questionID)
	if err != nil {
		return fmt.Errorf("incr correct %s: %w", questionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s has no unanswered exposure", domain.ErrStatsInvariant, questionID)
	}
	return nil
}

func (s *StatsStore) Get(ctx context.Context, questionID string) (domain.StatsRecord, error) {
	rec := domain.StatsRecord{QuestionID: questionID}
	err := s.pool.QueryRow(ctx,
		`SELECT times_shown, times_correct FROM question_stats WHERE question_id = $1`, questionID).
		Scan(&rec.TimesShown, &rec.TimesCorrect)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return domain.StatsRecord{}, fmt.Errorf("get stats %s: %w", questionID, err)
	}
	return rec, nil
}

func (s *StatsStore) All(ctx context.Context) ([]domain.StatsRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT question_id, times_shown, times_correct FROM question_stats ORDER BY question_id`)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	var out []domain.StatsRecord
	for rows.Next() {
		var rec domain.StatsRecord
		if err := rows.Scan(&rec.QuestionID, &rec.TimesShown, &rec.TimesCorrect); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *StatsStore) Totals(ctx context.Context) (int64, int64, error) {
	var shown, correct int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(times_shown), 0)::bigint, COALESCE(SUM(times_correct), 0)::bigint FROM question_stats`).
		Scan(&shown, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("stats totals: %w", err)
	}
	return shown, correct, nil
}
