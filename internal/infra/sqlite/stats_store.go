package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"trivia-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS question_stats (
    question_id   TEXT PRIMARY KEY,
    times_shown   INTEGER NOT NULL DEFAULT 0,
    times_correct INTEGER NOT NULL DEFAULT 0,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (times_correct <= times_shown)
)`

// StatsStore keeps question counters in a local SQLite file, for single-node
// deployments that want stats to survive restarts without a database server.
type StatsStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*StatsStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite allows one writer; funnel everything through a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &StatsStore{db: db}, nil
}

func (s *StatsStore) Close() error {
	return s.db.Close()
}

func (s *StatsStore) IncrementShown(ctx context.Context, questionID string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO question_stats (question_id, times_shown, times_correct) VALUES (?, 1, 0)
ON CONFLICT(question_id) DO UPDATE SET times_shown = times_shown + 1, updated_at = CURRENT_TIMESTAMP`, questionID)
	if err != nil {
		return fmt.Errorf("incr shown %s: %w", questionID, err)
	}
	return nil
}

func (s *StatsStore) IncrementCorrect(ctx context.Context, questionID string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE question_stats SET times_correct = times_correct + 1, updated_at = CURRENT_TIMESTAMP
WHERE question_id = ? AND times_correct < times_shown`, questionID)
	if err != nil {
		return fmt.Errorf("incr correct %s: %w", questionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("incr correct %s: %w", questionID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s has no unanswered exposure", domain.ErrStatsInvariant, questionID)
	}
	return nil
}

func (s *StatsStore) Get(ctx context.Context, questionID string) (domain.StatsRecord, error) {
	rec := domain.StatsRecord{QuestionID: questionID}
	err := s.db.QueryRowContext(ctx,
		`SELECT times_shown, times_correct FROM question_stats WHERE question_id = ?`, questionID).
		Scan(&rec.TimesShown, &rec.TimesCorrect)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return domain.StatsRecord{}, fmt.Errorf("get stats %s: %w", questionID, err)
	}
	return rec, nil
}

func (s *StatsStore) All(ctx context.Context) ([]domain.StatsRecord, error) {
	rows, err := s.db.QueryContext(ctx,
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
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(times_shown), 0), COALESCE(SUM(times_correct), 0) FROM question_stats`).
		Scan(&shown, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("stats totals: %w", err)
	}
	return shown, correct, nil
}
