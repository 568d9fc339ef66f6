package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-service/internal/domain"
)

// QuestionStore keeps question records as JSONB rows, ordered by insertion.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

// LoadQuestions returns every stored record in insertion order. Rows that do not
// decode come back as a domain.RecordErrors; validation is left to the repository.
func (s *QuestionStore) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM questions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	var bad domain.RecordErrors
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			bad = append(bad, fmt.Errorf("%w: row %d: %v", domain.ErrSchema, len(out)+len(bad), err))
			continue
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return out, bad
	}
	return out, nil
}

// Append inserts a record; an existing id is left untouched.
func (s *QuestionStore) Append(ctx context.Context, question domain.Question) error {
	data, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO questions (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		question.ID, data)
	if err != nil {
		return fmt.Errorf("insert question %s: %w", question.ID, err)
	}
	return nil
}
