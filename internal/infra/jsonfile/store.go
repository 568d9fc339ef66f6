package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"trivia-service/internal/domain"
)

// Store reads and appends question records kept as a JSON array on disk.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// LoadQuestions reads every record in the file. Records that do not decode are
// reported in a domain.RecordErrors next to the ones that do; validation is left
// to the repository.
func (s *Store) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Append adds question to the end of the file. The previous contents are copied
// to <file>.backup first, and the new file is swapped in with a rename.
func (s *Store) Append(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		existing = nil
	case err != nil:
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	// records are kept raw so undecodable ones survive the rewrite
	var records []json.RawMessage
	if len(bytes.TrimSpace(existing)) > 0 {
		if err := json.Unmarshal(existing, &records); err != nil {
			return fmt.Errorf("decode %s: %w", s.path, err)
		}
		if err := os.WriteFile(s.path+".backup", existing, 0o644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}
	encoded, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}
	records = append(records, encoded)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) read() ([]domain.Question, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array of questions: %v", domain.ErrSchema, s.path, err)
	}
	questions := make([]domain.Question, 0, len(raw))
	var bad domain.RecordErrors
	for i, item := range raw {
		var q domain.Question
		if err := json.Unmarshal(item, &q); err != nil {
			bad = append(bad, fmt.Errorf("%w: record %d: %v", domain.ErrSchema, i, err))
			continue
		}
		questions = append(questions, q)
	}
	if len(bad) > 0 {
		return questions, bad
	}
	return questions, nil
}
