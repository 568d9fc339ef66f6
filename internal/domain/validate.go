package domain

import (
	"fmt"
	"strings"
)

// ValidateQuestion checks a single record against the question invariants.
// Uniqueness of ids is the repository's concern.
func ValidateQuestion(q Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(q.Category) == "" {
		return fmt.Errorf("category is required")
	}
	switch strings.ToLower(strings.TrimSpace(q.Difficulty)) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("difficulty %q must be one of easy, medium, hard", q.Difficulty)
	}
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question text is required")
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("options must have exactly %d entries, got %d", OptionCount, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for i, opt := range q.Options {
		key := strings.TrimSpace(opt)
		if key == "" {
			return fmt.Errorf("option %d is empty", i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("option %q is duplicated", opt)
		}
		seen[key] = struct{}{}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("correctAnswer %d is not a valid option index", q.CorrectAnswer)
	}
	return nil
}
