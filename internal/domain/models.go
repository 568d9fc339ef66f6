package domain

import (
	"strings"
	"time"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is a multiple-choice trivia record, immutable once loaded.
type Question struct {
	ID            string   `json:"id"`
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Difficulty    string   `json:"difficulty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	FunFact       string   `json:"funFact,omitempty"`
}

// IsCorrect reports whether choice matches the stored answer key.
func (q Question) IsCorrect(choice int) bool {
	return choice == q.CorrectAnswer
}

// Normalized returns a copy with category and difficulty lower-cased and trimmed.
func (q Question) Normalized() Question {
	q.ID = strings.TrimSpace(q.ID)
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	q.Options = append([]string(nil), q.Options...)
	return q
}

// Filter narrows the question pool. Empty fields match everything.
type Filter struct {
	Category   string
	Difficulty string
}

// Normalized lower-cases the filter and treats "all" as no constraint.
func (f Filter) Normalized() Filter {
	norm := func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "all" {
			return ""
		}
		return v
	}
	return Filter{Category: norm(f.Category), Difficulty: norm(f.Difficulty)}
}

// PublicQuestion is what a player sees: the answer key, explanation and fun fact are withheld.
type PublicQuestion struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Difficulty  string          `json:"difficulty"`
	Question    string          `json:"question"`
	Options     []string        `json:"options"`
	Number      int             `json:"questionNumber"`
	Total       int             `json:"totalQuestions"`
	GlobalStats *QuestionReport `json:"globalStats,omitempty"`
}

// NewPublicQuestion strips the answer key from q.
func NewPublicQuestion(q Question, number, total int) PublicQuestion {
	return PublicQuestion{
		ID:          q.ID,
		Category:    q.Category,
		Subcategory: q.Subcategory,
		Difficulty:  q.Difficulty,
		Question:    q.Question,
		Options:     append([]string(nil), q.Options...),
		Number:      number,
		Total:       total,
	}
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusCreated        SessionStatus = "created"
	StatusAwaitingAnswer SessionStatus = "awaiting_answer"
	StatusEvaluated      SessionStatus = "evaluated"
	StatusCompleted      SessionStatus = "completed"
)

// AnswerRecord is one entry of a session's answer log.
type AnswerRecord struct {
	QuestionID string    `json:"questionId"`
	Question   string    `json:"question"`
	Choice     int       `json:"userAnswer"`
	Correct    bool      `json:"correct"`
	CorrectIdx int       `json:"correctAnswer"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// AnswerResult is returned to the player after a submission.
type AnswerResult struct {
	Correct        bool   `json:"correct"`
	CorrectIndex   int    `json:"correctIndex"`
	CorrectAnswer  string `json:"correctAnswer"`
	Explanation    string `json:"explanation"`
	FunFact        string `json:"funFact,omitempty"`
	Score          int    `json:"score"`
	IsLastQuestion bool   `json:"isLastQuestion"`
}

// Summary is the final result of a completed session.
type Summary struct {
	Score      int            `json:"score"`
	Total      int            `json:"totalQuestions"`
	Percentage float64        `json:"percentage"`
	Answers    []AnswerRecord `json:"answers"`
}

// StatsRecord holds the shared counters for one question.
type StatsRecord struct {
	QuestionID   string `json:"questionId"`
	TimesShown   int64  `json:"timesShown"`
	TimesCorrect int64  `json:"timesCorrect"`
}

// TimesIncorrect is the number of exposures not answered correctly.
func (r StatsRecord) TimesIncorrect() int64 {
	return r.TimesShown - r.TimesCorrect
}

// Accuracy is TimesCorrect / TimesShown, 0 when the question was never shown.
func (r StatsRecord) Accuracy() float64 {
	if r.TimesShown == 0 {
		return 0
	}
	return float64(r.TimesCorrect) / float64(r.TimesShown)
}

// QuestionReport is the presentation form of a StatsRecord.
type QuestionReport struct {
	TimesShown   int64   `json:"timesShown"`
	TimesCorrect int64   `json:"timesCorrect"`
	Accuracy     float64 `json:"accuracy"`
}

// Report converts the record for presentation, accuracy as a percentage with one decimal.
func (r StatsRecord) Report() QuestionReport {
	return QuestionReport{
		TimesShown:   r.TimesShown,
		TimesCorrect: r.TimesCorrect,
		Accuracy:     RoundPercent(r.Accuracy()),
	}
}

// RoundPercent turns a ratio into a percentage rounded to one decimal.
func RoundPercent(ratio float64) float64 {
	return float64(int64(ratio*1000+0.5)) / 10
}
