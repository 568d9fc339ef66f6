package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trivia-service/internal/domain"
)

const maxCategoryLen = 50

// Config holds connection details for an OpenAI-compatible chat completions API.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client generates trivia questions through a chat completions endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	url        string
	now        func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		logger:     logger.With().Str("component", "ai_generator").Logger(),
		url:        strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate asks the model for one medium-difficulty question in category.
func (c *Client) Generate(ctx context.Context, category string) (domain.Question, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.Question{}, fmt.Errorf("%w: category is required", domain.ErrValidation)
	}
	if len(category) > maxCategoryLen {
		return domain.Question{}, fmt.Errorf("%w: category longer than %d characters", domain.ErrValidation, maxCategoryLen)
	}
	if c.config.APIKey == "" {
		return domain.Question{}, domain.ErrGeneratorUnavailable
	}

	content, err := c.complete(ctx, category)
	if err != nil {
		return domain.Question{}, err
	}

	var raw generatedQuestion
	if err := json.Unmarshal([]byte(stripFence(content)), &raw); err != nil {
		return domain.Question{}, fmt.Errorf("invalid JSON from generator: %w", err)
	}
	if err := raw.validate(); err != nil {
		return domain.Question{}, fmt.Errorf("invalid generated question: %w", err)
	}

	q := c.format(raw, category)
	c.logger.Info().Str("question_id", q.ID).Str("category", q.Category).Msg("question generated")
	return q, nil
}

func (c *Client) complete(ctx context.Context, category string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a trivia question generator. Always respond with valid JSON only."},
			{Role: "user", Content: prompt(category)},
		},
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("generator rejected request")
		return "", fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("decode generator payload: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("generator returned no choices")
	}
	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}

// format turns a validated reply into a stored record. The model is told to put
// the right answer first, so options are shuffled here.
func (c *Client) format(raw generatedQuestion, category string) domain.Question {
	c.mu.Lock()
	suffix := 1000 + c.rnd.Intn(9000)
	perm := c.rnd.Perm(len(raw.Options))
	c.mu.Unlock()

	options := make([]string, len(raw.Options))
	correct := 0
	for to, from := range perm {
		options[to] = strings.TrimSpace(raw.Options[from])
		if from == *raw.CorrectAnswer {
			correct = to
		}
	}
	return domain.Question{
		ID:            fmt.Sprintf("generated_%d_%d", c.now().Unix(), suffix),
		Category:      strings.ToLower(category),
		Subcategory:   category,
		Difficulty:    domain.DifficultyMedium,
		Question:      strings.TrimSpace(raw.Question),
		Options:       options,
		CorrectAnswer: correct,
		Explanation:   strings.TrimSpace(raw.Explanation),
		FunFact:       strings.TrimSpace(raw.FunFact),
	}
}

func prompt(category string) string {
	return fmt.Sprintf(`Generate a trivia question for the category: %[1]s

Return ONLY valid JSON in this exact format:
{
    "question": "Your question here?",
    "options": ["Correct answer", "Wrong answer 1", "Wrong answer 2", "Wrong answer 3"],
    "correctAnswer": 0,
    "explanation": "Why this answer is correct and interesting context",
    "funFact": "An interesting related fact"
}

Requirements:
- Question should be factual and verifiable
- Difficulty should be medium level (not too easy, not too obscure)
- Options should be plausible but clearly distinct
- Place the correct answer at index 0
- Explanation should be educational and engaging
- Fun fact should be genuinely interesting
- Category: %[1]s`, category)
}

// stripFence removes a ```json ... ``` wrapper some models add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type generatedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	FunFact       string   `json:"funFact"`
}

func (g generatedQuestion) validate() error {
	if strings.TrimSpace(g.Question) == "" {
		return fmt.Errorf("question must be a non-empty string")
	}
	if len(g.Options) != domain.OptionCount {
		return fmt.Errorf("options must be a list of exactly %d items", domain.OptionCount)
	}
	if g.CorrectAnswer == nil || *g.CorrectAnswer < 0 || *g.CorrectAnswer >= domain.OptionCount {
		return fmt.Errorf("correctAnswer must be an integer between 0 and %d", domain.OptionCount-1)
	}
	if strings.TrimSpace(g.Explanation) == "" {
		return fmt.Errorf("explanation must be a non-empty string")
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
