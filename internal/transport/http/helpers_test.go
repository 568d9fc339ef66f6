package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	service    *app.GameService
	dispatcher *app.StatsDispatcher
}

func newTestServer(t *testing.T, opts app.ServiceOptions) *testServer {
	t.Helper()
	repo := memory.NewQuestionRepository(zerolog.Nop())
	repo.Load(sampleQuestions())

	agg := app.NewStatsAggregator(memory.NewStatsStore(), zerolog.Nop())
	dispatcher := app.NewStatsDispatcher(agg, 0, zerolog.Nop())
	dispatcher.Start()
	t.Cleanup(dispatcher.Close)

	opts.Logger = zerolog.Nop()
	service := app.NewGameService(repo, nil, memory.NewSessionStore(), agg, dispatcher, opts)
	router := NewRouter(NewHandler(service, zerolog.Nop()), NewWSHandler(service, zerolog.Nop()), zerolog.Nop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, service: service, dispatcher: dispatcher}
}

func (s *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.dispatcher.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// sampleQuestions has two math questions whose answer is always option 1.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: "q1", Category: "math", Subcategory: "Arithmetic", Difficulty: "easy",
			Question: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectAnswer: 1,
			Explanation: "Two plus two is four.",
		},
		{
			ID: "q2", Category: "math", Subcategory: "Arithmetic", Difficulty: "easy",
			Question: "What is 3 * 3?", Options: []string{"6", "9", "33", "12"}, CorrectAnswer: 1,
			Explanation: "Three times three is nine.",
		},
	}
}
