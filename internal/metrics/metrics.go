package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "sessions_created_total",
		Help:      "Sessions created.",
	})
	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "sessions_expired_total",
		Help:      "Sessions evicted after the idle timeout.",
	})
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trivia",
		Name:      "sessions_active",
		Help:      "Sessions currently held by the session store.",
	})
	QuestionsShown = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "questions_shown_total",
		Help:      "Question exposures.",
	})
	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "answers_submitted_total",
		Help:      "Scored answers by correctness.",
	}, []string{"correct"})
	StatsEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "stats_events_failed_total",
		Help:      "Statistics events the store rejected.",
	})
	GeneratorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "generator_calls_total",
		Help:      "Question generation attempts by outcome.",
	}, []string{"outcome"})
)

// ObserveAnswer counts one scored answer.
func ObserveAnswer(correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	AnswersSubmitted.WithLabelValues(label).Inc()
}
