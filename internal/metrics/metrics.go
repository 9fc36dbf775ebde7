package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gameplay counters exposed on /metrics.
var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mohoot_sessions_created_total",
		Help: "Number of game sessions created.",
	})

	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mohoot_sessions_ended_total",
		Help: "Number of game sessions ended or abandoned.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mohoot_sessions_active",
		Help: "Number of sessions currently held by this instance.",
	})

	PlayersJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mohoot_players_joined_total",
		Help: "Number of player joins across all sessions (rejoins included).",
	})

	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mohoot_answers_submitted_total",
		Help: "Number of accepted answer submissions.",
	}, []string{"correct"})

	BuzzAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mohoot_buzz_attempts_total",
		Help: "Number of buzzer claim attempts.",
	})

	BuzzConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mohoot_buzz_conflicts_total",
		Help: "Number of buzzer claims rejected because the round was already claimed.",
	})
)

// CorrectLabel converts a correctness flag into the label value used by
// AnswersSubmitted.
func CorrectLabel(correct bool) string {
	if correct {
		return "true"
	}
	return "false"
}
