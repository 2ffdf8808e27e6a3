// Package metrics exposes Prometheus counters for the game engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts handled turns by session mode.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmk_turns_total",
			Help: "Turns handled, labeled by session mode.",
		},
		[]string{"mode"},
	)

	// RollsTotal counts dice rolls by origin (explicit or auto check).
	RollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmk_rolls_total",
			Help: "Dice rolls evaluated, labeled by origin.",
		},
		[]string{"origin"},
	)

	// GrantsTotal counts achievement considerations by outcome.
	GrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmk_achievement_considerations_total",
			Help: "Achievement considerations, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	// TransitionsTotal counts story scene transitions.
	TransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmk_scene_transitions_total",
		Help: "Scene transitions applied by the story engine.",
	})

	// TurnErrorsTotal counts turns that ended in an error.
	TurnErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmk_turn_errors_total",
		Help: "Turns that failed with an error.",
	})
)
