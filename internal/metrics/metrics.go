// Package metrics holds the Prometheus collectors of the robot brain.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcliao/robot-brain/internal/mode"
)

var (
	ModeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robot_brain_mode_transitions_total",
			Help: "Total number of mode transitions",
		},
		[]string{"from", "to", "event"},
	)

	CurrentMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "robot_brain_mode",
			Help: "1 for the active mode, 0 otherwise",
		},
		[]string{"mode"},
	)

	Actions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robot_brain_actions_total",
			Help: "Dispatched actions by outcome (executed, dropped, unknown, failed)",
		},
		[]string{"action", "outcome"},
	)

	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robot_brain_collaborator_calls_total",
			Help: "Calls to external collaborators by attempt result",
		},
		[]string{"op", "result"},
	)

	ExchangeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "robot_brain_exchange_duration_seconds",
			Help: "Duration of one conversation exchange",
		},
	)

	MemoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robot_brain_memory_writes_total",
			Help: "Observation writes by entity and result",
		},
		[]string{"entity", "result"},
	)

	ExplorationExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robot_brain_exploration_exits_total",
			Help: "Exploration runs by exit reason",
		},
		[]string{"reason"},
	)

	Battery = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "robot_brain_battery_percent",
			Help: "Last battery reading",
		},
	)
)

// ObserveTransition records a mode transition and updates the mode gauge.
func ObserveTransition(t mode.Transition) {
	ModeTransitions.WithLabelValues(string(t.From), string(t.To), string(t.Event)).Inc()
	for _, m := range mode.All {
		v := 0.0
		if m == t.To {
			v = 1
		}
		CurrentMode.WithLabelValues(string(m)).Set(v)
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
