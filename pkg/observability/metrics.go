package observability

import (
	"context"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Actions     *prometheus.CounterVec
	ActionTime  *prometheus.HistogramVec
	Faults      *prometheus.CounterVec
	Ended       *prometheus.CounterVec
	QueueDepth  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludus_transitions_fired_total",
				Help: "Automatic transitions taken by the fire loop.",
			},
			[]string{"game_id", "transition_id"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludus_actions_applied_total",
				Help: "Player actions whose program applied.",
			},
			[]string{"game_id", "action"},
		),
		ActionTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ludus_action_duration_seconds",
				Help:    "Time spent applying one player action, settling included.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"game_id"},
		),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludus_faults_total",
				Help: "Runtime faults by kind.",
			},
			[]string{"game_id", "kind"},
		),
		Ended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ludus_sessions_ended_total",
				Help: "Sessions that left the active state.",
			},
			[]string{"game_id", "outcome"},
		),
		QueueDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ludus_queue_depth",
				Help:    "Jobs still waiting in a session queue when one starts.",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Actions, m.ActionTime, m.Faults, m.Ended, m.QueueDepth)
	}
	return m
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransitionFired: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.GameID, e.TransitionID).Inc()
		},
		OnActionApplied: func(_ context.Context, e *domain.ActionEvent) {
			m.Actions.WithLabelValues(e.GameID, e.Action).Inc()
			m.ActionTime.WithLabelValues(e.GameID).Observe(e.Duration.Seconds())
		},
		OnFault: func(_ context.Context, e *domain.FaultEvent) {
			m.Faults.WithLabelValues(e.GameID, string(e.Fault.Kind)).Inc()
		},
		OnSessionEnded: func(_ context.Context, e *domain.SessionEndedEvent) {
			outcome := "finished"
			if e.Fault != nil {
				outcome = string(e.Fault.Kind)
			}
			m.Ended.WithLabelValues(e.GameID, outcome).Inc()
		},
	}
}

// ObserveQueue matches session.WithQueueObserver.
func (m *Metrics) ObserveQueue(_ string, depth int) {
	m.QueueDepth.Observe(float64(depth))
}
