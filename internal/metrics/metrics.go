package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	EventsEvaluated *prometheus.CounterVec
	Verdicts        *prometheus.CounterVec
	ActionsApplied  *prometheus.CounterVec
	PanelSyncs      *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EventsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegisguard_events_evaluated_total",
			Help: "Gateway events run through the rule evaluator.",
		}, []string{"event"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegisguard_verdicts_total",
			Help: "Triggered rule verdicts by rule and action.",
		}, []string{"rule", "action"}),
		ActionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegisguard_actions_applied_total",
			Help: "Executor outcomes by action and result.",
		}, []string{"action", "result"}),
		PanelSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegisguard_panel_syncs_total",
			Help: "Panel synchronizer operations by panel type and outcome.",
		}, []string{"panel", "outcome"}),
	}

	registry.MustRegister(m.EventsEvaluated, m.Verdicts, m.ActionsApplied, m.PanelSyncs)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
