// Package metrics exposes Prometheus collectors for translations, solver
// rounds and navigation transitions. Every observer method accepts a nil
// receiver so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modelbrowser"

type Metrics struct {
	translations        *prometheus.CounterVec
	translationDuration prometheus.Histogram
	rounds              *prometheus.CounterVec
	roundDuration       prometheus.Histogram
	openSessions        prometheus.Gauge
	transitions         *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translations_total",
				Help:      "Translator runs by resulting status",
			},
			[]string{"status"},
		),
		translationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_duration_seconds",
			Help:      "Wall time of translator runs",
		}),
		rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solver_rounds_total",
				Help:      "Solver request/response rounds by result",
			},
			[]string{"result"},
		),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_round_duration_seconds",
			Help:      "Time between a model request and its answer",
		}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_sessions_open",
			Help:      "Solver subprocesses currently alive",
		}),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigation_transitions_total",
				Help:      "Navigation events by outcome",
			},
			[]string{"event", "outcome"},
		),
	}
	registerer.MustRegister(
		m.translations,
		m.translationDuration,
		m.rounds,
		m.roundDuration,
		m.openSessions,
		m.transitions,
	)
	return m
}

func (m *Metrics) ObserveTranslation(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(status).Inc()
	m.translationDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveRound(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(result).Inc()
	m.roundDuration.Observe(duration.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.openSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.openSessions.Dec()
}

func (m *Metrics) ObserveTransition(event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, outcome).Inc()
}

// Handler serves the registry under /metrics plus a /healthz probe.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router
}
