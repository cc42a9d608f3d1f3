package metrics

import (
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests      *prometheus.CounterVec
	CounterReconcileOps  *prometheus.CounterVec
	CounterSessionEvents *prometheus.CounterVec
	CounterBackendErrors *prometheus.CounterVec
	CounterPanics        prometheus.Counter

	// gauges
	GaugeRequests prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewTestManager() *Manager {
	return NewManager("ironlog", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("ironlog", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterReconcileOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_ops",
			Help:      "Rows written by template and session reconciliation",
		}, []string{"table", "op"}),
		CounterSessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_events",
			Help:      "Workout session lifecycle events",
		}, []string{"event"}),
		CounterBackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_errors",
			Help:      "Failed store actions by action name",
		}, []string{"action"}),
		CounterPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handle_request_panic",
			Help:      "The total number of serve request panics",
		}),
		GaugeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_requests",
			Help:      "Current number of requests served",
		}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
		}),
	}
}

// Reconciled adds one reconcile result's row counts.
func (m *Manager) Reconciled(tables models.Tables, res reconcile.Result) {
	if m == nil {
		return
	}
	add := func(table, op string, n int) {
		if n > 0 {
			m.CounterReconcileOps.WithLabelValues(table, op).Add(float64(n))
		}
	}
	add(tables.Exercises.Name, "insert", res.ExercisesInserted)
	add(tables.Exercises.Name, "update", res.ExercisesUpdated)
	add(tables.Exercises.Name, "delete", res.ExercisesDeleted)
	add(tables.Sets.Name, "insert", res.SetsInserted)
	add(tables.Sets.Name, "update", res.SetsUpdated)
	add(tables.Sets.Name, "delete", res.SetsDeleted)
}

// SessionEvent counts a lifecycle event such as "started" or "ended".
func (m *Manager) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.CounterSessionEvents.WithLabelValues(event).Inc()
}

// BackendError counts a failed store action.
func (m *Manager) BackendError(action string) {
	if m == nil {
		return
	}
	m.CounterBackendErrors.WithLabelValues(action).Inc()
}
