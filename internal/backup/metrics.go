package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	runSucceeded = "succeeded"
	runPartial   = "partial"
	runFailed    = "failed"
)

// Metrics holds the Prometheus collectors for snapshot runs. A nil *Metrics
// records nothing.
type Metrics struct {
	Runs          *prometheus.CounterVec
	CopiedObjects prometheus.Counter
	FailedObjects prometheus.Counter
	PrunedObjects prometheus.Counter
	LastSuccess   prometheus.Gauge
}

// NewMetrics registers the snapshot collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drive",
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Snapshot runs by outcome.",
		}, []string{"outcome"}),
		CopiedObjects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive",
			Subsystem: "backup",
			Name:      "copied_objects_total",
			Help:      "Objects copied into snapshots.",
		}),
		FailedObjects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive",
			Subsystem: "backup",
			Name:      "failed_objects_total",
			Help:      "Objects that could not be copied into a snapshot.",
		}),
		PrunedObjects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive",
			Subsystem: "backup",
			Name:      "pruned_objects_total",
			Help:      "Snapshot objects deleted by retention.",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "drive",
			Subsystem: "backup",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last snapshot without failures.",
		}),
	}
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeCopies(copied, failed int) {
	if m == nil {
		return
	}
	m.CopiedObjects.Add(float64(copied))
	m.FailedObjects.Add(float64(failed))
}

func (m *Metrics) observePruned(n int) {
	if m == nil {
		return
	}
	m.PrunedObjects.Add(float64(n))
}

func (m *Metrics) observeSuccess(t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(t.Unix()))
}
