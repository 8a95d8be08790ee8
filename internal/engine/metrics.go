package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moodsun"

type Metrics struct {
	operations      *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	countMismatches *prometheus.CounterVec
	cascadedEntries prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Orchestrated operations by outcome.",
		}, []string{"operation", "outcome"}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "mutated_records_total",
			Help:      "Records inserted, updated or deleted per collection.",
		}, []string{"collection", "kind"}),
		countMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "count_mismatches_total",
			Help:      "Batches whose affected count differed from the submitted count.",
		}, []string{"operation"}),
		cascadedEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cascaded_entries_total",
			Help:      "Mood entries whose activity references were stripped by a cascade.",
		}),
	}
}

func (m *Metrics) observeOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) observeMutation(collection, kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.mutations.WithLabelValues(collection, kind).Add(float64(n))
}

func (m *Metrics) observeMismatch(operation string) {
	if m == nil {
		return
	}
	m.countMismatches.WithLabelValues(operation).Inc()
}

func (m *Metrics) observeCascade(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadedEntries.Add(float64(n))
}
