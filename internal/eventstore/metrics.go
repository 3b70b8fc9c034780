package eventstore

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

const metricsNamespace = "eventstore"

const (
	insertResultOK         = "ok"
	insertResultOutOfOrder = "out_of_order"
	insertResultClosed     = "closed"

	removeReasonRemoveAll = "remove_all"
	removeReasonIterator  = "iterator"
)

// Metrics holds the Prometheus collectors of a store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	inserts *prometheus.CounterVec
	removed *prometheus.CounterVec
	queries *prometheus.CounterVec
	results prometheus.Histogram
}

// newMetrics creates the store collectors and registers them, together with gauges
// computed from stats, on registerer.
func newMetrics(registerer prometheus.Registerer, stats func() eventstore.Statistics) (*Metrics, error) {
	m := &Metrics{
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inserts_total",
			Help:      "Number of insert calls by result.",
		}, []string{"result"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "removed_total",
			Help:      "Number of events removed by reason.",
		}, []string{"reason"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "queries_total",
			Help:      "Number of range queries by iteration mode.",
		}, []string{"mode"}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "query_results",
			Help:      "Number of events matched by a range query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	events := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "events",
		Help:      "Number of events currently stored.",
	}, func() float64 {
		return float64(stats().TotalEvents)
	})
	types := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "types",
		Help:      "Number of event types currently stored.",
	}, func() float64 {
		return float64(stats().TypeCount)
	})

	for _, c := range []prometheus.Collector{m.inserts, m.removed, m.queries, m.results, events, types} {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register store metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) insert(result string) {
	if m == nil {
		return
	}
	m.inserts.WithLabelValues(result).Inc()
}

func (m *Metrics) remove(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.removed.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) query(mode eventstore.IterationMode, matched int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(mode.String()).Inc()
	m.results.Observe(float64(matched))
}
