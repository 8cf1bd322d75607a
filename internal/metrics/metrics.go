// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records ranking-run counters on a private Prometheus
// registry. The CLI dumps the registry in text exposition format after a
// run; library users can gather it themselves.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/citation-engine/pkg/types"
)

const namespace = "citation_engine"

// Metrics holds the engine collectors.
type Metrics struct {
	registry *prometheus.Registry

	runs        prometheus.Counter
	records     *prometheus.CounterVec
	relevance   *prometheus.CounterVec
	gaps        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total ranking runs.",
	})
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records seen by stage outcome.",
		},
		[]string{"outcome"},
	)
	relevance := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranked_relevance_total",
			Help:      "Ranked citations by relevance category.",
		},
		[]string{"category"},
	)
	gaps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gaps_total",
			Help:      "Detected evidence gaps by kind.",
		},
		[]string{"kind"},
	)
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Ranking run duration in seconds.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	registry.MustRegister(runs, records, relevance, gaps, runDuration)

	return &Metrics{
		registry:    registry,
		runs:        runs,
		records:     records,
		relevance:   relevance,
		gaps:        gaps,
		runDuration: runDuration,
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRun records the outcome of one run.
func (m *Metrics) ObserveRun(b types.Bundle, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.runDuration.Observe(elapsed.Seconds())

	s := b.Stats
	m.records.WithLabelValues("received").Add(float64(s.RawRecords))
	m.records.WithLabelValues("dropped").Add(float64(s.Dropped))
	m.records.WithLabelValues("duplicate").Add(float64(s.DuplicatesRemoved))
	m.records.WithLabelValues("filtered").Add(float64(s.Filtered))
	m.records.WithLabelValues("capped").Add(float64(s.Capped))
	m.records.WithLabelValues("ranked").Add(float64(len(b.RankedCitations)))

	for _, c := range b.RankedCitations {
		m.relevance.WithLabelValues(string(c.RelevanceCategory)).Inc()
	}
	for _, g := range b.Gaps {
		m.gaps.WithLabelValues(string(g.Kind)).Inc()
	}
}

// WriteFile writes the registry to path in the text exposition format,
// atomically, for node_exporter's textfile collector or inspection.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
