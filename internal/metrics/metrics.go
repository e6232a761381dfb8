// package metrics counts sync runs, per-song outcomes and imports on a private Prometheus registry.
//
// A nil [*Metrics] is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "musync"

// Metrics holds the collectors registered on its own registry.
type Metrics struct {
	registry     *prometheus.Registry
	syncRuns     *prometheus.CounterVec
	songOutcomes *prometheus.CounterVec
	imported     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by final status.",
		}, []string{"status"}),
		songOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_song_outcomes_total",
			Help:      "Per-song sync outcomes by target platform.",
		}, []string{"platform", "outcome"}),
		imported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_songs_total",
			Help:      "Songs recorded by import, by platform.",
		}, []string{"platform"}),
	}
	m.registry.MustRegister(m.syncRuns, m.songOutcomes, m.imported)
	return m
}

// SyncRun counts a finished sync run.
func (m *Metrics) SyncRun(status string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(status).Inc()
}

// SongOutcome counts one song processed against a target platform.
func (m *Metrics) SongOutcome(platform, outcome string) {
	if m == nil {
		return
	}
	m.songOutcomes.WithLabelValues(platform, outcome).Inc()
}

// Imported adds n songs recorded for platform.
func (m *Metrics) Imported(platform string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imported.WithLabelValues(platform).Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values to path for the node_exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
