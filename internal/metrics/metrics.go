package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IndexBuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilmap_index_builds_total",
		Help: "Total number of cluster index builds",
	})
	IndexBuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "soilmap_index_build_duration_ms",
		Help:    "Cluster index build duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	IndexedPoints = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soilmap_indexed_points",
		Help: "Points in the most recently built cluster index",
	})
	SkippedPointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soilmap_skipped_points_total",
		Help: "Points excluded from an index build for bad coordinates",
	})
	LayerTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soilmap_layer_transitions_total",
		Help: "Layer updates by transition",
	}, []string{"transition"})
	PicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soilmap_picks_total",
		Help: "Resolved picks by mode and kind",
	}, []string{"mode", "kind"})
	ViewportSamplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soilmap_viewport_samples_total",
		Help: "Viewport samples by outcome",
	}, []string{"outcome"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soilmap_active_sessions",
		Help: "Open map sessions",
	})
	StationReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soilmap_station_reloads_total",
		Help: "Station collection reloads by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(IndexBuildsTotal)
	prometheus.MustRegister(IndexBuildDurationMs)
	prometheus.MustRegister(IndexedPoints)
	prometheus.MustRegister(SkippedPointsTotal)
	prometheus.MustRegister(LayerTransitionsTotal)
	prometheus.MustRegister(PicksTotal)
	prometheus.MustRegister(ViewportSamplesTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(StationReloadsTotal)
}

// ObserveBuild records one index build.
func ObserveBuild(points, skipped int, d time.Duration) {
	IndexBuildsTotal.Inc()
	IndexBuildDurationMs.Observe(float64(d.Microseconds()) / 1000)
	IndexedPoints.Set(float64(points))
	SkippedPointsTotal.Add(float64(skipped))
}

// Handler serves the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
