// Package metrics holds the Prometheus collectors of the VOD service. All
// metrics are prefixed with "hls_vod_".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vod_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_vod_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600, 1800, 7200},
		},
		[]string{"method", "route"},
	)
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vod_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal state",
		},
		[]string{"state"},
	)

	PipelineFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vod_pipeline_failures_total",
			Help: "Pipeline failures by the state they happened in and error kind",
		},
		[]string{"state", "kind"},
	)

	PipelineRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_vod_pipeline_runs_in_progress",
			Help: "Number of pipeline runs currently in progress",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_vod_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"stage"},
	)

	ProbeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_vod_probe_failures_absorbed_total",
			Help: "Probe failures that were tolerated and degraded to defaults",
		},
	)

	CatalogSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vod_catalog_sync_total",
			Help: "Catalog mirror attempts by result",
		},
		[]string{"result"},
	)
)

// Outbox metrics
var (
	OutboxEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vod_outbox_events_total",
			Help: "Outbox events handled by the relay, by result",
		},
		[]string{"result"},
	)
)
