/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process's Prometheus collectors. Every field is
// registered against its own registry so multiple Metrics instances (e.g.
// in tests) never collide on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	HostSampleRate     prometheus.Gauge
	HostBaseLatencyMS  prometheus.Gauge
	HostOutputLatency  prometheus.Gauge
	HostActiveNodes    prometheus.Gauge
	HostDropoutTotal   prometheus.Counter
	DriftEventsTotal   *prometheus.CounterVec
	SyncEngagedTotal   prometheus.Counter
	AnalysisTimeouts   prometheus.Counter
	AnalysisWorkerLost prometheus.Counter
	GestureConfidence  prometheus.Histogram
	GestureClassified  *prometheus.CounterVec
	MappingDispatched  *prometheus.CounterVec
}

// NewMetrics constructs and registers the mixer's Prometheus collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HostSampleRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gesturedeck_host_sample_rate_hz",
			Help: "Configured audio host sample rate.",
		}),
		HostBaseLatencyMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gesturedeck_host_base_latency_ms",
			Help: "Reported base (processing) latency of the audio host.",
		}),
		HostOutputLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gesturedeck_host_output_latency_ms",
			Help: "Reported output (hardware) latency of the audio host.",
		}),
		HostActiveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gesturedeck_host_active_nodes",
			Help: "Number of live signal nodes attached to the output graph.",
		}),
		HostDropoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gesturedeck_host_dropouts_total",
			Help: "Count of audio buffer underruns since process start.",
		}),
		DriftEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gesturedeck_stem_drift_events_total",
			Help: "Count of stem-player re-anchor events caused by drift exceeding the threshold.",
		}, []string{"deck"}),
		SyncEngagedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gesturedeck_sync_engaged_total",
			Help: "Count of successful beat-sync engagements.",
		}),
		AnalysisTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gesturedeck_analysis_timeouts_total",
			Help: "Count of analysis requests that resolved via timeout instead of a worker response.",
		}),
		AnalysisWorkerLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gesturedeck_analysis_worker_lost_total",
			Help: "Count of detected analysis-worker crashes.",
		}),
		GestureConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gesturedeck_gesture_confidence",
			Help:    "Distribution of confidence scores for gestures that passed all gates.",
			Buckets: prometheus.LinearBuckets(0.6, 0.05, 9),
		}),
		GestureClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gesturedeck_gesture_classified_total",
			Help: "Count of gestures classified, by class and whether they passed confidence gating.",
		}, []string{"class", "accepted"}),
		MappingDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gesturedeck_mapping_dispatched_total",
			Help: "Count of control commands dispatched by the gesture mapper, by control kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.HostSampleRate,
		m.HostBaseLatencyMS,
		m.HostOutputLatency,
		m.HostActiveNodes,
		m.HostDropoutTotal,
		m.DriftEventsTotal,
		m.SyncEngagedTotal,
		m.AnalysisTimeouts,
		m.AnalysisWorkerLost,
		m.GestureConfidence,
		m.GestureClassified,
		m.MappingDispatched,
	)

	return m
}

// Handler exposes the registered collectors over HTTP in Prometheus text
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
