// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for serve mode
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsTotal     *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	JobDuration   prometheus.Histogram
	QueueDepth    prometheus.Gauge
	Running       prometheus.Gauge
	PeakMemory    prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on their own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hallo2_jobs_submitted_total",
			Help: "Total number of generation jobs submitted",
		}),
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hallo2_jobs_total",
			Help: "Total number of generation jobs by final status",
		}, []string{"status"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hallo2_stage_failures_total",
			Help: "Pipeline failures by stage",
		}, []string{"stage"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hallo2_job_duration_seconds",
			Help:    "Wall time of generation jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10), // 30s to ~4 hours
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hallo2_queue_depth",
			Help: "Number of jobs waiting to run",
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hallo2_jobs_running",
			Help: "Number of jobs currently running (0 or 1)",
		}),
		PeakMemory: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hallo2_inference_peak_memory_bytes",
			Help: "Peak resident memory of the last inference process",
		}),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
