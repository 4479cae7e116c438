// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for foleygen.
//
// # Description
//
// foleygen is a short-lived CLI, so nothing is scraped. Metrics live in a
// private registry and are dumped with WriteTextfile for the node-exporter
// textfile collector. InitTracer sends spans to a JSON file, an OTLP
// collector, or both.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "foleygen"

// Metrics holds every foleygen metric.
//
// # Fields
//
//   - GenerationRequests: Counter of Generate calls by result kind
//   - GenerationDuration: Histogram of Generate wall time by result kind
//   - FilesFetched, BytesFetched, FilesSkipped: Provisioning transfer counters
//   - ExtensionInstalled: 1 when the fast path extension is installed
type Metrics struct {
	// Labels: kind (success, validation, timeout, execution, artifact_missing, internal)
	GenerationRequests *prometheus.CounterVec

	// Labels: kind
	GenerationDuration *prometheus.HistogramVec

	FilesFetched prometheus.Counter
	BytesFetched prometheus.Counter
	FilesSkipped prometheus.Counter

	ExtensionInstalled prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates Metrics registered on a fresh registry.
//
// # Examples
//
//	m := telemetry.NewMetrics()
//	m.ObserveGeneration("success", 42*time.Second)
//	_ = m.WriteTextfile("/var/lib/node_exporter/foleygen.prom")
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		GenerationRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "generation_requests_total",
				Help:      "Total generation requests by result kind",
			},
			[]string{"kind"},
		),

		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "generation_duration_seconds",
				Help:      "Generation wall time in seconds by result kind",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 300, 600},
			},
			[]string{"kind"},
		),

		FilesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provision_files_fetched_total",
			Help:      "Snapshot files downloaded from the hub",
		}),

		BytesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provision_bytes_fetched_total",
			Help:      "Bytes downloaded from the hub",
		}),

		FilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provision_files_skipped_total",
			Help:      "Snapshot files already present and verified",
		}),

		ExtensionInstalled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "extension_installed",
			Help:      "1 when the fast path attention extension is installed",
		}),

		registry: reg,
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveGeneration records one finished Generate call.
func (m *Metrics) ObserveGeneration(kind string, d time.Duration) {
	m.GenerationRequests.WithLabelValues(kind).Inc()
	m.GenerationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// FileFetched records a downloaded file of n bytes.
func (m *Metrics) FileFetched(n int64) {
	m.FilesFetched.Inc()
	if n > 0 {
		m.BytesFetched.Add(float64(n))
	}
}

// FileSkipped records a file that was already up to date.
func (m *Metrics) FileSkipped() {
	m.FilesSkipped.Inc()
}

// SetExtensionInstalled sets the extension gauge.
func (m *Metrics) SetExtensionInstalled(installed bool) {
	if installed {
		m.ExtensionInstalled.Set(1)
		return
	}
	m.ExtensionInstalled.Set(0)
}

// WriteTextfile writes the registry in text exposition format to path.
// The write is atomic, so a collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
