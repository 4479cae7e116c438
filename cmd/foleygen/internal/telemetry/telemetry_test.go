// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// ============================================================================
// Metrics
// ============================================================================

func TestObserveGeneration(t *testing.T) {
	m := NewMetrics()

	m.ObserveGeneration("success", 30*time.Second)
	m.ObserveGeneration("success", 45*time.Second)
	m.ObserveGeneration("timeout", 300*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GenerationRequests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRequests.WithLabelValues("timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.GenerationDuration))
}

func TestProvisionCounters(t *testing.T) {
	m := NewMetrics()

	m.FileFetched(1024)
	m.FileFetched(0)
	m.FileSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesFetched))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.BytesFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped))
}

func TestSetExtensionInstalled(t *testing.T) {
	m := NewMetrics()

	m.SetExtensionInstalled(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtensionInstalled))

	m.SetExtensionInstalled(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ExtensionInstalled))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.FileFetched(10)
	path := filepath.Join(t.TempDir(), "foleygen.prom")

	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "foleygen_provision_files_fetched_total 1")
	assert.Contains(t, string(data), "foleygen_provision_bytes_fetched_total 10")
}

func TestWriteTextfile_BadDir(t *testing.T) {
	m := NewMetrics()

	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "foleygen.prom"))

	assert.Error(t, err)
}

// ============================================================================
// Tracing
// ============================================================================

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingOptions{})

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_WritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := InitTracer(context.Background(), TracingOptions{File: path})
	require.NoError(t, err)

	_, span := otel.Tracer("foleygen/test").Start(context.Background(), "generation.generate")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "generation.generate"))
	assert.Contains(t, string(data), ServiceName)
}

// The gRPC exporter connects lazily, so an unreachable collector only
// costs a failed export at shutdown.
func TestInitTracer_OTLPAndFile(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := InitTracer(context.Background(), TracingOptions{
		File:         path,
		OTLPEndpoint: "127.0.0.1:1",
		OTLPInsecure: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)

	assert.FileExists(t, path)
}

func TestInitTracer_BadFile(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingOptions{File: filepath.Join(t.TempDir(), "missing", "spans.json")})

	assert.Error(t, err)
}
