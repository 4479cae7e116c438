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
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName is the service.name resource attribute.
const ServiceName = "foleygen"

// ShutdownFunc flushes pending spans and releases exporters.
type ShutdownFunc func(context.Context) error

// TracingOptions selects span sinks. Both may be set.
type TracingOptions struct {
	// File receives pretty JSON spans, appended.
	File string

	// OTLPEndpoint is a collector host:port for OTLP over gRPC.
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool
}

// Enabled reports whether any sink is configured.
func (o TracingOptions) Enabled() bool {
	return o.File != "" || o.OTLPEndpoint != ""
}

// InitTracer installs a global tracer provider exporting to the sinks in opts.
//
// # Description
//
// With no sink configured the global no-op provider stays in place and a
// no-op shutdown is returned. Otherwise every span is sampled and batched
// to each sink.
//
// # Outputs
//
//   - ShutdownFunc: Must be called before exit to flush spans
//   - error: When a file or exporter cannot be created
//
// # Examples
//
//	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracingOptions{File: "/tmp/spans.json"})
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
func InitTracer(ctx context.Context, opts TracingOptions) (ShutdownFunc, error) {
	if !opts.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	var (
		providerOpts []sdktrace.TracerProviderOption
		closers      []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		closers = append(closers, f.Close)

		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(f),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	if opts.OTLPEndpoint != "" {
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.OTLPEndpoint)}
		if opts.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))
	providerOpts = append(providerOpts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	tp := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), closeAll())
	}, nil
}
