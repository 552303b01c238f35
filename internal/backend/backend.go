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

// Package backend is the top-level entrypoint (spec.md section 4.H): it
// turns a request plus options into a virtual labeled dataset, one lazy
// array per requested variable, without itself doing any chunking or
// caching logic — that all lives in internal/chunker and internal/cache.
package backend

import (
	"context"

	"github.com/bopen/xarray-ecmwf-go/internal/cache"
	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
	"github.com/bopen/xarray-ecmwf-go/internal/chunker"
	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/client/cdsapi"
	"github.com/bopen/xarray-ecmwf-go/internal/client/opendata"
	"github.com/bopen/xarray-ecmwf-go/internal/client/polytope"
	"github.com/bopen/xarray-ecmwf-go/internal/decoder"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/lazyarray"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
	"github.com/bopen/xarray-ecmwf-go/internal/telemetry"
)

// clientRegistry maps the `client` option tag from spec.md section 6
// ("Open interface") onto concrete client.RequestClient constructors.
// Options has no separate chunker selection: chunks are always planned by
// the one chunker package, and only the `client` tag is looked up here.
var clientRegistry = map[string]func(client.Config) client.RequestClient{
	"cdsapi": func(cfg client.Config) client.RequestClient {
		return cdsapi.New(cdsapi.Config{URL: cfg.URL, Key: cfg.Key, PollInterval: cfg.PollInterval})
	},
	"ecmwf-opendata": func(cfg client.Config) client.RequestClient {
		return opendata.New(opendata.Config{Source: cfg.Source})
	},
	"polytope": func(cfg client.Config) client.RequestClient {
		return polytope.New(polytope.Config{URL: cfg.URL, APIKey: cfg.Key})
	},
}

// Options mirrors spec.md section 6's named options to Open.
type Options struct {
	DropVariables  []string
	Client         string
	ClientConfig   client.Config
	ChunkingPolicy cfg.ChunkingPolicy
	CacheFile      bool
	CacheFolder    string
	TimeDims       []string
	Decoder        decoder.Decoder
	Store          cache.Store
	ProbeStore     cache.Store

	// Metrics records cache/probe/chunk-read measurements; defaults to
	// telemetry.Noop when left nil, so callers that never set up
	// OpenTelemetry pay no measurement overhead.
	Metrics telemetry.Handle

	// RequestClient, when set, is used directly instead of resolving
	// Client against the registry — the injection point tests use to
	// exercise Open without a real transport.
	RequestClient client.RequestClient
}

// Dataset is the virtual labeled dataset Open returns: one lazyarray.Array
// per surviving variable, plus dataset-level attrs discovered by probing.
type Dataset struct {
	Variables map[string]*lazyarray.Array
	attrs     map[string]any
	cache     *cache.Cache
}

// GlobalAttrs returns the dataset-level attributes the probe discovered
// (Conventions, archive name, ...) — distinct from a variable's own
// VarAttrs (spec.md section 4.H expansion note).
func (d *Dataset) GlobalAttrs() map[string]any { return d.attrs }

// Close stops the dataset's in-process probe cache sweep. Callers that
// serve a Dataset for a process's lifetime should fold this into their
// shutdown sequence (common.JoinShutdownFunc).
func (d *Dataset) Close(_ context.Context) error {
	d.cache.Close()
	return nil
}

// Open implements spec.md section 4.H / section 6's external interface.
func Open(ctx context.Context, req request.Request, opts Options) (*Dataset, error) {
	rc := opts.RequestClient
	if rc == nil {
		ctor, ok := clientRegistry[opts.Client]
		if !ok {
			return nil, errs.Configuration("backend: unknown client %q", opts.Client)
		}
		rc = ctor(opts.ClientConfig)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.Noop
	}

	c := cache.New(opts.Store, opts.ProbeStore, rc, opts.Decoder, cache.Options{
		CacheFile: opts.CacheFile,
		TimeDims:  opts.TimeDims,
		Metrics:   metrics,
	})

	root, err := chunker.New(req, opts.ChunkingPolicy, c)
	if err != nil {
		return nil, err
	}
	root.WithMetrics(metrics)
	if err := root.Plan(); err != nil {
		return nil, err
	}

	children, err := root.Variables()
	if err != nil {
		return nil, err
	}

	dropped := toSet(opts.DropVariables)

	out := &Dataset{Variables: map[string]*lazyarray.Array{}, cache: c}
	var lastProbeErr error
	var anySucceeded bool

	for name, child := range children {
		if dropped[name] {
			continue
		}
		if err := child.Probe(ctx); err != nil {
			lastProbeErr = err
			continue
		}
		if dropped[child.DecodedName()] {
			continue
		}
		anySucceeded = true
		out.Variables[name] = lazyarray.New(child)
		out.attrs = child.DatasetAttrs()
	}

	if !anySucceeded && lastProbeErr != nil {
		return nil, lastProbeErr
	}
	return out, nil
}

func toSet(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
}
