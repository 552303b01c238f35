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

// Package lazyarray is the read-only array-like view a backend.Dataset
// exposes per variable (spec.md section 4.G): it reports shape and dtype
// up front from the chunker's plan, and only touches the retrieval cache
// when At is actually called.
package lazyarray

import (
	"context"
	"sync"

	"github.com/bopen/xarray-ecmwf-go/common"
	"github.com/bopen/xarray-ecmwf-go/internal/axis"
	"github.com/bopen/xarray-ecmwf-go/internal/chunker"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/labeledarray"
)

// Array is a lazy, dimension-labeled view over one variable's chunk plan.
// It never issues a transport call until At is called; Shape and Dtype
// are answered entirely from the chunker's plan/probe metadata.
type Array struct {
	chunker *chunker.Chunker
}

// New wraps a probed chunker (Plan and Probe must already have been
// called) as a lazy array.
func New(c *chunker.Chunker) *Array {
	return &Array{chunker: c}
}

// Dims returns the canonical dimension names, outermost first.
func (a *Array) Dims() []string { return a.chunker.Dims() }

// Shape returns the full (unchunked) extent along each of Dims().
func (a *Array) Shape() []int { return a.chunker.Shape() }

// Dtype returns the probed element type of this variable.
func (a *Array) Dtype() axis.Dtype { return a.chunker.Dtype() }

// Attrs returns the probed variable-level attributes.
func (a *Array) Attrs() map[string]any { return a.chunker.VarAttrs() }

// At resolves one key — one chunker.Index per dimension of Dims() — into
// a dense labeledarray.Array, fetching and slicing through the underlying
// chunker the one chunk each chunked dim's range starts in. A key whose
// range runs past the end of that chunk returns an error. This is the
// only operation on Array that can block or fail on a transport error.
func (a *Array) At(ctx context.Context, key ...chunker.Index) (labeledarray.Array, error) {
	if len(key) != len(a.chunker.Dims()) {
		return labeledarray.Array{}, errs.Configuration(
			"lazyarray: key length %d != dimension count %d", len(key), len(a.chunker.Dims()))
	}
	return a.chunker.GetChunk(ctx, key)
}

// Prefetch warms the retrieval cache for a batch of keys ahead of a
// caller that will later call At for each of them — e.g. reading an
// entire dataset chunk-by-chunk in ascending order, where the fetch
// latency of chunk N+1 can overlap the caller's processing of chunk N.
// Keys are queued in the order given and drained by workers goroutines;
// the first error any worker hits is returned once the workers have
// drained the whole queue and returned. Prefetch neither cancels in-flight
// fetches nor stops queued ones after an error.
func (a *Array) Prefetch(ctx context.Context, keys [][]chunker.Index, workers int) error {
	if workers < 1 {
		workers = 1
	}

	queue := common.NewLinkedListQueue[[]chunker.Index]()
	for _, k := range keys {
		queue.Push(k)
	}

	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if queue.IsEmpty() {
					mu.Unlock()
					return
				}
				key := queue.Pop()
				mu.Unlock()

				if _, err := a.At(ctx, key...); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
