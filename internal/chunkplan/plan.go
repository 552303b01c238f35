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

// Package chunkplan holds the per-axis chunk plan produced by the time- and
// header-axis builders and consumed by the chunk locator (spec.md section 3,
// "ChunkPlan").
package chunkplan

import (
	"sort"

	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

// Fragment pairs the global start index of a chunk along one axis with the
// request fragment that selects exactly the rows of that chunk.
type Fragment struct {
	Start    int
	Fragment request.Fragment
}

// AxisPlan is the ordered list of (start_index, request_fragment) pairs for
// one chunked axis, plus the per-chunk sizes (a tuple when chunk sizes vary,
// e.g. splitting ymd time by month).
type AxisPlan struct {
	Axis   string
	Sizes  []int // one entry per chunk; may vary (final chunk short, or month split)
	Chunks []Fragment
}

// Len returns the axis length implied by summing chunk sizes (invariant:
// shape product along a chunked axis equals the sum of its chunk sizes).
func (p AxisPlan) Len() int {
	n := 0
	for _, s := range p.Sizes {
		n += s
	}
	return n
}

// Starts returns the chunk start offsets, used by the bisect-based chunk
// locator (spec.md section 4.F).
func (p AxisPlan) Starts() []int {
	starts := make([]int, len(p.Chunks))
	for i, c := range p.Chunks {
		starts[i] = c.Start
	}
	return starts
}

// ChunkIndex finds the unique chunk covering global index `at`, per the
// chunk locator algorithm: i = bisect_right(starts, at) - 1. A nil/zero
// `at` (representing a range start of None) is treated as 0.
func (p AxisPlan) ChunkIndex(at int) int {
	starts := p.Starts()
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > at })
	return i - 1
}

// Plan is the full chunk plan for one request: one AxisPlan per chunked
// axis, keyed by canonical axis name.
type Plan struct {
	Axes  []string // canonical dim order, chunked + unchunked
	Plans map[string]AxisPlan
}
