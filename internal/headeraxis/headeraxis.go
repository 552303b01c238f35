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

// Package headeraxis builds the chunk plan for a single non-time request
// dimension (number, step, pressure_level, levelist, leadtime_hour), split
// uniformly by count (spec.md GLOSSARY, "header dimension"). This mirrors
// build_chunks_header_requests from the archive client.
package headeraxis

import (
	"fmt"

	"github.com/bopen/xarray-ecmwf-go/internal/chunkplan"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

// Build splits request[dim] into chunks of size request_chunks[dim]
// (defaulting to the whole axis when unset), returning the raw string
// coordinate values, the chunk size, and the chunk plan fragments.
func Build(dim string, req request.Request, chunks map[string]int) ([]string, int, []chunkplan.Fragment, error) {
	values := req.Dimensions()[dim]
	if len(values) == 0 {
		return nil, 0, nil, errs.Configuration("headeraxis: request missing dimension %q", dim)
	}

	chunkSize, ok := chunks[dim]
	if !ok || chunkSize <= 0 {
		chunkSize = len(values)
	}

	coord := make([]string, len(values))
	for i, v := range values {
		coord[i] = fmt.Sprintf("%v", v)
	}

	var frags []chunkplan.Fragment
	for start := 0; start < len(values); start += chunkSize {
		stop := start + chunkSize
		if stop > len(values) {
			stop = len(values)
		}
		chunkValues := make([]any, stop-start)
		copy(chunkValues, values[start:stop])
		frags = append(frags, chunkplan.Fragment{
			Start:    start,
			Fragment: map[string]any{dim: chunkValues},
		})
	}

	return coord, chunkSize, frags, nil
}
