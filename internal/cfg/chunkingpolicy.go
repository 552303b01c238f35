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

// Package cfg holds the request-chunker's runtime configuration: chunking
// policy, transport-client selection, cache options and logging, decoded
// from a request.yaml / CLI flags via mapstructure (spec.md section 6,
// "external interfaces").
package cfg

import (
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

// ChunkingPolicy is a mapping from request-dimension name to a positive
// integer split size (spec.md section 3, "ChunkingPolicy").
type ChunkingPolicy map[string]int

var timeSideKeys = map[string]bool{"year": true, "month": true, "day": true}

// Validate enforces the legality rule from spec.md section 3: at most one
// of {year, month, day} may appear, and for the ymd variant its split size
// must equal 1; the date-range variant's "day" key is exempt (spec.md
// section 4.D permits day=N for any N ≥ 1 there).
func (p ChunkingPolicy) Validate(variant request.Variant) error {
	for dim, size := range p {
		if size < 1 {
			return errs.Configuration("chunking policy: split size for %q must be >= 1, got %d", dim, size)
		}
	}

	var timeSideCount int
	var timeSideKey string
	for dim := range p {
		if timeSideKeys[dim] {
			timeSideCount++
			timeSideKey = dim
		}
	}
	if timeSideCount > 1 {
		return errs.Configuration("chunking policy: at most one of year/month/day may be split, got multiple")
	}
	if timeSideCount == 1 && variant == request.VariantYMD && p[timeSideKey] != 1 {
		return errs.Configuration("chunking policy: split size for %q must equal 1, got %d", timeSideKey, p[timeSideKey])
	}
	if timeSideKey == "year" {
		return errs.Configuration("chunking policy: splitting on 'year' is not supported")
	}
	return nil
}
