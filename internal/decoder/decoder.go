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

// Package decoder defines the boundary against the archive-file format
// (GRIB, NetCDF, ...): an external collaborator per spec.md section 4.A/B,
// never implemented here beyond a fake used by tests and by the CLI.
package decoder

import (
	"context"

	"github.com/bopen/xarray-ecmwf-go/internal/labeledarray"
)

// Options mirrors the archive-tuned decode options threaded through from
// cache.Retrieve (cfgrib_kwargs in the original client): which dims to
// treat as time-like, and whether to build/read a side-car index.
type Options struct {
	TimeDims  []string
	IndexPath string // empty disables the decoder's own side-car index
}

// Dataset is a decoded file: one labeled array per data variable, plus
// dataset-level attributes (Conventions, archive name, ...).
type Dataset struct {
	Vars  map[string]Variable
	Attrs map[string]any
}

// Variable is one decoded data variable: its labeled array plus
// variable-level attributes and the decoder-assigned name, which may
// differ from the request's variable label (spec.md section 4.F.3,
// e.g. "2m_temperature" vs "t2m").
type Variable struct {
	DecodedName string
	Array       labeledarray.Array
	Attrs       map[string]any
}

// Decoder opens a downloaded file and returns its decoded contents.
type Decoder interface {
	Open(ctx context.Context, path string, opts Options) (*Dataset, error)
}
