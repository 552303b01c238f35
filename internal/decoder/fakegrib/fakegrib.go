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

// Package fakegrib is a stand-in decoder.Decoder used by tests and by the
// CLI (cmd/ecmwfbackend), which always decodes through it. Real archive downloads are GRIB/NetCDF; this package
// instead reads a small self-describing JSON document, so the chunker,
// cache and backend can be exercised end to end without a production
// decoding stack.
package fakegrib

import (
	"context"
	"encoding/json"
	"os"

	"github.com/bopen/xarray-ecmwf-go/internal/axis"
	"github.com/bopen/xarray-ecmwf-go/internal/decoder"
	"github.com/bopen/xarray-ecmwf-go/internal/labeledarray"
)

// Document is the on-disk JSON shape a fake transport client writes in
// place of a real archive payload.
type Document struct {
	Dims  []string         `json:"dims"`
	Shape []int            `json:"shape"`
	Dtype string           `json:"dtype"`
	Vars  map[string][]float64 `json:"vars"`
	VarAttrs map[string]map[string]any `json:"var_attrs"`
	Attrs map[string]any   `json:"attrs"`
}

type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Open(ctx context.Context, path string, opts decoder.Options) (*decoder.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	dtype := dtypeFromString(doc.Dtype)

	vars := make(map[string]decoder.Variable, len(doc.Vars))
	for name, data := range doc.Vars {
		vars[name] = decoder.Variable{
			DecodedName: name,
			Array: labeledarray.Array{
				Dims:  doc.Dims,
				Shape: doc.Shape,
				Dtype: dtype,
				Data:  data,
				Attrs: doc.VarAttrs[name],
			},
			Attrs: doc.VarAttrs[name],
		}
	}

	return &decoder.Dataset{Vars: vars, Attrs: doc.Attrs}, nil
}

func dtypeFromString(s string) axis.Dtype {
	switch s {
	case "int32":
		return axis.Int32
	case "int64":
		return axis.Int64
	case "datetime64[ns]":
		return axis.DatetimeNS
	case "timedelta64[ns]":
		return axis.DurationNS
	case "float32":
		return axis.Float32
	default:
		return axis.Float64
	}
}
