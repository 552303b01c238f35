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

// Package labeledarray is a minimal dimension-labeled, dense in-memory array,
// the payload type the chunk locator assembles per-variable (spec.md section
// 3, "Variable"). It is intentionally narrow: only the operations the
// locator needs (Transpose, ExpandDims, Slice) are implemented, not a
// general n-dimensional array library.
package labeledarray

import (
	"fmt"

	"github.com/bopen/xarray-ecmwf-go/internal/axis"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
)

// Array is a dense payload tagged with its dimension names, in the order
// they index into Data, plus free-form attributes (units, long_name, ...).
type Array struct {
	Dims  []string
	Shape []int
	Dtype axis.Dtype
	Data  []float64 // flat, row-major; integer/time payloads are stored as float64 per xarray/grib convention
	Attrs map[string]any
}

func (a Array) dimIndex(name string) int {
	for i, d := range a.Dims {
		if d == name {
			return i
		}
	}
	return -1
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// ExpandDims inserts a new length-1 axis named `name` at position `at`,
// broadcasting the existing data. Used when a variable's probe response is
// missing a header dimension the chunk plan still expects (spec.md 4.F.5:
// "a variable whose probe omits an axis is broadcast across it").
func (a Array) ExpandDims(name string, at int) (Array, error) {
	if a.dimIndex(name) >= 0 {
		return Array{}, errs.Configuration("labeledarray: dimension %q already present", name)
	}
	if at < 0 || at > len(a.Dims) {
		return Array{}, errs.Configuration("labeledarray: expand position %d out of range", at)
	}
	dims := make([]string, 0, len(a.Dims)+1)
	shape := make([]int, 0, len(a.Shape)+1)
	dims = append(dims, a.Dims[:at]...)
	dims = append(dims, name)
	dims = append(dims, a.Dims[at:]...)
	shape = append(shape, a.Shape[:at]...)
	shape = append(shape, 1)
	shape = append(shape, a.Shape[at:]...)
	return Array{Dims: dims, Shape: shape, Dtype: a.Dtype, Data: a.Data, Attrs: a.Attrs}, nil
}

// Transpose reorders dimensions to match `order`, which must be a
// permutation of a.Dims. Used to bring the chunker's canonical axis order
// (spec.md section 3, "canonical axis order") in line with whatever order
// the decoder reported.
func (a Array) Transpose(order []string) (Array, error) {
	if len(order) != len(a.Dims) {
		return Array{}, errs.Configuration("labeledarray: transpose order length %d != rank %d", len(order), len(a.Dims))
	}
	perm := make([]int, len(order))
	for i, name := range order {
		idx := a.dimIndex(name)
		if idx < 0 {
			return Array{}, errs.Configuration("labeledarray: transpose order references unknown dimension %q", name)
		}
		perm[i] = idx
	}

	newShape := make([]int, len(order))
	for i, p := range perm {
		newShape[i] = a.Shape[p]
	}

	oldStrides := stridesOf(a.Shape)
	newStrides := stridesOf(newShape)

	out := make([]float64, len(a.Data))
	idx := make([]int, len(newShape))
	for flat := range out {
		unflatten(flat, newStrides, idx)
		oldFlat := 0
		for i, p := range perm {
			oldFlat += idx[i] * oldStrides[p]
		}
		out[flat] = a.Data[oldFlat]
	}

	return Array{Dims: order, Shape: newShape, Dtype: a.Dtype, Data: out, Attrs: a.Attrs}, nil
}

// Slice restricts dimension `name` to the half-open element range
// [start, stop), the primitive the chunk locator uses once it has resolved
// a (chunk_index, local_start, local_stop) triple (spec.md section 4.F).
func (a Array) Slice(name string, start, stop int) (Array, error) {
	d := a.dimIndex(name)
	if d < 0 {
		return Array{}, errs.Configuration("labeledarray: slice references unknown dimension %q", name)
	}
	if start < 0 || stop > a.Shape[d] || start > stop {
		return Array{}, fmt.Errorf("labeledarray: slice [%d:%d) out of range for dimension %q of length %d", start, stop, name, a.Shape[d])
	}

	newShape := append([]int{}, a.Shape...)
	newShape[d] = stop - start

	oldStrides := stridesOf(a.Shape)
	newStrides := stridesOf(newShape)

	out := make([]float64, product(newShape))
	idx := make([]int, len(newShape))
	for flat := range out {
		unflatten(flat, newStrides, idx)
		oldFlat := 0
		for i, s := range oldStrides {
			v := idx[i]
			if i == d {
				v += start
			}
			oldFlat += v * s
		}
		out[flat] = a.Data[oldFlat]
	}

	return Array{Dims: a.Dims, Shape: newShape, Dtype: a.Dtype, Data: out, Attrs: a.Attrs}, nil
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// unflatten decomposes a row-major flat offset into per-dimension indices
// given the strides produced by stridesOf.
func unflatten(flat int, strides []int, idx []int) {
	rem := flat
	for i, s := range strides {
		if s == 0 {
			idx[i] = 0
			continue
		}
		idx[i] = rem / s
		rem = rem % s
	}
}
