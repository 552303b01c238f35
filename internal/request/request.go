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

// Package request models the user-supplied archive request: a map from a
// fixed set of recognized keys to either a scalar or an ordered sequence of
// scalars (spec.md section 3, "Request").
package request

import (
	"fmt"
	"sort"

	"github.com/bopen/xarray-ecmwf-go/internal/errs"
)

// Header dimensions: request dimensions other than the time-forming ones,
// split uniformly by count (spec.md GLOSSARY).
var HeaderDimensions = []string{"number", "leadtime_hour", "step", "pressure_level", "levelist"}

// TimeDimensions are the keys recognized by the ymd time-axis entry shape.
var TimeDimensions = []string{"year", "month", "day", "time"}

// PayloadKeys select which variable(s) are requested.
var PayloadKeys = []string{"variable", "param"}

// Variant distinguishes the two mutually exclusive time-axis entry shapes
// (spec.md section 4.D): the request is a sum type over these, not an
// overloaded map (DESIGN NOTES, "Sum-typed requests").
type Variant int

const (
	VariantYMD Variant = iota
	VariantDateRange
)

// Request is a mapping from recognized keys to a scalar or an ordered
// sequence of scalars. Passthrough keys (dataset, product_type, system,
// originating_centre, source, type, ...) are forwarded to the transport
// client verbatim and are not interpreted by the planner.
type Request map[string]any

// AsSlice normalizes a request value to an ordered []any, wrapping scalars
// in a single-element slice. A nil value means the key is absent.
func AsSlice(v any) []any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	default:
		return []any{v}
	}
}

// AsStrings normalizes a request value to an ordered []string.
func AsStrings(v any) []string {
	raw := AsSlice(v)
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = fmt.Sprintf("%v", r)
	}
	return out
}

// Variant reports which time-axis entry shape this request uses, per
// spec.md section 4.D: ymd form has year/month/day/time, date-range form
// has date+time. The two are mutually exclusive.
func (r Request) Variant() (Variant, error) {
	_, hasYear := r["year"]
	_, hasDate := r["date"]
	switch {
	case hasYear && hasDate:
		return 0, errs.Configuration("request must not contain both 'year' and 'date'")
	case hasYear:
		return VariantYMD, nil
	case hasDate:
		return VariantDateRange, nil
	default:
		return 0, errs.Configuration("request must contain either 'year' or 'date'")
	}
}

// Dimensions returns every recognized key present in the request (the
// time and header dimensions, plus "date"), each value passed through
// AsSlice, implementing the chunker contract's request_dimensions()
// (spec.md 4.F.1). Scalar-valued keys are not excluded; they come back as
// one-element slices.
func (r Request) Dimensions() map[string][]any {
	out := map[string][]any{}
	for _, k := range append(append([]string{}, TimeDimensions...), HeaderDimensions...) {
		if v, ok := r[k]; ok {
			out[k] = AsSlice(v)
		}
	}
	if v, ok := r["date"]; ok {
		out["date"] = AsSlice(v)
	}
	return out
}

// Variables returns the list of user-facing variable labels, reading
// whichever of 'variable'/'param' is present. Configuration error if
// neither is present (spec.md section 7, kind 1).
func (r Request) Variables() ([]string, error) {
	for _, key := range PayloadKeys {
		if v, ok := r[key]; ok {
			names := AsStrings(v)
			if len(names) == 0 {
				return nil, errs.Configuration("request key %q must not be empty", key)
			}
			return names, nil
		}
	}
	return nil, errs.Configuration("request must contain 'variable' or 'param'")
}

// WithSingleVariable returns a copy of r restricted to a single value of
// whichever payload key it used, for chunker.Variables() (spec.md 4.F.4):
// one chunker per value of variable/param, request reduced to that value.
func (r Request) WithSingleVariable(name string) Request {
	out := make(Request, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, key := range PayloadKeys {
		if _, ok := r[key]; ok {
			out[key] = name
		}
	}
	return out
}

// Fragment is a subset of request keys/values restricting the parent
// request (spec.md "request_fragment"). Merge combines several fragments
// addressing distinct axes into the single sub-request issued for a
// get_chunk call (spec.md 4.F chunk locator: "accumulate the union of all
// selected chunks' request fragments into one combined fragment").
type Fragment map[string]any

func Merge(base Request, fragments ...Fragment) Request {
	out := make(Request, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, f := range fragments {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// SortedKeys is a small helper used when canonicalising a request for
// hashing (internal/cache content addressing): deterministic key order.
func SortedKeys(r Request) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
