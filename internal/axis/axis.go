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

// Package axis defines the coordinate axes of the virtual dataset: named
// sequences of coordinate values of uniform dtype (spec.md section 3,
// "Axis").
package axis

import (
	"math"
	"time"
)

// Dtype is the element type of an axis or a variable's payload.
type Dtype int

const (
	Float32 Dtype = iota
	Float64
	Int32
	Int64
	// DatetimeNS is a nanosecond-resolution timestamp (the 'time' axis).
	DatetimeNS
	// DurationNS is a nanosecond-resolution, hour-scaled duration (the
	// 'step' axis).
	DurationNS
)

func (d Dtype) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case DatetimeNS:
		return "datetime64[ns]"
	case DurationNS:
		return "timedelta64[ns]"
	default:
		return "unknown"
	}
}

// MissingValue returns the sentinel used by the chunker's short-first-chunk
// fix-up (spec.md section 4.F) to fill in the padded head of a short first
// chunk. Only float dtypes have a well-defined missing-value sentinel;
// integer/time dtypes return (0, false).
func (d Dtype) MissingValue() (float64, bool) {
	switch d {
	case Float32, Float64:
		return math.NaN(), true
	default:
		return 0, false
	}
}

// Axis is a named, ordered, uniformly-typed coordinate sequence.
type Axis struct {
	Name   string
	Dtype  Dtype
	Times  []time.Time     // populated when Dtype == DatetimeNS
	Durs   []time.Duration // populated when Dtype == DurationNS
	Ints32 []int32         // populated when Dtype == Int32
	Ints64 []int64         // populated when Dtype == Int64
	Floats []float64       // populated when Dtype == Float32 or Float64
	Attrs  map[string]any
}

// Len returns the number of coordinate values on the axis.
func (a Axis) Len() int {
	switch a.Dtype {
	case DatetimeNS:
		return len(a.Times)
	case DurationNS:
		return len(a.Durs)
	case Int32:
		return len(a.Ints32)
	case Int64:
		return len(a.Ints64)
	default:
		return len(a.Floats)
	}
}

// StrictlyOrdered checks the section 3 invariant that time/step/level axes
// are strictly ordered with no ties.
func (a Axis) StrictlyOrdered() bool {
	n := a.Len()
	less := func(i, j int) bool {
		switch a.Dtype {
		case DatetimeNS:
			return a.Times[i].Before(a.Times[j])
		case DurationNS:
			return a.Durs[i] < a.Durs[j]
		case Int32:
			return a.Ints32[i] < a.Ints32[j]
		case Int64:
			return a.Ints64[i] < a.Ints64[j]
		default:
			return a.Floats[i] < a.Floats[j]
		}
	}
	for i := 1; i < n; i++ {
		if !less(i-1, i) {
			return false
		}
	}
	return true
}

// Int32Axis builds an Int32 axis with the given attrs (used for
// isobaricInhPa, attr units=hPa, per spec.md section 3's axis table).
func Int32Axis(name string, values []int32, attrs map[string]any) Axis {
	return Axis{Name: name, Dtype: Int32, Ints32: values, Attrs: attrs}
}

// Int64Axis builds an Int64 axis (used for 'number').
func Int64Axis(name string, values []int64) Axis {
	return Axis{Name: name, Dtype: Int64, Ints64: values}
}

// TimeAxis builds the nanosecond-datetime 'time' axis.
func TimeAxis(values []time.Time) Axis {
	return Axis{Name: "time", Dtype: DatetimeNS, Times: values}
}

// StepAxis builds the nanosecond-duration 'step' axis (hour-scaled).
func StepAxis(values []time.Duration) Axis {
	return Axis{Name: "step", Dtype: DurationNS, Durs: values}
}
