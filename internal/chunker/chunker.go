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

// Package chunker implements the request chunker (spec.md section 4.F):
// it turns one archive request plus a chunking policy into a deterministic
// plan of sub-requests, and serves reads against that plan through the
// retrieval cache.
package chunker

import (
	"context"
	"sort"
	"time"

	"github.com/bopen/xarray-ecmwf-go/internal/axis"
	"github.com/bopen/xarray-ecmwf-go/internal/cache"
	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
	"github.com/bopen/xarray-ecmwf-go/internal/chunkplan"
	"github.com/bopen/xarray-ecmwf-go/internal/decoder"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/headeraxis"
	"github.com/bopen/xarray-ecmwf-go/internal/labeledarray"
	"github.com/bopen/xarray-ecmwf-go/internal/logger"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
	"github.com/bopen/xarray-ecmwf-go/internal/telemetry"
	"github.com/bopen/xarray-ecmwf-go/internal/timeaxis"
)

// CanonicalOrder is the outermost-to-innermost dim order from spec.md
// section 3: "valid_time, time, step, isobaricInhPa, number, then all
// server-discovered axes in the order the decoder reports them."
var CanonicalOrder = []string{"valid_time", "time", "step", "isobaricInhPa", "number"}

// CoordNameModel renames decoder-reported axis names onto this system's
// canonical names, mechanizing the canonical-name assumption spec.md
// makes but does not itself implement (cf2cdm.translate_coords in
// original_source/xarray_ecmwf/engine_ecmwf.py does the equivalent
// rename against the CDS naming model).
type CoordNameModel map[string]string

// DefaultCoordNameModel covers the raw decoder names this repo's
// supported archives are known to emit for axes the chunk plan does not
// itself produce (server-discovered axes, spec.md section 4.F.3).
var DefaultCoordNameModel = CoordNameModel{
	"level":                "isobaricInhPa",
	"plev":                 "isobaricInhPa",
	"realization":          "number",
	"fcst_reference_time":  "valid_time",
	"reference_time":       "valid_time",
}

func (m CoordNameModel) rename(name string) string {
	if canonical, ok := m[name]; ok {
		return canonical
	}
	return name
}

// Index addresses one dim in a GetChunk key: either a scalar ([Start,
// Start+1)) or a contiguous range [Start, Stop).
type Index struct {
	Start int
	Stop  int
}

// At builds a scalar Index selecting exactly one element.
func At(i int) Index { return Index{Start: i, Stop: i + 1} }

// Range builds a contiguous half-open range Index.
func Range(start, stop int) Index { return Index{Start: start, Stop: stop} }

// Chunker is one request/policy pair's chunk plan plus everything Probe
// discovers about the sample response (spec.md section 4.F).
type Chunker struct {
	req        request.Request
	policy     cfg.ChunkingPolicy
	variant    request.Variant
	coordModel CoordNameModel

	cache   *cache.Cache
	metrics telemetry.Handle

	dims        []string // canonical order, restricted to what this request actually has
	axes        map[string]axis.Axis
	planFrags   map[string][]chunkplan.Fragment
	sizes       map[string][]int
	dtype       axis.Dtype
	varAttrs    map[string]any
	datasetAttr map[string]any
	decodedName string
	variable    string

	// stepCollapse is set by Probe when neither leadtime_hour nor step was
	// requested but the sample response reports a step dimension anyway
	// (spec.md section 4.F, "Reanalysis disambiguation"): subsequent
	// retrievals should collapse step into time.
	stepCollapse bool
}

// New validates the request/policy pair and returns a Chunker ready for
// Plan and Probe. No transport call is made here (spec.md section 7,
// kind 1: configuration errors are surfaced before any transport call).
func New(req request.Request, policy cfg.ChunkingPolicy, c *cache.Cache) (*Chunker, error) {
	variant, err := req.Variant()
	if err != nil {
		return nil, err
	}
	if err := policy.Validate(variant); err != nil {
		return nil, err
	}
	if _, err := req.Variables(); err != nil {
		return nil, err
	}
	return &Chunker{
		req:        req,
		policy:     policy,
		variant:    variant,
		coordModel: DefaultCoordNameModel,
		cache:      c,
		metrics:    telemetry.Noop,
	}, nil
}

// WithMetrics attaches a telemetry.Handle that Probe and GetChunk record
// against; it returns c so callers can chain it onto New's result. Children
// produced by Variables inherit the parent's handle.
func (c *Chunker) WithMetrics(m telemetry.Handle) *Chunker {
	if m != nil {
		c.metrics = m
	}
	return c
}

// RequestDimensions implements spec.md section 4.F.1.
func (c *Chunker) RequestDimensions() map[string][]any {
	return c.req.Dimensions()
}

// Plan implements spec.md section 4.F.2: builds the chunk plan for the
// time axis and every present header dimension. Pure function of the
// request and policy; performs no transport call.
func (c *Chunker) Plan() error {
	times, sizes, frags, err := timeaxis.Build(c.req, c.policy)
	if err != nil {
		return err
	}

	c.axes = map[string]axis.Axis{"time": axis.TimeAxis(times)}
	c.sizes = map[string][]int{"time": sizes}
	c.planFrags = map[string][]chunkplan.Fragment{"time": frags}
	c.dims = []string{"time"}

	for _, dim := range request.HeaderDimensions {
		if _, ok := c.req[dim]; !ok {
			continue
		}
		values, _, hfrags, err := headeraxis.Build(dim, c.req, c.policy)
		if err != nil {
			return err
		}
		outDim, a := headerAxisFor(dim, values)
		c.axes[outDim] = a
		c.sizes[outDim] = sizesFromFragments(hfrags, len(values))
		c.planFrags[outDim] = hfrags
		if !containsString(c.dims, outDim) {
			c.dims = append(c.dims, outDim)
		}
	}

	c.dims = orderByCanonical(c.dims, CanonicalOrder)

	return nil
}

// orderByCanonical reorders dims (a subset of order, spec.md section 3's
// canonical axis order invariant) to match order's relative positions.
// Any dim not present in order keeps its original relative position,
// appended after every dim that is in order — this is how Probe's
// server-discovered axes land, in the order the decoder reports them.
func orderByCanonical(dims []string, order []string) []string {
	rank := make(map[string]int, len(order))
	for i, d := range order {
		rank[d] = i
	}
	out := append([]string{}, dims...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		if iok && jok {
			return ri < rj
		}
		return iok && !jok
	})
	return out
}

// sizesFromFragments derives per-chunk sizes from consecutive fragment
// start offsets, so the reported chunk sizes always agree with the
// fragments actually used by the chunk locator.
func sizesFromFragments(frags []chunkplan.Fragment, total int) []int {
	sizes := make([]int, len(frags))
	for i, f := range frags {
		next := total
		if i+1 < len(frags) {
			next = frags[i+1].Start
		}
		sizes[i] = next - f.Start
	}
	return sizes
}

func headerAxisFor(dim string, values []string) (string, axis.Axis) {
	switch dim {
	case "step", "leadtime_hour":
		hours := make([]int32, len(values))
		for i, v := range values {
			hours[i] = parseInt32(v)
		}
		return "step", axis.StepAxis(scaleHoursToDurations(hours))
	case "pressure_level", "levelist":
		ints := make([]int32, len(values))
		for i, v := range values {
			ints[i] = parseInt32(v)
		}
		return "isobaricInhPa", axis.Int32Axis("isobaricInhPa", ints, map[string]any{"units": "hPa"})
	case "number":
		ints := make([]int64, len(values))
		for i, v := range values {
			ints[i] = int64(parseInt32(v))
		}
		return "number", axis.Int64Axis("number", ints)
	default:
		ints := make([]int32, len(values))
		for i, v := range values {
			ints[i] = parseInt32(v)
		}
		return dim, axis.Int32Axis(dim, ints, nil)
	}
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Chunks implements spec.md section 4.F.5.
func (c *Chunker) Chunks() map[string][]int {
	return c.sizes
}

// Variables implements spec.md section 4.F.4: one chunker per value of
// variable/param, sharing policy and cache.
func (c *Chunker) Variables() (map[string]*Chunker, error) {
	names, err := c.req.Variables()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Chunker, len(names))
	for _, name := range names {
		child := &Chunker{
			req:        c.req.WithSingleVariable(name),
			policy:     c.policy,
			variant:    c.variant,
			coordModel: c.coordModel,
			cache:      c.cache,
			metrics:    c.metrics,
			variable:   name,
		}
		if err := child.Plan(); err != nil {
			return nil, err
		}
		out[name] = child
	}
	return out, nil
}

// Probe implements spec.md section 4.F.3: fetch the sample sub-request
// (the first fragment along every chunked axis, combined), discover
// server-only axes, and record dtype/attrs/decoded variable name.
func (c *Chunker) Probe(ctx context.Context) error {
	if c.axes == nil {
		if err := c.Plan(); err != nil {
			return err
		}
	}

	fragment := request.Fragment{}
	for _, dim := range c.dims {
		frags := c.planFrags[dim]
		if len(frags) == 0 {
			continue
		}
		for k, v := range frags[0].Fragment {
			fragment[k] = v
		}
	}
	sampleReq := request.Merge(c.req, fragment)

	if c.cache == nil {
		return errs.Configuration("chunker: no cache configured for probe")
	}
	probeStart := time.Now()
	ds, err := c.cache.CachedEmptyDataset(ctx, sampleReq)
	if err != nil {
		c.recordProbeLatency(ctx, probeStart, "error")
		return &errs.ProbeError{Variable: c.variable, Err: err}
	}

	variable, found := pickVariable(ds, c.variable)
	if !found {
		c.recordProbeLatency(ctx, probeStart, "no_match")
		return &errs.ProbeError{Variable: c.variable, Err: errs.Configuration("decoder returned no matching variable")}
	}
	c.recordProbeLatency(ctx, probeStart, "ok")

	c.dtype = variable.Array.Dtype
	c.varAttrs = variable.Attrs
	c.datasetAttr = ds.Attrs
	c.decodedName = variable.DecodedName

	discovered := serverOnlyDims(variable.Array.Dims, c.dims)
	for _, raw := range discovered {
		canonical := c.coordModel.rename(raw)
		if !containsString(c.dims, canonical) {
			c.dims = append(c.dims, canonical)
		}
	}

	_, hasLeadtime := c.req["leadtime_hour"]
	_, hasStep := c.req["step"]
	if !hasLeadtime && !hasStep && containsString(variable.Array.Dims, "step") {
		c.stepCollapse = true
	}

	return nil
}

func (c *Chunker) recordProbeLatency(ctx context.Context, start time.Time, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProbeLatency(ctx, time.Since(start), outcome)
}

func pickVariable(ds *decoder.Dataset, requested string) (decoder.Variable, bool) {
	if v, ok := ds.Vars[requested]; ok {
		return v, true
	}
	for _, v := range ds.Vars {
		return v, true
	}
	return decoder.Variable{}, false
}

func serverOnlyDims(reported []string, known []string) []string {
	var out []string
	for _, d := range reported {
		if !containsString(known, d) {
			out = append(out, d)
		}
	}
	return out
}

// Dtype returns the probed variable dtype (spec.md section 4.F.3).
func (c *Chunker) Dtype() axis.Dtype { return c.dtype }

// DatasetAttrs returns the dataset-level attrs discovered by Probe.
func (c *Chunker) DatasetAttrs() map[string]any { return c.datasetAttr }

// VarAttrs returns the probed variable's attrs.
func (c *Chunker) VarAttrs() map[string]any { return c.varAttrs }

// Dims returns the canonical dim order for this chunker's variable.
func (c *Chunker) Dims() []string { return c.dims }

// DecodedName returns the decoder-assigned variable name discovered by
// Probe, used by backend.Open to apply drop_variables by either the
// user-facing label or the decoder's own name (spec.md section 4.H).
func (c *Chunker) DecodedName() string { return c.decodedName }

// Shape returns the full shape along Dims().
func (c *Chunker) Shape() []int {
	shape := make([]int, len(c.dims))
	for i, d := range c.dims {
		shape[i] = sumSizes(c.sizes[d])
	}
	return shape
}

func sumSizes(sizes []int) int {
	n := 0
	for _, s := range sizes {
		n += s
	}
	return n
}

// GetChunk implements the chunk locator algorithm (spec.md section 4.F,
// "Chunk locator algorithm"). key must have one Index per c.Dims().
func (c *Chunker) GetChunk(ctx context.Context, key []Index) (labeledarray.Array, error) {
	if len(key) != len(c.dims) {
		return labeledarray.Array{}, errs.Configuration("chunker: key length %d != dim count %d", len(key), len(c.dims))
	}

	for _, k := range key {
		if k.Start == k.Stop {
			return c.emptyChunk(key), nil
		}
	}

	combined := request.Fragment{}
	rebased := make([]Index, len(key))
	chunkIndexByDim := map[string]int{}

	for i, dim := range c.dims {
		frags, chunked := c.planFrags[dim]
		if !chunked || len(frags) == 0 {
			rebased[i] = key[i]
			continue
		}
		starts := make([]int, len(frags))
		for j, f := range frags {
			starts[j] = f.Start
		}
		idx := bisectRightMinusOne(starts, key[i].Start)
		if idx < 0 || idx >= len(frags) {
			return labeledarray.Array{}, errs.Configuration("chunker: index %d out of range on dim %q", key[i].Start, dim)
		}
		chunkIndexByDim[dim] = idx
		for k, v := range frags[idx].Fragment {
			combined[k] = v
		}
		rebased[i] = Index{Start: key[i].Start - frags[idx].Start, Stop: key[i].Stop - frags[idx].Start}
	}

	subReq := request.Merge(c.req, combined)

	if c.metrics != nil {
		for dim := range chunkIndexByDim {
			c.metrics.ChunkRead(ctx, dim)
		}
	}

	if c.cache == nil {
		return labeledarray.Array{}, errs.Configuration("chunker: no cache configured")
	}
	handle, err := c.cache.Retrieve(ctx, subReq)
	if err != nil {
		return labeledarray.Array{}, err
	}
	defer func() {
		if err := handle.Close(ctx); err != nil {
			logger.Warnf("chunker: %v", err)
		}
	}()

	variable, found := pickVariable(handle.Dataset, c.variable)
	if !found {
		return labeledarray.Array{}, errs.Configuration("chunker: decoder returned no matching variable for %q", c.variable)
	}

	arr := variable.Array
	renamedDims := make([]string, len(arr.Dims))
	for i, d := range arr.Dims {
		renamedDims[i] = c.coordModel.rename(d)
	}
	arr.Dims = renamedDims

	for _, dim := range c.dims {
		if !containsString(arr.Dims, dim) {
			var err error
			arr, err = arr.ExpandDims(dim, len(arr.Dims))
			if err != nil {
				return labeledarray.Array{}, err
			}
		}
	}

	arr, err = arr.Transpose(c.dims)
	if err != nil {
		return labeledarray.Array{}, err
	}

	if timeIdx, ok := chunkIndexByDim["time"]; ok && timeIdx == 0 {
		arr = fixShortFirstChunk(arr, "time", c.sizes["time"][0])
	}

	sliced := arr
	for i, dim := range c.dims {
		idx := rebased[i]
		sliced, err = sliced.Slice(dim, idx.Start, idx.Stop)
		if err != nil {
			return labeledarray.Array{}, err
		}
	}

	return sliced, nil
}

// emptyChunk builds the zero-length result for a key that selects no
// element along at least one dim (spec.md section 8, P7: "a range
// selection that straddles no axis value yields a zero-length axis and
// performs no sub-request"). The other dims keep the length the caller
// asked for, since the locator never needs to touch a fragment to know
// that length.
func (c *Chunker) emptyChunk(key []Index) labeledarray.Array {
	shape := make([]int, len(key))
	for i, k := range key {
		shape[i] = k.Stop - k.Start
	}
	return labeledarray.Array{
		Dims:  append([]string{}, c.dims...),
		Shape: shape,
		Dtype: c.dtype,
		Data:  []float64{},
		Attrs: c.varAttrs,
	}
}

func bisectRightMinusOne(starts []int, at int) int {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > at })
	return i - 1
}

// fixShortFirstChunk pads the head of a short first chunk along dim with
// the missing-value sentinel (spec.md section 4.F, "Short-first-chunk
// fix-up").
func fixShortFirstChunk(arr labeledarray.Array, dim string, expected int) labeledarray.Array {
	dimIdx := -1
	for i, d := range arr.Dims {
		if d == dim {
			dimIdx = i
			break
		}
	}
	if dimIdx < 0 || arr.Shape[dimIdx] >= expected {
		return arr
	}
	missing, ok := arr.Dtype.MissingValue()
	if !ok {
		return arr
	}

	newShape := append([]int{}, arr.Shape...)
	short := newShape[dimIdx]
	newShape[dimIdx] = expected
	total := 1
	for _, s := range newShape {
		total *= s
	}
	padded := make([]float64, total)
	for i := range padded {
		padded[i] = missing
	}

	pad := expected - short
	outerSize := 1
	for i := 0; i < dimIdx; i++ {
		outerSize *= arr.Shape[i]
	}
	innerSize := 1
	for i := dimIdx + 1; i < len(arr.Shape); i++ {
		innerSize *= arr.Shape[i]
	}

	for outer := 0; outer < outerSize; outer++ {
		for d := 0; d < short; d++ {
			srcBase := (outer*short + d) * innerSize
			dstBase := (outer*expected + pad + d) * innerSize
			copy(padded[dstBase:dstBase+innerSize], arr.Data[srcBase:srcBase+innerSize])
		}
	}

	return labeledarray.Array{Dims: arr.Dims, Shape: newShape, Dtype: arr.Dtype, Data: padded, Attrs: arr.Attrs}
}

func parseInt32(s string) int32 {
	var n int32
	var neg bool
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int32(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func scaleHoursToDurations(hours []int32) []time.Duration {
	out := make([]time.Duration, len(hours))
	for i, h := range hours {
		out[i] = time.Duration(h) * time.Hour
	}
	return out
}
