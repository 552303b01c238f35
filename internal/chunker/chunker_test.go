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

package chunker_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/internal/cache"
	"github.com/bopen/xarray-ecmwf-go/internal/cache/localstore"
	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
	"github.com/bopen/xarray-ecmwf-go/internal/chunker"
	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/decoder/fakegrib"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

// syntheticClient answers every sub-request with a one-element "step"
// JSON fixture, whatever step values were requested, so GetChunk's fetch
// can be driven against real cache/decoder machinery end to end.
type syntheticClient struct{}

func canonicalName(req map[string]any) string {
	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := md5.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, req[k])
	}
	return hex.EncodeToString(h.Sum(nil)) + ".json"
}

type jsonResult struct{ name string }

func (r jsonResult) Filename() string { return r.name }

func (c *syntheticClient) SubmitAndWait(ctx context.Context, req map[string]any) (client.Result, error) {
	return jsonResult{name: canonicalName(req)}, nil
}

func (c *syntheticClient) Download(ctx context.Context, res client.Result, target string) (string, error) {
	r := res.(jsonResult)
	steps, _ := r.decodeSteps()
	n := len(steps)
	if n == 0 {
		n = 1
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i + 1)
	}
	doc := map[string]any{
		"dims":  []string{"step"},
		"shape": []int{n},
		"dtype": "float64",
		"vars":  map[string][]float64{"2m_temperature": data},
		"var_attrs": map[string]map[string]any{
			"2m_temperature": {"units": "K"},
		},
		"attrs": map[string]any{"Conventions": "CF-1.8"},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return target, os.WriteFile(target, raw, 0o644)
}

// decodeSteps is a stand-in: the synthetic client doesn't actually need
// to read the request back out, since step count is fixed per fixture
// in these tests. Kept for symmetry with a production client.
func (r jsonResult) decodeSteps() ([]string, error) { return nil, nil }

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	dir := t.TempDir()
	store, err := localstore.New(dir)
	require.NoError(t, err)
	probes, err := localstore.New(dir + "/probes")
	require.NoError(t, err)
	return cache.New(store, probes, &syntheticClient{}, fakegrib.New(), cache.Options{CacheFile: true})
}

func TestPlanBuildsTimeAxisWithoutNetworkAccess(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01", "02"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature"},
	}
	c, err := chunker.New(req, cfg.ChunkingPolicy{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Plan())
	assert.Equal(t, []int{2}, c.Chunks()["time"])
}

func TestNewRejectsMissingVariable(t *testing.T) {
	req := request.Request{"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"}, "time": []any{"00:00"}}
	_, err := chunker.New(req, cfg.ChunkingPolicy{}, nil)
	require.Error(t, err)
}

func TestNewRejectsIllegalPolicy(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature"},
	}
	_, err := chunker.New(req, cfg.ChunkingPolicy{"month": 2}, nil)
	require.Error(t, err)
}

func TestGetChunkFetchesAndSlicesHeaderAxis(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "step": []any{"0", "6", "12"},
		"variable": []any{"2m_temperature"},
	}
	c := newTestCache(t)
	ch, err := chunker.New(req, cfg.ChunkingPolicy{"step": 1}, c)
	require.NoError(t, err)
	require.NoError(t, ch.Plan())

	children, err := ch.Variables()
	require.NoError(t, err)
	child := children["2m_temperature"]
	require.NotNil(t, child)

	require.NoError(t, child.Probe(context.Background()))
	assert.Contains(t, child.Dims(), "step")

	dims := child.Dims()
	key := make([]chunker.Index, len(dims))
	for i, d := range dims {
		if d == "step" {
			key[i] = chunker.At(1)
		} else {
			key[i] = chunker.At(0)
		}
	}
	arr, err := child.GetChunk(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, arr.Shape[indexOf(arr.Dims, "step")])
}

func indexOf(dims []string, name string) int {
	for i, d := range dims {
		if d == name {
			return i
		}
	}
	return -1
}

// TestPlanOrdersDimsCanonically pins spec.md section 3's canonical axis
// order invariant for a request combining number with step: the produced
// dims must come out [time, step, number], not the header-dimension
// iteration order ([time, number, step]) request.HeaderDimensions happens
// to list them in.
func TestPlanOrdersDimsCanonically(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "step": []any{"0", "6"}, "number": []any{"1", "2", "3"},
		"variable": []any{"2m_temperature"},
	}
	c, err := chunker.New(req, cfg.ChunkingPolicy{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Plan())
	assert.Equal(t, []string{"time", "step", "number"}, c.Dims())
}

// countingClient wraps syntheticClient to count Download calls, so a test
// can assert a real sub-request never happened.
type countingClient struct {
	syntheticClient
	downloads int
}

func (c *countingClient) Download(ctx context.Context, res client.Result, target string) (string, error) {
	c.downloads++
	return c.syntheticClient.Download(ctx, res, target)
}

// TestGetChunkSkipsSubRequestForEmptyRange pins spec.md section 8, P7: a
// range selection that straddles no axis value yields a zero-length axis
// and performs no sub-request.
func TestGetChunkSkipsSubRequestForEmptyRange(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "step": []any{"0", "6", "12"},
		"variable": []any{"2m_temperature"},
	}
	dir := t.TempDir()
	store, err := localstore.New(dir)
	require.NoError(t, err)
	probes, err := localstore.New(dir + "/probes")
	require.NoError(t, err)
	cc := &countingClient{}
	c := cache.New(store, probes, cc, fakegrib.New(), cache.Options{CacheFile: true})

	ch, err := chunker.New(req, cfg.ChunkingPolicy{"step": 1}, c)
	require.NoError(t, err)
	require.NoError(t, ch.Plan())
	children, err := ch.Variables()
	require.NoError(t, err)
	child := children["2m_temperature"]
	require.NoError(t, child.Probe(context.Background()))

	before := cc.downloads

	dims := child.Dims()
	key := make([]chunker.Index, len(dims))
	for i, d := range dims {
		if d == "step" {
			key[i] = chunker.Range(1, 1)
		} else {
			key[i] = chunker.At(0)
		}
	}
	arr, err := child.GetChunk(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 0, arr.Shape[indexOf(arr.Dims, "step")])
	assert.Equal(t, before, cc.downloads, "empty range must not trigger a sub-request")
}
