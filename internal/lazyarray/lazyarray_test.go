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

package lazyarray_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
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
	"github.com/bopen/xarray-ecmwf-go/internal/lazyarray"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

func TestDimsAndShapeAreAnsweredWithoutFetching(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01", "02"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature"},
	}
	c, err := chunker.New(req, cfg.ChunkingPolicy{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Plan())

	a := lazyarray.New(c)
	assert.Equal(t, []string{"time"}, a.Dims())
	assert.Equal(t, []int{2}, a.Shape())
}

func TestAtRejectsMismatchedKeyLength(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature"},
	}
	c, err := chunker.New(req, cfg.ChunkingPolicy{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Plan())

	a := lazyarray.New(c)
	_, err = a.At(context.Background(), chunker.At(0), chunker.At(0))
	require.Error(t, err)
}

// fixtureClient answers every sub-request with a one-element time series,
// enough for Prefetch to exercise a real cache round trip per key.
type fixtureClient struct{ downloads int }

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

type fixtureResult struct{ name string }

func (r fixtureResult) Filename() string { return r.name }

func (c *fixtureClient) SubmitAndWait(ctx context.Context, req map[string]any) (client.Result, error) {
	return fixtureResult{name: canonicalName(req)}, nil
}

func (c *fixtureClient) Download(ctx context.Context, res client.Result, target string) (string, error) {
	c.downloads++
	doc := `{"dims":["time"],"shape":[1],"dtype":"float64","vars":{"2m_temperature":[1.0]},"var_attrs":{},"attrs":{}}`
	return target, os.WriteFile(target, []byte(doc), 0o644)
}

func TestPrefetchWarmsCacheForEveryKey(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01", "02", "03"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature"},
	}

	dir := t.TempDir()
	store, err := localstore.New(dir)
	require.NoError(t, err)
	probes, err := localstore.New(dir + "/probes")
	require.NoError(t, err)
	fc := &fixtureClient{}
	c := cache.New(store, probes, fc, fakegrib.New(), cache.Options{CacheFile: true})

	ch, err := chunker.New(req, cfg.ChunkingPolicy{"day": 1}, c)
	require.NoError(t, err)
	require.NoError(t, ch.Plan())
	children, err := ch.Variables()
	require.NoError(t, err)
	child := children["2m_temperature"]
	require.NoError(t, child.Probe(context.Background()))

	a := lazyarray.New(child)
	keys := [][]chunker.Index{
		{chunker.At(0)}, {chunker.At(1)}, {chunker.At(2)},
	}
	require.NoError(t, a.Prefetch(context.Background(), keys, 2))
	assert.GreaterOrEqual(t, fc.downloads, 3)
}
