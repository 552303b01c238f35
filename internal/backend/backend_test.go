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

package backend_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/internal/backend"
	"github.com/bopen/xarray-ecmwf-go/internal/cache/localstore"
	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/decoder/fakegrib"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

type fixedResult struct{ name string }

func (r fixedResult) Filename() string { return r.name }

// docClient always returns the same fixed JSON document, regardless of
// which variable/sub-request is requested, so Open can be exercised
// end to end without any real network access.
type docClient struct{ vars []string }

func (c *docClient) SubmitAndWait(ctx context.Context, req map[string]any) (client.Result, error) {
	return fixedResult{name: "doc.json"}, nil
}

func (c *docClient) Download(ctx context.Context, res client.Result, target string) (string, error) {
	vars := map[string][]float64{}
	attrs := map[string]map[string]any{}
	for _, v := range c.vars {
		vars[v] = []float64{1.0}
		attrs[v] = map[string]any{"units": "K"}
	}
	doc := map[string]any{
		"dims": []string{"time"}, "shape": []int{1}, "dtype": "float64",
		"vars": vars, "var_attrs": attrs,
		"attrs": map[string]any{"Conventions": "CF-1.8"},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return target, os.WriteFile(target, raw, 0o644)
}

func TestOpenRejectsUnknownClient(t *testing.T) {
	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature"},
	}
	_, err := backend.Open(context.Background(), req, backend.Options{Client: "not-a-real-client"})
	require.Error(t, err)
}

func TestOpenBuildsDatasetWithSurvivingVariables(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.New(dir)
	require.NoError(t, err)
	probes, err := localstore.New(dir + "/probes")
	require.NoError(t, err)

	req := request.Request{
		"year": []any{"2022"}, "month": []any{"01"}, "day": []any{"01"},
		"time": []any{"00:00"}, "variable": []any{"2m_temperature", "10m_wind_speed"},
	}

	opts := backend.Options{
		RequestClient:  &docClient{vars: []string{"2m_temperature", "10m_wind_speed"}},
		ChunkingPolicy: cfg.ChunkingPolicy{},
		CacheFile:      true,
		Decoder:        fakegrib.New(),
		Store:          store,
		ProbeStore:     probes,
		DropVariables:  []string{"10m_wind_speed"},
	}

	ds, err := backend.Open(context.Background(), req, opts)
	require.NoError(t, err)
	assert.Contains(t, ds.Variables, "2m_temperature")
	assert.NotContains(t, ds.Variables, "10m_wind_speed")
}
