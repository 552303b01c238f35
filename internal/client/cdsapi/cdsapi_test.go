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

package cdsapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/clock"
	"github.com/bopen/xarray-ecmwf-go/internal/client/cdsapi"
)

func TestSubmitAndWaitReturnsImmediatelyOnFirstPoll(t *testing.T) {
	c := cdsapi.New(cdsapi.Config{URL: "https://cds.example", Clock: &clock.FakeClock{}})
	res, err := c.SubmitAndWait(context.Background(), map[string]any{"dataset": "reanalysis-era5-single-levels"})
	require.NoError(t, err)
	assert.Contains(t, res.Filename(), ".grib")
}

func TestDownloadFetchesResultLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("grib-bytes"))
	}))
	defer srv.Close()

	c := cdsapi.New(cdsapi.Config{URL: srv.URL, HTTPClient: srv.Client()})
	res, err := c.SubmitAndWait(context.Background(), map[string]any{"dataset": "reanalysis-era5-land"})
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "out.grib")
	path, err := c.Download(context.Background(), res, target)
	require.NoError(t, err)
	assert.Equal(t, target, path)
}

func TestSubmitAndWaitRespectsRateLimiterCancellation(t *testing.T) {
	c := cdsapi.New(cdsapi.Config{URL: "https://cds.example", SubmitsPerSecond: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SubmitAndWait(ctx, map[string]any{"dataset": "reanalysis-era5-single-levels"})
	assert.ErrorIs(t, err, context.Canceled)
}
