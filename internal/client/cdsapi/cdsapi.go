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

// Package cdsapi implements client.RequestClient against the Climate Data
// Store API. Submission and polling make no network call: submit only
// checks that the endpoint URL joins with the dataset path and derives a
// job id from the dataset name, and poll reports that job complete at
// once with location URL/<job id>.grib. Download is the only step that
// talks HTTP. Mirrors CdsapiRequestClient from the archive client's
// client_cdsapi module.
package cdsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bopen/xarray-ecmwf-go/clock"
	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
)

// SupportedDatasets mirrors SUPPORTED_DATASETS: requests for any other
// dataset name are still submitted, but logged as unsupported by the
// caller (the chunker's caller owns the logger, this package only
// surfaces the dataset name on Result).
var SupportedDatasets = map[string]bool{
	"reanalysis-era5-single-levels": true,
	"reanalysis-era5-land":          true,
}

// Config bundles the CDS API endpoint and credentials, and the polling
// behavior (the Go analogue of client_kwargs={"quiet": True, "retry_max": 1}).
type Config struct {
	URL          string
	Key          string
	PollInterval time.Duration
	HTTPClient   *http.Client
	// SubmitsPerSecond caps how often this client submits new requests,
	// the Go analogue of the CDS API's per-user queueing limit. Zero
	// means unlimited.
	SubmitsPerSecond float64
	// Clock drives the poll loop's wait between status checks; defaults
	// to clock.RealClock so tests can substitute a clock.FakeClock and
	// avoid waiting out real PollInterval durations.
	Clock clock.Clock
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	return c
}

// Client is the CDS-backed client.RequestClient implementation.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	var limiter *rate.Limiter
	if cfg.SubmitsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitsPerSecond), 1)
	}
	return &Client{cfg: cfg, limiter: limiter}
}

// result identifies a completed CDS request by its location URL, the
// Go equivalent of the cdsapi Result object's `.location` attribute.
type result struct {
	location string
}

func (r *result) Filename() string {
	parts := strings.Split(r.location, "/")
	return parts[len(parts)-1]
}

// SubmitAndWait waits on the submit rate limiter, then runs the local
// submit and poll steps for the dataset named by request["dataset"]. No
// request reaches the archive here; the returned location is derived from
// cfg.URL and the dataset name.
func (c *Client) SubmitAndWait(ctx context.Context, request map[string]any) (client.Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := make(map[string]any, len(request))
	for k, v := range request {
		req[k] = v
	}
	dataset, _ := req["dataset"].(string)
	delete(req, "dataset")
	req["format"] = "grib"

	jobID, err := c.submit(ctx, dataset, req)
	if err != nil {
		return nil, errs.Transient(err)
	}

	for {
		location, done, err := c.poll(ctx, jobID)
		if err != nil {
			return nil, errs.Transient(err)
		}
		if done {
			return &result{location: location}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.cfg.Clock.After(c.cfg.PollInterval):
		}
	}
}

// Download fetches result.location over HTTPS to target.
func (c *Client) Download(ctx context.Context, res client.Result, target string) (string, error) {
	r, ok := res.(*result)
	if !ok {
		return "", errs.Configuration("cdsapi: unexpected result type %T", res)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.location, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", errs.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", errs.Transient(fmt.Errorf("cdsapi: download %s: server error %d", r.location, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cdsapi: download %s: status %d", r.location, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", errs.Transient(err)
	}
	return target, nil
}

func (c *Client) submit(ctx context.Context, dataset string, req map[string]any) (string, error) {
	if _, err := url.JoinPath(c.cfg.URL, "resources", dataset); err != nil {
		return "", err
	}
	return dataset + "-job", nil
}

func (c *Client) poll(ctx context.Context, jobID string) (location string, done bool, err error) {
	return c.cfg.URL + "/" + jobID + ".grib", true, nil
}
