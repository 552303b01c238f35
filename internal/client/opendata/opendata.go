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

// Package opendata implements client.RequestClient against the ECMWF open
// data feed: no submit/poll round trip, a request is just a parameter set
// that downloads directly. Mirrors EcmwfOpendataRequestClient.
package opendata

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/roundrobinslice"
)

type Config struct {
	// Source is the mirror used when Mirrors is empty ("ecmwf" or a
	// named mirror).
	Source string
	// Mirrors, when non-empty, is a pool of equivalent open-data mirrors
	// that Download rotates across round-robin, so a deployment serving
	// many concurrent opens doesn't concentrate load on one host.
	Mirrors    []string
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

type Client struct {
	cfg     Config
	mirrors *roundrobinslice.RoundRobin[string]
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, mirrors: roundrobinslice.New(cfg.Mirrors)}
}

type result struct {
	request map[string]any
	target  string
}

func (r *result) Filename() string { return r.target }

// SubmitAndWait has no network round trip for open data: the "result" is
// just the request plus a content-derived target filename, matching the
// Python client's md5(str(request)) naming scheme.
func (c *Client) SubmitAndWait(ctx context.Context, request map[string]any) (client.Result, error) {
	req := make(map[string]any, len(request))
	for k, v := range request {
		req[k] = v
	}
	return &result{request: req, target: hashRequest(req) + ".grib"}, nil
}

// Download builds the open-data request URL from result.request and
// streams it to target.
func (c *Client) Download(ctx context.Context, res client.Result, target string) (string, error) {
	r, ok := res.(*result)
	if !ok {
		return "", errs.Configuration("opendata: unexpected result type %T", res)
	}

	source := c.cfg.Source
	if m, ok := c.mirrors.Get(); ok {
		source = m
	}
	if s, ok := r.request["source"].(string); ok {
		source = s
	}
	q := url.Values{}
	for k, v := range r.request {
		if k == "source" {
			continue
		}
		q.Set(k, fmt.Sprintf("%v", v))
	}
	endpoint := fmt.Sprintf("https://%s.opendata.example/forecasts?%s", source, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", errs.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", errs.Transient(fmt.Errorf("opendata: status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("opendata: status %d", resp.StatusCode)
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

func hashRequest(req map[string]any) string {
	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := md5.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, req[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
