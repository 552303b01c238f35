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

// Package polytope implements client.RequestClient against the
// Destination Earth polytope feature-extraction service. Mirrors
// PolytopeRequestClient, including its empty-file sanity check after
// download: a zero-byte file means the service accepted the request but
// had nothing to return, which the archive client treats as an error
// rather than an empty dataset.
package polytope

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
)

type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

type result struct {
	request map[string]any
	target  string
}

func (r *result) Filename() string { return r.target }

func (c *Client) SubmitAndWait(ctx context.Context, request map[string]any) (client.Result, error) {
	req := make(map[string]any, len(request))
	for k, v := range request {
		req[k] = v
	}
	return &result{request: req, target: hashRequest(req) + ".grib"}, nil
}

// Download retrieves the "destination-earth" collection for result.request
// and rejects a zero-byte response, matching the Python client's
// os.stat(target).st_size == 0 check.
func (c *Client) Download(ctx context.Context, res client.Result, target string) (string, error) {
	r, ok := res.(*result)
	if !ok {
		return "", errs.Configuration("polytope: unexpected result type %T", res)
	}
	if target == "" {
		return "", errs.Configuration("polytope: download requires an explicit target path")
	}

	body, err := json.Marshal(r.request)
	if err != nil {
		return "", err
	}
	endpoint := c.cfg.URL + "/requests/destination-earth"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", errs.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", errs.Transient(fmt.Errorf("polytope: status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("polytope: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		return "", errs.Transient(err)
	}
	if closeErr != nil {
		return "", closeErr
	}
	if written == 0 {
		return "", fmt.Errorf("polytope: returned an empty file for %s", target)
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
