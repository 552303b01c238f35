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

// Package client defines the transport boundary against the remote archive
// (spec.md section 3, "RequestClient"). Concrete implementations live in
// subpackages, one per archive API (cdsapi, opendata, polytope): a protocol
// interface plus interchangeable backends bound at startup from
// configuration.
package client

import "context"

// Result identifies a submitted, completed archive request: enough
// information for Download to fetch it without resubmitting.
type Result interface {
	// Filename is the name the archive would give the downloaded file,
	// used to infer format (grib, netcdf) without reading the file.
	Filename() string
}

// RequestClient submits a retrieval request to a remote archive, blocks
// until it is ready, and downloads it to a local path. Implementations
// must treat network failures as retryable by wrapping them in
// errs.TransientError; the cache layer owns the bounded retry loop.
type RequestClient interface {
	// SubmitAndWait submits request and blocks until the archive has
	// prepared the result, or ctx is cancelled.
	SubmitAndWait(ctx context.Context, request map[string]any) (Result, error)

	// Download writes result to target, returning the path actually
	// written (implementations may ignore target and pick their own
	// path, mirroring the archive client's optional-target convention).
	Download(ctx context.Context, result Result, target string) (string, error)
}
