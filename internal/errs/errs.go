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

// Package errs defines the four error kinds the backend distinguishes:
// configuration, metadata-probe, transient-retrieval and cache-hygiene.
package errs

import "fmt"

// ConfigurationError is returned when the caller programmed the request or
// chunking policy incorrectly. It is never retried and never wraps a
// transport failure.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func Configuration(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientError marks a failure the cache's bounded retry loop may recover
// from (network errors, timeouts). Anything not wrapped in TransientError
// propagates to the caller on the first failure.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// ProbeError records that the metadata probe failed for a single variable.
// The chunker continues probing the remaining variables; ProbeError is only
// surfaced to the caller when every variable's probe failed.
type ProbeError struct {
	Variable string
	Err      error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("metadata probe failed for variable %q: %v", e.Variable, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// CacheHygieneError marks a failure in best-effort housekeeping (deleting a
// stale temp file, removing a side-car index). Callers log and swallow it;
// it must never fail a user-visible call.
type CacheHygieneError struct {
	Op  string
	Err error
}

func (e *CacheHygieneError) Error() string {
	return fmt.Sprintf("cache hygiene: %s: %v", e.Op, e.Err)
}

func (e *CacheHygieneError) Unwrap() error { return e.Err }

func CacheHygiene(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CacheHygieneError{Op: op, Err: err}
}
