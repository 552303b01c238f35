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

// Package retry implements the cache layer's bounded retry policy: at most
// two attempts, and only for failures the caller marked as transient
// (spec.md section 7, kind 3, "TransientError"). Anything else propagates
// on the first failure.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bopen/xarray-ecmwf-go/clock"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
)

const (
	maxAttempts  = 2
	initialDelay = 500 * time.Millisecond
)

// Do runs fn against a real clock; see DoWithClock.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return DoWithClock(ctx, clock.RealClock{}, fn)
}

// DoWithClock runs fn, retrying once more if fn's error unwraps to an
// *errs.TransientError, with an exponential backoff between attempts
// measured against clk instead of a real sleep — tests drive the
// backoff with a clock.FakeClock or clock.SimulatedClock instead of
// waiting out the real delay. Any non-transient error, or the second
// attempt's error regardless of kind, is returned as-is.
func DoWithClock(ctx context.Context, clk clock.Clock, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || attempt == maxAttempts-1 {
			return lastErr
		}
		delay := time.Duration(float64(initialDelay) * math.Pow(2, float64(attempt)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(delay):
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	var t *errs.TransientError
	return errors.As(err, &t)
}
