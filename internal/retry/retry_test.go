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

package retry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/clock"
	"github.com/bopen/xarray-ecmwf-go/internal/errs"
	"github.com/bopen/xarray-ecmwf-go/internal/retry"
)

func TestDoSucceedsAfterOneTransientFailure(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errs.Transient(errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoDoesNotRetryNonTransientErrors(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := retry.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDoWithClockBacksOffWithoutRealSleep(t *testing.T) {
	calls := 0
	fake := &clock.FakeClock{WaitTime: 0}
	err := retry.DoWithClock(context.Background(), fake, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errs.Transient(errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsAfterTwoAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errs.Transient(errors.New("still failing"))
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
