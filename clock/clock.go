// Copyright 2025 Google LLC
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

// Package clock abstracts time.Now and time.After so callers that need to
// wait on a schedule (a retry backoff, an archive poll loop) can be driven
// by a SimulatedClock or FakeClock in tests instead of a real sleep.
package clock

import "time"

// Clock is satisfied by RealClock, FakeClock, and SimulatedClock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that receives a time value once the given
	// duration has elapsed, mirroring time.After.
	After(d time.Duration) <-chan time.Time
}
