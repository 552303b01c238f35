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

// Package roundrobinslice cycles through a fixed slice of items, handing
// out the next one on every Get call. Used to spread requests for a
// dataset across the endpoints or mirrors configured for its client
// (e.g. ecmwf-opendata's source list), so repeated opens don't hammer
// the same host.
package roundrobinslice

import "sync/atomic"

// RoundRobin cycles through items in order, wrapping back to the start.
// Safe for concurrent use by multiple goroutines.
type RoundRobin[T any] struct {
	items []T
	next  atomic.Uint64
}

// New builds a RoundRobin over items. items is not copied; callers must
// not mutate it afterward.
func New[T any](items []T) *RoundRobin[T] {
	return &RoundRobin[T]{items: items}
}

// Get returns the next item in the cycle. ok is false when the
// RoundRobin holds no items.
func (rr *RoundRobin[T]) Get() (val T, ok bool) {
	if len(rr.items) == 0 {
		return val, false
	}
	i := rr.next.Add(1) - 1
	return rr.items[int(i)%len(rr.items)], true
}
