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

// Package cache implements the retrieval cache (spec.md section 4.C):
// submit through a transport client, name the result, commit it atomically
// under a host-scoped writer lock, decode it, and hand back a scoped
// handle that tears itself down when caching is disabled.
package cache

import (
	"context"
	"io"
)

// Store is the on-disk-or-equivalent commit protocol the cache builds on:
// local directory (localstore, via renameio) or a GCS bucket (gcsstore,
// via object generation preconditions). Both give the same guarantee —
// readers never observe a partially written object named `name`.
type Store interface {
	// Exists reports whether name has been fully committed.
	Exists(ctx context.Context, name string) (bool, error)

	// Open returns a reader over the committed object named name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// WriteAtomic stages a new object under name, invoking write with a
	// staging writer, and commits it only once write returns nil. A
	// failure mid-write leaves no trace under name.
	WriteAtomic(ctx context.Context, name string, write func(w io.Writer) error) error

	// Remove deletes the named object. Removing an absent object is not
	// an error.
	Remove(ctx context.Context, name string) error
}
