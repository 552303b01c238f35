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

package gcsstore_test

import (
	"context"
	"io"
	"testing"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/internal/cache/gcsstore"
)

func newTestServer(t *testing.T) *fakestorage.Server {
	t.Helper()
	srv, err := fakestorage.NewServerWithOptions(fakestorage.Options{
		InitialObjects: []fakestorage.Object{
			{ObjectAttrs: fakestorage.ObjectAttrs{BucketName: "chunks", Name: "prefix/present.bin"}, Content: []byte("cached")},
		},
	})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func TestExistsDistinguishesPresentFromMissing(t *testing.T) {
	srv := newTestServer(t)
	store := gcsstore.New(srv.Client(), "chunks", "prefix/")

	ok, err := store.Exists(context.Background(), "present.bin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "absent.bin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteAtomicThenOpenRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	store := gcsstore.New(srv.Client(), "chunks", "prefix/")

	err := store.WriteAtomic(context.Background(), "new.bin", func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	})
	require.NoError(t, err)

	r, err := store.Open(context.Background(), "new.bin")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWriteAtomicSecondWriterYieldsToFirst(t *testing.T) {
	srv := newTestServer(t)
	store := gcsstore.New(srv.Client(), "chunks", "prefix/")

	err := store.WriteAtomic(context.Background(), "present.bin", func(w io.Writer) error {
		_, err := w.Write([]byte("late"))
		return err
	})
	require.NoError(t, err)

	r, err := store.Open(context.Background(), "present.bin")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))
}

func TestRemoveIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	store := gcsstore.New(srv.Client(), "chunks", "prefix/")

	require.NoError(t, store.Remove(context.Background(), "present.bin"))
	require.NoError(t, store.Remove(context.Background(), "present.bin"))
}
