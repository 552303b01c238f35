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

// Package gcsstore is a cache.Store backed by a GCS bucket, selected when
// cache_kwargs.cache_folder has a gs:// scheme. A local filesystem has no
// rename-based commit equivalent in GCS, so this package stages the
// payload under a random object name and copies it into place guarded by
// a DoesNotExist generation precondition, then deletes the staging
// object: the copy is atomic from a reader's perspective, matching the
// local store's "readers never see partial files" guarantee.
package gcsstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

func New(client *storage.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + name)
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.object(name).NewReader(ctx)
}

// WriteAtomic uploads to a uuid-suffixed staging object, then server-side
// copies it onto the final name under a DoesNotExist(0) precondition so a
// concurrent committer cannot clobber an already-committed object; the
// staging object is always removed afterwards.
func (s *Store) WriteAtomic(ctx context.Context, name string, write func(w io.Writer) error) error {
	staging := s.object(name + ".staging." + uuid.NewString())
	w := staging.NewWriter(ctx)
	if err := write(w); err != nil {
		w.Close()
		_ = staging.Delete(ctx)
		return err
	}
	if err := w.Close(); err != nil {
		_ = staging.Delete(ctx)
		return err
	}

	dst := s.object(name).If(storage.Conditions{DoesNotExist: true})
	_, err := dst.CopierFrom(staging).Run(ctx)
	defer staging.Delete(ctx)

	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			// Another writer committed first; that is a successful commit
			// from this caller's point of view.
			return nil
		}
		return err
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, name string) error {
	err := s.object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
