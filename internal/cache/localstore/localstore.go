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

// Package localstore is a cache.Store backed by a local directory: writes
// land in a temp file beside the target and are committed with an atomic
// rename via renameio, so readers never observe a partial file (spec.md
// section 4.C step 3).
package localstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

type Store struct {
	root string
}

// New creates (if absent) and returns a Store rooted at root.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(s.path(name))
}

// WriteAtomic stages the new object in a temp file in the same directory
// (so the final rename is guaranteed to be on the same filesystem) and
// commits it only once write returns nil.
func (s *Store) WriteAtomic(ctx context.Context, name string, write func(w io.Writer) error) error {
	target := s.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	t, err := renameio.NewPendingFile(target, renameio.WithTempDir(filepath.Dir(target)))
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if err := write(t); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

func (s *Store) Remove(ctx context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
