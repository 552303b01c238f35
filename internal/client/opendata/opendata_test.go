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

package opendata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/internal/client/opendata"
)

func TestSubmitAndWaitNamesResultByRequestHash(t *testing.T) {
	c := opendata.New(opendata.Config{Source: "ecmwf"})
	res, err := c.SubmitAndWait(context.Background(), map[string]any{"variable": "2t", "date": "2020-01-01"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Filename())

	res2, err := c.SubmitAndWait(context.Background(), map[string]any{"date": "2020-01-01", "variable": "2t"})
	require.NoError(t, err)
	assert.Equal(t, res.Filename(), res2.Filename(), "key order must not affect the derived filename")
}

func TestDownloadFailsFastAgainstUnreachableMirror(t *testing.T) {
	c := opendata.New(opendata.Config{Mirrors: []string{"unreachable-mirror"}})
	res, err := c.SubmitAndWait(context.Background(), map[string]any{"variable": "2t"})
	require.NoError(t, err)

	_, err = c.Download(context.Background(), res, t.TempDir()+"/out.grib")
	assert.Error(t, err)
}
