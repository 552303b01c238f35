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

package headeraxis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/internal/headeraxis"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
)

func TestBuildUnchunked(t *testing.T) {
	req := request.Request{"step": []any{"0", "6", "12", "18"}}
	coord, size, frags, err := headeraxis.Build("step", req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "6", "12", "18"}, coord)
	assert.Equal(t, 4, size)
	require.Len(t, frags, 1)
	assert.Equal(t, 0, frags[0].Start)
}

func TestBuildChunked(t *testing.T) {
	req := request.Request{"number": []any{"1", "2", "3", "4", "5"}}
	coord, size, frags, err := headeraxis.Build("number", req, map[string]int{"number": 2})
	require.NoError(t, err)
	assert.Len(t, coord, 5)
	assert.Equal(t, 2, size)
	require.Len(t, frags, 3)
	assert.Equal(t, []int{0, 2, 4}, []int{frags[0].Start, frags[1].Start, frags[2].Start})
	assert.Equal(t, []any{"4", "5"}, frags[2].Fragment["number"])
}

func TestBuildMissingDimension(t *testing.T) {
	req := request.Request{}
	_, _, _, err := headeraxis.Build("step", req, nil)
	require.Error(t, err)
}
