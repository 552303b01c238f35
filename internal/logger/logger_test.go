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

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
)

func redirectToBuffer(t *testing.T, severity cfg.LogSeverity, format string) *bytes.Buffer {
	t.Helper()
	require.NoError(t, Init(cfg.LoggingConfig{Severity: severity}, format))
	var buf bytes.Buffer
	defaultLoggerFactory.writer = &buf
	defaultLogger = slog.New(defaultLoggerFactory.createHandler())
	return &buf
}

func TestWarningLevelSuppressesInfoAndBelow(t *testing.T) {
	buf := redirectToBuffer(t, cfg.WarnLogSeverity, "text")

	Infof("should not appear")
	assert.Empty(t, buf.String())

	Warnf("should appear")
	assert.Contains(t, buf.String(), "should appear")
	assert.Contains(t, buf.String(), "severity=WARNING")
}

func TestOffLevelSuppressesEverything(t *testing.T) {
	buf := redirectToBuffer(t, cfg.OffLogSeverity, "text")

	Errorf("should not appear either")
	assert.Empty(t, buf.String())
}

func TestJSONFormatUsesSeverityKey(t *testing.T) {
	buf := redirectToBuffer(t, cfg.InfoLogSeverity, "json")

	Infof("hello")
	assert.Contains(t, buf.String(), `"severity":"INFO"`)
}

func TestInitRejectsUnknownSeverity(t *testing.T) {
	err := Init(cfg.LoggingConfig{Severity: "NOT-A-LEVEL"}, "text")
	require.Error(t, err)
}
