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

// Package logger is the leveled logger used throughout this repo: a
// package-level slog.Logger, switchable between text and JSON output,
// rotated to disk via lumberjack when a file path is configured.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	// LevelOff is above any level slog defines, so nothing is ever logged.
	LevelOff = slog.Level(16)
)

var severityLevels = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity: LevelTrace,
	cfg.DebugLogSeverity: LevelDebug,
	cfg.InfoLogSeverity:  LevelInfo,
	cfg.WarnLogSeverity:  LevelWarn,
	cfg.ErrorLogSeverity: LevelError,
	cfg.OffLogSeverity:   LevelOff,
}

type loggerFactory struct {
	level  slog.Level
	format string // "text" or "json"
	writer io.Writer
}

var programLevel = new(slog.LevelVar)

var defaultLoggerFactory = &loggerFactory{level: LevelInfo, format: "json", writer: os.Stderr}

var defaultLogger = slog.New(defaultLoggerFactory.createHandler())

func (f *loggerFactory) createHandler() slog.Handler {
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(a.Value.Any().(slog.Level)))
			}
			return a
		},
	}
	if f.format == "text" {
		return slog.NewTextHandler(f.writer, opts)
	}
	return slog.NewJSONHandler(f.writer, opts)
}

func levelName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Init configures the package-level logger from cfg.LoggingConfig: sets
// the minimum severity, the text/json format, and — when FilePath is set
// — rotates output through lumberjack instead of writing to stderr.
func Init(c cfg.LoggingConfig, format string) error {
	level, ok := severityLevels[c.Severity]
	if !ok {
		return fmt.Errorf("logger: unknown severity %q", c.Severity)
	}
	programLevel.Set(level)
	defaultLoggerFactory.level = level
	defaultLoggerFactory.format = format

	if c.FilePath != "" {
		defaultLoggerFactory.writer = &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    100,
			MaxBackups: 5,
			Compress:   true,
		}
	} else {
		defaultLoggerFactory.writer = os.Stderr
	}
	defaultLogger = slog.New(defaultLoggerFactory.createHandler())
	return nil
}

func Tracef(format string, args ...any) { defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }
