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

package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LogSeverity is the logging severity and can take any of the values
// below. Values must match the upper-case constants exactly; logger.Init
// rejects any other spelling (spec.md section 6's external interfaces
// are the only place this repo renders config from flags/files).
type LogSeverity string

const (
	TraceLogSeverity LogSeverity = "TRACE"
	DebugLogSeverity LogSeverity = "DEBUG"
	InfoLogSeverity  LogSeverity = "INFO"
	WarnLogSeverity  LogSeverity = "WARNING"
	ErrorLogSeverity LogSeverity = "ERROR"
	OffLogSeverity   LogSeverity = "OFF"
)

var severityRanking = map[LogSeverity]int{
	TraceLogSeverity: 0, DebugLogSeverity: 1, InfoLogSeverity: 2,
	WarnLogSeverity: 3, ErrorLogSeverity: 4, OffLogSeverity: 5,
}

// Rank returns -1 for an unrecognized severity.
func (l LogSeverity) Rank() int {
	if r, ok := severityRanking[l]; ok {
		return r
	}
	return -1
}

// Config is the top-level configuration for a backend.Open call and its
// CLI (cmd/ecmwfbackend), decoded from request_chunker.yaml/CLI flags via
// viper.
type Config struct {
	Client   ClientConfig   `mapstructure:"client"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Chunking ChunkingPolicy `mapstructure:"request-chunks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ClientConfig selects and configures the transport client (spec.md
// section 6: client ∈ {cdsapi, ecmwf-opendata, polytope}).
type ClientConfig struct {
	Name         string        `mapstructure:"name"`
	URL          string        `mapstructure:"url"`
	Key          string        `mapstructure:"key"`
	Source       string        `mapstructure:"source"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

// CacheConfig mirrors spec.md section 6's cache_kwargs.
type CacheConfig struct {
	CacheFile bool   `mapstructure:"cache-file"`
	Folder    string `mapstructure:"folder"`
}

// LoggingConfig controls the leveled logger (internal/logger).
type LoggingConfig struct {
	Severity LogSeverity `mapstructure:"severity"`
	FilePath string      `mapstructure:"file-path"`
}

// BindFlags registers the CLI surface and binds each flag into viper.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("client.name", "cdsapi", "Transport client: cdsapi, ecmwf-opendata, or polytope.")
	flagSet.String("client.url", "", "Base URL for the selected client.")
	flagSet.String("client.key", "", "API key/token for the selected client.")
	flagSet.String("client.source", "ecmwf", "Open-data mirror name (ecmwf-opendata only).")
	flagSet.Duration("client.poll-interval", 5*time.Second, "Polling interval while a request is in progress.")

	flagSet.Bool("cache.cache-file", true, "Keep the downloaded payload in the cache after the request completes.")
	flagSet.String("cache.folder", "./cache", "Local directory or gs:// bucket prefix backing the retrieval cache.")

	flagSet.String("logging.severity", string(InfoLogSeverity), "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	flagSet.String("logging.file-path", "", "Log file path; empty logs to stderr.")

	for _, name := range []string{
		"client.name", "client.url", "client.key", "client.source", "client.poll-interval",
		"cache.cache-file", "cache.folder", "logging.severity", "logging.file-path",
	} {
		if err := viper.BindPFlag(name, flagSet.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
