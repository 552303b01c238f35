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

// Command ecmwfbackend opens an archive request against the chunking/
// retrieval engine in internal/backend and either reports the resulting
// virtual dataset's shape, or serves it behind a small HTTP surface with
// an OpenTelemetry /metrics endpoint, following spec.md section 6's
// external interface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"gopkg.in/yaml.v3"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bopen/xarray-ecmwf-go/common"
	"github.com/bopen/xarray-ecmwf-go/internal/backend"
	"github.com/bopen/xarray-ecmwf-go/internal/cache"
	"github.com/bopen/xarray-ecmwf-go/internal/cache/gcsstore"
	"github.com/bopen/xarray-ecmwf-go/internal/cache/localstore"
	"github.com/bopen/xarray-ecmwf-go/internal/cfg"
	"github.com/bopen/xarray-ecmwf-go/internal/client"
	"github.com/bopen/xarray-ecmwf-go/internal/decoder/fakegrib"
	"github.com/bopen/xarray-ecmwf-go/internal/logger"
	"github.com/bopen/xarray-ecmwf-go/internal/request"
	"github.com/bopen/xarray-ecmwf-go/internal/telemetry"
)

var (
	cfgFile       string
	requestFile   string
	keySecret     string
	serveAddr     string
	bindErr       error
	config        cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "ecmwfbackend",
	Short: "Open an ECMWF-family archive request as a lazily materialized dataset.",
	Long: `ecmwfbackend turns an archive request plus a request-chunking policy
into a virtual labeled dataset: shape and dims are answered immediately from
the chunk plan, and chunk data is only fetched from the archive when read.`,
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a request file and report the resulting dataset's shape.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if err := logger.Init(config.Logging, "text"); err != nil {
			return err
		}
		if err := resolveKeySecret(cmd.Context()); err != nil {
			return err
		}

		req, err := loadRequest(requestFile)
		if err != nil {
			return fmt.Errorf("loading request file: %w", err)
		}

		ds, err := openDataset(cmd.Context(), req, telemetry.Noop)
		if err != nil {
			return err
		}

		for name, arr := range ds.Variables {
			logger.Infof("variable %s: dims=%v shape=%v dtype=%v", name, arr.Dims(), arr.Shape(), arr.Dtype())
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a request file and serve its chunks over HTTP, with metrics at /metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if err := logger.Init(config.Logging, "json"); err != nil {
			return err
		}
		if err := resolveKeySecret(cmd.Context()); err != nil {
			return err
		}

		exporter, err := otelprometheus.New()
		if err != nil {
			return fmt.Errorf("building prometheus exporter: %w", err)
		}
		provider := metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(provider)
		metrics, err := telemetry.NewOTel()
		if err != nil {
			return fmt.Errorf("registering instruments: %w", err)
		}

		req, err := loadRequest(requestFile)
		if err != nil {
			return fmt.Errorf("loading request file: %w", err)
		}
		ds, err := openDataset(cmd.Context(), req, metrics)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/dataset", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(datasetSummary(ds))
		})

		srv := &http.Server{Addr: serveAddr, Handler: mux}
		shutdown := common.JoinShutdownFunc(
			ds.Close,
			func(ctx context.Context) error { return provider.Shutdown(ctx) },
			func(ctx context.Context) error { return srv.Shutdown(ctx) },
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Errorf("shutdown: %v", err)
			}
		}()

		logger.Infof("serving on %s", serveAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func openDataset(ctx context.Context, req request.Request, metrics telemetry.Handle) (*backend.Dataset, error) {
	store, err := openStore(ctx, config.Cache.Folder)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	probeStore, err := openStore(ctx, config.Cache.Folder+"/probes")
	if err != nil {
		return nil, fmt.Errorf("opening probe store: %w", err)
	}

	return backend.Open(ctx, req, backend.Options{
		Client: config.Client.Name,
		ClientConfig: client.Config{
			URL:          config.Client.URL,
			Key:          config.Client.Key,
			Source:       config.Client.Source,
			PollInterval: config.Client.PollInterval,
		},
		ChunkingPolicy: config.Chunking,
		CacheFile:      config.Cache.CacheFile,
		Store:          store,
		ProbeStore:     probeStore,
		Decoder:        fakegrib.New(),
		Metrics:        metrics,
	})
}

// openStore picks localstore or gcsstore by the folder's scheme.
func openStore(ctx context.Context, folder string) (cache.Store, error) {
	const gcsPrefix = "gs://"
	if len(folder) > len(gcsPrefix) && folder[:len(gcsPrefix)] == gcsPrefix {
		bucket, prefix := splitGCSPath(folder[len(gcsPrefix):])
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("building GCS client: %w", err)
		}
		return gcsstore.New(client, bucket, prefix), nil
	}
	return localstore.New(folder)
}

// splitGCSPath splits "bucket/some/prefix" into ("bucket", "some/prefix/").
func splitGCSPath(path string) (bucket, prefix string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			rest := path[i+1:]
			if rest != "" && rest[len(rest)-1] != '/' {
				rest += "/"
			}
			return path[:i], rest
		}
	}
	return path, ""
}

func loadRequest(path string) (request.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req request.Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// resolveKeySecret fetches the client API key from Secret Manager when
// --client.key-secret names a secret version and no literal key was
// given, so deployments never need client.key in a config file.
func resolveKeySecret(ctx context.Context) error {
	if config.Client.Key != "" || keySecret == "" {
		return nil
	}
	sm, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("secretmanager client: %w", err)
	}
	defer sm.Close()

	resp, err := sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: keySecret})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", keySecret, err)
	}
	config.Client.Key = string(resp.Payload.Data)
	return nil
}

func datasetSummary(ds *backend.Dataset) map[string]any {
	vars := map[string]any{}
	for name, arr := range ds.Variables {
		vars[name] = map[string]any{"dims": arr.Dims(), "shape": arr.Shape(), "dtype": arr.Dtype().String()}
	}
	return map[string]any{"variables": vars, "attrs": ds.GlobalAttrs()}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	rootCmd.PersistentFlags().StringVar(&keySecret, "client.key-secret", "", "Secret Manager resource name holding the client API key.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	openCmd.Flags().StringVar(&requestFile, "request-file", "", "Path to a YAML archive request.")
	_ = openCmd.MarkFlagRequired("request-file")

	serveCmd.Flags().StringVar(&requestFile, "request-file", "", "Path to a YAML archive request.")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to serve /metrics and /dataset on.")
	_ = serveCmd.MarkFlagRequired("request-file")

	rootCmd.AddCommand(openCmd, serveCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			bindErr = fmt.Errorf("reading config file: %w", err)
			return
		}
	}
	if err := viper.Unmarshal(&config); err != nil {
		bindErr = fmt.Errorf("unmarshalling config: %w", err)
	}
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 24*time.Hour)
	defer cancel()
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
