// Package main provides the taskmesh binary: a small CLI that wires a mesh
// from configuration and executes a task through the decision pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh"
	"github.com/taskmesh/taskmesh/a2a/nats"
	"github.com/taskmesh/taskmesh/config"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/events"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/model/anthropic"
	"github.com/taskmesh/taskmesh/model/openai"
	redisstore "github.com/taskmesh/taskmesh/store/redis"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "taskmesh",
		Short: "Orchestrate autonomous task execution across cooperating agents",
		Long: `TaskMesh plans a task, routes each step to the best executor
(tool, agent, team or direct inference), validates the results and retries
with reflection-guided fixes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	var maxRetries int
	runCmd := &cobra.Command{
		Use:   "run \"<task>\"",
		Short: "Execute one task through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, logLevel, args[0], maxRetries)
		},
	}
	runCmd.Flags().IntVar(&maxRetries, "max-retries", -1, "Retry budget per step (-1 uses the configured default)")
	cmd.AddCommand(runCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskmesh version %s\n", version)
		},
	})

	return cmd
}

func run(ctx context.Context, configPath, logLevel, task string, maxRetries int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(logLevel)

	mesh, cleanup, err := buildMesh(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if maxRetries < 0 {
		maxRetries = cfg.Pipeline.MaxRetries
	}

	result := mesh.ExecuteTask(ctx, core.TaskRequest{
		Description: task,
		MaxRetries:  maxRetries,
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	if result.Status == core.TaskFailed {
		return fmt.Errorf("task failed: %s", result.Error)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}

func newLogger(level string) logging.Logger {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}
	return logging.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}

// buildMesh assembles a TaskMesh from configuration. The returned cleanup
// closes any connections the build opened.
func buildMesh(ctx context.Context, cfg *config.Config, logger logging.Logger) (*taskmesh.TaskMesh, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mdl, err := buildModel(cfg.Model)
	if err != nil {
		return nil, cleanup, err
	}

	var optFns []func(o *taskmesh.Options)
	optFns = append(optFns, func(o *taskmesh.Options) {
		o.Model = mdl
		o.Logger = logger
		o.StepTimeout = cfg.Pipeline.StepTimeout
		o.RequestTimeout = cfg.Transport.RequestTimeout
	})

	if cfg.Transport.Kind == "nats" {
		transport, err := nats.Connect(cfg.Transport.URL, func(o *nats.Options) { o.Logger = logger })
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, func() { _ = transport.Close() })
		optFns = append(optFns, func(o *taskmesh.Options) { o.Transport = transport })
	}

	if cfg.Store.Kind == "redis" {
		st, err := redisstore.Connect(ctx, cfg.Store.RedisURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = st.Close() })
		optFns = append(optFns, func(o *taskmesh.Options) {
			o.Plans = st
			o.Teams = st
			o.Runs = st
		})
	}

	if cfg.Memory.Kind == "qdrant" {
		return nil, cleanup, fmt.Errorf("the qdrant memory backend needs an embedder and is only available programmatically")
	}

	sink := core.EventSink(events.NewLoggerSink(logger))
	if cfg.Metrics.Enabled {
		promSink := events.NewPrometheusSink(prometheus.DefaultRegisterer)
		sink = events.NewMultiSink(sink, promSink)
		closers = append(closers, serveMetrics(cfg.Metrics.Listen, logger))
	}
	optFns = append(optFns, func(o *taskmesh.Options) { o.Sink = sink })

	return taskmesh.New(optFns...), cleanup, nil
}

func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropic.ModelName(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "mock":
		return model.NewMockModel("taskmesh"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// serveMetrics exposes the Prometheus endpoint and returns its shutdown func.
func serveMetrics(listen string, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint failed", "addr", listen, "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
