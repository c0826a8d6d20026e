package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"alertgraph/config"
	"alertgraph/internal/analysis"
	inputredis "alertgraph/internal/input/redis"
	"alertgraph/internal/logger"
	"alertgraph/internal/metrics"
	"alertgraph/internal/output/anomalyhttp"
	"alertgraph/internal/pipeline"
	"alertgraph/internal/rules"
	"alertgraph/internal/server/api"
	"alertgraph/internal/snapshot"
)

func newServeCmd() *cobra.Command {
	var configArg string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Analyze the alert log and serve results over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configArg)
		},
	}
	cmd.Flags().StringVar(&configArg, "config", "", "Path to configuration file (default alertgraph.yml)")
	return cmd
}

func runServe(configArg string) error {
	configPath := config.FindConfigFile(configArg)
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c := cfg.AlertGraph

	if err := logger.Init(logger.Config{
		Enabled: c.Logging.Enabled,
		Level:   c.Logging.Level,
		File:    c.Logging.File,
		Console: c.Logging.Console,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Infof("alertgraph %s starting", version)
	logger.Infof("Config loaded from: %s", configPath)

	var engine rules.Engine = &rules.NoopEngine{}
	if c.Rules.Enabled {
		engine, err = loadEngine(c.Rules.Path)
		if err != nil {
			return err
		}
	}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if c.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		logger.Infof("Metrics enabled at %s", c.Metrics.Path)
	}

	runner := pipeline.NewRunner(pipeline.Config{
		Path:      c.Source.Path,
		TailLines: c.Source.TailLines,
		Analysis: analysis.Options{
			Window:      c.Analysis.Window,
			RecentLimit: c.Analysis.RecentLimit,
			TimelineGap: c.Analysis.TimelineGap,
			TimelineMax: c.Analysis.TimelineMax,
		},
		Tagger: engine,
	}, m)
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Errorf("Error closing result writers: %v", err)
		}
	}()

	if c.Redis.Enabled {
		store, err := snapshot.NewRedisStore(snapshot.RedisConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis result store: %w", err)
		}
		runner.AddWriter(store)
		logger.Infof("Redis result mirror: %s (prefix %s)", c.Redis.Addr, c.Redis.KeyPrefix)
	}

	if c.Webhook.Enabled {
		w, err := anomalyhttp.NewWriter(anomalyhttp.Config{
			URL:      c.Webhook.URL,
			Timeout:  c.Webhook.Timeout,
			Headers:  c.Webhook.Headers,
			MinScore: c.Webhook.MinScore,
		})
		if err != nil {
			return fmt.Errorf("failed to create anomaly webhook: %w", err)
		}
		runner.AddWriter(w)
		logger.Infof("Anomaly webhook: %s (min_score %.2f)", c.Webhook.URL, c.Webhook.MinScore)
	}

	handler := api.NewHandler(runner, api.Options{
		MetricsPath:       c.Metrics.Path,
		Metrics:           metricsHandler,
		BroadcastInterval: c.Server.BroadcastInterval,
	})
	runner.AddWriter(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := runner.Run(ctx); err != nil && !errors.Is(err, pipeline.ErrSourceMissing) {
		logger.Errorf("Initial analysis failed: %v", err)
	}

	if c.Trigger.Enabled {
		queue, err := inputredis.NewTriggerQueue(inputredis.Config{
			Addr:         c.Redis.Addr,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			Key:          c.Trigger.Key,
			BlockTimeout: c.Trigger.BlockTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create trigger queue: %w", err)
		}
		defer queue.Close()
		logger.Infof("Listening for reload requests on %s", queue.Key())
		go func() {
			if err := runner.ListenTriggers(ctx, queue); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Trigger listener stopped: %v", err)
			}
		}()
	}

	handler.StartBroadcast()

	srv := &http.Server{
		Addr:              c.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", c.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Infof("Received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown: %v", err)
	}

	logger.Infof("alertgraph stopped")
	return nil
}
