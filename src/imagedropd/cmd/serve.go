package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/q-controller/imagedrop/src/pkg/events"
	"github.com/q-controller/imagedrop/src/pkg/gateway"
	"github.com/q-controller/imagedrop/src/pkg/images/storage"
	"github.com/q-controller/imagedrop/src/pkg/metrics"
	"github.com/q-controller/imagedrop/src/pkg/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP server and the daily retention sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, configErr := loadConfig(cmd)
		if configErr != nil {
			return configErr
		}

		if err := os.MkdirAll(config.Storage.StaticDir, 0755); err != nil {
			return fmt.Errorf("failed to create static directory: %w", err)
		}

		store, storeErr := storage.NewLocalFilesystemBackend(config.Storage.UploadDir,
			storage.WithExtensionDetection(config.Storage.DetectExtension))
		if storeErr != nil {
			return storeErr
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(registry)

		sweeper, sweeperErr := storage.NewSweeper(store, config.MaxAge(), storage.WithMetrics(m))
		if sweeperErr != nil {
			return sweeperErr
		}

		daily, dailyErr := scheduler.NewDaily(config.Retention.SweepAt, sweeper.Job,
			scheduler.WithName("retention-sweep"),
			scheduler.WithPollInterval(config.Retention.PollInterval))
		if dailyErr != nil {
			return dailyErr
		}

		publisher := events.NewPublisher()
		defer publisher.Close()

		handler, handlerErr := gateway.New(gateway.Options{
			Config:    config,
			Store:     store,
			Metrics:   m,
			Gatherer:  registry,
			Publisher: publisher,
		})
		if handlerErr != nil {
			return handlerErr
		}

		server := &http.Server{
			Addr:         config.Server.Address,
			Handler:      handler,
			ReadTimeout:  config.Server.ReadTimeout,
			WriteTimeout: config.Server.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return daily.Run(groupCtx)
		})
		group.Go(func() error {
			if err := events.WatchDirectory(groupCtx, store.Root(), publisher.Publish); err != nil && !errors.Is(err, context.Canceled) {
				// Events are optional; uploads and sweeps keep working without them.
				slog.Warn("upload directory watcher stopped", "error", err)
			}
			return nil
		})
		group.Go(func() error {
			slog.Info("Starting HTTP server", "address", config.Server.Address, "upload_dir", store.Root())
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			publisher.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
			defer cancel()
			slog.Info("Shutting down HTTP server")
			return server.Shutdown(shutdownCtx)
		})

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
