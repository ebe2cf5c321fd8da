package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/eventlogs/internal/handlers"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/retention"
	"github.com/telhawk-systems/eventlogs/internal/server"
	"github.com/telhawk-systems/eventlogs/internal/service"
	"github.com/telhawk-systems/eventlogs/internal/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the batch consumer and the retention scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "override listen address")
}

func runServe(_ *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	setupLogging(c)

	slog.Info("Starting eventlogs",
		slog.Int("port", c.Server.Port),
		logging.Backend(c.Storage.Backend),
		slog.Bool("consumer", c.Consumer.Enabled),
		slog.Bool("retention", c.Retention.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, c)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Warn("storage close failed", logging.Error(err))
		}
	}()

	eventSvc := service.NewEventService(backend.Events, c.Export.MaxSize)
	settingsSvc := service.NewSettingsService(backend.Settings, c.Retention.DefaultDays, c.Export.MaxSize)
	h := handlers.New(eventSvc, settingsSvc).WithReadinessCheck(backend.Name, backend.Events.Ping)

	// The consumer outlives the signal: it is stopped only after the HTTP
	// server has drained, and a fetched batch always runs to ack or reject.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	var wg sync.WaitGroup

	if c.Consumer.Enabled {
		js, err := connectJetStream(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := js.Drain(); err != nil {
				slog.Warn("nats drain failed", logging.Error(err))
			}
		}()

		queue, err := openDLQ(ctx, js, c)
		if err != nil {
			return err
		}
		source, err := newEventSource(ctx, js, c, backend.Events, queue)
		if err != nil {
			return err
		}
		h.WithReadinessCheck("nats", func(context.Context) error {
			if !js.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Run(consumerCtx); err != nil {
				slog.Error("consumer exited", logging.Error(err))
			}
		}()
	} else {
		slog.Info("batch consumer disabled")
	}

	var scheduler *retention.Scheduler
	if c.Retention.Enabled {
		sweeper := retention.NewSweeper(backend.Events, backend.Settings, c.Retention.DefaultDays)
		scheduler = retention.NewScheduler(sweeper, c.Retention.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		h.WithRetentionSchedule(scheduler.NextRun)
	} else {
		slog.Info("retention scheduler disabled")
	}

	listenAddr := fmt.Sprintf(":%d", c.Server.Port)
	if serveAddr != "" {
		listenAddr = serveAddr
	}
	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(h, true),
		ReadTimeout:  c.Server.ReadTimeout(),
		WriteTimeout: c.Server.WriteTimeout(),
		IdleTimeout:  c.Server.IdleTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("eventlogs listening", slog.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", logging.Error(err))
	}

	// Stop fetching and wait for the batch in flight before storage and the
	// broker connection close.
	stopConsumer()
	wg.Wait()

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			slog.Warn("retention scheduler shutdown error", logging.Error(err))
		}
	}

	return runErr
}
