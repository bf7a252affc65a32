// Command centinela runs the alert intake and notification pipeline: it
// receives security-sensor alerts from the device gateway, persists them,
// fans them out to live dashboard clients and mail recipients, and
// optionally records video evidence from a networked camera.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/centinela-home/centinela/internal/api"
	"github.com/centinela-home/centinela/internal/capture"
	"github.com/centinela-home/centinela/internal/conf"
	"github.com/centinela-home/centinela/internal/datastore"
	"github.com/centinela-home/centinela/internal/datastore/entities"
	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/fanout"
	"github.com/centinela-home/centinela/internal/identity"
	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/notification"
	"github.com/centinela-home/centinela/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "centinela",
		Short:         "Security sensor alert intake and notification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	return root
}

func run(ctx context.Context, configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	log := logger.NewSlogLogger(os.Stdout, logLevel(settings.Main.LogLevel), nil)

	db, err := datastore.Open(&settings.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	if err := datastore.Seed(ctx, db, log); err != nil {
		return fmt.Errorf("failed to seed datastore: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	alerts := repository.NewAlertRepository(db)
	devices := repository.NewDeviceRepository(db)

	notification.Initialize(nil)
	service := notification.MustGetService()

	var mailer notification.Mailer
	if settings.Mail.Enabled {
		m, err := notification.NewShoutrrrMailer(settings.Mail.URLTemplate, log)
		if err != nil {
			return fmt.Errorf("failed to configure mailer: %w", err)
		}
		mailer = m
	} else {
		mailer = notification.NewNoopMailer(log)
	}

	bus := fanout.NewBus(func() {
		metrics.LiveEvents.WithLabelValues("dropped").Inc()
	})
	fanout.NewDispatcher(bus, fanout.DispatcherConfig{
		Live:             service,
		Mailer:           mailer,
		Devices:          devices,
		Alerts:           alerts,
		RecipientTimeout: settings.Mail.RecipientTimeout.Std(),
		Log:              log.With(logger.String("component", "fanout")),
		Metrics:          metrics,
	})

	var orchestrator *capture.Orchestrator
	if settings.Capture.Enabled {
		orchestrator, err = capture.NewOrchestrator(capture.Config{
			Recorder:    capture.NewFFmpegRecorder(settings.Capture.StreamURL, ""),
			Alerts:      alerts,
			OutputDir:   settings.Capture.OutputDir,
			Grace:       settings.Capture.GraceWindow.Std(),
			MaxDuration: settings.Capture.MaxDuration.Std(),
			OnComplete: func(alertID uint, path string) {
				bus.Publish(&fanout.Event{
					Kind:      fanout.CaptureCompleted,
					Alert:     &entities.Alert{ID: alertID},
					VideoPath: path,
				})
			},
			Log:     log.With(logger.String("component", "capture")),
			Metrics: metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to start capture orchestrator: %w", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	api.New(e, api.Config{
		Settings: settings,
		Alerts:   alerts,
		Devices:  devices,
		Resolver: identity.NewResolver(devices),
		Bus:      bus,
		Capture:  orchestrator,
		Registry: registry,
		Metrics:  metrics,
		Log:      log.With(logger.String("component", "api")),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.String("address", settings.WebServer.Address))
		if err := e.Start(settings.WebServer.Address); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-signalCtx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", logger.Error(err))
	}

	// Drain queued fan-out work before abandoning captures.
	bus.Stop()
	if orchestrator != nil {
		if err := orchestrator.Stop(shutdownCtx); err != nil {
			log.Warn("capture jobs abandoned", logger.Error(err))
		}
	}
	service.Shutdown()

	log.Info("shutdown complete")
	return nil
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.LogLevelDebug
	case "warn":
		return logger.LogLevelWarn
	case "error":
		return logger.LogLevelError
	default:
		return logger.LogLevelInfo
	}
}
