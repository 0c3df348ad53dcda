package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"doccenter/internal/auth"
	"doccenter/internal/clients"
	"doccenter/internal/config"
	"doccenter/internal/eventstore"
	"doccenter/internal/httpapi"
	"doccenter/internal/library"
	"doccenter/internal/persistence"
	"doccenter/internal/telemetry"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(os.Stdout, cfg.LogLevel))
		},
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.Port, err)
	}
	return serveOn(ctx, ln, cfg, logger)
}

// serveOn runs the service on ln until ctx is cancelled, then drains the
// persistence sinks.
func serveOn(ctx context.Context, ln net.Listener, cfg config.Config, logger *slog.Logger) error {
	defer ln.Close()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "doccenter",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer shutdownWithTimeout(cfg.ShutdownTimeout, logger, "telemetry", providers.Shutdown)

	store := library.NewStore(
		library.WithLogger(logger),
		library.WithTracerProvider(providers.TracerProvider),
		library.WithMeterProvider(providers.MeterProvider),
	)

	snapshot, err := persistence.OpenSQLite(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	defer snapshot.Close()
	restored, err := snapshot.Restore(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", cfg.SnapshotPath, err)
	}
	logger.Info("store ready", slog.String("snapshot", cfg.SnapshotPath), slog.Bool("restored", restored))

	sinks := []persistence.Sink{snapshot}

	if cfg.DatabaseURL != "" {
		journal, err := eventstore.Open(ctx, cfg.DatabaseURL, eventstore.WithTracerProvider(providers.TracerProvider))
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()
		sinks = append(sinks, journal)
	}

	var archive *persistence.S3Archive
	if cfg.S3Bucket != "" {
		archive, err = persistence.NewS3Archive(ctx, persistence.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Prefix:    "doccenter",
			Every:     cfg.S3UploadEvery,
		})
		if err != nil {
			return fmt.Errorf("failed to configure s3 archive: %w", err)
		}
		sinks = append(sinks, archive)
	}

	if cfg.RemoteAPIURL != "" {
		client := clients.NewRemoteClient(cfg.RemoteAPIURL, clients.WithCredentials(auth.RoleAdmin, cfg.RemoteAPIPIN))
		sinks = append(sinks, persistence.NewRemoteSink(client))
	}

	dispatcher := persistence.NewAsync(sinks,
		persistence.WithLogger(logger),
		persistence.WithMeterProvider(providers.MeterProvider),
	)
	detach := dispatcher.Attach(store)

	authn, err := auth.New(cfg.AdminPIN, cfg.GuestPIN, cfg.AuthRatePerMinute, logger)
	if err != nil {
		return err
	}
	if !authn.Enabled() {
		logger.Warn("no access PINs configured, every request is served as admin")
	}

	srv := &http.Server{
		Handler: httpapi.NewRouter(httpapi.Options{
			Service:  store,
			Auth:     authn,
			Logger:   logger,
			Registry: providers.Registry,
			Tracer:   providers.TracerProvider,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", ln.Addr().String()), slog.Int("sinks", len(sinks)))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownWithTimeout(cfg.ShutdownTimeout, logger, "http server", srv.Shutdown)
	detach()
	shutdownWithTimeout(cfg.ShutdownTimeout, logger, "persistence", dispatcher.Close)

	if archive != nil {
		final := func(ctx context.Context) error {
			return archive.Upload(ctx, store.ExportState(ctx), store.Version())
		}
		shutdownWithTimeout(cfg.ShutdownTimeout, logger, "s3 archive", final)
	}
	return nil
}

func shutdownWithTimeout(timeout time.Duration, logger *slog.Logger, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("shutdown failed", slog.String("component", what), slog.String("error", err.Error()))
	}
}
