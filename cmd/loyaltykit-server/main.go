package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return 1
	}

	cfg := app.Config

	slog.Info("starting loyaltykit server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"rules", cfg.Rules.Path)

	if app.Standings != nil {
		app.Standings.Start(ctx)
	}
	if app.Analytics != nil {
		go app.Analytics.Start(ctx)
	}

	srv := app.Server

	// Start server in a goroutine
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return
			}
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	if ms := app.MetricsServer.Server; ms != nil {
		go func() {
			slog.Info("metrics listening", "address", ms.Addr, "path", cfg.Metrics.Path)
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
		exitCode = 1
	}
	if ms := app.MetricsServer.Server; ms != nil {
		_ = ms.Shutdown(shutdownCtx)
	}
	if app.Standings != nil {
		app.Standings.Stop()
	}
	app.Service.Close()
	if c, ok := app.Repository.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Error("error closing storage", "error", err)
		}
	}
	if err := app.Tracing(shutdownCtx); err != nil {
		slog.Error("error flushing traces", "error", err)
	}

	slog.Info("server stopped")
	return exitCode
}
