// Command haies-server runs the hedge save service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MTES-MCT/envergo/internal/server"
	"github.com/MTES-MCT/envergo/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	listen := flag.String("listen", envOrDefault("HAIES_LISTEN", "0.0.0.0:8730"), "Listen address")
	dataDir := flag.String("data-dir", envOrDefault("HAIES_DATA_DIR", "/var/lib/haies-server"), "Data directory for file backends")
	backend := flag.String("backend", envOrDefault("HAIES_BACKEND", store.BackendSQLite), "Storage backend (sqlite, bbolt, postgres)")
	dsn := flag.String("dsn", os.Getenv("HAIES_DSN"), "Postgres connection string, or database file path for file backends")
	adminToken := flag.String("admin-token", os.Getenv("HAIES_ADMIN_TOKEN"), "Admin API token")
	logLevel := flag.String("log-level", envOrDefault("HAIES_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("HAIES_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("HAIES_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("HAIES_TLS_KEY"), "TLS key file")
	flag.Parse()

	logger := newLogger(*logLevel, *logFormat)

	path := *dsn
	if path == "" && *backend != store.BackendPostgres {
		if err := os.MkdirAll(*dataDir, 0755); err != nil {
			logger.Error("failed to create data directory", "error", err, "path", *dataDir)
			os.Exit(1)
		}
		path = filepath.Join(*dataDir, "haies.db")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, *backend, path)
	if err != nil {
		logger.Error("failed to open storage", "error", err, "backend", *backend)
		os.Exit(1)
	}
	defer st.Close()

	cfg := server.DefaultConfig()
	cfg.AdminToken = *adminToken

	srv := &http.Server{
		Addr:         *listen,
		Handler:      server.Handler(st, cfg, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.Background() },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting haies-server", "listen", *listen, "backend", *backend)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
