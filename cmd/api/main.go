package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/simpledex-engine/internal/config"
	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/aman-zulfiqar/simpledex-engine/internal/server"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
// It wires the engine, starts the block watcher and serves HTTP with graceful shutdown
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rt, err := dexengine.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start engine")
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.WithError(err).Warn("shutdown incomplete")
		}
	}()

	if info, err := rt.TokenInfo(ctx); err != nil {
		logger.WithError(err).Warn("failed to read LP token metadata")
	} else {
		logger.WithFields(logrus.Fields{"name": info.Name, "symbol": info.Symbol}).Info("pool bound")
	}

	if err := rt.Sync.RefreshAll(ctx); err != nil {
		logger.WithError(err).Warn("initial refresh incomplete")
	}

	// Refresh on every new block until shutdown
	go func() {
		if err := rt.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("block watcher stopped")
		}
	}()

	h := &server.Handlers{
		Engine:  rt.Engine,
		Sync:    rt.Sync,
		Token:   rt.Gateway.Pool,
		Flags:   rt.Flags, // nil without Redis
		DevMode: cfg.DevMode,
		Logger:  logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
			Metrics: rt.Metrics,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
