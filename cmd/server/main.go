package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/upgradekit/internal/app"
	"github.com/betbot/upgradekit/internal/metrics"
	"github.com/betbot/upgradekit/pkg/config"
	"github.com/betbot/upgradekit/pkg/logger"
	"github.com/betbot/upgradekit/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath = flag.String("config", getenv("UPGRADEKIT_CONFIG", ""), "YAML config file (optional)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides server.listen)")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		logger.Errorf("load config failed: %v", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		JSON:       cfg.Log.JSON,
	}); err != nil {
		logger.Errorf("init logger failed: %v", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.Errorf("init upgradekit failed: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sm := shutdown.NewManager()
	sm.OnShutdown("app", func(context.Context) error { return a.Close() })

	if cfg.Server.MetricsListen != "" {
		ms, err := metrics.StartAsync(ctx, cfg.Server.MetricsListen)
		if err != nil {
			logger.Warnf("metrics server disabled: %v", err)
		} else {
			logger.Infof("metrics listening on %s", ms.Addr)
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           a.API.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	sm.OnShutdown("http", httpSrv.Shutdown)

	go func() {
		logger.Infof("upgradekit listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
			cancel()
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case <-stopCh:
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := sm.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("server stopped")
}
