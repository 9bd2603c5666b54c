package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tradedesk/internal/config"
	"tradedesk/internal/export"
	"tradedesk/internal/httpapi"
	"tradedesk/internal/journal"
	"tradedesk/internal/marketdata"
	"tradedesk/internal/prefetch"
	"tradedesk/internal/refresh"
	"tradedesk/internal/upstream"
	"tradedesk/internal/util"
)

func main() {
	// .env is optional; real env vars win either way.
	godotenv.Load()

	cfgPath := "config/tradedesk.yaml"
	if p := os.Getenv("TRADEDESK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	// Refresh journal: SQLite when a path is configured, otherwise in-memory noop.
	var recorder journal.Recorder = journal.Noop{}
	if cfg.Storage.SQLitePath != "" {
		rec, err := journal.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening refresh journal: %v", err)
		}
		defer rec.Close()
		recorder = rec
	}

	var exporter *export.SeriesStore
	if cfg.Storage.ExportDir != "" {
		exporter = export.NewSeriesStore(cfg.Storage.ExportDir)
	}

	var alpacaClient *alpacaapi.Client
	if cfg.Alpaca.APIKey != "" {
		alpacaClient = alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
		})
	}

	source := upstream.NewClient(cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second)
	svc := marketdata.NewService(source, logger)
	coord := refresh.NewCoordinator()

	keys := prefetch.Keys(cfg.Cache.Symbols, cfg.Cache.Timeframes)
	warmer := prefetch.NewWarmer(svc, coord, recorder, logger, keys,
		cfg.Cache.DefaultPeriods, cfg.Cache.MaxConcurrent, cfg.Cache.RateLimitPerMin)

	srv := httpapi.NewServer(svc, coord, recorder, exporter, alpacaClient, logger,
		cfg.Cache.Symbols, cfg.Cache.Timeframes, cfg.Cache.DefaultPeriods)
	defer srv.Close()
	srv.SetRefreshFunc(warmer.Run)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go srv.Run(ctx)

	if cfg.Cache.WarmupOnStart {
		go func() {
			if err := warmer.Run(ctx, false); err != nil {
				logger.Warn("startup warmup failed", "error", err)
			}
		}()
	}

	// Auto-refresh schedule. The toggle is checked at fire time so the
	// dashboard can pause refreshes without touching the scheduler.
	if cfg.Refresh.Enabled {
		c := cron.New(cron.WithSeconds())
		entryID, err := c.AddFunc(cfg.Refresh.CronSpec, func() {
			if !coord.AutoRefreshEnabled(refresh.SourceMarketData) {
				return
			}
			if err := warmer.Run(ctx, false); err != nil {
				logger.Warn("scheduled refresh failed", "error", err)
			}
		})
		if err != nil {
			log.Fatalf("invalid cron spec %q: %v", cfg.Refresh.CronSpec, err)
		}
		c.Start()
		defer c.Stop()

		go runCountdown(ctx, c, entryID, coord)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("tradedesk server listening", "addr", addr, "upstream", cfg.Upstream.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down tradedesk server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// runCountdown publishes the seconds remaining until the next scheduled
// refresh, once per second.
func runCountdown(ctx context.Context, c *cron.Cron, id cron.EntryID, coord *refresh.Coordinator) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := c.Entry(id).Next
			if next.IsZero() {
				continue
			}
			coord.UpdateCountdown(refresh.SourceMarketData, int(time.Until(next).Seconds()))
		}
	}
}
