// tradedesk-fetch fetches one series from the analytics proxy and writes it
// to the parquet export directory. Useful for seeding offline analysis
// without running the full server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tradedesk/internal/config"
	"tradedesk/internal/domain"
	"tradedesk/internal/export"
	"tradedesk/internal/marketdata"
	"tradedesk/internal/upstream"
	"tradedesk/internal/util"
)

func main() {
	symbol := flag.String("symbol", "DJI", "symbol to fetch")
	timeframe := flag.String("timeframe", "1D", "bar timeframe")
	periods := flag.Int("periods", 300, "number of bars")
	out := flag.String("out", "", "export directory (default: storage.export_dir from config)")
	force := flag.Bool("force", false, "bypass upstream cache")
	flag.Parse()

	godotenv.Load()

	cfg := config.Default()
	if p := os.Getenv("TRADEDESK_CONFIG"); p != "" {
		var err error
		cfg, err = config.Load(p)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}

	dir := cfg.Storage.ExportDir
	if *out != "" {
		dir = *out
	}
	if dir == "" {
		dir = "data/export"
	}

	logger := util.NewLogger(cfg.Logging.Level, "text")
	source := upstream.NewClient(cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second)
	svc := marketdata.NewService(source, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key := marketdata.Key{
		Symbol:    domain.Symbol(*symbol),
		Timeframe: domain.Timeframe(*timeframe),
	}
	entry, err := svc.Fetch(ctx, key.Symbol, key.Timeframe, *periods, *force)
	if err != nil {
		log.Fatalf("fetching %s: %v", key, err)
	}
	if entry.Err != "" {
		log.Fatalf("upstream error for %s: %s", key, entry.Err)
	}

	store := export.NewSeriesStore(dir)
	if err := store.WriteSeries(key, entry); err != nil {
		log.Fatalf("writing series: %v", err)
	}

	fmt.Printf("wrote %d bars for %s (provider %s) to %s\n",
		len(entry.Bars), key, entry.Provider, dir)
}
