// Command gridset runs the energy-market console: a demo ledger, an
// order-book aggregator and the web UI serving both.
//
// Usage:
//
//	gridset --config config.yaml
//	gridset setup   (interactive wizard, writes config.gen.yaml)
//	gridset         (uses CLI arguments, demo mode by default)
//
// Without --rpc and --market the console runs in demo mode: the ledger is
// simulated in memory and the order book shows the static fallback ladder.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vadiminshakov/gridset/config"
	"github.com/vadiminshakov/gridset/internal/clients"
	"github.com/vadiminshakov/gridset/internal/services/ledger"
	"github.com/vadiminshakov/gridset/internal/services/market"
	"github.com/vadiminshakov/gridset/internal/setup"
	"github.com/vadiminshakov/gridset/internal/storage/snapshots"
	"github.com/vadiminshakov/gridset/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const generatedConfigPath = "config.gen.yaml"

func main() {
	var (
		cfg config.Config
		err error
	)
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(generatedConfigPath); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.FromFile(generatedConfigPath)
	} else {
		cfg, err = config.Get()
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	store, err := snapshots.NewWALStore(cfg.SnapshotDir)
	if err != nil {
		logger.Fatal("failed to init snapshot journal", zap.Error(err))
	}
	defer store.Close()

	led := ledger.New(logger, store)

	var source market.Source
	if cfg.LiveMode() {
		client, err := clients.NewEnergyMarketClient(cfg.RPCURL, cfg.MarketAddress, cfg.TokenDecimals, logger)
		if err != nil {
			logger.Fatal("failed to init energy market client", zap.Error(err))
		}
		defer client.Close()
		source = client
		logger.Info("live market data enabled",
			zap.String("rpc", cfg.RPCURL),
			zap.String("market", cfg.MarketAddress))
	} else {
		logger.Info("no market contract configured, serving fallback order book")
	}

	agg := market.NewAggregator(logger, source, cfg.TimeSlot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		agg.Refresh(gctx)
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				agg.Refresh(gctx)
			}
		}
	})

	server := web.NewServer(cfg.WebAddr, led, agg, store, logger)
	g.Go(func() error {
		logger.Info("console listening", zap.String("addr", cfg.WebAddr))
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, cfg.TLSDomains, "")
		}
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("console stopped", zap.Error(err))
	}
}
