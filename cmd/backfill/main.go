package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/database"
	"papertrade/internal/history"
	"papertrade/internal/logger"
	"papertrade/internal/pricing"
	"papertrade/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Backfill error: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	points := fs.Int("points", 100, "number of samples to generate per asset")
	interval := fs.Duration("interval", 10*time.Minute, "spacing between samples")
	assetID := fs.String("asset", "", "asset id or symbol (default: every asset)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return err
	}
	defer dbManager.Close()
	if err := dbManager.RunMigrations(); err != nil {
		return err
	}

	db := dbManager.DB()
	sim := pricing.NewSimulator(pricing.Params{
		StockVolatility: cfg.Simulation.StockVolatility,
		FundVolatility:  cfg.Simulation.FundVolatility,
		FloorRatio:      cfg.Simulation.FloorRatio,
		CeilingRatio:    cfg.Simulation.CeilingRatio,
		StockBaseVolume: cfg.Simulation.StockBaseVolume,
		FundBaseVolume:  cfg.Simulation.FundBaseVolume,
	}, nil)
	assets := services.NewAssetService(db, history.NewLog(db, cfg.HistoryCap), nil, sim)

	ctx := context.Background()
	if cfg.SeedCatalog {
		if _, err := assets.SeedCatalog(ctx); err != nil {
			return err
		}
	}

	targets := []string{*assetID}
	if *assetID == "" {
		all, err := assets.ListAssets(ctx)
		if err != nil {
			return err
		}
		targets = targets[:0]
		for _, a := range all {
			targets = append(targets, a.ID)
		}
	}

	log := logger.Get().Named("backfill")
	end := time.Now().UTC()
	total := 0
	for _, id := range targets {
		n, err := assets.Backfill(ctx, id, *points, *interval, end)
		if err != nil {
			return fmt.Errorf("backfill %s: %w", id, err)
		}
		total += n
		log.Infow("asset backfilled", "asset", id, "samples", n)
	}
	log.Infow("backfill complete", "assets", len(targets), "samples", total,
		"span", (time.Duration(*points) * *interval).String())
	return nil
}
