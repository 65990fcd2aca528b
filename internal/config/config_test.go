package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UPDATE_INTERVAL", "")
	t.Setenv("HISTORY_CAP", "")
	t.Setenv("STARTING_BALANCE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.UpdateInterval != 10*time.Minute {
		t.Errorf("expected 10m update interval, got %s", cfg.UpdateInterval)
	}
	if cfg.HistoryCap != 2000 {
		t.Errorf("expected history cap 2000, got %d", cfg.HistoryCap)
	}
	if cfg.StartingBalance != 150000 {
		t.Errorf("expected starting balance 150000, got %g", cfg.StartingBalance)
	}
	if cfg.Simulation.StockVolatility != 0.04 || cfg.Simulation.FundVolatility != 0.02 {
		t.Errorf("unexpected volatilities %+v", cfg.Simulation)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPDATE_INTERVAL", "30s")
	t.Setenv("HISTORY_CAP", "100")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.UpdateInterval != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.UpdateInterval)
	}
	if cfg.HistoryCap != 100 {
		t.Errorf("expected 100, got %d", cfg.HistoryCap)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("UPDATE_INTERVAL", "soon")
	t.Setenv("HISTORY_CAP", "0")
	t.Setenv("PRICE_FLOOR_RATIO", "2")
	t.Setenv("PRICE_CEILING_RATIO", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.UpdateInterval != 10*time.Minute {
		t.Errorf("expected fallback 10m, got %s", cfg.UpdateInterval)
	}
	if cfg.HistoryCap != 2000 {
		t.Errorf("expected fallback 2000, got %d", cfg.HistoryCap)
	}
	if cfg.Simulation.FloorRatio != 0.3 || cfg.Simulation.CeilingRatio != 3.0 {
		t.Errorf("expected fallback ratios, got %+v", cfg.Simulation)
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "disable"}
	if got := cfg.PostgresURL(); got != "postgres://u:p@h:5432/d?sslmode=disable" {
		t.Errorf("unexpected url %s", got)
	}
}
