package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wyeliu/stockradar/pkg/config"
)

func TestNew(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		t.Errorf("failed to ping database: %v", err)
	}

	stats := db.Stats()
	if stats.MaxConns <= 0 {
		t.Errorf("MaxConns = %d, want positive", stats.MaxConns)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{URL: "://not-a-url"},
	}
	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid connection string")
	}
}
