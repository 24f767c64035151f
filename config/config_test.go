package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPricing(t *testing.T) {
	p, err := LoadPricing(filepath.Join("testdata", "pricing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Currency != "NPR" {
		t.Fatalf("unexpected currency %q", p.Currency)
	}
	if fee, err := p.RequestFee(); err != nil || fee != 2500 {
		t.Fatalf("request fee = %v (%v)", fee, err)
	}
	if fee, err := p.MatchFee(""); err != nil || fee != 150 {
		t.Fatalf("default tier fee = %v (%v)", fee, err)
	}
	if _, err := p.MatchFee("premium"); !errors.Is(err, ErrFeeNotConfigured) {
		t.Fatalf("expected missing premium tier to fail, got %v", err)
	}
}

func TestShippedPricingFile(t *testing.T) {
	p, err := LoadPricing("pricing.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, tier := range []string{"standard", "premium"} {
		if _, err := p.MatchFee(tier); err != nil {
			t.Fatalf("tier %s: %v", tier, err)
		}
	}
}

func TestMissingPricingHasNoFees(t *testing.T) {
	p, err := LoadPricing(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if _, err := p.RequestFee(); !errors.Is(err, ErrFeeNotConfigured) {
		t.Fatalf("expected ErrFeeNotConfigured, got %v", err)
	}
}

func TestBadPricingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte("match_unlock: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPricing(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MIN_MATCH_PERCENT", "70")
	t.Setenv("MATCH_INTERVAL", "15m")
	t.Setenv("PRICING_PATH", filepath.Join("testdata", "pricing.yaml"))
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Matching.MinPercent != 70 {
		t.Fatalf("min percent = %d", cfg.Matching.MinPercent)
	}
	if cfg.Scheduler.Interval != 15*time.Minute {
		t.Fatalf("interval = %v", cfg.Scheduler.Interval)
	}
	if cfg.Pricing.RequestUnlock != 2500 {
		t.Fatalf("pricing not loaded: %+v", cfg.Pricing)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("MIN_MATCH_PERCENT", "150")
	t.Setenv("PRICING_PATH", filepath.Join("testdata", "pricing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for threshold above 100")
	}
}
