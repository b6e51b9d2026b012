package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("TRUST_PROXY_HEADERS", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.TrustProxyHeaders {
		t.Fatalf("expected proxy headers to be ignored by default")
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "-5")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "soon")
	t.Setenv("SEED_DEMO_DATA", "maybe")

	cfg := Load()
	if cfg.ReportCacheTTL() != 30*time.Second {
		t.Fatalf("expected default cache ttl, got %s", cfg.ReportCacheTTL())
	}
	if cfg.AccessTokenTTL() != 8*time.Hour {
		t.Fatalf("expected default token ttl, got %s", cfg.AccessTokenTTL())
	}
	if cfg.SeedDemoData {
		t.Fatalf("expected demo data off for unparseable flag")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Load()
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.RedisDB != 2 || !cfg.SeedDemoData || !cfg.TrustProxyHeaders {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
