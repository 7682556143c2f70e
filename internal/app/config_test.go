package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "SWAPI_BASE_URL", "UPSTREAM_TIMEOUT_SECONDS", "MONGO_URI", "MONGO_DB", "REDIS_URL", "STATS_RECOMPUTE_MINUTES", "STATS_WARM_START", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("expected :8000, got %q", cfg.HTTPAddr)
	}
	if cfg.SwapiBaseURL != "https://swapi.dev/api" {
		t.Fatalf("unexpected base url %q", cfg.SwapiBaseURL)
	}
	if cfg.UpstreamTimeout != 15*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.UpstreamTimeout)
	}
	if cfg.MongoURI != "" || cfg.MongoDB != "catalog" {
		t.Fatalf("unexpected mongo settings %q/%q", cfg.MongoURI, cfg.MongoDB)
	}
	if cfg.StatsInterval != 15*time.Minute || cfg.StatsWarmStart {
		t.Fatalf("unexpected stats settings %s/%v", cfg.StatsInterval, cfg.StatsWarmStart)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SWAPI_BASE_URL", "https://www.swapi.tech/api/")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("STATS_RECOMPUTE_MINUTES", "0")
	t.Setenv("STATS_WARM_START", "yes")
	t.Setenv("UPSTREAM_TIMEOUT_SECONDS", "-3")
	t.Setenv("RATE_LIMIT_RPS", "0")

	cfg := LoadConfig()
	if cfg.SwapiBaseURL != "https://www.swapi.tech/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.SwapiBaseURL)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.LogFormat)
	}
	if cfg.StatsInterval != 0 || !cfg.StatsWarmStart {
		t.Fatalf("unexpected stats settings %s/%v", cfg.StatsInterval, cfg.StatsWarmStart)
	}
	if cfg.UpstreamTimeout != 15*time.Second {
		t.Fatalf("negative timeout must fall back, got %s", cfg.UpstreamTimeout)
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected rate limit disabled, got %v", cfg.RateLimitRPS)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "maybe")
	if !getEnvBool("FLAG", true) {
		t.Fatal("unparseable value must return fallback")
	}
	t.Setenv("FLAG", "off")
	if getEnvBool("FLAG", true) {
		t.Fatal("expected false")
	}
}
