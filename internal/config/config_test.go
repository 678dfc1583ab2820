package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "8000")
	t.Setenv("WALLET_LOCK_TIMEOUT", "not-a-duration")
	t.Setenv("TRANSACTIONS_MAX_LIMIT", "-4")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()

	if cfg.Port != "8000" {
		t.Fatalf("expected port 8000, got %s", cfg.Port)
	}
	if cfg.WalletLockTimeout != 3*time.Second {
		t.Fatalf("expected lock timeout fallback 3s, got %s", cfg.WalletLockTimeout)
	}
	if cfg.TransactionsMaxLimit != 200 {
		t.Fatalf("expected max limit fallback 200, got %d", cfg.TransactionsMaxLimit)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
}

func TestEmptyDatabaseURLIsKept(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if cfg := Load(); cfg.DatabaseURL != "" {
		t.Fatalf("expected empty database url, got %q", cfg.DatabaseURL)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{WalletTimezone: "Mars/Olympus"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", cfg.Location())
	}
}

func TestValidate(t *testing.T) {
	dev := &Config{Env: "development", JWTSecret: defaultJWTSecret}
	if !dev.IsDevelopment() || dev.IsProduction() {
		t.Fatal("expected development mode")
	}
	if err := dev.Validate(); err != nil {
		t.Fatalf("development defaults should pass, got %v", err)
	}

	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default secret", Config{Env: "production", JWTSecret: defaultJWTSecret, DatabaseURL: "postgres://db"}, false},
		{"in-memory stores", Config{Env: "production", JWTSecret: "s3cret"}, false},
		{"empty secret", Config{Env: "test"}, false},
		{"complete", Config{Env: "production", JWTSecret: "s3cret", DatabaseURL: "postgres://db"}, true},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if (err == nil) != c.ok {
			t.Fatalf("%s: unexpected result %v", c.name, err)
		}
	}
}
