package config

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "dev-secret",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" || cfg.Store.Driver != DriverMongo || cfg.Mongo.Database != "brain" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Auth.AccessTokenTTL != 480*time.Minute || cfg.Auth.RefreshTTL != 720*time.Hour {
		t.Fatalf("unexpected token TTLs: %s / %s", cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTTL)
	}
	if cfg.RateLimit.LoginLimit != 10 || cfg.RateLimit.RefreshLimit != 60 || cfg.RateLimit.LoginWindow != time.Minute {
		t.Fatalf("unexpected rate limits: %+v", cfg.RateLimit)
	}
	if cfg.Auth.BcryptCost != 12 || cfg.Auth.JWTIssuer != "brain" {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":         "dev-secret",
		"STORE_DRIVER":       "postgres",
		"POSTGRES_DSN":       "postgres://brain@localhost/brain?sslmode=disable",
		"LOGIN_RATE_LIMIT":   "3",
		"LOGIN_RATE_WINDOW":  "30s",
		"CORS_ORIGINS":       "https://a.example,https://b.example",
		"ACCESS_TOKEN_TTL":   "15m",
		"REFRESH_RATE_LIMIT": "5",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.RateLimit.LoginLimit != 3 || cfg.RateLimit.LoginWindow != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected two CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoadFrom_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET is required"},
		{"short production secret", map[string]string{"JWT_SECRET": "short", "ENV": "production"}, "at least 32 bytes"},
		{"postgres without dsn", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "postgres"}, "POSTGRES_DSN"},
		{"unknown driver", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "sqlite"}, "unknown STORE_DRIVER"},
		{"zero limit", map[string]string{"JWT_SECRET": "s", "LOGIN_RATE_LIMIT": "0"}, "rate limits"},
		{"bad proxy range", map[string]string{"JWT_SECRET": "s", "TRUSTED_PROXIES": "10.0.0.0/99"}, "TRUSTED_PROXIES"},
		{"bad proxy address", map[string]string{"JWT_SECRET": "s", "TRUSTED_PROXIES": "proxy.internal"}, "TRUSTED_PROXIES"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateStore_IgnoresAuthSettings(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: DriverMongo}}
	if err := cfg.ValidateStore(); err != nil {
		t.Fatalf("mongo without JWT_SECRET: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("full validation must still require JWT_SECRET")
	}

	cfg.Store.Driver = DriverPostgres
	if err := cfg.ValidateStore(); err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("expected POSTGRES_DSN error, got %v", err)
	}
}

func TestTrustedProxyNets(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if nets, _ := cfg.TrustedProxyNets(); len(nets) != 0 {
		t.Fatalf("no proxies are trusted by default, got %v", nets)
	}

	cfg, err = LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":      "s",
		"TRUSTED_PROXIES": "10.1.0.0/16,192.0.2.10",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	nets, err := cfg.TrustedProxyNets()
	if err != nil || len(nets) != 2 {
		t.Fatalf("expected two ranges, got %v %v", nets, err)
	}
	if !nets[0].Contains(net.ParseIP("10.1.44.5")) || !nets[1].Contains(net.ParseIP("192.0.2.10")) {
		t.Fatalf("unexpected ranges %v", nets)
	}
	if nets[1].Contains(net.ParseIP("192.0.2.11")) {
		t.Fatalf("a bare address must only match itself")
	}
}
