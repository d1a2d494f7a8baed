package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: secret
database:
  driver: postgres
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 5*time.Minute {
		t.Fatalf("expected default token ttl 5m, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Business.MaxConflictRetries != 3 {
		t.Fatalf("expected default retry bound 3, got %d", cfg.Business.MaxConflictRetries)
	}
	if cfg.Kafka.Topic.FundsEvents != "funds-events" {
		t.Fatalf("unexpected funds topic %q", cfg.Kafka.Topic.FundsEvents)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: from-file
  token_ttl: 10m
`)
	t.Setenv("AUTH_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != 10*time.Minute {
		t.Fatalf("expected 10m ttl, got %s", cfg.Auth.TokenTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = " " }, wantErr: "jwt_secret"},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: "sqlite"},
		{name: "zero retries", mutate: func(c *Config) { c.Business.MaxConflictRetries = 0 }, wantErr: "max_conflict_retries"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true }, wantErr: "kafka.brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database: DatabaseConfig{Driver: "mysql"},
				Auth:     AuthConfig{JWTSecret: "secret", TokenTTL: time.Minute},
				Business: BusinessConfig{MaxConflictRetries: 3},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
