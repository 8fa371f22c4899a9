package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Errorf("unexpected default token TTL %s", cfg.Auth.TokenTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = "9090"

[database]
url = "postgres://localhost/opinix"
run_migrations = false

[auth]
secret = "file-secret"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/opinix" || cfg.Database.RunMigrations {
		t.Errorf("database section not applied: %+v", cfg.Database)
	}
	if cfg.Auth.Secret != "file-secret" {
		t.Errorf("auth secret not applied")
	}
	// Untouched sections keep their defaults.
	if cfg.Feed.CronSpec == "" {
		t.Error("feed defaults lost")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPINIX_PORT", "7070")
	t.Setenv("OPINIX_AUTH_SECRET", "env-secret")
	t.Setenv("OPINIX_AUTH_TOKEN_TTL", "1h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected env port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Errorf("expected env secret")
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %s", cfg.Auth.TokenTTL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.Secret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty secret must not validate")
	}

	cfg = Defaults()
	cfg.Server.Port = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty port must not validate")
	}
}
