package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, val) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		unsetEnv(t, "DB_DRIVER", "DB_HOST", "SERVER_PORT", "JWT_EXPIRATION_HOURS", "SETTLEMENT_INTERVAL", "SCORING_RULES_FILE", "AUDIT_EXPORT_INTERVAL")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected defaults to load, got %v", err)
		}
		if cfg.DB.Driver != "postgres" {
			t.Errorf("expected postgres driver, got %s", cfg.DB.Driver)
		}
		if cfg.DB.Host != "localhost" {
			t.Errorf("expected DB.Host localhost, got %s", cfg.DB.Host)
		}
		if cfg.Server.Port != "5001" {
			t.Errorf("expected Server.Port 5001, got %s", cfg.Server.Port)
		}
		if cfg.JWT.ExpirationHours != 24 {
			t.Errorf("expected 24h tokens, got %d", cfg.JWT.ExpirationHours)
		}
		if cfg.Settlement.Interval != 5*time.Minute {
			t.Errorf("expected 5m settlement interval, got %v", cfg.Settlement.Interval)
		}
		if cfg.Audit.ExportInterval != time.Hour {
			t.Errorf("expected 1h export interval, got %v", cfg.Audit.ExportInterval)
		}
		if cfg.Scoring != DefaultScoringRules() {
			t.Errorf("expected default scoring rules, got %+v", cfg.Scoring)
		}
	})

	t.Run("reads environment variables", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "SQLite")
		t.Setenv("SQLITE_PATH", "/tmp/huddle-test.db")
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("JWT_SECRET", "my-secret")
		t.Setenv("JWT_EXPIRATION_HOURS", "48")
		t.Setenv("SETTLEMENT_INTERVAL", "30s")
		t.Setenv("MINIO_ENABLED", "true")
		unsetEnv(t, "SCORING_RULES_FILE")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected config to load, got %v", err)
		}
		if cfg.DB.Driver != "sqlite" || cfg.DB.SQLitePath != "/tmp/huddle-test.db" {
			t.Errorf("unexpected db config %+v", cfg.DB)
		}
		if cfg.Server.Port != "9090" {
			t.Errorf("expected port 9090, got %s", cfg.Server.Port)
		}
		if cfg.JWT.Secret != "my-secret" || cfg.JWT.ExpirationHours != 48 {
			t.Errorf("unexpected jwt config %+v", cfg.JWT)
		}
		if cfg.Settlement.Interval != 30*time.Second {
			t.Errorf("expected 30s settlement interval, got %v", cfg.Settlement.Interval)
		}
		if !cfg.MinIO.Enabled {
			t.Error("expected MinIO to be enabled")
		}
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		t.Setenv("JWT_EXPIRATION_HOURS", "many")
		t.Setenv("SETTLEMENT_INTERVAL", "soon")
		unsetEnv(t, "DB_DRIVER", "SCORING_RULES_FILE")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected config to load, got %v", err)
		}
		if cfg.JWT.ExpirationHours != 24 {
			t.Errorf("expected fallback 24, got %d", cfg.JWT.ExpirationHours)
		}
		if cfg.Settlement.Interval != 5*time.Minute {
			t.Errorf("expected fallback 5m, got %v", cfg.Settlement.Interval)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mongodb")
		if _, err := Load(); err == nil {
			t.Fatal("expected unsupported driver error")
		}
	})
}

func TestLoadScoringRules(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file keeps base", func(t *testing.T) {
		rules, err := LoadScoringRules(filepath.Join(dir, "absent.yaml"), DefaultScoringRules())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rules != DefaultScoringRules() {
			t.Fatalf("expected defaults, got %+v", rules)
		}
	})

	t.Run("partial override", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yaml")
		if err := os.WriteFile(path, []byte("attend_delta: 12\nno_show_penalty: 40\n"), 0o600); err != nil {
			t.Fatalf("failed writing rules: %v", err)
		}

		rules, err := LoadScoringRules(path, DefaultScoringRules())
		if err != nil {
			t.Fatalf("expected rules to load, got %v", err)
		}
		if rules.AttendDelta != 12 || rules.NoShowPenalty != 40 {
			t.Fatalf("expected overridden weights, got %+v", rules)
		}
		if rules.HostDelta != DefaultScoringRules().HostDelta {
			t.Fatalf("expected host delta to keep its default, got %d", rules.HostDelta)
		}
	})

	t.Run("env wiring", func(t *testing.T) {
		path := filepath.Join(dir, "env.yaml")
		if err := os.WriteFile(path, []byte("host_delta: 30\n"), 0o600); err != nil {
			t.Fatalf("failed writing rules: %v", err)
		}
		t.Setenv("SCORING_RULES_FILE", path)
		unsetEnv(t, "DB_DRIVER")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected config to load, got %v", err)
		}
		if cfg.Scoring.HostDelta != 30 {
			t.Fatalf("expected host delta 30, got %d", cfg.Scoring.HostDelta)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("attend_delta: [\n"), 0o600); err != nil {
			t.Fatalf("failed writing rules: %v", err)
		}
		if _, err := LoadScoringRules(path, DefaultScoringRules()); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("negative weights", func(t *testing.T) {
		path := filepath.Join(dir, "negative.yaml")
		if err := os.WriteFile(path, []byte("no_show_penalty: -5\n"), 0o600); err != nil {
			t.Fatalf("failed writing rules: %v", err)
		}
		if _, err := LoadScoringRules(path, DefaultScoringRules()); err == nil {
			t.Fatal("expected validation error")
		}
	})
}
