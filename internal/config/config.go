package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB         DBConfig
	MinIO      MinIOConfig
	JWT        JWTConfig
	Server     ServerConfig
	Audit      AuditConfig
	Settlement SettlementConfig
	Scoring    ScoringRules
	Admin      AdminSeedConfig
}

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type MinIOConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
	BodyLimit   int
}

type AuditConfig struct {
	ExportInterval time.Duration
}

type SettlementConfig struct {
	Interval time.Duration
}

type AdminSeedConfig struct {
	Email    string
	Password string
}

// ScoringRules are the Fun Score weights applied when an event is settled.
type ScoringRules struct {
	AttendDelta          int `yaml:"attend_delta"`
	NoShowPenalty        int `yaml:"no_show_penalty"`
	HostDelta            int `yaml:"host_delta"`
	HostBonusPerAttendee int `yaml:"host_bonus_per_attendee"`
	HostBonusCap         int `yaml:"host_bonus_cap"`
}

func DefaultScoringRules() ScoringRules {
	return ScoringRules{
		AttendDelta:          10,
		NoShowPenalty:        25,
		HostDelta:            15,
		HostBonusPerAttendee: 2,
		HostBonusCap:         20,
	}
}

func (r ScoringRules) Validate() error {
	if r.AttendDelta < 0 || r.NoShowPenalty < 0 || r.HostDelta < 0 || r.HostBonusPerAttendee < 0 || r.HostBonusCap < 0 {
		return errors.New("scoring rules must not be negative")
	}
	return nil
}

// Load reads configuration from the environment. The scoring rules file named
// by SCORING_RULES_FILE, when set, overrides the default weights.
func Load() (*Config, error) {
	cfg := &Config{
		DB: DBConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "huddle"),
			Password:   getEnv("DB_PASSWORD", "huddle_secret"),
			Name:       getEnv("DB_NAME", "huddle"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "huddle.db"),
		},
		MinIO: MinIOConfig{
			Enabled:   getEnvAsBool("MINIO_ENABLED", false),
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "huddle"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "huddle_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "huddle-audit"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "5001"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
			BodyLimit:   getEnvAsInt("SERVER_BODY_LIMIT", 10*1024*1024),
		},
		Audit: AuditConfig{
			ExportInterval: getEnvAsDuration("AUDIT_EXPORT_INTERVAL", time.Hour),
		},
		Settlement: SettlementConfig{
			Interval: getEnvAsDuration("SETTLEMENT_INTERVAL", 5*time.Minute),
		},
		Scoring: DefaultScoringRules(),
		Admin: AdminSeedConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@huddle.local"),
			Password: getEnv("ADMIN_PASSWORD", "admin123"),
		},
	}

	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	if path := getEnv("SCORING_RULES_FILE", ""); path != "" {
		rules, err := LoadScoringRules(path, cfg.Scoring)
		if err != nil {
			return nil, err
		}
		cfg.Scoring = rules
	}

	return cfg, nil
}

// LoadScoringRules overlays the YAML document at path onto base. A missing
// file leaves base unchanged.
func LoadScoringRules(path string, base ScoringRules) (ScoringRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return base, fmt.Errorf("reading scoring rules: %w", err)
	}

	rules := base
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return base, fmt.Errorf("parsing scoring rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return base, fmt.Errorf("scoring rules %s: %w", path, err)
	}
	return rules, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
