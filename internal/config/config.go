package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr             string
	DatabaseDriver       string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret       string
	JWTTTL          time.Duration
	FederatedSecret string
	ResetTokenTTL   time.Duration

	// Timezone is the IANA zone calendar views use when a request names none.
	Timezone string

	LogLevel  string
	LogFormat string

	WorkerPollInterval  time.Duration
	MaintenanceSchedule string
}

var ErrMissing = errors.New("missing required setting")

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", false)
	v.SetDefault("JWT_TTL", 7*24*time.Hour)
	v.SetDefault("RESET_TOKEN_TTL", time.Hour)
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("WORKER_POLL_INTERVAL", 800*time.Millisecond)
	v.SetDefault("MAINTENANCE_SCHEDULE", "@every 1h")
	v.AutomaticEnv()

	// optional YAML overlay; env still wins
	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		HTTPAddr:             strings.TrimSpace(v.GetString("HTTP_ADDR")),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabaseURL:          strings.TrimSpace(v.GetString("DATABASE_URL")),
		CORSAllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
		JWTSecret:            strings.TrimSpace(v.GetString("JWT_SECRET")),
		JWTTTL:               v.GetDuration("JWT_TTL"),
		FederatedSecret:      strings.TrimSpace(v.GetString("FEDERATED_SECRET")),
		ResetTokenTTL:        v.GetDuration("RESET_TOKEN_TTL"),
		Timezone:             strings.TrimSpace(v.GetString("TIMEZONE")),
		LogLevel:             strings.TrimSpace(v.GetString("LOG_LEVEL")),
		LogFormat:            strings.TrimSpace(v.GetString("LOG_FORMAT")),
		WorkerPollInterval:   v.GetDuration("WORKER_POLL_INTERVAL"),
		MaintenanceSchedule:  strings.TrimSpace(v.GetString("MAINTENANCE_SCHEDULE")),
	}

	origins := strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("%w: DATABASE_URL", ErrMissing)
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("%w: JWT_SECRET", ErrMissing)
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return cfg, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location returns the configured default timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
