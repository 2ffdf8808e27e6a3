// Package config loads engine configuration from the environment. Values
// here are only initial defaults for new sessions; live behavior follows
// the per-session toggles stored alongside each session.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DBPath   string `env:"DMK_DB_PATH" envDefault:"./local/dmk.sqlite3"`
	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`

	DefaultMode        string `env:"DMK_DEFAULT_MODE" envDefault:"narrator"`
	ProfanityLevel     int    `env:"DMK_PROFANITY_LEVEL" envDefault:"3"`
	Rating             string `env:"DMK_RATING" envDefault:"PG-13"`
	TangentsLevel      int    `env:"DMK_TANGENTS_LEVEL" envDefault:"1"`
	AchievementDensity string `env:"DMK_ACHIEVEMENT_DENSITY" envDefault:"normal"`

	// Empty paths fall back to the embedded campaign and catalog.
	CampaignPath string `env:"DMK_CAMPAIGN_PATH"`
	CatalogPath  string `env:"DMK_CATALOG_PATH"`
}

// Load reads a local .env when present, then the process environment,
// and validates the result.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if _, err := state.ParseMode(cfg.DefaultMode); err != nil {
		return nil, fmt.Errorf("invalid DMK_DEFAULT_MODE: %w", err)
	}
	if err := cfg.DefaultToggles().Validate(); err != nil {
		return nil, fmt.Errorf("invalid toggle defaults: %w", err)
	}
	return &cfg, nil
}

// DefaultToggles returns the toggle values applied to brand-new sessions.
func (c *Config) DefaultToggles() state.Toggles {
	return state.Toggles{
		ProfanityLevel:     c.ProfanityLevel,
		Rating:             state.Rating(strings.ToUpper(c.Rating)),
		TangentsLevel:      c.TangentsLevel,
		AchievementDensity: state.Density(strings.ToLower(c.AchievementDensity)),
	}
}

// Mode returns the mode assigned to brand-new sessions.
func (c *Config) Mode() state.Mode {
	mode, _ := state.ParseMode(c.DefaultMode)
	return mode
}

// SlogLevel maps the configured level string onto slog levels.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
