package config

import (
	"log/slog"
	"testing"

	"github.com/dmkeith/dungeonmaster/pkg/state"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Mode() != state.ModeNarrator {
		t.Errorf("mode = %q, want narrator", cfg.Mode())
	}

	toggles := cfg.DefaultToggles()
	if toggles.Rating != state.RatingPG13 {
		t.Errorf("rating = %q, want PG-13", toggles.Rating)
	}
	if toggles.AchievementDensity != state.DensityNormal {
		t.Errorf("density = %q, want normal", toggles.AchievementDensity)
	}
	if err := toggles.Validate(); err != nil {
		t.Errorf("default toggles invalid: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DMK_DEFAULT_MODE", "story")
	t.Setenv("DMK_PROFANITY_LEVEL", "1")
	t.Setenv("DMK_RATING", "r")
	t.Setenv("DMK_ACHIEVEMENT_DENSITY", "HIGH")
	t.Setenv("DMK_DB_PATH", "/tmp/test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode() != state.ModeStory {
		t.Errorf("mode = %q, want story", cfg.Mode())
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}

	toggles := cfg.DefaultToggles()
	if toggles.ProfanityLevel != 1 {
		t.Errorf("profanity = %d, want 1", toggles.ProfanityLevel)
	}
	// Rating and density are normalized to their canonical case.
	if toggles.Rating != state.RatingR {
		t.Errorf("rating = %q, want R", toggles.Rating)
	}
	if toggles.AchievementDensity != state.DensityHigh {
		t.Errorf("density = %q, want high", toggles.AchievementDensity)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DMK_DEFAULT_MODE", "dungeon")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown mode")
	}

	t.Setenv("DMK_DEFAULT_MODE", "narrator")
	t.Setenv("DMK_PROFANITY_LEVEL", "9")
	if _, err := Load(); err == nil {
		t.Error("expected error for out-of-range profanity level")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
