// Package config loads and validates leetcoach configuration. Settings live
// in .leetcoach/config.yaml under the workspace; environment variables
// (LEETCOACH_*) override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"leetcoach/internal/types"
)

// Config holds all leetcoach configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Practice scheduling settings
	Practice Settings `yaml:"practice"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// Settings are the recognized practice options consumed by the assembler,
// the lifecycle manager, and the focus coordinator.
type Settings struct {
	// Total problems per session. Range 3..10.
	SessionLength int `yaml:"session_length"`

	// Cap on the "new" portion. Range 0..SessionLength.
	NumberOfNewProblems int `yaml:"number_of_new_problems"`

	// When false, current_focus_tags is frozen and the focus coordinator
	// never adapts.
	FlexibleSchedule *bool `yaml:"flexible_schedule"`

	// Review percentage for the assembler's review pass. Range 0..80,
	// step 10.
	ReviewRatio int `yaml:"review_ratio"`

	// Upper difficulty bound passed to the assembler.
	DifficultyCap types.Difficulty `yaml:"difficulty_cap"`

	// Floor on the actual review proportion; falling below logs a warning.
	// Range 0..60.
	MinReviewRatio int `yaml:"min_review_ratio"`
}

// Flexible resolves the tri-state FlexibleSchedule pointer (default true).
func (s Settings) Flexible() bool {
	return s.FlexibleSchedule == nil || *s.FlexibleSchedule
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging. The internal/logging package reads the
// same yaml section directly, so these fields and its mirror struct must stay
// in step.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, text
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "leetcoach",
		Version: "1.0.0",

		Practice: DefaultSettings(),

		Storage: StorageConfig{
			DatabasePath: filepath.Join(".leetcoach", "leetcoach.db"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultSettings returns the documented setting defaults.
func DefaultSettings() Settings {
	return Settings{
		SessionLength:       5,
		NumberOfNewProblems: 3,
		ReviewRatio:         40,
		DifficultyCap:       types.DifficultyMedium,
		MinReviewRatio:      30,
	}
}

// Load reads config from the workspace, applies defaults, env overrides, and
// clamps out-of-range values. A missing file yields pure defaults.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspace, ".leetcoach", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.Practice.Clamp()
	return cfg, nil
}

// Save writes the config back to the workspace.
func Save(workspace string, cfg *Config) error {
	dir := filepath.Join(workspace, ".leetcoach")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}

// Clamp forces every setting into its documented range. Out-of-range values
// are clamped, never rejected: a bad settings file should degrade, not brick
// the scheduler.
func (s *Settings) Clamp() {
	if s.SessionLength < 3 {
		s.SessionLength = 3
	}
	if s.SessionLength > 10 {
		s.SessionLength = 10
	}

	if s.NumberOfNewProblems < 0 {
		s.NumberOfNewProblems = 0
	}
	if s.NumberOfNewProblems > s.SessionLength {
		s.NumberOfNewProblems = s.SessionLength
	}

	if s.ReviewRatio < 0 {
		s.ReviewRatio = 0
	}
	if s.ReviewRatio > 80 {
		s.ReviewRatio = 80
	}
	// review_ratio moves in steps of 10
	s.ReviewRatio -= s.ReviewRatio % 10

	if s.MinReviewRatio < 0 {
		s.MinReviewRatio = 0
	}
	if s.MinReviewRatio > 60 {
		s.MinReviewRatio = 60
	}

	if !s.DifficultyCap.Valid() {
		s.DifficultyCap = types.DifficultyMedium
	}
}

// applyEnvOverrides applies LEETCOACH_* environment variables on top of the
// file config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEETCOACH_SESSION_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Practice.SessionLength = n
		}
	}
	if v := os.Getenv("LEETCOACH_NEW_PROBLEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Practice.NumberOfNewProblems = n
		}
	}
	if v := os.Getenv("LEETCOACH_REVIEW_RATIO"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Practice.ReviewRatio = n
		}
	}
	if v := os.Getenv("LEETCOACH_MIN_REVIEW_RATIO"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Practice.MinReviewRatio = n
		}
	}
	if v := os.Getenv("LEETCOACH_DIFFICULTY_CAP"); v != "" {
		cfg.Practice.DifficultyCap = types.Difficulty(v)
	}
	if v := os.Getenv("LEETCOACH_FLEXIBLE_SCHEDULE"); v != "" {
		b := strings.EqualFold(v, "true") || v == "1"
		cfg.Practice.FlexibleSchedule = &b
	}
	if v := os.Getenv("LEETCOACH_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("LEETCOACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
