package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// Test default values
	if config.Schedule.MaxSessionsPerDay != 30 {
		t.Errorf("Expected default max sessions per day to be 30, got %d", config.Schedule.MaxSessionsPerDay)
	}

	if config.Schedule.MinInterval != 15*time.Minute {
		t.Errorf("Expected default minimum interval to be 15m, got %v", config.Schedule.MinInterval)
	}

	if config.Collector.FollowerCeiling != 2000 {
		t.Errorf("Expected default follower ceiling to be 2000, got %d", config.Collector.FollowerCeiling)
	}

	if config.Storage.DataDir != "instagram_data" {
		t.Errorf("Expected default data directory to be instagram_data, got %s", config.Storage.DataDir)
	}

	if !config.Collector.FetchFollowers || !config.Collector.FetchFollowing {
		t.Error("Expected both list kinds to be fetched by default")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set test environment variables
	os.Setenv("IGNETWORK_USERNAME", "env_user")
	os.Setenv("IGNETWORK_HEADLESS", "false")
	os.Setenv("IGNETWORK_DATA_DIR", "/tmp/test-network")
	os.Setenv("IGNETWORK_MAX_SESSIONS_PER_DAY", "12")
	os.Setenv("IGNETWORK_REQUESTS_PER_MINUTE", "20")
	os.Setenv("IGNETWORK_MAX_PAGES", "25")
	os.Setenv("IGNETWORK_LOG_LEVEL", "debug")

	defer func() {
		// Clean up environment variables
		os.Unsetenv("IGNETWORK_USERNAME")
		os.Unsetenv("IGNETWORK_HEADLESS")
		os.Unsetenv("IGNETWORK_DATA_DIR")
		os.Unsetenv("IGNETWORK_MAX_SESSIONS_PER_DAY")
		os.Unsetenv("IGNETWORK_REQUESTS_PER_MINUTE")
		os.Unsetenv("IGNETWORK_MAX_PAGES")
		os.Unsetenv("IGNETWORK_LOG_LEVEL")
	}()

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	// Test loaded values
	if config.Instagram.Username != "env_user" {
		t.Errorf("Expected username to be env_user, got %s", config.Instagram.Username)
	}

	if config.Instagram.Headless {
		t.Error("Expected headless to be disabled")
	}

	if config.Storage.DataDir != "/tmp/test-network" {
		t.Errorf("Expected data directory to be /tmp/test-network, got %s", config.Storage.DataDir)
	}

	if config.Schedule.MaxSessionsPerDay != 12 {
		t.Errorf("Expected max sessions per day to be 12, got %d", config.Schedule.MaxSessionsPerDay)
	}

	if config.RateLimit.RequestsPerMinute != 20 {
		t.Errorf("Expected requests per minute to be 20, got %d", config.RateLimit.RequestsPerMinute)
	}

	if config.Extract.MaxPages != 25 {
		t.Errorf("Expected max pages to be 25, got %d", config.Extract.MaxPages)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	os.Setenv("IGNETWORK_MAX_SESSIONS_PER_DAY", "not-a-number")
	os.Setenv("IGNETWORK_MAX_PAGES", "-4")
	defer func() {
		os.Unsetenv("IGNETWORK_MAX_SESSIONS_PER_DAY")
		os.Unsetenv("IGNETWORK_MAX_PAGES")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Schedule.MaxSessionsPerDay != 30 {
		t.Errorf("Expected unparseable value to keep default 30, got %d", config.Schedule.MaxSessionsPerDay)
	}
	if config.Extract.MaxPages != 10 {
		t.Errorf("Expected negative value to keep default 10, got %d", config.Extract.MaxPages)
	}
}

func TestApplyFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"username":     "flag_user",
		"data-dir":     "/flag/data",
		"batch-size":   25,
		"max-pages":    40,
		"no-following": true,
		"log-level":    "error",
	}

	config.applyFlags(flags)

	// Test merged values
	if config.Instagram.Username != "flag_user" {
		t.Errorf("Expected username to be flag_user, got %s", config.Instagram.Username)
	}

	if config.Storage.DataDir != "/flag/data" {
		t.Errorf("Expected data directory to be /flag/data, got %s", config.Storage.DataDir)
	}

	if config.Collector.BatchMin != 25 || config.Collector.BatchMax != 25 {
		t.Errorf("Expected batch-size to pin both bounds to 25, got [%d, %d]",
			config.Collector.BatchMin, config.Collector.BatchMax)
	}

	if config.Extract.MaxPages != 40 {
		t.Errorf("Expected max pages to be 40, got %d", config.Extract.MaxPages)
	}

	if config.Collector.FetchFollowing {
		t.Error("Expected no-following to disable following extraction")
	}
	if !config.Collector.FetchFollowers {
		t.Error("Expected followers extraction to stay enabled")
	}

	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name: "inverted session intervals",
			mutate: func(c *Config) {
				c.Schedule.MinInterval = 30 * time.Minute
				c.Schedule.MaxInterval = 15 * time.Minute
			},
			wantError: true,
		},
		{
			name: "skip chance of one would skip forever",
			mutate: func(c *Config) {
				c.Schedule.SkipChance = 1.0
			},
			wantError: true,
		},
		{
			name: "inverted break window",
			mutate: func(c *Config) {
				c.Schedule.BreakEarliestHour = 16
				c.Schedule.BreakLatestHour = 11
			},
			wantError: true,
		},
		{
			name: "zero per-request cap",
			mutate: func(c *Config) {
				c.Extract.PerRequestCap = 0
			},
			wantError: true,
		},
		{
			name: "close-enough ratio above one",
			mutate: func(c *Config) {
				c.Extract.CloseEnoughRatio = 1.5
			},
			wantError: true,
		},
		{
			name: "inverted batch bounds",
			mutate: func(c *Config) {
				c.Collector.BatchMin = 60
				c.Collector.BatchMax = 40
			},
			wantError: true,
		},
		{
			name: "missing data directory",
			mutate: func(c *Config) {
				c.Storage.DataDir = ""
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	yaml := `
instagram:
  username: file_user
  headless: false
schedule:
  max_sessions_per_day: 8
collector:
  follower_ceiling: 500
`
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Instagram.Username != "file_user" {
		t.Errorf("Expected loaded username to be file_user, got %s", config.Instagram.Username)
	}
	if config.Instagram.Headless {
		t.Error("Expected headless to be disabled by file")
	}
	if config.Schedule.MaxSessionsPerDay != 8 {
		t.Errorf("Expected loaded max sessions per day to be 8, got %d", config.Schedule.MaxSessionsPerDay)
	}
	if config.Collector.FollowerCeiling != 500 {
		t.Errorf("Expected loaded follower ceiling to be 500, got %d", config.Collector.FollowerCeiling)
	}

	// Keys the file does not mention keep their defaults
	if config.Extract.MaxPages != 10 {
		t.Errorf("Expected untouched max pages to keep default 10, got %d", config.Extract.MaxPages)
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yaml := `
storage:
  data_dir: /from/file
extract:
  max_pages: 15
`
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("IGNETWORK_DATA_DIR", "/from/env")
	defer os.Unsetenv("IGNETWORK_DATA_DIR")

	cfg, err := Load(configPath, map[string]interface{}{"max-pages": 99})
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Environment overrides file
	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("Expected env to override file for data dir, got %s", cfg.Storage.DataDir)
	}

	// Flags override everything
	if cfg.Extract.MaxPages != 99 {
		t.Errorf("Expected flag to override file for max pages, got %d", cfg.Extract.MaxPages)
	}
}
