package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collection pipeline
type Config struct {
	// Instagram account and browsing settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Session scheduling (cadence, caps, rest windows)
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// List extraction tuning
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Per-account collection policy
	Collector CollectorConfig `yaml:"collector" json:"collector"`

	// Request pacing inside a session
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Persisted data layout
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the root account and browsing settings
type InstagramConfig struct {
	Username  string `yaml:"username" json:"username"`
	Headless  bool   `yaml:"headless" json:"headless"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// ScheduleConfig holds all session-cadence tunables. The scheduler takes
// every constant from here so variants of the loop differ only by config.
type ScheduleConfig struct {
	MinInterval       time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxInterval       time.Duration `yaml:"max_interval" json:"max_interval"`
	MaxSessionsPerDay int           `yaml:"max_sessions_per_day" json:"max_sessions_per_day"`
	SkipChance        float64       `yaml:"skip_chance" json:"skip_chance"`

	// Blackout hours [start, end) during which no session starts.
	BlackoutStartHour int `yaml:"blackout_start_hour" json:"blackout_start_hour"`
	BlackoutEndHour   int `yaml:"blackout_end_hour" json:"blackout_end_hour"`

	// Daily rest window: a random start hour is drawn once per day from
	// [BreakEarliestHour, BreakLatestHour].
	BreakEarliestHour int           `yaml:"break_earliest_hour" json:"break_earliest_hour"`
	BreakLatestHour   int           `yaml:"break_latest_hour" json:"break_latest_hour"`
	BreakWindowHours  int           `yaml:"break_window_hours" json:"break_window_hours"`
	BreakLength       time.Duration `yaml:"break_length" json:"break_length"`
	BreakJitter       time.Duration `yaml:"break_jitter" json:"break_jitter"`
}

// ExtractConfig holds pagination and termination tuning for the list extractor
type ExtractConfig struct {
	MaxPages         int           `yaml:"max_pages" json:"max_pages"`
	DefaultListTotal int           `yaml:"default_list_total" json:"default_list_total"`
	StuckWindow      int           `yaml:"stuck_window" json:"stuck_window"`
	StuckRepeats     int           `yaml:"stuck_repeats" json:"stuck_repeats"`
	PerRequestCap    int           `yaml:"per_request_cap" json:"per_request_cap"`
	Patience         int           `yaml:"patience" json:"patience"`
	CloseEnoughRatio float64       `yaml:"close_enough_ratio" json:"close_enough_ratio"`
	CloseEnoughSlack int           `yaml:"close_enough_slack" json:"close_enough_slack"`
	BackoffBase      time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffMax       time.Duration `yaml:"backoff_max" json:"backoff_max"`
}

// CollectorConfig holds per-account processing policy
type CollectorConfig struct {
	FollowerCeiling  int           `yaml:"follower_ceiling" json:"follower_ceiling"`
	FollowingCeiling int           `yaml:"following_ceiling" json:"following_ceiling"`
	FetchFollowers   bool          `yaml:"fetch_followers" json:"fetch_followers"`
	FetchFollowing   bool          `yaml:"fetch_following" json:"fetch_following"`
	AccountDelay     time.Duration `yaml:"account_delay" json:"account_delay"`
	BatchMin         int           `yaml:"batch_min" json:"batch_min"`
	BatchMax         int           `yaml:"batch_max" json:"batch_max"`
}

// RateLimitConfig holds in-session request pacing
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// StorageConfig holds the data directory layout
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the pipeline's stock tuning.
// The schedule defaults work out to roughly 600 visited accounts per day.
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			Headless:  true,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Schedule: ScheduleConfig{
			MinInterval:       15 * time.Minute,
			MaxInterval:       30 * time.Minute,
			MaxSessionsPerDay: 30,
			SkipChance:        0.10,
			BlackoutStartHour: 2,
			BlackoutEndHour:   6,
			BreakEarliestHour: 11,
			BreakLatestHour:   16,
			BreakWindowHours:  2,
			BreakLength:       2 * time.Hour,
			BreakJitter:       30 * time.Minute,
		},
		Extract: ExtractConfig{
			MaxPages:         10,
			DefaultListTotal: 100,
			StuckWindow:      20,
			StuckRepeats:     8,
			PerRequestCap:    12,
			Patience:         6,
			CloseEnoughRatio: 0.8,
			CloseEnoughSlack: 5,
			BackoffBase:      30 * time.Second,
			BackoffMax:       10 * time.Minute,
		},
		Collector: CollectorConfig{
			FollowerCeiling:  2000,
			FollowingCeiling: 2000,
			FetchFollowers:   true,
			FetchFollowing:   true,
			AccountDelay:     5 * time.Second,
			BatchMin:         40,
			BatchMax:         60,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
		},
		Storage: StorageConfig{
			DataDir: "instagram_data",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load builds the effective configuration: defaults, then an optional YAML
// file, then environment variables, then CLI flag overrides.
func Load(path string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}

	// A .env file is optional; a missing one is not an error
	_ = godotenv.Load()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the standard locations; finding none is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".ignetwork.yaml",
		".ignetwork.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "ignetwork", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "ignetwork", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".ignetwork.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration from IGNETWORK_* environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("IGNETWORK_USERNAME"); username != "" {
		c.Instagram.Username = username
	}
	if headless := os.Getenv("IGNETWORK_HEADLESS"); headless != "" {
		c.Instagram.Headless = strings.ToLower(headless) == "true"
	}
	if userAgent := os.Getenv("IGNETWORK_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}

	if dataDir := os.Getenv("IGNETWORK_DATA_DIR"); dataDir != "" {
		c.Storage.DataDir = dataDir
	}

	if sessions := os.Getenv("IGNETWORK_MAX_SESSIONS_PER_DAY"); sessions != "" {
		if val, err := strconv.Atoi(sessions); err == nil && val > 0 {
			c.Schedule.MaxSessionsPerDay = val
		}
	}
	if rpm := os.Getenv("IGNETWORK_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if pages := os.Getenv("IGNETWORK_MAX_PAGES"); pages != "" {
		if val, err := strconv.Atoi(pages); err == nil && val > 0 {
			c.Extract.MaxPages = val
		}
	}

	if logLevel := os.Getenv("IGNETWORK_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IGNETWORK_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// applyFlags applies CLI flag overrides, highest precedence
func (c *Config) applyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "username":
			if v, ok := value.(string); ok {
				c.Instagram.Username = v
			}
		case "headless":
			if v, ok := value.(bool); ok {
				c.Instagram.Headless = v
			}
		case "data-dir":
			if v, ok := value.(string); ok {
				c.Storage.DataDir = v
			}
		case "max-pages":
			if v, ok := value.(int); ok {
				c.Extract.MaxPages = v
			}
		case "batch-size":
			if v, ok := value.(int); ok {
				c.Collector.BatchMin = v
				c.Collector.BatchMax = v
			}
		case "no-followers":
			if v, ok := value.(bool); ok && v {
				c.Collector.FetchFollowers = false
			}
		case "no-following":
			if v, ok := value.(bool); ok && v {
				c.Collector.FetchFollowing = false
			}
		case "log-level":
			if v, ok := value.(string); ok {
				c.Logging.Level = v
			}
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Schedule.MinInterval <= 0 {
		errs = append(errs, errors.New("minimum session interval must be positive"))
	}
	if c.Schedule.MaxInterval < c.Schedule.MinInterval {
		errs = append(errs, errors.New("maximum session interval must not be below the minimum"))
	}
	if c.Schedule.MaxSessionsPerDay <= 0 {
		errs = append(errs, errors.New("max sessions per day must be positive"))
	}
	if c.Schedule.SkipChance < 0 || c.Schedule.SkipChance >= 1 {
		errs = append(errs, errors.New("skip chance must be in [0, 1)"))
	}
	if c.Schedule.BreakLatestHour < c.Schedule.BreakEarliestHour {
		errs = append(errs, errors.New("break latest hour must not be before earliest hour"))
	}

	if c.Extract.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Extract.StuckWindow <= 0 || c.Extract.StuckRepeats <= 0 {
		errs = append(errs, errors.New("stuck window and repeats must be positive"))
	}
	if c.Extract.PerRequestCap <= 0 {
		errs = append(errs, errors.New("per-request cap must be positive"))
	}
	if c.Extract.CloseEnoughRatio <= 0 || c.Extract.CloseEnoughRatio > 1 {
		errs = append(errs, errors.New("close-enough ratio must be in (0, 1]"))
	}

	if c.Collector.FollowerCeiling <= 0 || c.Collector.FollowingCeiling <= 0 {
		errs = append(errs, errors.New("size-gate ceilings must be positive"))
	}
	if c.Collector.BatchMin <= 0 || c.Collector.BatchMax < c.Collector.BatchMin {
		errs = append(errs, errors.New("batch bounds must satisfy 0 < min <= max"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}

	if len(errs) > 0 {
		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed: %s", strings.Join(msgs, "; "))
	}

	return nil
}
