package main

import (
	"fmt"

	"ignetwork/pkg/config"
	"ignetwork/pkg/logger"
)

func main() {
	Execute()
}

// loadConfig builds the effective configuration from defaults, the config
// file, the environment and the given flag overrides, then initializes the
// global logger from it.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet {
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return cfg, nil
}
