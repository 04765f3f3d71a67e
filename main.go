// Legacy entry point: runs a single collection session with flags only.
// The full CLI lives in cmd/ignetwork.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ignetwork/pkg/auth"
	"ignetwork/pkg/browser"
	"ignetwork/pkg/config"
	"ignetwork/pkg/driver"
	"ignetwork/pkg/logger"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	dataDir    = flag.String("data-dir", "", "Directory for collected data")
	headless   = flag.Bool("headless", true, "Run the browser without a window")
	batchSize  = flag.Int("batch-size", 0, "Fixed accounts per session")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	flags := make(map[string]interface{})
	if *dataDir != "" {
		flags["data-dir"] = *dataDir
	}
	if *batchSize > 0 {
		flags["batch-size"] = *batchSize
	}
	if *logLevel != "" {
		flags["log-level"] = *logLevel
	}
	flags["headless"] = *headless

	if args := flag.Args(); len(args) == 1 {
		flags["username"] = strings.TrimSpace(args[0])
	}

	cfg, err := config.Load(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	username := cfg.Instagram.Username
	if username == "" {
		fmt.Fprintln(os.Stderr, "Usage: ignetwork [flags] <instagram_username>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing credential manager: %v\n", err)
		os.Exit(1)
	}
	account, err := manager.Retrieve(username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No credentials for %s: run 'ignetwork auth login %s' first\n", username, username)
		os.Exit(1)
	}
	if account.UserAgent == "" {
		account.UserAgent = cfg.Instagram.UserAgent
	}

	b, err := browser.NewRod(browser.Config{Headless: cfg.Instagram.Headless})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error launching browser: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := driver.New(cfg, b, account).RunSession(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Session failed: %v\n", err)
		os.Exit(1)
	}
}
