package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ignetwork/pkg/auth"
	"ignetwork/pkg/browser"
	"ignetwork/pkg/config"
	"ignetwork/pkg/driver"
)

var (
	runHeadless    bool
	runDataDir     string
	runBatchSize   int
	runMaxPages    int
	runNoFollowers bool
	runNoFollowing bool
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the collection loop until interrupted",
	Long: `Run the long-lived collection loop. Each session authenticates,
refreshes the root account, reconciles the pending queue and works
through one randomized batch of accounts, then sleeps until the
scheduler permits the next session.

The loop stops on Ctrl-C or when authentication fails.`,
	Example: `  # Collect with the configured account
  ignetwork run

  # Exercise the pipeline without opening a browser
  ignetwork run --dry-run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser without a window")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "directory for collected data")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "fixed accounts per session (default: random 40-60)")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "list pages per extraction")
	runCmd.Flags().BoolVar(&runNoFollowers, "no-followers", false, "skip follower lists")
	runCmd.Flags().BoolVar(&runNoFollowing, "no-following", false, "skip following lists")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use a scripted browser, collect nothing real")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(sessionFlags(cmd))
	if err != nil {
		return err
	}

	account, b, err := buildSession(cfg, runDryRun)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return driver.New(cfg, b, account).Run(ctx)
}

// sessionFlags maps the shared run/collect flags onto config overrides.
func sessionFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("headless") {
		flags["headless"] = runHeadless
	}
	if runDataDir != "" {
		flags["data-dir"] = runDataDir
	}
	if runBatchSize > 0 {
		flags["batch-size"] = runBatchSize
	}
	if runMaxPages > 0 {
		flags["max-pages"] = runMaxPages
	}
	if runNoFollowers {
		flags["no-followers"] = true
	}
	if runNoFollowing {
		flags["no-following"] = true
	}
	return flags
}

// buildSession resolves the account credentials and constructs the browser.
// Dry runs get a scripted browser with an empty root profile, so a session
// goes through every pipeline stage without network traffic.
func buildSession(cfg *config.Config, dryRun bool) (*auth.Account, browser.Browser, error) {
	username := cfg.Instagram.Username
	if username == "" {
		return nil, nil, fmt.Errorf("no account configured: set instagram.username or IGNETWORK_USERNAME")
	}

	if dryRun {
		fake := browser.NewFake()
		fake.AddProfile(username, &browser.FakeProfile{})
		return &auth.Account{Username: username, Password: "dry-run"}, fake, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	account, err := manager.Retrieve(username)
	if err != nil {
		return nil, nil, fmt.Errorf("no credentials for %s: run 'ignetwork auth login %s' first", username, username)
	}
	if account.UserAgent == "" {
		account.UserAgent = cfg.Instagram.UserAgent
	}

	b, err := browser.NewRod(browser.Config{Headless: cfg.Instagram.Headless})
	if err != nil {
		return nil, nil, err
	}
	return account, b, nil
}
