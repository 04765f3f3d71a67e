package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ignetwork/pkg/driver"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a single collection session and exit",
	Long: `Run exactly one collection session, bypassing the scheduler: useful
for catching up manually or verifying a fresh setup. The session still
respects every in-session limit (pacing, size gates, batch bounds).`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser without a window")
	collectCmd.Flags().StringVar(&runDataDir, "data-dir", "", "directory for collected data")
	collectCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "fixed accounts per session (default: random 40-60)")
	collectCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "list pages per extraction")
	collectCmd.Flags().BoolVar(&runNoFollowers, "no-followers", false, "skip follower lists")
	collectCmd.Flags().BoolVar(&runNoFollowing, "no-following", false, "skip following lists")
	collectCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use a scripted browser, collect nothing real")
}

func runCollect(cmd *cobra.Command, args []string) error {
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

	return driver.New(cfg, b, account).RunSession(ctx)
}
