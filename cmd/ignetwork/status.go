package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ignetwork/pkg/queue"
	"ignetwork/pkg/store"
)

var statusDataDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection progress",
	Long:  `Show the collected graph size, queue depth and today's session count.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusDataDir, "data-dir", "", "directory for collected data")
}

func runStatus(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if statusDataDir != "" {
		flags["data-dir"] = statusDataDir
	}
	flags["log-level"] = "error"

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	dataDir := cfg.Storage.DataDir

	edgeCount, err := store.NewEdgeStore(dataDir).Count()
	if err != nil {
		return err
	}
	queueDepth, err := queue.New(dataDir).Len()
	if err != nil {
		return err
	}

	var done, limited, skipped int
	for _, rec := range store.NewProgressStore(dataDir).All() {
		switch {
		case rec.RateLimited:
			limited++
		case rec.Skipped:
			skipped++
		case rec.Processed:
			done++
		}
	}

	status := store.NewStatusStore(dataDir).Load()

	fmt.Printf("Data directory:     %s\n", dataDir)
	fmt.Printf("Edges collected:    %d\n", edgeCount)
	fmt.Printf("Queue depth:        %d\n", queueDepth)
	fmt.Printf("Accounts done:      %d\n", done)
	fmt.Printf("Accounts skipped:   %d\n", skipped)
	fmt.Printf("Pending rate-limit: %d\n", limited)
	fmt.Println()
	if status.Date != "" {
		fmt.Printf("Sessions today:     %d (%s)\n", status.Sessions, status.Date)
	} else {
		fmt.Println("Sessions today:     never ran")
	}
	if !status.LastRun.IsZero() {
		fmt.Printf("Last session:       %s\n", status.LastRun.Format("2006-01-02 15:04:05"))
	}
	if status.TotalFollowers > 0 || status.TotalFollowing > 0 {
		fmt.Printf("Root account:       %d followers, %d following\n",
			status.TotalFollowers, status.TotalFollowing)
	}

	return nil
}
