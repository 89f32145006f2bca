package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/uploadoor/pkg/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past upload runs",
	Long: `List past upload runs recorded in the history database,
newest first. Requires history to be enabled in the config file.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum number of runs to show (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !cfg.History.Enabled {
		return fmt.Errorf("history is not enabled in the config file")
	}

	store := history.NewStore(log, &cfg.History)

	if err := store.Start(cmd.Context()); err != nil {
		return err
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close history store")
		}
	}()

	runs, err := store.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")

		return nil
	}

	fmt.Printf("%-20s %-10s %8s %10s %7s  %s\n",
		"STARTED", "DURATION", "TOTAL", "SUCCEEDED", "FAILED", "URL")

	for _, run := range runs {
		duration := time.Duration(run.DurationMs) * time.Millisecond
		fmt.Printf("%-20s %-10s %8d %10d %7d  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			duration.Round(time.Millisecond),
			run.Total,
			run.Succeeded,
			run.Failed,
			run.URL,
		)
	}

	return nil
}
