package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/invested/internal/state"
)

var (
	cleanupMaxAge time.Duration
	cleanupDryRun bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old runs from the history database",
	Long: `Delete finished optimization runs older than the given age from the
project run history. Iteration records are removed with their run. Runs
still marked running are never purged.

Examples:
  invested cleanup                    # Purge runs older than 30 days
  invested cleanup --older-than 168h  # Purge runs older than a week
  invested cleanup --dry-run          # Show what would be purged`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "older-than", 30*24*time.Hour, "Minimum age of runs to purge")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be purged without purging")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history - nothing to purge.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if cleanupDryRun {
		count, err := db.CountPurgeableRuns(cleanupMaxAge)
		if err != nil {
			return err
		}
		fmt.Printf("Dry run: would purge %d run(s) older than %s.\n", count, cleanupMaxAge)
		return nil
	}

	purged, err := db.PurgeOldRuns(cleanupMaxAge)
	if err != nil {
		return err
	}
	if purged > 0 {
		fmt.Printf("Purged %d run(s) older than %s.\n", purged, cleanupMaxAge)
	} else {
		fmt.Printf("No runs older than %s found.\n", cleanupMaxAge)
	}
	return nil
}
