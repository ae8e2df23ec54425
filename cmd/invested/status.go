package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/invested/internal/state"
)

var (
	statusKey   string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent optimization runs",
	Long: `Display recent optimization runs from the project run history.

Shows each run's artifact, mode, outcome, final confidence, and round count.
Use --key to filter to a single work item.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusKey, "key", "", "Filter runs to one artifact key")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Maximum runs to display")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history. Run 'invested optimize <key>' to start.")
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

	runs, err := db.ListRuns(statusKey, statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No matching runs.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %-10s %-13s %s  %.2f conf  %d round(s)%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.ArtifactKey,
			run.Mode,
			statusLabel(run.Status),
			run.Confidence,
			run.Iterations,
			commitMark(run.Committed))
		if run.Error != "" {
			color.New(color.FgRed).Printf("    %s\n", run.Error)
		}
	}
	return nil
}

// statusLabel colors a run status for display.
func statusLabel(status string) string {
	switch status {
	case state.RunStatusConverged:
		return color.New(color.FgGreen).Sprintf("%-9s", status)
	case state.RunStatusFailed:
		return color.New(color.FgRed).Sprintf("%-9s", status)
	case state.RunStatusRunning:
		return color.New(color.FgCyan).Sprintf("%-9s", status)
	default:
		return color.New(color.FgYellow).Sprintf("%-9s", status)
	}
}

func commitMark(committed bool) string {
	if committed {
		return "  committed"
	}
	return ""
}
