package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/invested/internal/config"
	"github.com/ShayCichocki/invested/internal/engine"
	"github.com/ShayCichocki/invested/internal/tui"
)

var (
	optimizeAgentic bool
	optimizeSplit   bool
	optimizePlain   bool
	optimizeTimeout time.Duration
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <key>",
	Short: "Run the refinement debate on one work item",
	Long: `Run the full critique-and-refine debate on a single work item.

The item is fetched from the configured tracker, refined through up to three
debate rounds, and committed back once the debate converges (or the round
ceiling is hit). With --propose-split, an item that cannot converge is
handed back as a split proposal instead of being committed.

Examples:
  invested optimize SHOP-7
  invested optimize SHOP-7 --agentic
  invested optimize SHOP-7 --propose-split --plain`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().BoolVar(&optimizeAgentic, "agentic", false, "Route the debate through the supervisor agent")
	optimizeCmd.Flags().BoolVar(&optimizeSplit, "propose-split", false, "Propose a split instead of committing when the item cannot converge")
	optimizeCmd.Flags().BoolVar(&optimizePlain, "plain", false, "Plain-text progress instead of the TUI")
	optimizeCmd.Flags().DurationVar(&optimizeTimeout, "timeout", 0, "Per-run wall clock bound (default from config)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	key := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	agentic := optimizeAgentic || cfg.Debate.Agentic
	allowSplit := optimizeSplit || cfg.Debate.AllowSplit
	timeout := optimizeTimeout
	if timeout == 0 {
		timeout = cfg.Debate.Timeout
	}

	optimizer, cleanup, err := buildOptimizer(cfg, agentic, allowSplit)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var result *engine.RunResult
	if optimizePlain {
		result = runPlain(ctx, optimizer, key)
	} else {
		result, err = runWithTUI(ctx, optimizer, key)
		if err != nil {
			return err
		}
	}

	return reportResult(result)
}

// runPlain drives a run with line-based progress output.
func runPlain(ctx context.Context, optimizer *engine.Optimizer, key string) *engine.RunResult {
	optimizer.SetEventSink(func(e engine.Event) {
		if e.Type == engine.EventIterationDone {
			fmt.Printf("round %d: confidence %.2f, %d violations\n",
				e.Iteration, e.Confidence, e.Violations)
		}
	})
	return optimizer.Run(ctx, key)
}

// runWithTUI drives a run behind the live view.
func runWithTUI(ctx context.Context, optimizer *engine.Optimizer, key string) (*engine.RunResult, error) {
	// Suppress log output while the TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tea.Msg, 64)
	optimizer.SetEventSink(func(e engine.Event) {
		events <- tui.EngineEventMsg{Event: e}
	})

	program := tea.NewProgram(tui.NewRunView(key, events))

	done := make(chan *engine.RunResult, 1)
	go func() {
		result := optimizer.Run(runCtx, key)
		done <- result
		events <- tui.RunDoneMsg{Result: result}
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}

	// Quitting the view before RunDoneMsg means the user aborted: cancel the
	// run so no further agent calls or tracker commits happen behind the
	// closed screen.
	cancel()
	return <-done, nil
}

// reportResult prints the final outcome and sets the exit code.
func reportResult(result *engine.RunResult) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	switch {
	case result.Err != nil:
		return fmt.Errorf("run %s: %w", result.RunID, result.Err)

	case result.Proposal != nil:
		yellow.Printf("Split proposed for %s: %s\n", result.Proposal.OriginalKey, result.Proposal.Rationale)
		for _, part := range result.Proposal.Parts {
			fmt.Printf("  %s: %s\n", part.Key, part.Title)
		}
		return nil

	case result.Committed:
		green.Printf("Committed after %d round(s), confidence %.2f\n",
			result.Iterations, result.Confidence)
		return nil

	default:
		yellow.Printf("Finished without commit, confidence %.2f\n", result.Confidence)
		return nil
	}
}
