package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "invested",
	Short: "Multi-agent INVEST refinement for Agile work items",
	Long: `invested runs a structured debate between three model-backed agents to
refine Agile work items against the INVEST criteria.

A product owner drafts, a QA reviewer critiques against INVEST, and a
developer reviewer judges feasibility. Feedback is synthesized, convergence
is scored deterministically, and the loop repeats up to three times before
the refined item is committed back to the tracker (or a split is proposed
for items that cannot converge).

Core capabilities:
- Detects INVEST violations with a deterministic scorer
- Normalizes free-form agent critiques into canonical violations
- Scores convergence from six weighted factors
- Commits refined items with optimistic concurrency
- Proposes splits for oversized stories`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
