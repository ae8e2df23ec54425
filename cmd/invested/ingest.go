package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/invested/internal/config"
	"github.com/ShayCichocki/invested/internal/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index project documentation for context retrieval",
	Long: `Split project documents into snippets and index them in the local
knowledge store. Drafting agents receive matching snippets as context.

The path may be a single document or a directory tree; it defaults to the
configured docs directory. Re-ingesting a changed document replaces its
previous snippets.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Knowledge.DocsDir
	if len(args) > 0 {
		target = args[0]
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	store, err := knowledge.Open(knowledge.ProjectStorePath(cwd))
	if err != nil {
		return fmt.Errorf("open knowledge store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	var n int
	if info.IsDir() {
		n, err = store.IngestDir(ctx, target)
	} else {
		n, err = store.IngestFile(ctx, target)
	}
	if err != nil {
		return err
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Indexed %d snippet(s) from %s (%d total)\n", n, target, total)
	return nil
}
