package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/invested/internal/config"
	"github.com/ShayCichocki/invested/internal/knowledge"
)

// debounceWindow coalesces editor save bursts into one re-ingestion.
const debounceWindow = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch documentation and re-index on change",
	Long: `Watch the docs directory and re-ingest documents as they change, so
context retrieval always serves current project knowledge.

Runs until interrupted. The path defaults to the configured docs directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Knowledge.DocsDir
	if len(args) > 0 {
		target = args[0]
	}
	if _, err := os.Stat(target); err != nil {
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

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the tree, not just the root: fsnotify is not recursive.
	if err := addWatchTree(watcher, target); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (ctrl+c to stop)\n", target)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// New directories join the watch; documents queue for ingestion.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					_ = addWatchTree(watcher, event.Name)
				}
				continue
			}
			if !ingestible(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for path := range pending {
				delete(pending, path)
				n, err := store.IngestFile(ctx, path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "ingest %s: %v\n", path, err)
					continue
				}
				fmt.Printf("re-indexed %s (%d snippets)\n", path, n)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}

// addWatchTree registers a directory and its subdirectories with the watcher.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ingestible mirrors the knowledge ingester's file type filter.
func ingestible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt", ".rst", ".adoc":
		return true
	default:
		return false
	}
}
