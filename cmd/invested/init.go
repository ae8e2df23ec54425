package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an invested project",
	Long: `Initialize a directory for use with invested.

This command sets up everything needed to run the refinement debate:
  - Creates the .invested directory (state, knowledge index, logs)
  - Creates the work-items directory with an example story
  - Creates the docs directory for ingestible project knowledge
  - Writes a starter .invested.yaml project config

The directory argument is optional and defaults to the current directory.

Examples:
  invested init              # Initialize current directory
  invested init ./myproject  # Initialize specific directory
  invested init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing invested in %s...\n\n", absPath)

	investedDir := filepath.Join(absPath, ".invested")
	if _, err := os.Stat(investedDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	green := color.New(color.FgGreen)
	for _, dir := range []string{
		investedDir,
		filepath.Join(investedDir, "logs"),
		filepath.Join(absPath, "items"),
		filepath.Join(absPath, "docs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	green.Println("✓ Created directory structure")

	if err := writeExampleItem(filepath.Join(absPath, "items")); err != nil {
		return err
	}
	green.Println("✓ Created example work item (items/SHOP-1.yaml)")

	if err := writeProjectConfig(absPath); err != nil {
		return err
	}
	green.Println("✓ Wrote .invested.yaml")

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set ANTHROPIC_API_KEY in your environment")
	fmt.Println("  2. Drop project docs into docs/ and run 'invested ingest'")
	fmt.Println("  3. Run 'invested optimize SHOP-1'")
	return nil
}

// writeExampleItem drops a deliberately rough story into the items directory
// so the first optimize run has something to improve.
func writeExampleItem(itemsDir string) error {
	path := filepath.Join(itemsDir, "SHOP-1.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return nil
	}

	doc := map[string]any{
		"id":          "1",
		"key":         "SHOP-1",
		"title":       "Improve checkout",
		"description": "Make the checkout flow better and faster for everyone",
		"type":        "story",
		"priority":    "medium",
		"status":      "open",
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode example item: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeProjectConfig writes the starter project configuration.
func writeProjectConfig(dir string) error {
	path := filepath.Join(dir, ".invested.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return nil
	}

	content := `# invested project configuration
tracker:
  provider: file
  target: items

knowledge:
  docs_dir: docs
  search_limit: 8

debate:
  agentic: false
  allow_split: false
  timeout: 10m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
