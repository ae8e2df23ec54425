package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/invested/internal/api"
	"github.com/ShayCichocki/invested/internal/config"
	"github.com/ShayCichocki/invested/internal/engine"
	"github.com/ShayCichocki/invested/internal/knowledge"
	"github.com/ShayCichocki/invested/internal/state"
	"github.com/ShayCichocki/invested/internal/tracker"
)

// buildClient creates the Anthropic client from configuration.
func buildClient(cfg *config.Config) (*api.Client, error) {
	return api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
}

// buildOptimizer assembles the engine from configuration: tracker, knowledge
// store, run history, and the three debate agents.
func buildOptimizer(cfg *config.Config, agentic, allowSplit bool) (*engine.Optimizer, func(), error) {
	source, err := tracker.DefaultRegistry().Open(cfg.Tracker.Provider, cfg.Tracker.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("open tracker: %w", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("get working directory: %w", err)
	}

	var closers []func()

	// The knowledge store is optional: without one, context assembly is a
	// no-op and drafting works from the item alone.
	var retriever knowledge.Retriever
	if store, err := knowledge.Open(knowledge.ProjectStorePath(cwd)); err == nil {
		retriever = store
		closers = append(closers, func() { store.Close() })
	}

	var history *state.DB
	if db, err := state.OpenProject(cwd); err == nil {
		if err := db.Migrate(); err == nil {
			history = db
			closers = append(closers, func() { db.Close() })
		} else {
			db.Close()
		}
	}

	opts := engine.Options{
		Tracker:     source,
		Retriever:   retriever,
		SearchLimit: cfg.Knowledge.SearchLimit,
		Product:     api.NewProductOwner(client),
		QA:          api.NewQAReviewer(client),
		Dev:         api.NewDeveloperReviewer(client),
		History:     history,
		Logger:      engine.NewDebugLoggerForProject(cwd),
		Agentic:     agentic,
		AllowSplit:  allowSplit,
	}
	if agentic {
		opts.Decider = api.NewDecisionAgent(client)
	}

	optimizer, err := engine.NewOptimizer(opts)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return optimizer, cleanup, nil
}
