package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/invested/internal/debate"
	"github.com/ShayCichocki/invested/internal/invest"
	"github.com/ShayCichocki/invested/internal/knowledge"
	"github.com/ShayCichocki/invested/internal/state"
	"github.com/ShayCichocki/invested/internal/tracker"
	"github.com/ShayCichocki/invested/pkg/models"
)

// ErrNoArtifact indicates a run was started without a usable work item.
var ErrNoArtifact = errors.New("no artifact to optimize")

// ProductOwnerAgent drafts, synthesizes, and proposes splits. It owns every
// write to the artifact under debate.
type ProductOwnerAgent interface {
	// Draft produces the iteration's working copy from the base artifact,
	// guided by retrieved context and the standing violations.
	Draft(ctx context.Context, base *models.Artifact, snippets []models.ContextSnippet, violations []models.Violation) (*models.Artifact, error)
	// Synthesize folds both critiques into a refined artifact.
	Synthesize(ctx context.Context, draft *models.Artifact, qa, dev *models.CritiqueResult) (*models.Artifact, error)
	// ProposeSplit breaks an artifact that cannot converge into smaller
	// candidate stories.
	ProposeSplit(ctx context.Context, original *models.Artifact, violations []models.Violation) (*models.SplitProposal, error)
}

// CritiqueAgent reviews a draft. The quality and feasibility reviewers share
// this shape; they differ in persona and in what their critique emphasizes.
type CritiqueAgent interface {
	Critique(ctx context.Context, draft *models.Artifact, snippets []models.ContextSnippet) (*models.CritiqueResult, error)
}

// Options configures an Optimizer. Tracker and the three agents are
// required; everything else degrades gracefully when absent.
type Options struct {
	// Tracker is the issue source the artifact is fetched from and
	// committed back to.
	Tracker tracker.Source
	// Retriever supplies knowledge snippets for context assembly. Optional.
	Retriever knowledge.Retriever
	// SearchLimit caps the snippets retrieved per run. Zero or negative
	// falls back to knowledge.DefaultSearchLimit.
	SearchLimit int
	// Product is the drafting and synthesis agent.
	Product ProductOwnerAgent
	// QA is the quality critique agent.
	QA CritiqueAgent
	// Dev is the feasibility critique agent.
	Dev CritiqueAgent
	// Decider enables supervisor-routed runs. Nil keeps the supervisor on
	// its deterministic flow.
	Decider debate.Decider
	// History persists run and iteration records. Optional.
	History *state.DB
	// Logger receives debug traces. Nil disables them.
	Logger *DebugLogger
	// Agentic selects supervisor routing instead of the fixed flow.
	Agentic bool
	// AllowSplit permits the terminal action to propose a split when the
	// debate ends unconverged.
	AllowSplit bool
}

// RunResult is the outcome contract: success and failure travel through the
// same shape, and partial progress survives a failed run.
type RunResult struct {
	// RunID is the unique id assigned to this run.
	RunID string
	// Success is false when the run aborted on an error.
	Success bool
	// Err is the aborting error, nil on success.
	Err error
	// Status is one of the state.RunStatus values.
	Status string
	// Artifact is the best artifact version reached, even on failure.
	Artifact *models.Artifact
	// History holds the completed iteration snapshots.
	History []debate.Iteration
	// Confidence is the final convergence score.
	Confidence float64
	// Iterations is the number of completed debate rounds.
	Iterations int
	// Committed reports whether the tracker write-back happened.
	Committed bool
	// Proposal is set when the run ended in a split proposal.
	Proposal *models.SplitProposal
}

// Optimizer drives optimization runs. One Optimizer serves many sequential
// runs; each run owns its state exclusively.
type Optimizer struct {
	opts   Options
	logger *DebugLogger
	events EventSink
}

// NewOptimizer validates collaborators and creates the driver.
func NewOptimizer(opts Options) (*Optimizer, error) {
	if opts.Tracker == nil {
		return nil, errors.New("tracker source is required")
	}
	if opts.Product == nil || opts.QA == nil || opts.Dev == nil {
		return nil, errors.New("all three debate agents are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger()
	}
	return &Optimizer{opts: opts, logger: logger}, nil
}

// SetEventSink registers a progress-event callback for subsequent runs.
func (o *Optimizer) SetEventSink(sink EventSink) {
	o.events = sink
}

// Run optimizes one work item end to end and always returns a result; the
// result's Err field carries any aborting error alongside the partial
// progress made before it.
func (o *Optimizer) Run(ctx context.Context, key string) *RunResult {
	runID := uuid.New().String()
	mode := "deterministic"
	if o.opts.Agentic {
		mode = "agentic"
	}
	o.logger.Log("run %s: optimizing %s (%s)", runID, key, mode)

	if o.opts.History != nil {
		if err := o.opts.History.CreateRun(runID, key, mode); err != nil {
			o.logger.Log("run %s: history unavailable: %v", runID, err)
		}
	}
	o.emit(Event{Type: EventRunStarted, RunID: runID, ArtifactKey: key})

	s := debate.NewState(nil)
	machine := debate.NewMachine(o.handlers(runID, key))
	machine.SetObserver(func(node debate.Node, ms *debate.State) {
		o.emit(Event{
			Type:        EventNodeEntered,
			RunID:       runID,
			ArtifactKey: key,
			Node:        node,
			Iteration:   ms.Iteration,
			Confidence:  ms.Confidence,
			Violations:  len(ms.Violations),
		})
	})

	var err error
	if o.opts.Agentic {
		err = machine.RunAgentic(ctx, s, debate.NewSupervisor(o.opts.Decider))
	} else {
		err = machine.Run(ctx, s)
	}
	if err == nil && s.Original == nil {
		err = fmt.Errorf("%w: %s", ErrNoArtifact, key)
	}

	result := o.finish(runID, key, s, err)
	return result
}

// finish assembles the result and persists the terminal run record.
func (o *Optimizer) finish(runID, key string, s *debate.State, err error) *RunResult {
	result := &RunResult{
		RunID:      runID,
		Success:    err == nil,
		Err:        err,
		Artifact:   s.CurrentArtifact(),
		History:    s.History,
		Confidence: s.Confidence,
		Iterations: s.Iteration,
		Committed:  s.Committed,
		Proposal:   s.Proposal,
	}

	switch {
	case err != nil:
		result.Status = state.RunStatusFailed
	case s.Proposal != nil:
		result.Status = state.RunStatusSplit
	case s.Confidence > debate.ConvergenceThreshold && len(s.Violations) == 0:
		result.Status = state.RunStatusConverged
	default:
		result.Status = state.RunStatusCeiling
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if o.opts.History != nil {
		if herr := o.opts.History.FinishRun(runID, result.Status, s.Confidence,
			s.Iteration, s.Committed, errMsg); herr != nil {
			o.logger.Log("run %s: finish record failed: %v", runID, herr)
		}
	}

	o.logger.Log("run %s: %s after %d iterations, confidence %.2f",
		runID, result.Status, s.Iteration, s.Confidence)
	o.emit(Event{
		Type:        EventRunFinished,
		RunID:       runID,
		ArtifactKey: key,
		Iteration:   s.Iteration,
		Confidence:  s.Confidence,
		Violations:  len(s.Violations),
		Message:     result.Status,
	})
	return result
}

// handlers binds the collaborators to the state-machine nodes.
func (o *Optimizer) handlers(runID, key string) debate.Handlers {
	return debate.Handlers{
		Ingress: func(ctx context.Context, s *debate.State) error {
			artifact, err := o.opts.Tracker.Fetch(ctx, key)
			if err != nil {
				return err
			}
			s.Original = artifact
			o.logger.Log("run %s: fetched %s (%s)", runID, artifact.Key, artifact.Type)
			return nil
		},

		ContextAssembly: func(ctx context.Context, s *debate.State) error {
			// Retrieval happens once per run; later loop passes reuse it.
			if o.opts.Retriever == nil || s.Context != nil {
				return nil
			}
			limit := o.opts.SearchLimit
			if limit <= 0 {
				limit = knowledge.DefaultSearchLimit
			}
			query := s.Original.Title + " " + s.Original.Description
			snippets, err := o.opts.Retriever.Search(ctx, query, "", limit)
			if err != nil {
				// Missing context degrades the draft, it does not abort the run.
				o.logger.Log("run %s: retrieval failed: %v", runID, err)
				snippets = []models.ContextSnippet{}
			}
			s.Context = snippets
			o.logger.Log("run %s: assembled %d context snippets", runID, len(snippets))
			return nil
		},

		Drafting: func(ctx context.Context, s *debate.State) error {
			base := s.Original
			if s.Refined != nil {
				base = s.Refined
			}
			draft, err := o.opts.Product.Draft(ctx, base, s.Context, s.Violations)
			if err != nil {
				return err
			}
			s.Draft = draft
			s.QAResult, s.DevResult, s.Refined = nil, nil, nil
			return nil
		},

		QACritique: func(ctx context.Context, s *debate.State) error {
			result, err := o.opts.QA.Critique(ctx, s.Draft, s.Context)
			if err != nil {
				return err
			}
			s.QAResult = result
			return nil
		},

		DeveloperCritique: func(ctx context.Context, s *debate.State) error {
			result, err := o.opts.Dev.Critique(ctx, s.Draft, s.Context)
			if err != nil {
				return err
			}
			s.DevResult = result
			return nil
		},

		Synthesis: func(ctx context.Context, s *debate.State) error {
			refined, err := o.opts.Product.Synthesize(ctx, s.Draft, s.QAResult, s.DevResult)
			if err != nil {
				return err
			}
			s.Refined = refined
			s.Violations = mergeViolations(invest.Score(refined), critiqueViolations(s.QAResult))

			it := debate.Iteration{
				Index:      s.Iteration,
				Draft:      s.Draft,
				Violations: s.Violations,
				Refined:    refined,
			}
			if s.QAResult != nil {
				it.QACritique = s.QAResult.Critique
				it.QAConfidence = s.QAResult.Confidence
			}
			if s.DevResult != nil {
				it.DevCritique = s.DevResult.Critique
				it.DevConfidence = s.DevResult.Confidence
			}
			s.AppendIteration(it)
			return nil
		},

		Validation: func(ctx context.Context, s *debate.State) error {
			s.Confidence = debate.Confidence(s)
			s.SealIteration(s.Confidence)

			if o.opts.History != nil {
				rec := state.IterationRecord{
					RunID:          runID,
					Index:          s.Iteration,
					Confidence:     s.Confidence,
					ViolationCount: len(s.Violations),
				}
				if s.QAResult != nil {
					rec.QAConfidence = s.QAResult.Confidence
				}
				if s.DevResult != nil {
					rec.DevConfidence = s.DevResult.Confidence
				}
				if err := o.opts.History.SaveIteration(rec); err != nil {
					o.logger.Log("run %s: iteration record failed: %v", runID, err)
				}
			}

			s.Iteration++
			o.logger.Log("run %s: iteration %d validated, confidence %.2f, %d violations",
				runID, s.Iteration, s.Confidence, len(s.Violations))
			o.emit(Event{
				Type:        EventIterationDone,
				RunID:       runID,
				ArtifactKey: key,
				Node:        debate.NodeValidation,
				Iteration:   s.Iteration,
				Confidence:  s.Confidence,
				Violations:  len(s.Violations),
			})
			return nil
		},

		Execute: o.executeHandler(runID, key),
	}
}

// executeHandler implements the terminal action: commit the refined artifact
// when the debate converged (or splitting is off), otherwise hand back a
// split proposal. Runs exactly once per run.
func (o *Optimizer) executeHandler(runID, key string) debate.NodeFunc {
	return func(ctx context.Context, s *debate.State) error {
		s.Executed = true

		converged := s.Confidence > debate.ConvergenceThreshold && len(s.Violations) == 0
		if !converged && o.opts.AllowSplit {
			proposal, err := o.opts.Product.ProposeSplit(ctx, s.Original, s.Violations)
			if err != nil {
				return fmt.Errorf("propose split: %w", err)
			}
			s.Proposal = proposal
			o.logger.Log("run %s: proposed splitting %s into %d parts", runID, key, len(proposal.Parts))
			return nil
		}

		artifact := s.CurrentArtifact()
		if artifact == nil {
			return fmt.Errorf("%w: %s", ErrNoArtifact, key)
		}
		if err := o.opts.Tracker.Commit(ctx, key, artifact); err != nil {
			return fmt.Errorf("commit %s: %w", key, err)
		}
		s.Committed = true
		o.logger.Log("run %s: committed %s", runID, key)
		return nil
	}
}

// critiqueViolations extracts the violation list from a critique, nil-safe.
func critiqueViolations(result *models.CritiqueResult) []models.Violation {
	if result == nil {
		return nil
	}
	return result.Violations
}

// mergeViolations combines scorer and critique findings, dropping duplicates
// that name the same criterion and description.
func mergeViolations(lists ...[]models.Violation) []models.Violation {
	seen := make(map[string]bool)
	var merged []models.Violation
	for _, list := range lists {
		for _, v := range list {
			k := string(v.Criterion) + "|" + strings.ToLower(v.Description)
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, v)
		}
	}
	return merged
}
