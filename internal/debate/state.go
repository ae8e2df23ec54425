// Package debate implements the critique-and-refine debate engine: the
// per-run state, the iteration state machine, the convergence scorer, and
// the supervisor routing policy. The package holds no I/O; collaborator
// calls are injected as node handlers by the orchestration driver.
package debate

import (
	"github.com/ShayCichocki/invested/pkg/models"
)

// MaxIterations is the hard ceiling on debate rounds. The machine never
// loops past it regardless of confidence or supervisor recommendations.
const MaxIterations = 3

// ConvergenceThreshold is the confidence above which a violation-free draft
// terminates the debate early.
const ConvergenceThreshold = 0.8

// Node identifies a state-machine node.
type Node string

const (
	// NodeIngress is the entry node: the original artifact is loaded.
	NodeIngress Node = "ingress"
	// NodeContextAssembly retrieves knowledge snippets, once per run.
	NodeContextAssembly Node = "context_assembly"
	// NodeDrafting produces the iteration's draft from the original.
	NodeDrafting Node = "drafting"
	// NodeQACritique runs the quality (INVEST) critique.
	NodeQACritique Node = "qa_critique"
	// NodeDeveloperCritique runs the feasibility critique.
	NodeDeveloperCritique Node = "developer_critique"
	// NodeSynthesis folds the critiques into a refined artifact.
	NodeSynthesis Node = "synthesis"
	// NodeValidation scores convergence and decides loop vs terminate.
	NodeValidation Node = "validation"
	// NodeExecution is the terminal action: commit or propose a split.
	NodeExecution Node = "execution"
	// NodeTerminal marks the run as finished.
	NodeTerminal Node = "terminal"
)

// Iteration is an immutable snapshot appended to history when synthesis
// completes. Validation later attaches the confidence score computed for the
// same iteration; no other field of a past entry is ever rewritten.
type Iteration struct {
	// Index is the zero-based iteration number.
	Index int `json:"index"`
	// Draft is the artifact version the critiques ran against.
	Draft *models.Artifact `json:"draft"`
	// QACritique is the quality critique narrative.
	QACritique string `json:"qa_critique"`
	// QAConfidence is the quality agent's self-reported confidence.
	QAConfidence float64 `json:"qa_confidence"`
	// DevCritique is the feasibility critique narrative.
	DevCritique string `json:"dev_critique"`
	// DevConfidence is the feasibility agent's self-reported confidence.
	DevConfidence float64 `json:"dev_confidence"`
	// Violations is the violation list for this iteration's draft.
	Violations []models.Violation `json:"violations"`
	// Refined is the artifact after feedback synthesis.
	Refined *models.Artifact `json:"refined"`
	// Confidence is the convergence score, attached during validation.
	Confidence float64 `json:"confidence"`
}

// State is the mutable context for one optimization run. It is owned
// exclusively by the orchestration driver for the run's duration and never
// shared across concurrent runs.
type State struct {
	// Original is the artifact as fetched, retained unmodified for the
	// lifetime of the run so split proposals can reference full scope.
	Original *models.Artifact
	// Draft is the working copy for the current iteration.
	Draft *models.Artifact
	// Refined is the current iteration's post-synthesis artifact.
	Refined *models.Artifact
	// Context holds retrieved knowledge snippets, read-only after
	// context assembly.
	Context []models.ContextSnippet
	// QAResult is the current iteration's quality critique.
	QAResult *models.CritiqueResult
	// DevResult is the current iteration's feasibility critique.
	DevResult *models.CritiqueResult
	// Violations is the current iteration's violation list.
	Violations []models.Violation
	// Confidence is the most recently computed convergence score.
	Confidence float64
	// Iteration counts completed debate rounds. It is incremented inside
	// validation, exactly once per completed round, and never decreases.
	Iteration int
	// History is the append-only list of iteration snapshots.
	History []Iteration
	// LastAction records the supervisor's previous routing decision, used
	// as context for the next one in the agentic variant.
	LastAction Action
	// Executed is set once the terminal action has run.
	Executed bool
	// Committed is set when the terminal action wrote back to the tracker.
	Committed bool
	// Proposal is set when the terminal action was a split proposal.
	Proposal *models.SplitProposal
}

// NewState creates run state seeded with the fetched artifact.
func NewState(original *models.Artifact) *State {
	return &State{Original: original}
}

// CurrentArtifact returns the most refined artifact version available:
// refined, else draft, else original.
func (s *State) CurrentArtifact() *models.Artifact {
	switch {
	case s.Refined != nil:
		return s.Refined
	case s.Draft != nil:
		return s.Draft
	default:
		return s.Original
	}
}

// PreviousViolations returns the violation list of the iteration before the
// one currently in flight, or nil when there is no prior baseline. The entry
// appended by the in-flight synthesis is excluded.
func (s *State) PreviousViolations() []models.Violation {
	if len(s.History) < 2 {
		return nil
	}
	return s.History[len(s.History)-2].Violations
}

// AppendIteration appends a snapshot for the in-flight iteration. History
// is append-only; callers must never rewrite a past entry.
func (s *State) AppendIteration(it Iteration) {
	s.History = append(s.History, it)
}

// SealIteration attaches the validation-computed confidence to the latest
// history entry. This is the single permitted amendment to a past entry,
// and only for the entry created in the same iteration.
func (s *State) SealIteration(confidence float64) {
	if len(s.History) == 0 {
		return
	}
	s.History[len(s.History)-1].Confidence = confidence
}
