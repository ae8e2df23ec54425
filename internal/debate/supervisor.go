package debate

import (
	"context"
	"fmt"
	"math"

	"github.com/ShayCichocki/invested/pkg/models"
)

// Action is one of the supervisor's fixed action vocabulary. The decision
// collaborator is constrained to this enum; anything else is rejected
// locally and replaced with the deterministic successor.
type Action string

const (
	// ActionDraft starts (or restarts) a drafting pass.
	ActionDraft Action = "draft"
	// ActionQACritique requests the quality critique.
	ActionQACritique Action = "qa_critique"
	// ActionDeveloperCritique requests the feasibility critique.
	ActionDeveloperCritique Action = "developer_critique"
	// ActionSynthesize requests feedback synthesis.
	ActionSynthesize Action = "synthesize"
	// ActionValidate requests convergence scoring.
	ActionValidate Action = "validate"
	// ActionExecute commits the refined artifact.
	ActionExecute Action = "execute"
	// ActionProposeSplit terminates with a split proposal instead of a commit.
	ActionProposeSplit Action = "propose_split"
	// ActionEnd stops the run without a terminal action.
	ActionEnd Action = "end"
)

// Valid returns true if the action is in the fixed vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionDraft, ActionQACritique, ActionDeveloperCritique,
		ActionSynthesize, ActionValidate, ActionExecute,
		ActionProposeSplit, ActionEnd:
		return true
	default:
		return false
	}
}

// TrendDirection classifies a metric's movement across iterations.
type TrendDirection string

const (
	// TrendImproving means the metric moved the right way.
	TrendImproving TrendDirection = "improving"
	// TrendDeclining means the metric moved the wrong way.
	TrendDeclining TrendDirection = "declining"
	// TrendStable means no meaningful movement.
	TrendStable TrendDirection = "stable"
)

// confidenceEpsilon is the confidence delta below which the trend counts as
// stable.
const confidenceEpsilon = 0.02

// TrendAnalysis summarizes movement across the debate history. It is
// computed locally as a pure function over history and handed to the
// decision collaborator as context; it is never delegated.
type TrendAnalysis struct {
	// ConfidenceTrend classifies the confidence delta between the last two
	// completed iterations.
	ConfidenceTrend TrendDirection `json:"confidence_trend"`
	// ViolationTrend classifies the violation-count delta.
	ViolationTrend TrendDirection `json:"violation_trend"`
	// ImprovingOverall requires confidence non-declining and violations
	// non-worsening.
	ImprovingOverall bool `json:"improving_overall"`
}

// AnalyzeTrend computes the trend across history. With fewer than two
// completed iterations both trends are stable.
func AnalyzeTrend(history []Iteration) TrendAnalysis {
	trend := TrendAnalysis{
		ConfidenceTrend: TrendStable,
		ViolationTrend:  TrendStable,
	}
	if len(history) >= 2 {
		prev := history[len(history)-2]
		last := history[len(history)-1]

		delta := last.Confidence - prev.Confidence
		switch {
		case delta > confidenceEpsilon:
			trend.ConfidenceTrend = TrendImproving
		case delta < -confidenceEpsilon:
			trend.ConfidenceTrend = TrendDeclining
		}

		switch {
		case len(last.Violations) < len(prev.Violations):
			trend.ViolationTrend = TrendImproving
		case len(last.Violations) > len(prev.Violations):
			trend.ViolationTrend = TrendDeclining
		}
	}

	trend.ImprovingOverall = trend.ConfidenceTrend != TrendDeclining &&
		trend.ViolationTrend != TrendDeclining
	return trend
}

// StateSummary is the context handed to the decision collaborator.
type StateSummary struct {
	// ArtifactKey identifies the artifact under debate.
	ArtifactKey string `json:"artifact_key"`
	// Iteration is the number of completed debate rounds.
	Iteration int `json:"iteration"`
	// Confidence is the latest convergence score.
	Confidence float64 `json:"confidence"`
	// ViolationCount is the size of the current violation list.
	ViolationCount int `json:"violation_count"`
	// QAConfidence is the quality agent's self-reported confidence.
	QAConfidence float64 `json:"qa_confidence"`
	// DevConfidence is the feasibility agent's self-reported confidence.
	DevConfidence float64 `json:"dev_confidence"`
	// Feasibility is the latest feasibility call, if any.
	Feasibility models.Feasibility `json:"feasibility,omitempty"`
	// Assessment is the latest overall assessment, if any.
	Assessment models.Assessment `json:"assessment,omitempty"`
	// Trend is the locally computed trend analysis.
	Trend TrendAnalysis `json:"trend"`
	// LastAction is the previous routing decision.
	LastAction Action `json:"last_action,omitempty"`
	// HasDraft and friends tell the decider which pipeline stages have
	// produced output this round.
	HasDraft     bool `json:"has_draft"`
	HasQAResult  bool `json:"has_qa_result"`
	HasDevResult bool `json:"has_dev_result"`
	HasRefined   bool `json:"has_refined"`
}

// Decision is the decision collaborator's routing recommendation.
type Decision struct {
	// NextAction is the recommended action from the fixed vocabulary.
	NextAction Action `json:"next_action"`
	// Reasoning is the collaborator's rationale.
	Reasoning string `json:"reasoning"`
	// ShouldContinue is false when the collaborator wants to stop.
	ShouldContinue bool `json:"should_continue"`
	// PriorityFocus optionally names the INVEST aspect to focus on next.
	PriorityFocus string `json:"priority_focus,omitempty"`
	// Confidence is the collaborator's confidence in its own decision.
	Confidence float64 `json:"confidence"`
}

// Decider is the external decision collaborator for the agentic variant.
type Decider interface {
	Decide(ctx context.Context, summary StateSummary) (*Decision, error)
}

// Supervisor produces routing decisions for the agentic variant. The
// decision collaborator recommends; the supervisor enforces. The iteration
// ceiling and execution's terminal nature are local guarantees that hold no
// matter what the collaborator returns.
type Supervisor struct {
	decider Decider
}

// NewSupervisor creates a supervisor around the given decision collaborator.
func NewSupervisor(decider Decider) *Supervisor {
	return &Supervisor{decider: decider}
}

// Summarize builds the decision context from run state.
func Summarize(s *State) StateSummary {
	summary := StateSummary{
		Iteration:      s.Iteration,
		Confidence:     s.Confidence,
		ViolationCount: len(s.Violations),
		QAConfidence:   0.5,
		DevConfidence:  0.5,
		Trend:          AnalyzeTrend(s.History),
		LastAction:     s.LastAction,
		HasDraft:       s.Draft != nil,
		HasQAResult:    s.QAResult != nil,
		HasDevResult:   s.DevResult != nil,
		HasRefined:     s.Refined != nil,
	}
	if s.Original != nil {
		summary.ArtifactKey = s.Original.Key
	}
	if s.QAResult != nil {
		summary.QAConfidence = s.QAResult.Confidence
		summary.Assessment = s.QAResult.Assessment
	}
	if s.DevResult != nil {
		summary.DevConfidence = s.DevResult.Confidence
		summary.Feasibility = s.DevResult.Feasibility
	}
	return summary
}

// Route returns the next action for the run. Policy layering, in order:
//  1. A finished terminal action always ends the run.
//  2. The iteration ceiling forces execution once reached.
//  3. Otherwise the decision collaborator is consulted; an invalid or
//     out-of-vocabulary recommendation falls back to the deterministic
//     successor rather than failing the run.
func (sv *Supervisor) Route(ctx context.Context, s *State) (*Decision, error) {
	if s.Executed {
		return &Decision{
			NextAction:     ActionEnd,
			Reasoning:      "terminal action already performed",
			ShouldContinue: false,
			Confidence:     1.0,
		}, nil
	}

	if s.Iteration >= MaxIterations {
		return &Decision{
			NextAction:     ActionExecute,
			Reasoning:      fmt.Sprintf("iteration ceiling (%d) reached, forcing termination", MaxIterations),
			ShouldContinue: false,
			Confidence:     1.0,
		}, nil
	}

	if sv.decider == nil {
		return sv.deterministic(s), nil
	}

	decision, err := sv.decider.Decide(ctx, Summarize(s))
	if err != nil {
		return nil, fmt.Errorf("decision collaborator: %w", err)
	}

	if decision == nil || !decision.NextAction.Valid() || math.IsNaN(decision.Confidence) {
		fallback := sv.deterministic(s)
		fallback.Reasoning = "decision collaborator returned an out-of-vocabulary action; using deterministic successor"
		return fallback, nil
	}

	// Looping recommendations are honored only below the ceiling, which was
	// already checked above; terminal recommendations pass through.
	return decision, nil
}

// deterministic returns the decision matching the fixed linear flow for the
// current state.
func (sv *Supervisor) deterministic(s *State) *Decision {
	// Synthesis appends a history entry and validation increments the
	// iteration counter, so an unvalidated round shows up as
	// len(History) > Iteration.
	var action Action
	switch {
	case s.Draft == nil:
		action = ActionDraft
	case s.QAResult == nil:
		action = ActionQACritique
	case s.DevResult == nil:
		action = ActionDeveloperCritique
	case s.Refined == nil && len(s.History) <= s.Iteration:
		action = ActionSynthesize
	case len(s.History) > s.Iteration:
		action = ActionValidate
	default:
		if NextAfterValidation(s.Confidence, len(s.Violations), s.Iteration) == NodeExecution {
			action = ActionExecute
		} else {
			action = ActionDraft
		}
	}
	return &Decision{
		NextAction:     action,
		Reasoning:      "deterministic flow",
		ShouldContinue: action != ActionExecute && action != ActionEnd,
		Confidence:     1.0,
	}
}
