package models

// Assessment is the four-level ordinal overall quality judgment a critique
// agent may attach to its result.
type Assessment string

const (
	// AssessmentExcellent means no meaningful issues remain.
	AssessmentExcellent Assessment = "excellent"
	// AssessmentGood means minor issues only.
	AssessmentGood Assessment = "good"
	// AssessmentNeedsImprovement means another refinement pass is warranted.
	AssessmentNeedsImprovement Assessment = "needs_improvement"
	// AssessmentPoor means the artifact has fundamental problems.
	AssessmentPoor Assessment = "poor"
)

// Score maps the assessment to a 0-1 quality contribution. An absent or
// unknown assessment scores a neutral 0.5.
func (a Assessment) Score() float64 {
	switch a {
	case AssessmentExcellent:
		return 1.0
	case AssessmentGood:
		return 0.75
	case AssessmentNeedsImprovement:
		return 0.5
	case AssessmentPoor:
		return 0.25
	default:
		return 0.5
	}
}

// Feasibility is the developer critique's categorical implementability call.
type Feasibility string

const (
	// FeasibilityFeasible means the story is implementable as written.
	FeasibilityFeasible Feasibility = "feasible"
	// FeasibilityRequiresChanges means implementable after modification.
	FeasibilityRequiresChanges Feasibility = "requires_changes"
	// FeasibilityBlocked means an external dependency prevents work.
	FeasibilityBlocked Feasibility = "blocked"
)

// Score maps feasibility to a 0-1 confidence contribution, 0.5 when unset.
func (f Feasibility) Score() float64 {
	switch f {
	case FeasibilityFeasible:
		return 1.0
	case FeasibilityRequiresChanges:
		return 0.6
	case FeasibilityBlocked:
		return 0.2
	default:
		return 0.5
	}
}

// CritiqueResult is the output of one critique agent for one artifact
// version. Produced fresh each iteration and never merged across iterations.
type CritiqueResult struct {
	// Violations holds INVEST violations found by a quality critique.
	Violations []Violation `json:"violations,omitempty"`
	// Feasibility is set by the developer (feasibility) critique.
	Feasibility Feasibility `json:"feasibility,omitempty"`
	// Dependencies lists blocking dependencies named by the critique.
	Dependencies []string `json:"dependencies,omitempty"`
	// Concerns lists implementation concerns named by the critique.
	Concerns []string `json:"concerns,omitempty"`
	// Critique is the free-text narrative.
	Critique string `json:"critique,omitempty"`
	// Confidence is the agent's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Assessment is the optional categorical overall judgment.
	Assessment Assessment `json:"assessment,omitempty"`
}

// SplitProposal is the terminal output of a splitting debate: a suggested
// decomposition of the original artifact into smaller stories. The parts
// reference the pre-refinement original so full scope is preserved.
type SplitProposal struct {
	// OriginalKey is the key of the artifact being split.
	OriginalKey string `json:"original_key"`
	// Rationale explains why the split is recommended.
	Rationale string `json:"rationale"`
	// Parts holds the proposed child artifacts.
	Parts []Artifact `json:"parts"`
}
