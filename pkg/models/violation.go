package models

// Criterion is one of the six INVEST criterion codes.
type Criterion string

const (
	// CriterionIndependent is the I in INVEST.
	CriterionIndependent Criterion = "I"
	// CriterionNegotiable is the N in INVEST.
	CriterionNegotiable Criterion = "N"
	// CriterionValuable is the V in INVEST.
	CriterionValuable Criterion = "V"
	// CriterionEstimable is the E in INVEST.
	CriterionEstimable Criterion = "E"
	// CriterionSmall is the S in INVEST.
	CriterionSmall Criterion = "S"
	// CriterionTestable is the T in INVEST.
	CriterionTestable Criterion = "T"
)

// Valid returns true if the criterion is one of the six canonical codes.
func (c Criterion) Valid() bool {
	switch c {
	case CriterionIndependent, CriterionNegotiable, CriterionValuable,
		CriterionEstimable, CriterionSmall, CriterionTestable:
		return true
	default:
		return false
	}
}

// Severity is the ordered severity of a violation: critical > major > minor.
type Severity string

const (
	// SeverityCritical blocks the story from being workable.
	SeverityCritical Severity = "critical"
	// SeverityMajor significantly degrades story quality.
	SeverityMajor Severity = "major"
	// SeverityMinor is a polish-level issue.
	SeverityMinor Severity = "minor"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor:
		return true
	default:
		return false
	}
}

// Weight returns the scoring weight for this severity. Unknown severities
// weigh the same as minor so a malformed entry never dominates the score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityMajor:
		return 0.6
	case SeverityMinor:
		return 0.3
	default:
		return 0.3
	}
}

// Violation records a single INVEST criterion failure. Violations are
// immutable once created; each iteration produces a fresh list.
type Violation struct {
	// Criterion is the INVEST code that failed.
	Criterion Criterion `json:"criterion"`
	// Severity is the violation severity.
	Severity Severity `json:"severity"`
	// Description explains the failure in plain language.
	Description string `json:"description"`
	// Evidence quotes the artifact text that triggered the violation.
	Evidence string `json:"evidence,omitempty"`
	// Suggestion proposes a concrete fix.
	Suggestion string `json:"suggestion,omitempty"`
}

// severityNormalizer is the divisor used when collapsing a violation list to
// a 0-1 score: one maximum-severity violation per INVEST criterion. A
// normalization constant, not a cap on list length.
const severityNormalizer = 6.0

// WeightedViolationScore collapses a violation list into a 0-1 badness score.
// Higher means worse. Capped at 1.0.
func WeightedViolationScore(violations []Violation) float64 {
	var sum float64
	for _, v := range violations {
		sum += v.Severity.Weight()
	}
	score := sum / severityNormalizer
	if score > 1.0 {
		return 1.0
	}
	return score
}
