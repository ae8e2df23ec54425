package debate

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/invested/pkg/models"
)

// Factor weights for the convergence score. They sum to 1.0.
const (
	weightAgentConfidence     = 0.25
	weightViolationResolution = 0.30
	weightCritiqueQuality     = 0.20
	weightIterationTrend      = 0.15
	weightArtifactQuality     = 0.05
	weightFeasibility         = 0.05
)

// positiveIndicators are quality keywords that raise the critique polarity.
var positiveIndicators = compileIndicators(
	"clear", "well-defined", "testable", "focused", "concise", "solid",
	"complete", "good", "excellent", "independent", "valuable",
)

// negativeIndicators lower the critique polarity.
var negativeIndicators = compileIndicators(
	"vague", "unclear", "missing", "ambiguous", "too large", "too big",
	"incomplete", "untestable", "poor", "risky", "coupled", "bloated",
)

// compileIndicators builds whole-word patterns so "unclear" never counts as
// a hit for "clear".
func compileIndicators(words ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return patterns
}

// Confidence computes the convergence score for the current state: six
// independent factors blended by fixed weights, clamped to [0,1]. It is
// deterministic and side-effect free; it is the single authoritative gate
// for the termination decision in the deterministic flow.
func Confidence(s *State) float64 {
	score := weightAgentConfidence*agentConfidenceFactor(s.QAResult, s.DevResult) +
		weightViolationResolution*violationResolutionFactor(s.PreviousViolations(), s.Violations, len(s.History) >= 2) +
		weightCritiqueQuality*critiqueQualityFactor(s.QAResult, s.DevResult) +
		weightIterationTrend*iterationTrendFactor(s.History, s.Violations) +
		weightArtifactQuality*artifactQualityFactor(s.CurrentArtifact()) +
		weightFeasibility*feasibilityFactor(s.DevResult)
	return clamp01(score)
}

// agentConfidenceFactor is the mean of the two critique agents' self-reported
// confidence, with 0.5 substituted for an absent result.
func agentConfidenceFactor(qa, dev *models.CritiqueResult) float64 {
	qaConf, devConf := 0.5, 0.5
	if qa != nil {
		qaConf = qa.Confidence
	}
	if dev != nil {
		devConf = dev.Confidence
	}
	return (qaConf + devConf) / 2
}

// violationResolutionFactor measures improvement of the weighted violation
// score against the previous iteration. With a prior baseline the factor is
// 0.5 plus the relative improvement, clamped. Without one, a clean slate
// scores 1.0 and fresh violations score 0.3: new violations with no baseline
// are penalized, not rewarded.
func violationResolutionFactor(previous, current []models.Violation, hasBaseline bool) float64 {
	currentScore := models.WeightedViolationScore(current)
	prevScore := 0.0
	if hasBaseline {
		prevScore = models.WeightedViolationScore(previous)
	}

	if prevScore > 0 {
		return clamp01(0.5 + (prevScore-currentScore)/prevScore)
	}
	if currentScore == 0 {
		return 1.0
	}
	return 0.3
}

// critiqueQualityFactor blends keyword polarity of the combined critique
// narrative (60%) with the categorical assessment score (40%).
func critiqueQualityFactor(qa, dev *models.CritiqueResult) float64 {
	var narrative strings.Builder
	var assessment models.Assessment
	if qa != nil {
		narrative.WriteString(qa.Critique)
		narrative.WriteString(" ")
		assessment = qa.Assessment
	}
	if dev != nil {
		narrative.WriteString(dev.Critique)
		if assessment == "" {
			assessment = dev.Assessment
		}
	}

	return 0.6*keywordPolarity(narrative.String()) + 0.4*assessment.Score()
}

// keywordPolarity is the ratio of positive to total quality-indicator hits
// in the narrative, 0.5 when no indicator appears.
func keywordPolarity(narrative string) float64 {
	lower := strings.ToLower(narrative)
	var positive, negative int
	for _, pattern := range positiveIndicators {
		positive += len(pattern.FindAllStringIndex(lower, -1))
	}
	for _, pattern := range negativeIndicators {
		negative += len(pattern.FindAllStringIndex(lower, -1))
	}
	total := positive + negative
	if total == 0 {
		return 0.5
	}
	return float64(positive) / float64(total)
}

// iterationTrendFactor is the normalized reduction in weighted violation
// score across the full history, 0.5 when there is not enough history to
// establish a trend.
func iterationTrendFactor(history []Iteration, current []models.Violation) float64 {
	if len(history) < 2 {
		return 0.5
	}
	first := models.WeightedViolationScore(history[0].Violations)
	last := models.WeightedViolationScore(current)
	if first == 0 {
		if last == 0 {
			return 1.0
		}
		return 0.0
	}
	return clamp01((first - last) / first)
}

// artifactQualityFactor is a cheap structural heuristic over the current
// artifact: base 0.5, boosted for acceptance criteria coverage, a value
// clause, and a readable description length.
func artifactQualityFactor(artifact *models.Artifact) float64 {
	if artifact == nil {
		return 0.5
	}
	score := 0.5

	switch {
	case len(artifact.AcceptanceCriteria) >= 3:
		score += 0.2
	case len(artifact.AcceptanceCriteria) >= 1:
		score += 0.1
	}

	desc := strings.ToLower(artifact.Description)
	for _, marker := range []string{"so that", "in order to", "because"} {
		if strings.Contains(desc, marker) {
			score += 0.2
			break
		}
	}

	if n := len(artifact.Description); n >= 100 && n <= 1000 {
		score += 0.1
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// feasibilityFactor maps the developer critique's feasibility call to a
// score, neutral 0.5 when the critique is absent.
func feasibilityFactor(dev *models.CritiqueResult) float64 {
	if dev == nil {
		return 0.5
	}
	return dev.Feasibility.Score()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
