package critique

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ShayCichocki/invested/pkg/models"
)

// ErrNoJSON indicates no JSON object could be located in the agent output.
var ErrNoJSON = errors.New("no JSON object found in agent output")

// confidenceKeys are field-name candidates for self-reported confidence.
var confidenceKeys = []string{"confidence", "confidence_score", "score"}

// narrativeKeys are field-name candidates for the free-text critique.
var narrativeKeys = []string{"critique", "narrative", "summary", "analysis"}

// ExtractJSON locates the first JSON object embedded in agent output,
// tolerating markdown code fences and surrounding prose. Agents are asked
// for bare JSON but routinely wrap it anyway.
func ExtractJSON(output string) (string, error) {
	s := output

	// Prefer fenced blocks when present.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		// Skip a language tag like "json".
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if len(firstLine) <= 8 && !strings.ContainsAny(firstLine, "{}") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	// Walk to the matching closing brace, respecting strings.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// ParseResult parses agent output into a canonical CritiqueResult. The
// pipeline is: extract the JSON object, reject schema echoes, then normalize
// each field through the alias tables. Individual malformed violation items
// degrade; only a schema echo or the total absence of JSON is an error.
func ParseResult(output string) (*models.CritiqueResult, error) {
	raw, err := ExtractJSON(output)
	if err != nil {
		return nil, err
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return DecodeResult(record)
}

// DecodeResult normalizes an already-decoded record into a CritiqueResult.
func DecodeResult(record map[string]any) (*models.CritiqueResult, error) {
	if IsSchemaEcho(record) {
		return nil, ErrSchemaEcho
	}

	result := &models.CritiqueResult{
		// Absent confidence reads as neutral.
		Confidence: 0.5,
	}

	if items, ok := record["violations"].([]any); ok {
		violations, err := NormalizeViolations(items)
		if err != nil {
			return nil, err
		}
		result.Violations = violations
	}

	if items, ok := record["dependencies"].([]any); ok {
		result.Dependencies = NormalizeStrings(items)
	}
	if items, ok := record["concerns"].([]any); ok {
		result.Concerns = NormalizeStrings(items)
	}

	if raw, ok := firstString(record, narrativeKeys); ok {
		result.Critique = raw
	}
	if raw, ok := firstString(record, []string{"feasibility", "feasibility_status", "status"}); ok {
		result.Feasibility = normalizeFeasibility(raw)
	}
	if raw, ok := firstString(record, []string{"assessment", "overall_assessment", "overall"}); ok {
		result.Assessment = normalizeAssessment(raw)
	}
	if conf, ok := firstFloat(record, confidenceKeys); ok {
		result.Confidence = clamp01(conf)
	}

	return result, nil
}

// normalizeFeasibility maps free-form feasibility strings to the canonical
// values, keeping unknown strings as-is so Feasibility.Score falls back to
// its neutral default.
func normalizeFeasibility(raw string) models.Feasibility {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, " ", "_"))) {
	case "feasible", "yes", "ok":
		return models.FeasibilityFeasible
	case "requires_changes", "needs_changes", "conditional":
		return models.FeasibilityRequiresChanges
	case "blocked", "infeasible", "not_feasible":
		return models.FeasibilityBlocked
	default:
		return models.Feasibility(raw)
	}
}

// normalizeAssessment maps free-form assessments to the canonical ordinals.
func normalizeAssessment(raw string) models.Assessment {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, " ", "_"))) {
	case "excellent":
		return models.AssessmentExcellent
	case "good":
		return models.AssessmentGood
	case "needs_improvement", "needs_work", "fair":
		return models.AssessmentNeedsImprovement
	case "poor", "bad":
		return models.AssessmentPoor
	default:
		return models.Assessment(raw)
	}
}

// firstFloat returns the first numeric value among the candidate keys.
// Agents report confidence as a float, an int, or occasionally a string.
func firstFloat(record map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		switch v := record[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
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
