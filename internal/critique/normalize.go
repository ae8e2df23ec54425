// Package critique normalizes loosely-structured critique output from the
// LLM agents into canonical violation and assessment records. Model output
// drifts: field names change convention, severities arrive as synonyms, and
// sometimes the model echoes the requested JSON schema instead of data. The
// normalizer absorbs all of that without ever aborting a critique.
package critique

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/invested/pkg/models"
)

// ErrSchemaEcho indicates the agent returned the JSON schema it was asked to
// fill instead of actual data. This is a hard failure surfaced to the caller,
// never coerced into an empty result.
var ErrSchemaEcho = errors.New("agent returned a JSON schema instead of data")

// criterionAliases maps full English criterion words to their INVEST codes.
var criterionAliases = map[string]models.Criterion{
	"INDEPENDENT": models.CriterionIndependent,
	"NEGOTIABLE":  models.CriterionNegotiable,
	"VALUABLE":    models.CriterionValuable,
	"ESTIMABLE":   models.CriterionEstimable,
	"SMALL":       models.CriterionSmall,
	"TESTABLE":    models.CriterionTestable,
}

// severityAliases maps severity synonyms to canonical severities.
var severityAliases = map[string]models.Severity{
	"critical": models.SeverityCritical,
	"blocker":  models.SeverityCritical,
	"high":     models.SeverityCritical,
	"severe":   models.SeverityCritical,
	"major":    models.SeverityMajor,
	"medium":   models.SeverityMajor,
	"moderate": models.SeverityMajor,
	"minor":    models.SeverityMinor,
	"low":      models.SeverityMinor,
	"trivial":  models.SeverityMinor,
}

// criterionKeys are the field names, in priority order, under which agents
// have been observed to report the INVEST criterion.
var criterionKeys = []string{"criterion", "invest_criterion", "INVEST_criterion", "category", "rule"}

// descriptionKeys are field-name candidates for the violation description.
var descriptionKeys = []string{"description", "issue", "detail", "details", "message", "problem"}

// severityKeys are field-name candidates for the severity.
var severityKeys = []string{"severity", "level", "impact"}

// evidenceKeys are field-name candidates for the evidence quote.
var evidenceKeys = []string{"evidence", "quote", "excerpt"}

// suggestionKeys are field-name candidates for the fix suggestion.
var suggestionKeys = []string{"suggestion", "fix", "recommendation", "remedy"}

// NormalizeCriterion maps an arbitrary criterion string to one of the six
// canonical codes. Single letters are uppercased; full words go through the
// alias table; anything unrecognized degrades to Small. The degradation is a
// deliberate narrow policy so that no seventh category ever escapes.
func NormalizeCriterion(raw string) models.Criterion {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if c := models.Criterion(upper); c.Valid() {
		return c
	}
	if c, ok := criterionAliases[upper]; ok {
		return c
	}
	return models.CriterionSmall
}

// NormalizeSeverity maps an arbitrary severity string to a canonical
// severity. A missing or unknown severity defaults to critical: an ambiguous
// finding must not be treated as benign.
func NormalizeSeverity(raw string) models.Severity {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := severityAliases[lower]; ok {
		return s
	}
	return models.SeverityCritical
}

// IsSchemaEcho reports whether the record looks like a JSON-Schema object
// ("type":"object" with a "properties" key) rather than actual data.
func IsSchemaEcho(record map[string]any) bool {
	if record == nil {
		return false
	}
	typ, _ := record["type"].(string)
	_, hasProps := record["properties"]
	return typ == "object" && hasProps
}

// NormalizeViolation reconciles one loosely-typed record into a canonical
// Violation. It proceeds in stages: canonical shape, then the alias remap
// tables, then a minimal safe default. It returns ErrSchemaEcho when the
// record is a schema echo; otherwise it always produces a violation, so a
// malformed item degrades rather than vanishing.
func NormalizeViolation(record map[string]any) (models.Violation, error) {
	if IsSchemaEcho(record) {
		return models.Violation{}, ErrSchemaEcho
	}

	v := models.Violation{
		// Minimal safe defaults: a generic Small violation at the
		// conservative severity.
		Criterion:   models.CriterionSmall,
		Severity:    models.SeverityCritical,
		Description: "unparseable critique item",
	}
	if record == nil {
		return v, nil
	}

	if raw, ok := firstString(record, criterionKeys); ok {
		v.Criterion = NormalizeCriterion(raw)
	}
	if raw, ok := firstString(record, severityKeys); ok {
		v.Severity = NormalizeSeverity(raw)
	}
	if raw, ok := firstString(record, descriptionKeys); ok && strings.TrimSpace(raw) != "" {
		v.Description = raw
	}
	if raw, ok := firstString(record, evidenceKeys); ok {
		v.Evidence = raw
	}
	if raw, ok := firstString(record, suggestionKeys); ok {
		v.Suggestion = raw
	}

	return v, nil
}

// NormalizeViolations normalizes a heterogeneous list of violation records.
// Schema echoes abort with ErrSchemaEcho; individual malformed items degrade
// per NormalizeViolation.
func NormalizeViolations(records []any) ([]models.Violation, error) {
	if len(records) == 0 {
		return nil, nil
	}
	violations := make([]models.Violation, 0, len(records))
	for i, raw := range records {
		record, _ := raw.(map[string]any)
		v, err := NormalizeViolation(record)
		if err != nil {
			return nil, fmt.Errorf("violation %d: %w", i, err)
		}
		violations = append(violations, v)
	}
	return violations, nil
}

// NormalizeStrings coerces a loosely-typed list into strings, used for
// dependency and concern lists. Non-string items are rendered with %v rather
// than dropped.
func NormalizeStrings(items []any) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case map[string]any:
			// Some agents wrap dependencies as {"name": ...} objects.
			if name, ok := firstString(s, []string{"name", "description", "dependency", "concern"}); ok {
				out = append(out, name)
				continue
			}
			out = append(out, fmt.Sprintf("%v", s))
		default:
			out = append(out, fmt.Sprintf("%v", item))
		}
	}
	return out
}

// firstString returns the first present string value among the candidate
// keys, trying exact match first and then a case-insensitive pass.
func firstString(record map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if val, ok := record[key].(string); ok {
			return val, true
		}
	}
	// Case-insensitive fallback for capitalization drift.
	lowered := make(map[string]string, len(record))
	for k := range record {
		if s, ok := record[k].(string); ok {
			lowered[strings.ToLower(k)] = s
		}
	}
	for _, key := range keys {
		if val, ok := lowered[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return "", false
}
