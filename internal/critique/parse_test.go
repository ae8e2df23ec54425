package critique

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/invested/pkg/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "bare object",
			output: `{"confidence": 0.8}`,
			want:   `{"confidence": 0.8}`,
		},
		{
			name:   "fenced with language tag",
			output: "Here is my critique:\n```json\n{\"confidence\": 0.8}\n```\nDone.",
			want:   `{"confidence": 0.8}`,
		},
		{
			name:   "surrounded by prose",
			output: `Sure! {"a": {"b": 1}} hope that helps`,
			want:   `{"a": {"b": 1}}`,
		},
		{
			name:   "braces inside strings",
			output: `{"critique": "use {placeholders}", "confidence": 1}`,
			want:   `{"critique": "use {placeholders}", "confidence": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.output)
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := ExtractJSON("I could not produce a critique, sorry.")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("ExtractJSON() error = %v, want ErrNoJSON", err)
	}
}

func TestParseResult_QualityCritique(t *testing.T) {
	output := "```json\n" + `{
		"violations": [
			{"criterion": "V", "severity": "major", "description": "no value clause"},
			{"INVEST_criterion": "independent", "issue": "coupled to SHOP-9"}
		],
		"critique": "The story is missing its why.",
		"confidence": 0.85,
		"assessment": "needs_improvement"
	}` + "\n```"

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult() error = %v", err)
	}
	if len(result.Violations) != 2 {
		t.Fatalf("Violations len = %d, want 2", len(result.Violations))
	}
	if result.Violations[0].Criterion != models.CriterionValuable {
		t.Errorf("first criterion = %q, want V", result.Violations[0].Criterion)
	}
	if result.Violations[1].Criterion != models.CriterionIndependent {
		t.Errorf("aliased criterion = %q, want I", result.Violations[1].Criterion)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", result.Confidence)
	}
	if result.Assessment != models.AssessmentNeedsImprovement {
		t.Errorf("Assessment = %q", result.Assessment)
	}
}

func TestParseResult_FeasibilityCritique(t *testing.T) {
	output := `{
		"feasibility": "requires changes",
		"dependencies": ["payment gateway upgrade", {"name": "auth v2"}],
		"concerns": ["no rollback plan"],
		"critique": "Doable with prep work.",
		"confidence": "0.7"
	}`

	result, err := ParseResult(output)
	if err != nil {
		t.Fatalf("ParseResult() error = %v", err)
	}
	if result.Feasibility != models.FeasibilityRequiresChanges {
		t.Errorf("Feasibility = %q, want requires_changes", result.Feasibility)
	}
	if len(result.Dependencies) != 2 {
		t.Errorf("Dependencies = %v, want 2 entries", result.Dependencies)
	}
	if len(result.Concerns) != 1 {
		t.Errorf("Concerns = %v, want 1 entry", result.Concerns)
	}
	if result.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7 (string coerced)", result.Confidence)
	}
}

func TestParseResult_SchemaEchoIsHardFailure(t *testing.T) {
	output := `{
		"type": "object",
		"properties": {
			"violations": {"type": "array"},
			"confidence": {"type": "number"}
		}
	}`

	_, err := ParseResult(output)
	if !errors.Is(err, ErrSchemaEcho) {
		t.Errorf("ParseResult(schema echo) error = %v, want ErrSchemaEcho", err)
	}
}

func TestParseResult_ConfidenceDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
	}{
		{"absent confidence is neutral", `{"critique": "fine"}`, 0.5},
		{"clamped high", `{"confidence": 3.2}`, 1.0},
		{"clamped low", `{"confidence": -1}`, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResult(tt.output)
			if err != nil {
				t.Fatalf("ParseResult() error = %v", err)
			}
			if result.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.want)
			}
		})
	}
}
