package critique

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/invested/pkg/models"
)

func TestNormalizeCriterion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.Criterion
	}{
		{"single letter", "T", models.CriterionTestable},
		{"lowercase letter", "v", models.CriterionValuable},
		{"full word", "independent", models.CriterionIndependent},
		{"capitalized word", "Negotiable", models.CriterionNegotiable},
		{"uppercase word", "ESTIMABLE", models.CriterionEstimable},
		{"padded", "  small  ", models.CriterionSmall},
		{"unknown degrades to S", "modular", models.CriterionSmall},
		{"empty degrades to S", "", models.CriterionSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCriterion(tt.raw); got != tt.want {
				t.Errorf("NormalizeCriterion(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeCriterion_Closure(t *testing.T) {
	// Whatever comes in, the output is always one of the six codes.
	inputs := []string{"I", "n", "Valuable", "WAT", "", "7", "INVEST", "small "}
	for _, raw := range inputs {
		if got := NormalizeCriterion(raw); !got.Valid() {
			t.Errorf("NormalizeCriterion(%q) = %q, outside {I,N,V,E,S,T}", raw, got)
		}
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Severity
	}{
		{"critical", models.SeverityCritical},
		{"BLOCKER", models.SeverityCritical},
		{"High", models.SeverityCritical},
		{"major", models.SeverityMajor},
		{"medium", models.SeverityMajor},
		{"minor", models.SeverityMinor},
		{"low", models.SeverityMinor},
		{"", models.SeverityCritical},
		{"unknown", models.SeverityCritical},
	}
	for _, tt := range tests {
		if got := NormalizeSeverity(tt.raw); got != tt.want {
			t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeViolation_AliasFields(t *testing.T) {
	// Field-name drift observed in the wild: INVEST_criterion instead of
	// criterion, issue instead of description.
	record := map[string]any{
		"INVEST_criterion": "independent",
		"issue":            "depends on the billing rewrite",
		"level":            "high",
		"quote":            "blocked by SHOP-9",
		"fix":              "extract the shared contract first",
	}

	v, err := NormalizeViolation(record)
	if err != nil {
		t.Fatalf("NormalizeViolation() error = %v", err)
	}
	if v.Criterion != models.CriterionIndependent {
		t.Errorf("Criterion = %q, want I", v.Criterion)
	}
	if v.Severity != models.SeverityCritical {
		t.Errorf("Severity = %q, want critical", v.Severity)
	}
	if v.Description != "depends on the billing rewrite" {
		t.Errorf("Description = %q", v.Description)
	}
	if v.Evidence != "blocked by SHOP-9" {
		t.Errorf("Evidence = %q", v.Evidence)
	}
	if v.Suggestion != "extract the shared contract first" {
		t.Errorf("Suggestion = %q", v.Suggestion)
	}
}

func TestNormalizeViolation_MinimalFallback(t *testing.T) {
	v, err := NormalizeViolation(map[string]any{"nonsense": 42})
	if err != nil {
		t.Fatalf("NormalizeViolation() error = %v", err)
	}
	if v.Criterion != models.CriterionSmall {
		t.Errorf("fallback Criterion = %q, want S", v.Criterion)
	}
	if v.Severity != models.SeverityCritical {
		t.Errorf("fallback Severity = %q, want critical", v.Severity)
	}
	if v.Description == "" {
		t.Error("fallback Description should not be empty")
	}
}

func TestNormalizeViolation_SchemaEcho(t *testing.T) {
	record := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"criterion": map[string]any{"type": "string"},
		},
	}
	_, err := NormalizeViolation(record)
	if !errors.Is(err, ErrSchemaEcho) {
		t.Errorf("NormalizeViolation(schema) error = %v, want ErrSchemaEcho", err)
	}
}

func TestIsSchemaEcho(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   bool
	}{
		{
			name:   "schema object",
			record: map[string]any{"type": "object", "properties": map[string]any{}},
			want:   true,
		},
		{
			name:   "data with a type field",
			record: map[string]any{"type": "object"},
			want:   false,
		},
		{
			name:   "violation whose description mentions properties",
			record: map[string]any{"criterion": "S", "properties": "x"},
			want:   false,
		},
		{
			name:   "nil record",
			record: nil,
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSchemaEcho(tt.record); got != tt.want {
				t.Errorf("IsSchemaEcho() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeViolations_AllOutputsCanonical(t *testing.T) {
	records := []any{
		map[string]any{"criterion": "testable", "severity": "minor", "description": "ok"},
		map[string]any{"category": "weird-category", "description": "mystery"},
		"not even a map",
	}
	violations, err := NormalizeViolations(records)
	if err != nil {
		t.Fatalf("NormalizeViolations() error = %v", err)
	}
	if len(violations) != 3 {
		t.Fatalf("got %d violations, want 3 (nothing dropped silently)", len(violations))
	}
	for i, v := range violations {
		if !v.Criterion.Valid() {
			t.Errorf("violation %d criterion %q not canonical", i, v.Criterion)
		}
		if !v.Severity.Valid() {
			t.Errorf("violation %d severity %q not canonical", i, v.Severity)
		}
	}
}

func TestNormalizeStrings(t *testing.T) {
	items := []any{
		"payment gateway upgrade",
		map[string]any{"name": "auth service v2"},
		7,
	}
	got := NormalizeStrings(items)
	if len(got) != 3 {
		t.Fatalf("NormalizeStrings() len = %d, want 3", len(got))
	}
	if got[0] != "payment gateway upgrade" || got[1] != "auth service v2" || got[2] != "7" {
		t.Errorf("NormalizeStrings() = %v", got)
	}
}
