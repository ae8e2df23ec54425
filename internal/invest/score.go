// Package invest implements the rule-based INVEST quality checks for
// work-item artifacts. Scoring is deterministic and makes no external calls;
// the critique agents provide the judgment the rules cannot.
package invest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/invested/pkg/models"
)

// Thresholds for the Small composite check.
const (
	// maxDescriptionLen is the character count above which a story is
	// considered too large.
	maxDescriptionLen = 800
	// maxAcceptanceCriteria is the AC count above which a story is
	// considered too large.
	maxAcceptanceCriteria = 5
	// minEntityMentions is the number of distinct domain entities that
	// suggests a story spans multiple features.
	minEntityMentions = 3
	// minListItems is the number of bullet/numbered items that suggests a
	// story bundles multiple deliverables.
	minListItems = 4
)

// valueClauseMarkers mark a rationale ("so that"-style) clause.
var valueClauseMarkers = []string{"so that", "in order to", "because"}

// vagueTerms are words that make a story hard to estimate.
var vagueTerms = []string{"fast", "better", "improve", "enhance", "user-friendly"}

// connectivePhrases signal multiple features packed into one story.
var connectivePhrases = []string{
	"and also", "additionally", "as well as", "furthermore", "moreover",
	"plus", "in addition", "this includes", "this should include", "includes:",
}

// domainEntities is a fixed lexicon of nouns counted as distinct domain
// entities when they appear as whole words in the description.
var domainEntities = []string{
	"user", "account", "order", "cart", "payment", "invoice", "product",
	"inventory", "report", "dashboard", "notification", "subscription",
	"profile", "catalog", "shipment",
}

// nonBinaryQualifiers make an acceptance criterion untestable.
var nonBinaryQualifiers = []string{"should", "could", "might", "better"}

// listItemPattern matches bullet or numbered list items at line start.
var listItemPattern = regexp.MustCompile(`(?m)^\s*(?:[-*\x{2022}]|\d+[.)])\s+\S`)

// wordBoundary caches compiled whole-word patterns for the entity lexicon.
var entityPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(domainEntities))
	for _, e := range domainEntities {
		m[e] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(e) + `s?\b`)
	}
	return m
}()

// Score runs every rule-based INVEST check against the artifact and returns
// all violations found. Checks never short-circuit; each contributes its own
// violations independently. Independent and Negotiable have no rule-based
// check here; those two are judged only by the critique agents.
func Score(artifact *models.Artifact) []models.Violation {
	if artifact == nil {
		return nil
	}

	var violations []models.Violation
	violations = append(violations, checkValuable(artifact)...)
	violations = append(violations, checkEstimable(artifact)...)
	violations = append(violations, checkSmall(artifact)...)
	violations = append(violations, checkTestable(artifact)...)
	return violations
}

// checkValuable flags stories whose description carries no value clause.
func checkValuable(a *models.Artifact) []models.Violation {
	if a.Type != models.ArtifactTypeStory {
		return nil
	}
	desc := strings.ToLower(a.Description)
	for _, marker := range valueClauseMarkers {
		if strings.Contains(desc, marker) {
			return nil
		}
	}
	return []models.Violation{{
		Criterion:   models.CriterionValuable,
		Severity:    models.SeverityMajor,
		Description: "story does not state who benefits or why: no value clause (\"so that ...\") found in the description",
		Suggestion:  "rewrite as: As a <role>, I want <capability> so that <benefit>",
	}}
}

// checkEstimable flags vague wording that blocks estimation.
func checkEstimable(a *models.Artifact) []models.Violation {
	desc := strings.ToLower(a.Description)
	var matched []string
	for _, term := range vagueTerms {
		if strings.Contains(desc, term) {
			matched = append(matched, term)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	return []models.Violation{{
		Criterion:   models.CriterionEstimable,
		Severity:    models.SeverityMajor,
		Description: fmt.Sprintf("description contains vague terms that prevent estimation: %s", strings.Join(matched, ", ")),
		Suggestion:  "replace vague qualifiers with measurable targets (e.g. \"page loads in under 2s\")",
	}}
}

// checkSmall evaluates five independent size signals and emits at most one
// aggregated violation listing every signal that tripped.
func checkSmall(a *models.Artifact) []models.Violation {
	var reasons []string

	if n := len(a.Description); n > maxDescriptionLen {
		reasons = append(reasons, fmt.Sprintf("description is %d characters (over %d)", n, maxDescriptionLen))
	}
	if n := len(a.AcceptanceCriteria); n > maxAcceptanceCriteria {
		reasons = append(reasons, fmt.Sprintf("%d acceptance criteria (over %d)", n, maxAcceptanceCriteria))
	}

	desc := strings.ToLower(a.Description)
	var connectives []string
	for _, phrase := range connectivePhrases {
		if strings.Contains(desc, phrase) {
			connectives = append(connectives, phrase)
		}
	}
	if len(connectives) > 0 {
		reasons = append(reasons, fmt.Sprintf("multi-feature connectives present: %s", strings.Join(connectives, ", ")))
	}

	var entities []string
	for _, e := range domainEntities {
		if entityPatterns[e].MatchString(a.Description) {
			entities = append(entities, e)
		}
	}
	if len(entities) >= minEntityMentions {
		reasons = append(reasons, fmt.Sprintf("mentions %d distinct domain entities: %s", len(entities), strings.Join(entities, ", ")))
	}

	if n := len(listItemPattern.FindAllString(a.Description, -1)); n >= minListItems {
		reasons = append(reasons, fmt.Sprintf("description contains %d list items", n))
	}

	if len(reasons) == 0 {
		return nil
	}
	return []models.Violation{{
		Criterion:   models.CriterionSmall,
		Severity:    models.SeverityMajor,
		Description: "story is likely too large: " + strings.Join(reasons, "; "),
		Suggestion:  "split the story along feature or entity boundaries",
	}}
}

// checkTestable flags missing acceptance criteria and non-binary criteria.
func checkTestable(a *models.Artifact) []models.Violation {
	var violations []models.Violation

	if len(a.AcceptanceCriteria) == 0 {
		violations = append(violations, models.Violation{
			Criterion:   models.CriterionTestable,
			Severity:    models.SeverityCritical,
			Description: "no acceptance criteria defined",
			Suggestion:  "add at least one verifiable acceptance criterion",
		})
	}

	for _, ac := range a.AcceptanceCriteria {
		lower := strings.ToLower(ac)
		for _, qualifier := range nonBinaryQualifiers {
			if containsWord(lower, qualifier) {
				violations = append(violations, models.Violation{
					Criterion:   models.CriterionTestable,
					Severity:    models.SeverityMinor,
					Description: fmt.Sprintf("acceptance criterion %q uses non-binary qualifier %q", truncate(ac, 60), qualifier),
					Evidence:    ac,
					Suggestion:  "phrase the criterion so it is unambiguously pass or fail",
				})
				break
			}
		}
	}

	return violations
}

// containsWord reports whether word occurs as a whole word in s.
// s must already be lowercased.
func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(s[start-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '-'
}

// truncate shortens s to at most n characters for readability.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
