package api

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/invested/pkg/models"
)

// System prompts for the three debate personas and the routing decider. Each
// persona answers with a single JSON object; the parsing layer tolerates
// prose around it but not a schema echo.

const productOwnerSystemPrompt = `You are an experienced product owner refining Agile work items.
You write user stories in the "As a ... I want ... so that ..." form, keep
scope small, and make every acceptance criterion independently verifiable.
Respond with a single JSON object:
{"title": "...", "description": "...", "acceptance_criteria": ["..."]}`

const qaSystemPrompt = `You are a QA reviewer judging a user story against the INVEST criteria
(Independent, Negotiable, Valuable, Estimable, Small, Testable).
Report every violation you find. Respond with a single JSON object:
{"violations": [{"criterion": "I|N|V|E|S|T", "severity": "critical|major|minor",
"description": "...", "evidence": "...", "suggestion": "..."}],
"critique": "...", "assessment": "excellent|good|needs_improvement|poor",
"confidence": 0.0}`

const developerSystemPrompt = `You are a senior developer judging whether a user story is implementable
as written. Name blocking dependencies and implementation concerns.
Respond with a single JSON object:
{"feasibility": "feasible|requires_changes|blocked", "dependencies": ["..."],
"concerns": ["..."], "critique": "...", "confidence": 0.0}`

const splitSystemPrompt = `You are an experienced product owner splitting an oversized work item into
independently deliverable stories. Each part must keep the original's intent
and be valuable on its own. Respond with a single JSON object:
{"rationale": "...", "parts": [{"title": "...", "description": "...",
"acceptance_criteria": ["..."]}]}`

const deciderSystemPrompt = `You route an INVEST refinement debate. Given the run summary, choose the
next action from exactly this set: draft, qa_critique, developer_critique,
synthesize, validate, execute, propose_split, end.
Respond with a single JSON object:
{"next_action": "...", "reasoning": "...", "should_continue": true,
"priority_focus": "...", "confidence": 0.0}`

// renderArtifact formats a work item for inclusion in a prompt.
func renderArtifact(artifact *models.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key: %s\nTitle: %s\nType: %s\n", artifact.Key, artifact.Title, artifact.Type)
	fmt.Fprintf(&b, "Description:\n%s\n", artifact.Description)
	if len(artifact.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, ac := range artifact.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
	}
	return b.String()
}

// renderSnippets formats retrieved context, empty string when there is none.
func renderSnippets(snippets []models.ContextSnippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Project context:\n")
	for _, s := range snippets {
		fmt.Fprintf(&b, "- [%s] %s\n", s.Source, s.Content)
	}
	return b.String()
}

// renderViolations formats standing violations for the drafting prompt.
func renderViolations(violations []models.Violation) string {
	if len(violations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Outstanding violations to address:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- [%s/%s] %s", v.Criterion, v.Severity, v.Description)
		if v.Suggestion != "" {
			fmt.Fprintf(&b, " (suggestion: %s)", v.Suggestion)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderCritique formats one critique for the synthesis prompt.
func renderCritique(label string, result *models.CritiqueResult) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s critique (confidence %.2f):\n%s\n", label, result.Confidence, result.Critique)
	for _, v := range result.Violations {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", v.Criterion, v.Severity, v.Description)
	}
	for _, c := range result.Concerns {
		fmt.Fprintf(&b, "- concern: %s\n", c)
	}
	for _, d := range result.Dependencies {
		fmt.Fprintf(&b, "- dependency: %s\n", d)
	}
	return b.String()
}
