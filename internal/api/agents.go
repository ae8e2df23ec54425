package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/invested/internal/critique"
	"github.com/ShayCichocki/invested/internal/debate"
	"github.com/ShayCichocki/invested/pkg/models"
)

// Completer is the single-turn completion dependency shared by the debate
// agents. *Client satisfies it; tests substitute a canned implementation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProductOwner is the drafting, synthesis, and splitting agent.
type ProductOwner struct {
	completer Completer
}

// NewProductOwner creates the product-owner agent.
func NewProductOwner(completer Completer) *ProductOwner {
	return &ProductOwner{completer: completer}
}

// Draft rewrites the base artifact into a cleaner working copy.
func (p *ProductOwner) Draft(ctx context.Context, base *models.Artifact, snippets []models.ContextSnippet, violations []models.Violation) (*models.Artifact, error) {
	var prompt strings.Builder
	prompt.WriteString("Rewrite this work item so it satisfies the INVEST criteria.\n\n")
	prompt.WriteString(renderArtifact(base))
	if ctxText := renderSnippets(snippets); ctxText != "" {
		prompt.WriteString("\n" + ctxText)
	}
	if violText := renderViolations(violations); violText != "" {
		prompt.WriteString("\n" + violText)
	}

	output, err := p.completer.Complete(ctx, productOwnerSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}
	return decodeArtifact(base, output)
}

// Synthesize folds both critiques into a refined artifact.
func (p *ProductOwner) Synthesize(ctx context.Context, draft *models.Artifact, qa, dev *models.CritiqueResult) (*models.Artifact, error) {
	var prompt strings.Builder
	prompt.WriteString("Refine this draft by addressing the reviewer feedback below.\n\n")
	prompt.WriteString(renderArtifact(draft))
	if text := renderCritique("QA", qa); text != "" {
		prompt.WriteString("\n" + text)
	}
	if text := renderCritique("Developer", dev); text != "" {
		prompt.WriteString("\n" + text)
	}

	output, err := p.completer.Complete(ctx, productOwnerSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return decodeArtifact(draft, output)
}

// ProposeSplit asks for a decomposition of the original artifact. The parts
// reference the pre-refinement original so no scope is silently dropped.
func (p *ProductOwner) ProposeSplit(ctx context.Context, original *models.Artifact, violations []models.Violation) (*models.SplitProposal, error) {
	var prompt strings.Builder
	prompt.WriteString("This work item failed to converge during refinement. Split it.\n\n")
	prompt.WriteString(renderArtifact(original))
	if violText := renderViolations(violations); violText != "" {
		prompt.WriteString("\n" + violText)
	}

	output, err := p.completer.Complete(ctx, splitSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("propose split: %w", err)
	}
	return decodeSplitProposal(original, output)
}

// QAReviewer is the quality (INVEST) critique agent.
type QAReviewer struct {
	completer Completer
}

// NewQAReviewer creates the quality critique agent.
func NewQAReviewer(completer Completer) *QAReviewer {
	return &QAReviewer{completer: completer}
}

// Critique reviews a draft against the INVEST criteria.
func (q *QAReviewer) Critique(ctx context.Context, draft *models.Artifact, snippets []models.ContextSnippet) (*models.CritiqueResult, error) {
	var prompt strings.Builder
	prompt.WriteString("Review this work item.\n\n")
	prompt.WriteString(renderArtifact(draft))
	if ctxText := renderSnippets(snippets); ctxText != "" {
		prompt.WriteString("\n" + ctxText)
	}

	output, err := q.completer.Complete(ctx, qaSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("qa critique: %w", err)
	}
	result, err := critique.ParseResult(output)
	if err != nil {
		return nil, fmt.Errorf("qa critique: %w", err)
	}
	return result, nil
}

// DeveloperReviewer is the feasibility critique agent.
type DeveloperReviewer struct {
	completer Completer
}

// NewDeveloperReviewer creates the feasibility critique agent.
func NewDeveloperReviewer(completer Completer) *DeveloperReviewer {
	return &DeveloperReviewer{completer: completer}
}

// Critique reviews a draft for implementability.
func (d *DeveloperReviewer) Critique(ctx context.Context, draft *models.Artifact, snippets []models.ContextSnippet) (*models.CritiqueResult, error) {
	var prompt strings.Builder
	prompt.WriteString("Assess whether this work item is implementable as written.\n\n")
	prompt.WriteString(renderArtifact(draft))
	if ctxText := renderSnippets(snippets); ctxText != "" {
		prompt.WriteString("\n" + ctxText)
	}

	output, err := d.completer.Complete(ctx, developerSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("developer critique: %w", err)
	}
	result, err := critique.ParseResult(output)
	if err != nil {
		return nil, fmt.Errorf("developer critique: %w", err)
	}
	return result, nil
}

// DecisionAgent is the routing collaborator for supervisor-routed runs.
type DecisionAgent struct {
	completer Completer
}

// NewDecisionAgent creates the routing collaborator.
func NewDecisionAgent(completer Completer) *DecisionAgent {
	return &DecisionAgent{completer: completer}
}

// Decide recommends the next debate action from the run summary. The
// supervisor validates the recommendation; this layer only parses it.
func (a *DecisionAgent) Decide(ctx context.Context, summary debate.StateSummary) (*debate.Decision, error) {
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}

	output, err := a.completer.Complete(ctx, deciderSystemPrompt,
		"Current run state:\n"+string(summaryJSON))
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	raw, err := critique.ExtractJSON(output)
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}
	var decision debate.Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, fmt.Errorf("decide: parse decision: %w", err)
	}
	return &decision, nil
}

// artifactPatch is the JSON shape the product-owner persona answers with.
type artifactPatch struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// decodeArtifact applies the agent's rewrite on top of the base artifact.
// Identity and tracker metadata are preserved; only content fields change.
func decodeArtifact(base *models.Artifact, output string) (*models.Artifact, error) {
	raw, err := critique.ExtractJSON(output)
	if err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	var patch artifactPatch
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}

	result := base.Clone()
	if patch.Title != "" {
		result.Title = patch.Title
	}
	if patch.Description != "" {
		result.Description = patch.Description
	}
	if len(patch.AcceptanceCriteria) > 0 {
		result.AcceptanceCriteria = patch.AcceptanceCriteria
	}
	return result, nil
}

// decodeSplitProposal parses the splitting persona's answer. Parts inherit
// the original's type and priority and get derived keys.
func decodeSplitProposal(original *models.Artifact, output string) (*models.SplitProposal, error) {
	raw, err := critique.ExtractJSON(output)
	if err != nil {
		return nil, fmt.Errorf("parse split proposal: %w", err)
	}
	var doc struct {
		Rationale string          `json:"rationale"`
		Parts     []artifactPatch `json:"parts"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse split proposal: %w", err)
	}
	if len(doc.Parts) < 2 {
		return nil, fmt.Errorf("split proposal has %d parts, need at least 2", len(doc.Parts))
	}

	proposal := &models.SplitProposal{
		OriginalKey: original.Key,
		Rationale:   doc.Rationale,
	}
	for i, part := range doc.Parts {
		proposal.Parts = append(proposal.Parts, models.Artifact{
			Key:                fmt.Sprintf("%s-%d", original.Key, i+1),
			Title:              part.Title,
			Description:        part.Description,
			AcceptanceCriteria: part.AcceptanceCriteria,
			Type:               original.Type,
			Priority:           original.Priority,
			ParentKey:          original.Key,
		})
	}
	return proposal, nil
}
