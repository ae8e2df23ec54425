// Package models defines the shared data model for invested: the work-item
// artifact being optimized, INVEST violations, and critique results.
package models

import "time"

// ArtifactType classifies a work item in the backing tracker.
type ArtifactType string

const (
	// ArtifactTypeStory is a user story.
	ArtifactTypeStory ArtifactType = "story"
	// ArtifactTypeBug is a defect report.
	ArtifactTypeBug ArtifactType = "bug"
	// ArtifactTypeTask is a plain task.
	ArtifactTypeTask ArtifactType = "task"
	// ArtifactTypeEpic is a container for other artifacts.
	ArtifactTypeEpic ArtifactType = "epic"
)

// Valid returns true if the type is a known value.
func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactTypeStory, ArtifactTypeBug, ArtifactTypeTask, ArtifactTypeEpic:
		return true
	default:
		return false
	}
}

// Artifact is the work item being optimized. The original fetched from the
// tracker is kept read-only for the whole run; each debate iteration works
// on a copy (draft) and produces a further copy (refined).
type Artifact struct {
	// ID is the tracker's stable identifier for this item.
	ID string `json:"id" yaml:"id"`
	// Key is the human-readable reference (e.g. PROJ-123).
	Key string `json:"key" yaml:"key"`
	// Title is the one-line summary.
	Title string `json:"title" yaml:"title"`
	// Description is the free-text body of the work item.
	Description string `json:"description" yaml:"description"`
	// AcceptanceCriteria holds the criteria in insertion order. Order is not
	// semantically meaningful for scoring beyond the count.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	// Type is the declared work-item type.
	Type ArtifactType `json:"type" yaml:"type"`
	// Priority is the tracker's priority label.
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Status is the tracker's workflow status.
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	// ParentKey references the parent epic or story, if any.
	ParentKey string `json:"parent_key,omitempty" yaml:"parent_key,omitempty"`
	// Metadata is an opaque bag carried through from the tracker. It holds
	// the source system's last-modified stamp used by the write-back
	// boundary for optimistic concurrency.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MetaUpdatedAt is the metadata key carrying the tracker's last-modified
// timestamp, RFC 3339 formatted.
const MetaUpdatedAt = "updated_at"

// Clone returns a deep copy of the artifact. The debate engine clones the
// original into a draft each iteration so the baseline is never mutated.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	cp := *a
	if a.AcceptanceCriteria != nil {
		cp.AcceptanceCriteria = make([]string, len(a.AcceptanceCriteria))
		copy(cp.AcceptanceCriteria, a.AcceptanceCriteria)
	}
	if a.Metadata != nil {
		cp.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// UpdatedAt returns the tracker last-modified stamp from metadata, or the
// zero time if absent or unparseable.
func (a *Artifact) UpdatedAt() time.Time {
	if a == nil || a.Metadata == nil {
		return time.Time{}
	}
	raw, ok := a.Metadata[MetaUpdatedAt].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ContextSnippet is a retrieved knowledge fragment supplied to the critique
// agents during context assembly.
type ContextSnippet struct {
	// Content is the snippet body.
	Content string `json:"content" yaml:"content"`
	// Summary is a short abstract of the content.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
	// Source tags where the snippet came from (e.g. "confluence", "adr").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// Location points back into the source (path, URL, page).
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}
