package models

import (
	"testing"
	"time"
)

func TestArtifactClone_DeepCopy(t *testing.T) {
	orig := &Artifact{
		ID:                 "1001",
		Key:                "SHOP-42",
		Title:              "Checkout flow",
		Description:        "As a shopper I want to pay so that I get my order",
		AcceptanceCriteria: []string{"payment succeeds", "receipt is emailed"},
		Type:               ArtifactTypeStory,
		Metadata:           map[string]any{MetaUpdatedAt: "2025-06-01T10:00:00Z"},
	}

	cp := orig.Clone()
	cp.Title = "changed"
	cp.AcceptanceCriteria[0] = "changed"
	cp.Metadata[MetaUpdatedAt] = "changed"

	if orig.Title != "Checkout flow" {
		t.Errorf("Clone shares Title with original")
	}
	if orig.AcceptanceCriteria[0] != "payment succeeds" {
		t.Errorf("Clone shares AcceptanceCriteria slice with original")
	}
	if orig.Metadata[MetaUpdatedAt] != "2025-06-01T10:00:00Z" {
		t.Errorf("Clone shares Metadata map with original")
	}
}

func TestArtifactClone_Nil(t *testing.T) {
	var a *Artifact
	if a.Clone() != nil {
		t.Error("Clone of nil artifact should be nil")
	}
}

func TestArtifactUpdatedAt(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want time.Time
	}{
		{
			name: "valid stamp",
			meta: map[string]any{MetaUpdatedAt: "2025-06-01T10:00:00Z"},
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "missing metadata",
			meta: nil,
			want: time.Time{},
		},
		{
			name: "unparseable stamp",
			meta: map[string]any{MetaUpdatedAt: "yesterday"},
			want: time.Time{},
		},
		{
			name: "wrong type",
			meta: map[string]any{MetaUpdatedAt: 12345},
			want: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Artifact{Metadata: tt.meta}
			if got := a.UpdatedAt(); !got.Equal(tt.want) {
				t.Errorf("UpdatedAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArtifactTypeValid(t *testing.T) {
	if !ArtifactTypeStory.Valid() {
		t.Error("story should be valid")
	}
	if ArtifactType("saga").Valid() {
		t.Error("saga should not be valid")
	}
}
