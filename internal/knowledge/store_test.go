package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/invested/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snippets := []models.ContextSnippet{
		{Content: "Checkout requires a verified payment method on file", Source: "docs/payments.md"},
		{Content: "The cart service exposes a REST endpoint for line items", Source: "docs/cart.md"},
		{Content: "Payment providers must be PCI compliant before integration", Source: "docs/payments.md"},
	}
	for _, snip := range snippets {
		if err := s.Add(ctx, snip); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	got, err := s.Search(ctx, "payment checkout", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d snippets, want 2", len(got))
	}
	// The snippet hitting both terms ranks first.
	if !strings.Contains(got[0].Content, "Checkout requires") {
		t.Errorf("top result = %q, want the two-term match", got[0].Content)
	}
}

func TestStore_SearchSourceFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, models.ContextSnippet{Content: "payment rules overview", Source: "docs/payments.md"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ctx, models.ContextSnippet{Content: "payment UI mockups", Source: "docs/design.md"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Search(ctx, "payment", "docs/payments.md", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Source != "docs/payments.md" {
		t.Errorf("Search() = %+v, want only the payments doc", got)
	}
}

func TestStore_SearchEmptyQuery(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Search(context.Background(), "a an of", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got != nil {
		t.Errorf("Search() with only noise terms = %v, want nil", got)
	}
}

func TestStore_SearchLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Add(ctx, models.ContextSnippet{Content: "shipping policy detail", Source: "docs/shipping.md"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Search(ctx, "shipping", "", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Search() returned %d snippets, want limit 3", len(got))
	}
}

func TestStore_DeleteBySource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, models.ContextSnippet{Content: "stale content about inventory", Source: "docs/inventory.md"}); err != nil {
		t.Fatal(err)
	}
	deleted, err := s.DeleteBySource(ctx, "docs/inventory.md")
	if err != nil {
		t.Fatalf("DeleteBySource() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteBySource() = %d, want 1", deleted)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d after delete, want 0", n)
	}
}

func TestIngestFile_ReplacesPriorSnippets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	doc := "# Ordering guide\n\n" +
		"Orders move from cart to checkout once a payment method is selected by the shopper.\n\n" +
		"Refunds are processed asynchronously and settle within five business days of approval."
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := s.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if first == 0 {
		t.Fatal("IngestFile() stored no snippets")
	}

	// Re-ingesting must not duplicate.
	second, err := s.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile() second pass error = %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != second {
		t.Errorf("Count() = %d after re-ingest, want %d", n, second)
	}
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty document", "", 0},
		{"single short paragraph dropped", "too short", 0},
		{
			"two paragraphs merge under the size cap",
			strings.Repeat("alpha beta gamma ", 10) + "\n\n" + strings.Repeat("delta epsilon ", 10),
			1,
		},
		{
			"oversized paragraphs split into separate chunks",
			strings.Repeat("x", 1300) + "\n\n" + strings.Repeat("y", 1300),
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitChunks(tt.text)
			if len(got) != tt.want {
				t.Errorf("splitChunks() produced %d chunks, want %d", len(got), tt.want)
			}
		})
	}
}

func TestChunkSummary(t *testing.T) {
	got := chunkSummary("## Payments\nDetails about the payment flow")
	if got != "Payments" {
		t.Errorf("chunkSummary() = %q, want heading text without markers", got)
	}
}
