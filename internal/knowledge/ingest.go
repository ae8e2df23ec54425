package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/invested/pkg/models"
)

// chunk sizing for document ingestion. Chunks are paragraph-aligned; a
// paragraph longer than maxChunkLen is emitted on its own rather than split
// mid-sentence.
const (
	minChunkLen = 80
	maxChunkLen = 1200
)

// ingestibleExtensions lists the file types the ingester reads.
var ingestibleExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".rst":  true,
	".adoc": true,
}

// IngestFile splits one document into snippets and stores them, replacing any
// snippets previously ingested from the same path. Returns the number of
// snippets stored.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	if _, err := s.DeleteBySource(ctx, path); err != nil {
		return 0, err
	}

	chunks := splitChunks(string(data))
	for i, chunk := range chunks {
		snippet := models.ContextSnippet{
			Content:  chunk,
			Summary:  chunkSummary(chunk),
			Source:   path,
			Location: fmt.Sprintf("chunk %d", i+1),
		}
		if err := s.Add(ctx, snippet); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// IngestDir walks a directory tree and ingests every document with a known
// extension. Returns the total number of snippets stored.
func (s *Store) IngestDir(ctx context.Context, root string) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !ingestibleExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		n, err := s.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("ingesting %s: %w", root, err)
	}
	return total, nil
}

// splitChunks breaks a document into paragraph-aligned chunks. Consecutive
// short paragraphs are merged until the chunk reaches a useful size.
func splitChunks(text string) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if len(chunk) >= minChunkLen {
			chunks = append(chunks, chunk)
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len()+len(p) > maxChunkLen && current.Len() > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		if current.Len() >= maxChunkLen {
			flush()
		}
	}
	flush()
	return chunks
}

// chunkSummary is the chunk's first line with any markdown heading markers
// stripped, truncated for the snippets table.
func chunkSummary(chunk string) string {
	line := chunk
	if i := strings.IndexByte(chunk, '\n'); i >= 0 {
		line = chunk[:i]
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "# "))
	if len(line) > 120 {
		line = line[:120]
	}
	return line
}
