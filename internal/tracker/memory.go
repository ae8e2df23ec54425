package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShayCichocki/invested/pkg/models"
)

// MemorySource is an in-memory Source used by tests and dry runs. It applies
// the same optimistic-concurrency rule as the durable providers.
type MemorySource struct {
	mu        sync.RWMutex
	artifacts map[string]*models.Artifact
	commits   int
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{artifacts: make(map[string]*models.Artifact)}
}

// Put stores an artifact under its key, replacing any existing one.
func (m *MemorySource) Put(artifact *models.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[artifact.Key] = artifact.Clone()
}

// Fetch returns a copy of the stored artifact.
func (m *MemorySource) Fetch(ctx context.Context, id string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	artifact, ok := m.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return artifact.Clone(), nil
}

// Commit replaces the stored artifact if its last-modified metadata still
// matches what the caller fetched.
func (m *MemorySource) Commit(ctx context.Context, id string, artifact *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.artifacts[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if stamp(stored) != stamp(artifact) {
		return fmt.Errorf("%w: %q", ErrConflict, id)
	}
	m.artifacts[id] = artifact.Clone()
	m.commits++
	return nil
}

// Commits reports how many commits succeeded. Test helper.
func (m *MemorySource) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

// stamp extracts the last-modified marker used for conflict detection.
func stamp(artifact *models.Artifact) string {
	if artifact == nil || artifact.Metadata == nil {
		return ""
	}
	if v, ok := artifact.Metadata[models.MetaUpdatedAt].(string); ok {
		return v
	}
	return ""
}
