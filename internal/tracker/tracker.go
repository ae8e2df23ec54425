// Package tracker provides issue-source implementations and the provider
// registry that selects one. Providers are registered under a compile-time
// key and chosen by configuration; there is no dynamic loading.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/invested/pkg/models"
)

// Common tracker errors.
var (
	// ErrNotFound indicates the artifact does not exist in the source.
	ErrNotFound = errors.New("artifact not found")
	// ErrConflict indicates the artifact changed upstream since it was
	// fetched (optimistic-concurrency failure).
	ErrConflict = errors.New("artifact modified upstream since fetch")
	// ErrUnknownProvider indicates no factory is registered for the key.
	ErrUnknownProvider = errors.New("unknown tracker provider")
)

// Source is the issue-source collaborator. Fetch is called once at the start
// of an optimization run; Commit at most once, from the terminal execution
// transition.
type Source interface {
	// Fetch returns the artifact with the given id or key.
	Fetch(ctx context.Context, id string) (*models.Artifact, error)
	// Commit writes the refined artifact back. Implementations must check
	// the artifact's last-modified metadata against the stored version and
	// return ErrConflict on a mismatch.
	Commit(ctx context.Context, id string, artifact *models.Artifact) error
}

// Factory creates a Source from a provider-specific target string (a
// directory for the file provider, ignored by the memory provider).
type Factory func(target string) (Source, error)

// Registry maps provider keys to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given provider key, replacing any
// existing registration.
func (r *Registry) Register(key string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

// Open creates a Source for the given provider key.
func (r *Registry) Open(key, target string) (Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProvider, key, r.Providers())
	}
	return factory(target)
}

// Providers returns the registered provider keys, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultRegistry returns a registry with the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("file", func(target string) (Source, error) {
		return NewFileSource(target)
	})
	r.Register("memory", func(string) (Source, error) {
		return NewMemorySource(), nil
	})
	return r
}
