package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/invested/pkg/models"
)

// artifactDoc is the on-disk YAML shape of a work item. It mirrors the model
// but keeps wire tags separate so the file format can evolve independently.
type artifactDoc struct {
	ID                 string         `yaml:"id"`
	Key                string         `yaml:"key"`
	Title              string         `yaml:"title"`
	Description        string         `yaml:"description"`
	AcceptanceCriteria []string       `yaml:"acceptance_criteria,omitempty"`
	Type               string         `yaml:"type,omitempty"`
	Priority           string         `yaml:"priority,omitempty"`
	Status             string         `yaml:"status,omitempty"`
	ParentKey          string         `yaml:"parent_key,omitempty"`
	Metadata           map[string]any `yaml:"metadata,omitempty"`
}

// FileSource stores work items as one YAML document per key inside a
// directory. Commits are guarded by the artifact's updated_at metadata so a
// concurrent edit of the file between fetch and commit is rejected rather
// than silently overwritten.
type FileSource struct {
	dir string
	mu  sync.Mutex
}

// NewFileSource opens a directory-backed source, creating the directory if
// needed.
func NewFileSource(dir string) (*FileSource, error) {
	if dir == "" {
		return nil, errors.New("file tracker requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tracker directory: %w", err)
	}
	return &FileSource{dir: dir}, nil
}

// Fetch reads the artifact with the given key from disk.
func (f *FileSource) Fetch(ctx context.Context, id string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(id)
}

// Commit writes the refined artifact back, stamping a fresh updated_at. The
// on-disk stamp must match the one carried by the incoming artifact.
func (f *FileSource) Commit(ctx context.Context, id string, artifact *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if artifact == nil {
		return errors.New("nil artifact")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, err := f.read(id)
	if err != nil {
		return err
	}
	if stamp(stored) != stamp(artifact) {
		return fmt.Errorf("%w: %q", ErrConflict, id)
	}

	out := artifact.Clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	out.Metadata[models.MetaUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	return f.write(id, out)
}

// Create writes a brand-new artifact. Used by the split executor to persist
// proposal parts alongside the original.
func (f *FileSource) Create(ctx context.Context, artifact *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if artifact == nil || artifact.Key == "" {
		return errors.New("artifact needs a key")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path(artifact.Key)); err == nil {
		return fmt.Errorf("%w: %q already exists", ErrConflict, artifact.Key)
	}

	out := artifact.Clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	out.Metadata[models.MetaUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	return f.write(artifact.Key, out)
}

// List returns the keys of every work item in the directory, in file order.
func (f *FileSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("listing tracker directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".yaml"))
	}
	return keys, nil
}

func (f *FileSource) path(id string) string {
	return filepath.Join(f.dir, id+".yaml")
}

func (f *FileSource) read(id string) (*models.Artifact, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading %s: %w", f.path(id), err)
	}

	var doc artifactDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path(id), err)
	}
	if doc.Key == "" {
		doc.Key = id
	}
	return &models.Artifact{
		ID:                 doc.ID,
		Key:                doc.Key,
		Title:              doc.Title,
		Description:        doc.Description,
		AcceptanceCriteria: doc.AcceptanceCriteria,
		Type:               models.ArtifactType(doc.Type),
		Priority:           doc.Priority,
		Status:             doc.Status,
		ParentKey:          doc.ParentKey,
		Metadata:           doc.Metadata,
	}, nil
}

func (f *FileSource) write(id string, artifact *models.Artifact) error {
	doc := artifactDoc{
		ID:                 artifact.ID,
		Key:                artifact.Key,
		Title:              artifact.Title,
		Description:        artifact.Description,
		AcceptanceCriteria: artifact.AcceptanceCriteria,
		Type:               string(artifact.Type),
		Priority:           artifact.Priority,
		Status:             artifact.Status,
		ParentKey:          artifact.ParentKey,
		Metadata:           artifact.Metadata,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}

	// Write through a temp file so a crash mid-write cannot corrupt the item.
	tmp := f.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path(id)); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path(id), err)
	}
	return nil
}
