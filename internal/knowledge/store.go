// Package knowledge provides the retrieval layer for context assembly.
// Snippets ingested from project documentation live in an SQLite database
// (project-local .invested/knowledge.db) and are matched by keyword search.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/invested/pkg/models"
)

// Retriever is the context-assembly collaborator. Search is called once per
// optimization run, before the first draft.
type Retriever interface {
	// Search returns up to limit snippets matching the query. An empty
	// sourceFilter matches every source.
	Search(ctx context.Context, query, sourceFilter string, limit int) ([]models.ContextSnippet, error)
}

// DefaultSearchLimit bounds the snippets handed to the drafting agent.
const DefaultSearchLimit = 8

// Store wraps an SQLite snippet database.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// ProjectStorePath returns the path to the project-local knowledge database.
func ProjectStorePath(projectRoot string) string {
	return filepath.Join(projectRoot, ".invested", "knowledge.db")
}

// Open opens the snippet database at the given path, creating parent
// directories and applying pending migrations. WAL mode is enabled for
// concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create knowledge directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending schema migrations.
func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Snippets},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Snippets = `
CREATE TABLE IF NOT EXISTS snippets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	summary TEXT,
	source TEXT NOT NULL,
	location TEXT,
	ingested_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snippets_source ON snippets(source);
`

// Add stores one snippet.
func (s *Store) Add(ctx context.Context, snippet models.ContextSnippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO snippets (content, summary, source, location, ingested_at)
		VALUES (?, ?, ?, ?, ?)
	`, snippet.Content, snippet.Summary, snippet.Source, snippet.Location,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

// DeleteBySource removes every snippet ingested from the given source.
// Re-ingestion of a changed document calls this first.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.conn.ExecContext(ctx, "DELETE FROM snippets WHERE source = ?", source)
	if err != nil {
		return 0, fmt.Errorf("delete snippets for %s: %w", source, err)
	}
	return result.RowsAffected()
}

// Count returns the total number of stored snippets.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	row := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM snippets")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count snippets: %w", err)
	}
	return n, nil
}

// Search matches snippets whose content or summary contains any of the query
// terms, ranked by how many distinct terms they hit. Terms shorter than three
// characters are ignored as noise.
func (s *Store) Search(ctx context.Context, query, sourceFilter string, limit int) ([]models.ContextSnippet, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	args := make([]any, 0, len(terms)*2+2)

	sb.WriteString("SELECT content, summary, source, location, hits FROM (")
	sb.WriteString("SELECT id, content, summary, source, location, (")
	for i, term := range terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString("(content LIKE ? OR summary LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	sb.WriteString(") AS hits FROM snippets")
	if sourceFilter != "" {
		sb.WriteString(" WHERE source = ?")
		args = append(args, sourceFilter)
	}
	sb.WriteString(") WHERE hits > 0 ORDER BY hits DESC, id ASC LIMIT ?")
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search snippets: %w", err)
	}
	defer rows.Close()

	var snippets []models.ContextSnippet
	for rows.Next() {
		var snip models.ContextSnippet
		var summary, location sql.NullString
		var hits int
		if err := rows.Scan(&snip.Content, &summary, &snip.Source, &location, &hits); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		snip.Summary = summary.String
		snip.Location = location.String
		snippets = append(snippets, snip)
	}
	return snippets, rows.Err()
}

// searchTerms tokenizes a query into lowercase terms, dropping short noise
// words and duplicates.
func searchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
