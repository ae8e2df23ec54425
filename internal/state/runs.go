package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound indicates the requested run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusConverged = "converged"
	RunStatusCeiling   = "ceiling"
	RunStatusSplit     = "split"
	RunStatusFailed    = "failed"
)

// Run is one optimization run's persisted record.
type Run struct {
	ID          string
	ArtifactKey string
	Mode        string
	Status      string
	Confidence  float64
	Iterations  int
	Committed   bool
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// IterationRecord is one validated debate round's persisted record.
type IterationRecord struct {
	RunID          string
	Index          int
	Confidence     float64
	ViolationCount int
	QAConfidence   float64
	DevConfidence  float64
	RecordedAt     time.Time
}

// CreateRun inserts a new run in the running state.
func (db *DB) CreateRun(id, artifactKey, mode string) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, artifact_key, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, artifactKey, mode, RunStatusRunning, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the run's terminal status and final numbers.
func (db *DB) FinishRun(id, status string, confidence float64, iterations int, committed bool, runErr string) error {
	committedInt := 0
	if committed {
		committedInt = 1
	}
	result, err := db.Exec(`
		UPDATE runs
		SET status = ?, confidence = ?, iterations = ?, committed = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, status, confidence, iterations, committedInt, nullable(runErr), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveIteration records one validated round.
func (db *DB) SaveIteration(rec IterationRecord) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO iterations
			(run_id, idx, confidence, violation_count, qa_confidence, dev_confidence, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Index, rec.Confidence, rec.ViolationCount,
		rec.QAConfidence, rec.DevConfidence, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save iteration: %w", err)
	}
	return nil
}

// GetRun returns a single run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, artifact_key, mode, status, confidence, iterations, committed, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. An empty artifactKey
// matches every artifact.
func (db *DB) ListRuns(artifactKey string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, artifact_key, mode, status, confidence, iterations, committed, error, started_at, finished_at
		FROM runs
	`
	args := []any{}
	if artifactKey != "" {
		query += " WHERE artifact_key = ?"
		args = append(args, artifactKey)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListIterations returns a run's iteration records in order.
func (db *DB) ListIterations(runID string) ([]IterationRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, idx, confidence, violation_count, qa_confidence, dev_confidence, recorded_at
		FROM iterations WHERE run_id = ? ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var records []IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var recordedAt string
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Confidence,
			&rec.ViolationCount, &rec.QAConfidence, &rec.DevConfidence, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		if t, err := parseTime(recordedAt); err == nil {
			rec.RecordedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanRun reads one run row through the given scan function.
func scanRun(scan func(...any) error) (*Run, error) {
	var run Run
	var committed int
	var runErr sql.NullString
	var startedAt string
	var finishedAt sql.NullString

	if err := scan(&run.ID, &run.ArtifactKey, &run.Mode, &run.Status,
		&run.Confidence, &run.Iterations, &committed, &runErr,
		&startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Committed = committed != 0
	run.Error = runErr.String
	if t, err := parseTime(startedAt); err == nil {
		run.StartedAt = t
	}
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}

// nullable converts an empty string to NULL for storage.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
