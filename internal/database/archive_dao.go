package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ArchivedRun is a flattened record of a past execution as persisted by the
// archiving stage of the dispatcher. Read-only here.
type ArchivedRun struct {
	RunID           string     `json:"run_id"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	Domain          string     `json:"domain"`
	WorldID         string     `json:"world_id,omitempty"`
	ObjectiveID     string     `json:"objective_id,omitempty"`
	JobType         string     `json:"job_type"`
	Outcome         string     `json:"outcome"`
	Strategy        string     `json:"strategy,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Cost            float64    `json:"cost,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	FailingGates    []string   `json:"failing_gates,omitempty"`
	FailureCodes    []string   `json:"failure_codes,omitempty"`
}

// ArchiveDAO provides read access to the archived-run store.
type ArchiveDAO interface {
	// ListByJobType returns up to limit archived runs for a domain and job
	// type, ordered ascending by (started_at, run_id).
	ListByJobType(ctx context.Context, domain, jobType string, limit int) ([]ArchivedRun, error)

	// Insert persists an archived run. Exposed for the archiving stage and
	// for tests; the policy layer itself never writes.
	Insert(ctx context.Context, run ArchivedRun) error
}

// archiveDAO implements ArchiveDAO.
type archiveDAO struct {
	db *DB
}

// NewArchiveDAO creates a new archive DAO.
func NewArchiveDAO(db *DB) ArchiveDAO {
	return &archiveDAO{db: db}
}

// Insert persists an archived run.
func (d *archiveDAO) Insert(ctx context.Context, run ArchivedRun) error {
	tags, err := marshalStrings(run.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	gates, err := marshalStrings(run.FailingGates)
	if err != nil {
		return fmt.Errorf("failed to marshal failing gates: %w", err)
	}
	codes, err := marshalStrings(run.FailureCodes)
	if err != nil {
		return fmt.Errorf("failed to marshal failure codes: %w", err)
	}

	query := `
		INSERT INTO archived_runs (
			run_id, started_at, domain, world_id, objective_id, job_type,
			outcome, strategy, duration_seconds, cost, tags, failing_gates, failure_codes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var startedAt any
	if run.StartedAt != nil {
		startedAt = run.StartedAt.UTC()
	}

	if _, err := d.db.conn.ExecContext(ctx, query,
		run.RunID, startedAt, run.Domain, run.WorldID, run.ObjectiveID, run.JobType,
		run.Outcome, run.Strategy, run.DurationSeconds, run.Cost, tags, gates, codes); err != nil {
		return fmt.Errorf("failed to insert archived run: %w", err)
	}
	return nil
}

// ListByJobType returns archived runs for a domain and job type.
func (d *archiveDAO) ListByJobType(ctx context.Context, domain, jobType string, limit int) ([]ArchivedRun, error) {
	query := `
		SELECT run_id, started_at, domain, world_id, objective_id, job_type,
		       outcome, strategy, duration_seconds, cost, tags, failing_gates, failure_codes
		FROM archived_runs
		WHERE domain = ? AND job_type = ?
		ORDER BY started_at ASC, run_id ASC
		LIMIT ?`

	rows, err := d.db.conn.QueryContext(ctx, query, domain, jobType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived runs: %w", err)
	}
	defer rows.Close()

	var runs []ArchivedRun
	for rows.Next() {
		run, err := scanArchivedRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived runs: %w", err)
	}

	return runs, nil
}

func scanArchivedRun(rows *sql.Rows) (ArchivedRun, error) {
	var run ArchivedRun
	var startedAt sql.NullTime
	var worldID, objectiveID, strategy sql.NullString
	var duration, cost sql.NullFloat64
	var tags, gates, codes sql.NullString

	if err := rows.Scan(&run.RunID, &startedAt, &run.Domain, &worldID, &objectiveID,
		&run.JobType, &run.Outcome, &strategy, &duration, &cost, &tags, &gates, &codes); err != nil {
		return run, fmt.Errorf("failed to scan archived run: %w", err)
	}

	if startedAt.Valid {
		t := startedAt.Time.UTC()
		run.StartedAt = &t
	}
	run.WorldID = worldID.String
	run.ObjectiveID = objectiveID.String
	run.Strategy = strategy.String
	run.DurationSeconds = duration.Float64
	run.Cost = cost.Float64

	var err error
	if run.Tags, err = unmarshalStrings(tags); err != nil {
		return run, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if run.FailingGates, err = unmarshalStrings(gates); err != nil {
		return run, fmt.Errorf("failed to unmarshal failing gates: %w", err)
	}
	if run.FailureCodes, err = unmarshalStrings(codes); err != nil {
		return run, fmt.Errorf("failed to unmarshal failure codes: %w", err)
	}

	return run, nil
}

func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(col sql.NullString) ([]string, error) {
	if !col.Valid || col.String == "" || col.String == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(col.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}
