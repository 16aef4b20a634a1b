// Package history gathers bounded, ranked summaries of similar past
// executions for planner-input construction. Candidates are merged from the
// archived-run store and long-running-world run logs; a missing or unreadable
// source degrades to an empty set and never fails a decision.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/workcell-labs/foundry/internal/database"
)

// Candidate is a flattened record of a past run considered for history
// selection. Read-only; deduplicated and ordered by (StartedAt, RunID).
type Candidate struct {
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

// Query carries the features a history lookup matches candidates against.
type Query struct {
	Domain      string
	JobType     string
	Now         time.Time
	Tags        []string
	WorldID     string
	ObjectiveID string
}

// Source yields history candidates for a query. Implementations must treat
// their own unavailability as an empty result where possible; the selector
// additionally swallows source errors.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]Candidate, error)
}

// ArchiveSource reads candidates from the SQLite archived-run store.
type ArchiveSource struct {
	dao   database.ArchiveDAO
	limit int
}

// NewArchiveSource creates a history source over the archived-run store.
// limit bounds how many rows are pulled per query before ranking.
func NewArchiveSource(dao database.ArchiveDAO, limit int) *ArchiveSource {
	if limit <= 0 {
		limit = 256
	}
	return &ArchiveSource{dao: dao, limit: limit}
}

// Fetch returns archived runs for the query's domain and job type.
func (s *ArchiveSource) Fetch(ctx context.Context, q Query) ([]Candidate, error) {
	runs, err := s.dao.ListByJobType(ctx, q.Domain, q.JobType, s.limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(runs))
	for _, run := range runs {
		candidates = append(candidates, Candidate{
			RunID:           run.RunID,
			StartedAt:       run.StartedAt,
			Domain:          run.Domain,
			WorldID:         run.WorldID,
			ObjectiveID:     run.ObjectiveID,
			JobType:         run.JobType,
			Outcome:         run.Outcome,
			Strategy:        run.Strategy,
			DurationSeconds: run.DurationSeconds,
			Cost:            run.Cost,
			Tags:            run.Tags,
			FailingGates:    run.FailingGates,
			FailureCodes:    run.FailureCodes,
		})
	}
	return candidates, nil
}

// WorldSource reads candidates from JSON-lines run summaries written by
// long-running worlds. Each file under the directory holds one summary per
// line. Unreadable files and malformed lines are skipped silently.
type WorldSource struct {
	dir string
}

// NewWorldSource creates a history source over a directory of world-run
// summary files.
func NewWorldSource(dir string) *WorldSource {
	return &WorldSource{dir: dir}
}

// Fetch returns world-run candidates matching the query's domain. A missing
// directory yields an empty result, not an error.
func (s *WorldSource) Fetch(ctx context.Context, q Query) ([]Candidate, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil
	}

	var candidates []Candidate
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		candidates = append(candidates, s.readFile(filepath.Join(s.dir, entry.Name()), q)...)
	}
	return candidates, nil
}

func (s *WorldSource) readFile(path string, q Query) []Candidate {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var candidates []Candidate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Candidate
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		if c.Domain != q.Domain || c.JobType != q.JobType {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}
