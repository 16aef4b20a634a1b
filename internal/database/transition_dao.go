package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Transition records a single historical routing outcome: a toolchain was
// chosen for a (domain, job type, features) context and either succeeded or
// failed. Other parts of the dispatcher append these; the policy layer only
// aggregates them.
type Transition struct {
	Domain     string    `json:"domain"`
	JobType    string    `json:"job_type"`
	FeatureKey string    `json:"feature_key"`
	Toolchain  string    `json:"toolchain"`
	Success    bool      `json:"success"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ToolchainStat is the aggregated empirical outcome for one toolchain under
// a routing context.
type ToolchainStat struct {
	Toolchain string  `json:"toolchain"`
	Attempts  int     `json:"attempts"`
	Successes int     `json:"successes"`
	// SuccessRate is Successes/Attempts; only defined when Attempts > 0.
	SuccessRate float64 `json:"success_rate"`
}

// TransitionDAO provides database operations for the transition store.
type TransitionDAO interface {
	// Record appends a transition outcome. Writers are other dispatcher
	// components; the append path lives here so the contract is testable.
	Record(ctx context.Context, t Transition) error

	// RankToolchains returns empirical success statistics for the given
	// candidate toolchains under (domain, jobType, featureKey). Candidates
	// with no recorded history are absent from the result.
	RankToolchains(ctx context.Context, candidates []string, domain, jobType, featureKey string) ([]ToolchainStat, error)
}

// transitionDAO implements TransitionDAO.
type transitionDAO struct {
	db *DB
}

// NewTransitionDAO creates a new transition DAO.
func NewTransitionDAO(db *DB) TransitionDAO {
	return &transitionDAO{db: db}
}

// Record appends a transition outcome.
func (d *transitionDAO) Record(ctx context.Context, t Transition) error {
	if t.RecordedAt.IsZero() {
		t.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transitions (domain, job_type, feature_key, toolchain, success, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	success := 0
	if t.Success {
		success = 1
	}

	if _, err := d.db.conn.ExecContext(ctx, query,
		t.Domain, t.JobType, t.FeatureKey, t.Toolchain, success, t.RecordedAt); err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// RankToolchains aggregates success rates for the candidate toolchains.
func (d *transitionDAO) RankToolchains(ctx context.Context, candidates []string, domain, jobType, featureKey string) ([]ToolchainStat, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(candidates))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT toolchain, COUNT(*), SUM(success)
		FROM transitions
		WHERE domain = ? AND job_type = ? AND feature_key = ?
		  AND toolchain IN (%s)
		GROUP BY toolchain
		ORDER BY toolchain`, placeholders)

	args := make([]any, 0, len(candidates)+3)
	args = append(args, domain, jobType, featureKey)
	for _, c := range candidates {
		args = append(args, c)
	}

	rows, err := d.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var stats []ToolchainStat
	for rows.Next() {
		var stat ToolchainStat
		if err := rows.Scan(&stat.Toolchain, &stat.Attempts, &stat.Successes); err != nil {
			return nil, fmt.Errorf("failed to scan transition stat: %w", err)
		}
		if stat.Attempts > 0 {
			stat.SuccessRate = float64(stat.Successes) / float64(stat.Attempts)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transition stats: %w", err)
	}

	return stats, nil
}
