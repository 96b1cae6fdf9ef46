package cohort

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PopulationCounter counts data subjects matching sanitized criteria. It is
// the source of truth the cache sits in front of; the same criteria must
// always produce the same count for an unchanged population.
type PopulationCounter interface {
	Count(ctx context.Context, criteria Criteria) (int, error)
}

// PostgresCounter counts rows in the data_subjects table.
type PostgresCounter struct {
	db *sql.DB
}

// NewPostgresCounter creates a Postgres-backed population counter.
func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

func (c *PostgresCounter) Count(ctx context.Context, criteria Criteria) (int, error) {
	sanitized := criteria.Sanitize()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if v, ok := sanitized[KeyAccountType]; ok {
		add("account_type = $%d", v)
	}
	if v, ok := sanitized[KeyStatus]; ok {
		add("status = $%d", v)
	}
	if v, ok := sanitized[KeyCreatedAfter]; ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return 0, fmt.Errorf("parse created_after: %w", err)
		}
		add("created_at >= $%d", t)
	}
	if v, ok := sanitized[KeyCreatedBefore]; ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return 0, fmt.Errorf("parse created_before: %w", err)
		}
		add("created_at <= $%d", t)
	}

	query := `SELECT COUNT(*) FROM data_subjects`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var count int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count data subjects: %w", err)
	}
	return count, nil
}

// StaticCounter serves counts from a fixed table keyed by criteria hash.
// Useful for tests and local runs without a subject database; unknown
// criteria fall back to Default.
type StaticCounter struct {
	Default int
	ByHash  map[string]int
}

func (c *StaticCounter) Count(_ context.Context, criteria Criteria) (int, error) {
	if n, ok := c.ByHash[criteria.Hash()]; ok {
		return n, nil
	}
	return c.Default, nil
}
