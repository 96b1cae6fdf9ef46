package cohort

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresCache persists results in the cohort_size_cache table, giving the
// cache a durable, inspectable history of what was served and when.
type PostgresCache struct {
	db *sql.DB
}

// NewPostgresCache creates a Postgres-backed cohort cache.
func NewPostgresCache(db *sql.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

func (c *PostgresCache) Get(ctx context.Context, criteriaHash string, now time.Time) (CheckResult, bool, error) {
	var r CheckResult
	err := c.db.QueryRowContext(ctx, `
		SELECT criteria_hash, estimated_size, k_min_threshold, meets_threshold, computed_at, expires_at
		FROM cohort_size_cache
		WHERE criteria_hash = $1 AND expires_at > $2
	`, criteriaHash, now).Scan(
		&r.CriteriaHash, &r.CohortSize, &r.KMinThreshold, &r.MeetsThreshold, &r.ComputedAt, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CheckResult{}, false, nil
	}
	if err != nil {
		return CheckResult{}, false, fmt.Errorf("query cohort cache: %w", err)
	}
	return r, true, nil
}

func (c *PostgresCache) Set(ctx context.Context, r CheckResult) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cohort_size_cache
			(criteria_hash, estimated_size, k_min_threshold, meets_threshold, computed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (criteria_hash) DO UPDATE
		SET estimated_size = EXCLUDED.estimated_size,
		    k_min_threshold = EXCLUDED.k_min_threshold,
		    meets_threshold = EXCLUDED.meets_threshold,
		    computed_at = EXCLUDED.computed_at,
		    expires_at = EXCLUDED.expires_at
	`, r.CriteriaHash, r.CohortSize, r.KMinThreshold, r.MeetsThreshold, r.ComputedAt, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert cohort cache: %w", err)
	}
	return nil
}
