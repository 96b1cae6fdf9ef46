package linkage

import (
	"context"
	"database/sql"
	"fmt"

	"kanon/pkg/domain"
)

// PostgresStore persists rate-limit records in linkage_rate_limits.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed record store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, r RateLimitRecord) error {
	query := `
		INSERT INTO linkage_rate_limits
			(id, requester_id, query_hash, similarity_score, query_count,
			 window_start, window_end, blocked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RequesterID.String(), r.QueryHash, r.SimilarityScore, r.QueryCount,
		r.WindowStart, r.WindowEnd, r.Blocked, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rate limit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID domain.RequesterID) ([]RateLimitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requester_id, query_hash, similarity_score, query_count,
		       window_start, window_end, blocked, created_at
		FROM linkage_rate_limits
		WHERE requester_id = $1
		ORDER BY id
	`, requesterID.String())
	if err != nil {
		return nil, fmt.Errorf("query rate limit records: %w", err)
	}
	defer rows.Close()

	var out []RateLimitRecord
	for rows.Next() {
		var (
			r   RateLimitRecord
			req string
		)
		if err := rows.Scan(&r.ID, &req, &r.QueryHash, &r.SimilarityScore, &r.QueryCount,
			&r.WindowStart, &r.WindowEnd, &r.Blocked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limit record: %w", err)
		}
		parsed, err := domain.ParseRequesterID(req)
		if err != nil {
			return nil, fmt.Errorf("scan rate limit record: %w", err)
		}
		r.RequesterID = parsed
		out = append(out, r)
	}
	return out, rows.Err()
}
