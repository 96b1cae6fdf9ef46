package pairwise

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kanon/pkg/domain"
	"kanon/pkg/platform/sentinel"
)

// PostgresStore persists pair budgets in pairwise_budgets and their query
// logs in pairwise_query_log, using the same version-guarded update as the
// campaign ledger.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed pair store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pairColumns = `data_subject_id, requester_id, allocated, consumed, status,
	version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, b Budget) error {
	query := `
		INSERT INTO pairwise_budgets
			(data_subject_id, requester_id, allocated, consumed, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (data_subject_id, requester_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		b.Key.DataSubjectID.String(), b.Key.RequesterID.String(),
		int64(b.Allocated), int64(b.Consumed), b.Status, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pair budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert pair budget: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key PairKey) (Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pairColumns+` FROM pairwise_budgets WHERE data_subject_id = $1 AND requester_id = $2`,
		key.DataSubjectID.String(), key.RequesterID.String())
	b, err := scanPairBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Budget{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Budget{}, fmt.Errorf("query pair budget: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Update(ctx context.Context, b Budget) (Budget, error) {
	query := `
		UPDATE pairwise_budgets
		SET allocated = $1, consumed = $2, status = $3, updated_at = $4, version = version + 1
		WHERE data_subject_id = $5 AND requester_id = $6 AND version = $7
	`
	res, err := s.db.ExecContext(ctx, query,
		int64(b.Allocated), int64(b.Consumed), b.Status, b.UpdatedAt,
		b.Key.DataSubjectID.String(), b.Key.RequesterID.String(), b.Version,
	)
	if err != nil {
		return Budget{}, fmt.Errorf("update pair budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Budget{}, fmt.Errorf("update pair budget: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, b.Key); errors.Is(getErr, sentinel.ErrNotFound) {
			return Budget{}, sentinel.ErrNotFound
		}
		return Budget{}, sentinel.ErrVersionConflict
	}
	b.Version++
	return b, nil
}

func (s *PostgresStore) AppendQuery(ctx context.Context, r QueryRecord) error {
	query := `
		INSERT INTO pairwise_query_log
			(id, data_subject_id, requester_id, query_hash, query_type, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Key.DataSubjectID.String(), r.Key.RequesterID.String(),
		r.QueryHash, r.QueryType, int64(r.Cost), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListQueriesSince(ctx context.Context, key PairKey, since time.Time) ([]QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data_subject_id, requester_id, query_hash, query_type, cost, created_at
		FROM pairwise_query_log
		WHERE data_subject_id = $1 AND requester_id = $2 AND created_at >= $3
		ORDER BY id
	`, key.DataSubjectID.String(), key.RequesterID.String(), since)
	if err != nil {
		return nil, fmt.Errorf("query pair log: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var (
			r    QueryRecord
			ds   string
			req  string
			cost int64
		)
		if err := rows.Scan(&r.ID, &ds, &req, &r.QueryHash, &r.QueryType, &cost, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query record: %w", err)
		}
		key, err := parsePairKey(ds, req)
		if err != nil {
			return nil, fmt.Errorf("scan query record: %w", err)
		}
		r.Key = key
		r.Cost = domain.Risk(cost)
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPairBudget(row scanner) (Budget, error) {
	var (
		b         Budget
		ds        string
		req       string
		allocated int64
		consumed  int64
	)
	err := row.Scan(&ds, &req, &allocated, &consumed, &b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Budget{}, err
	}
	key, err := parsePairKey(ds, req)
	if err != nil {
		return Budget{}, err
	}
	b.Key = key
	b.Allocated = domain.Risk(allocated)
	b.Consumed = domain.Risk(consumed)
	return b, nil
}

func parsePairKey(ds, req string) (PairKey, error) {
	subject, err := domain.ParseDataSubjectID(ds)
	if err != nil {
		return PairKey{}, err
	}
	requester, err := domain.ParseRequesterID(req)
	if err != nil {
		return PairKey{}, err
	}
	return PairKey{DataSubjectID: subject, RequesterID: requester}, nil
}
