package auditchain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanon/pkg/platform/sentinel"
)

// PostgresStore persists the chain in the audit_receipts table. Receipt IDs
// are ULIDs, so ORDER BY id equals append order.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed chain store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const receiptColumns = `id, event_type, actor_id, actor_type, resource_id, resource_type,
	details_hash, previous_hash, receipt_hash, created_at`

func (s *PostgresStore) Append(ctx context.Context, r Receipt) error {
	query := `
		INSERT INTO audit_receipts
			(id, event_type, actor_id, actor_type, resource_id, resource_type,
			 details_hash, previous_hash, receipt_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EventType, r.ActorID, r.ActorType, r.ResourceID, r.ResourceType,
		r.DetailsHash, r.PreviousHash, r.ReceiptHash, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT receipt_hash FROM audit_receipts ORDER BY id DESC LIMIT 1`,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest receipt hash: %w", err)
	}
	return hash, nil
}

func (s *PostgresStore) Get(ctx context.Context, receiptID string) (Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM audit_receipts WHERE id = $1`, receiptID)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("query audit receipt: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Receipt, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.EventType != "" {
		add("event_type = $%d", string(f.EventType))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	query := `SELECT ` + receiptColumns + ` FROM audit_receipts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryReceipts(ctx, query, args...)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Receipt, error) {
	return s.queryReceipts(ctx,
		`SELECT `+receiptColumns+` FROM audit_receipts ORDER BY id`)
}

func (s *PostgresStore) queryReceipts(ctx context.Context, query string, args ...any) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit receipt: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (Receipt, error) {
	var r Receipt
	err := row.Scan(
		&r.ID, &r.EventType, &r.ActorID, &r.ActorType, &r.ResourceID, &r.ResourceType,
		&r.DetailsHash, &r.PreviousHash, &r.ReceiptHash, &r.CreatedAt,
	)
	return r, err
}
