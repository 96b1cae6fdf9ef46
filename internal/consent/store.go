package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kanon/pkg/domain"
	"kanon/pkg/platform/sentinel"
)

// Store persists consent contracts.
type Store interface {
	Get(ctx context.Context, id domain.ConsentID) (Record, error)
	Put(ctx context.Context, record Record) error
	ListBySubject(ctx context.Context, subjectID domain.DataSubjectID) ([]Record, error)
}

// PostgresStore keeps consent contracts in the consent_contracts table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed consent store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const consentColumns = `id, data_subject_id, purpose, status, granted_at, expires_at, revoked_at`

func (s *PostgresStore) Get(ctx context.Context, id domain.ConsentID) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_contracts
		WHERE id = $1
	`, id.String())
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query consent contract: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Put(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_contracts (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    expires_at = EXCLUDED.expires_at,
		    revoked_at = EXCLUDED.revoked_at
	`, r.ID.String(), r.DataSubjectID.String(), r.Purpose, string(r.Status),
		r.GrantedAt, r.ExpiresAt, r.RevokedAt)
	if err != nil {
		return fmt.Errorf("upsert consent contract: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID domain.DataSubjectID) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_contracts
		WHERE data_subject_id = $1
		ORDER BY granted_at
	`, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list consent contracts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent contract: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r       Record
		rawID   string
		subject string
		status  string
	)
	if err := row.Scan(&rawID, &subject, &r.Purpose, &status,
		&r.GrantedAt, &r.ExpiresAt, &r.RevokedAt); err != nil {
		return Record{}, err
	}

	id, err := domain.ParseConsentID(rawID)
	if err != nil {
		return Record{}, err
	}
	subjectID, err := domain.ParseDataSubjectID(subject)
	if err != nil {
		return Record{}, err
	}
	r.ID = id
	r.DataSubjectID = subjectID
	r.Status = Status(status)
	return r, nil
}
