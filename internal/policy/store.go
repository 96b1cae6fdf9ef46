package policy

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Store persists decision receipts.
type Store interface {
	Append(ctx context.Context, receipt DecisionReceipt) error
	ListByRequester(ctx context.Context, requesterID string) ([]DecisionReceipt, error)
}

// InMemoryStore keeps decision receipts in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts []DecisionReceipt
}

// NewInMemoryStore creates an empty in-memory receipt store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, receipt DecisionReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *InMemoryStore) ListByRequester(_ context.Context, requesterID string) ([]DecisionReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DecisionReceipt
	for _, r := range s.receipts {
		if r.RequesterID == requesterID {
			out = append(out, r)
		}
	}
	return out, nil
}

// PostgresStore persists decision receipts in policy_decision_receipts.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed receipt store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, r DecisionReceipt) error {
	query := `
		INSERT INTO policy_decision_receipts
			(id, decision_type, decision, campaign_id, requester_id, reason_codes, policy_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.DecisionType, string(r.Decision), r.CampaignID, r.RequesterID,
		joinReasons(r.ReasonCodes), r.PolicyVersion, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID string) ([]DecisionReceipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision_type, decision, campaign_id, requester_id, reason_codes, policy_version, created_at
		FROM policy_decision_receipts
		WHERE requester_id = $1
		ORDER BY id
	`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("query decision receipts: %w", err)
	}
	defer rows.Close()

	var out []DecisionReceipt
	for rows.Next() {
		var (
			r       DecisionReceipt
			reasons string
		)
		if err := rows.Scan(&r.ID, &r.DecisionType, &r.Decision, &r.CampaignID,
			&r.RequesterID, &reasons, &r.PolicyVersion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision receipt: %w", err)
		}
		r.ReasonCodes = splitReasons(reasons)
		out = append(out, r)
	}
	return out, rows.Err()
}
