package prb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kanon/pkg/domain"
	"kanon/pkg/platform/sentinel"
)

// PostgresStore persists budgets in privacy_risk_budgets and consumption in
// prb_consumption_log. Per-key atomicity comes from the version column: an
// UPDATE guarded by the expected version either wins or reports a conflict.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed budget store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const budgetColumns = `id, campaign_id, allocated, consumed, status,
	ruleset_version, version, created_at, locked_at`

func (s *PostgresStore) Create(ctx context.Context, b Budget) error {
	query := `
		INSERT INTO privacy_risk_budgets
			(id, campaign_id, allocated, consumed, status, ruleset_version, version, created_at, locked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (campaign_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		b.ID, b.CampaignID.String(), int64(b.Allocated), int64(b.Consumed), b.Status,
		b.RulesetVersion, b.Version, b.CreatedAt, b.LockedAt,
	)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetByCampaign(ctx context.Context, campaignID domain.CampaignID) (Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM privacy_risk_budgets WHERE campaign_id = $1`,
		campaignID.String())
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Budget{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Budget{}, fmt.Errorf("query budget: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Update(ctx context.Context, b Budget) (Budget, error) {
	query := `
		UPDATE privacy_risk_budgets
		SET allocated = $1, consumed = $2, status = $3, locked_at = $4, version = version + 1
		WHERE campaign_id = $5 AND version = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		int64(b.Allocated), int64(b.Consumed), b.Status, b.LockedAt,
		b.CampaignID.String(), b.Version,
	)
	if err != nil {
		return Budget{}, fmt.Errorf("update budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or someone updated it first.
		if _, getErr := s.GetByCampaign(ctx, b.CampaignID); errors.Is(getErr, sentinel.ErrNotFound) {
			return Budget{}, sentinel.ErrNotFound
		}
		return Budget{}, sentinel.ErrVersionConflict
	}
	b.Version++
	return b, nil
}

func (s *PostgresStore) AppendConsumption(ctx context.Context, e ConsumptionEntry) error {
	query := `
		INSERT INTO prb_consumption_log
			(id, campaign_id, transform_id, operation_type, cost, remaining_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.CampaignID.String(), e.TransformID, e.OperationType,
		int64(e.Cost), int64(e.RemainingAfter), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consumption entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListConsumptions(ctx context.Context, campaignID domain.CampaignID) ([]ConsumptionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, transform_id, operation_type, cost, remaining_after, created_at
		FROM prb_consumption_log
		WHERE campaign_id = $1
		ORDER BY id
	`, campaignID.String())
	if err != nil {
		return nil, fmt.Errorf("query consumption log: %w", err)
	}
	defer rows.Close()

	var out []ConsumptionEntry
	for rows.Next() {
		var (
			e         ConsumptionEntry
			campaign  string
			cost      int64
			remaining int64
		)
		if err := rows.Scan(&e.ID, &campaign, &e.TransformID, &e.OperationType, &cost, &remaining, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consumption entry: %w", err)
		}
		parsed, err := domain.ParseCampaignID(campaign)
		if err != nil {
			return nil, fmt.Errorf("scan consumption entry: %w", err)
		}
		e.CampaignID = parsed
		e.Cost = domain.Risk(cost)
		e.RemainingAfter = domain.Risk(remaining)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(row scanner) (Budget, error) {
	var (
		b         Budget
		campaign  string
		allocated int64
		consumed  int64
	)
	err := row.Scan(&b.ID, &campaign, &allocated, &consumed, &b.Status,
		&b.RulesetVersion, &b.Version, &b.CreatedAt, &b.LockedAt)
	if err != nil {
		return Budget{}, err
	}
	parsed, err := domain.ParseCampaignID(campaign)
	if err != nil {
		return Budget{}, err
	}
	b.CampaignID = parsed
	b.Allocated = domain.Risk(allocated)
	b.Consumed = domain.Risk(consumed)
	return b, nil
}
