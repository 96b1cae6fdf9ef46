package prb

import (
	"context"

	"kanon/pkg/domain"
)

// Store persists budgets and their consumption log.
//
// Create must fail with sentinel.ErrConflict when a budget already exists for
// the campaign. Update must fail with sentinel.ErrVersionConflict when the
// stored version differs from the one in the passed budget; on success the
// stored version is incremented. Mutations for different campaigns never
// contend with each other.
type Store interface {
	Create(ctx context.Context, budget Budget) error
	GetByCampaign(ctx context.Context, campaignID domain.CampaignID) (Budget, error)
	Update(ctx context.Context, budget Budget) (Budget, error)

	AppendConsumption(ctx context.Context, entry ConsumptionEntry) error
	ListConsumptions(ctx context.Context, campaignID domain.CampaignID) ([]ConsumptionEntry, error)
}
