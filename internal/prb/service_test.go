package prb

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kanon/internal/auditchain"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
)

type PRBServiceSuite struct {
	suite.Suite
	auditStore *auditchain.InMemoryStore
	service    *Service
	ctx        context.Context
}

func TestPRBServiceSuite(t *testing.T) {
	suite.Run(t, new(PRBServiceSuite))
}

func (s *PRBServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.auditStore = auditchain.NewInMemoryStore()
	audit, err := auditchain.NewService(s.auditStore, auditchain.WithLogger(logger))
	s.Require().NoError(err)

	svc, err := NewService(NewInMemoryStore(), audit, Config{
		BaseBudget:     domain.RiskFromUnits(10.0),
		RulesetVersion: "1.0.0",
	}, WithLogger(logger))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = context.Background()
}

func newCampaignID() domain.CampaignID {
	return domain.CampaignID(uuid.New())
}

func (s *PRBServiceSuite) TestAllocate() {
	s.Run("no profile gets the flat base budget", func() {
		campaign := newCampaignID()
		budget, err := s.service.Allocate(s.ctx, campaign, nil)
		s.Require().NoError(err)
		s.Equal(domain.RiskFromUnits(10.0), budget.Allocated)
		s.Equal(StatusAllocated, budget.Status)
		s.Equal("1.0.0", budget.RulesetVersion)
		s.Equal(domain.RiskFromUnits(10.0), budget.Remaining())
	})

	s.Run("risk level scales the allocation by half the base per level", func() {
		budget, err := s.service.Allocate(s.ctx, newCampaignID(), &RiskProfile{RiskLevel: 2})
		s.Require().NoError(err)
		s.Equal(domain.RiskFromUnits(20.0), budget.Allocated)
	})

	s.Run("second allocation for the same campaign fails", func() {
		campaign := newCampaignID()
		_, err := s.service.Allocate(s.ctx, campaign, nil)
		s.Require().NoError(err)

		_, err = s.service.Allocate(s.ctx, campaign, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("allocation emits a chained receipt", func() {
		campaign := newCampaignID()
		_, err := s.service.Allocate(s.ctx, campaign, nil)
		s.Require().NoError(err)

		receipts, err := s.auditStore.List(s.ctx, auditchain.Filter{
			ResourceID: campaign.String(),
			EventType:  auditchain.EventPRBAllocated,
		})
		s.Require().NoError(err)
		s.Len(receipts, 1)
	})
}

func (s *PRBServiceSuite) TestLock() {
	s.Run("lock sets status and timestamp", func() {
		campaign := newCampaignID()
		_, err := s.service.Allocate(s.ctx, campaign, nil)
		s.Require().NoError(err)

		locked, err := s.service.Lock(s.ctx, campaign)
		s.Require().NoError(err)
		s.Equal(StatusLocked, locked.Status)
		s.Require().NotNil(locked.LockedAt)
	})

	s.Run("lock without allocation fails not found", func() {
		_, err := s.service.Lock(s.ctx, newCampaignID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("double lock fails invalid state", func() {
		campaign := newCampaignID()
		_, err := s.service.Allocate(s.ctx, campaign, nil)
		s.Require().NoError(err)
		_, err = s.service.Lock(s.ctx, campaign)
		s.Require().NoError(err)

		_, err = s.service.Lock(s.ctx, campaign)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("allocation is immutable after lock", func() {
		campaign := newCampaignID()
		before, err := s.service.Allocate(s.ctx, campaign, nil)
		s.Require().NoError(err)
		_, err = s.service.Lock(s.ctx, campaign)
		s.Require().NoError(err)

		_, err = s.service.Allocate(s.ctx, campaign, &RiskProfile{RiskLevel: 3})
		s.Require().Error(err)

		after, err := s.service.Get(s.ctx, campaign)
		s.Require().NoError(err)
		s.Equal(before.Allocated, after.Allocated)
	})
}

// Allocate 10.00, lock, consume 3.00, then an 8.00 consume must fail without
// touching the remaining 7.00.
func (s *PRBServiceSuite) TestConsume() {
	campaign := newCampaignID()
	_, err := s.service.Allocate(s.ctx, campaign, nil)
	s.Require().NoError(err)
	_, err = s.service.Lock(s.ctx, campaign)
	s.Require().NoError(err)

	budget, err := s.service.Consume(s.ctx, campaign, "transform-1", "SCREENING", domain.RiskFromUnits(3.0))
	s.Require().NoError(err)
	s.Equal(domain.RiskFromUnits(7.0), budget.Remaining())
	s.Equal(StatusLocked, budget.Status)

	_, err = s.service.Consume(s.ctx, campaign, "transform-2", "SCREENING", domain.RiskFromUnits(8.0))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBudgetExhausted))

	unchanged, err := s.service.Get(s.ctx, campaign)
	s.Require().NoError(err)
	s.Equal(domain.RiskFromUnits(7.0), unchanged.Remaining())

	s.Run("consumption log holds only the successful deduction", func() {
		entries, err := s.service.Consumptions(s.ctx, campaign)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("transform-1", entries[0].TransformID)
		s.Equal(domain.RiskFromUnits(3.0), entries[0].Cost)
		s.Equal(domain.RiskFromUnits(7.0), entries[0].RemainingAfter)
	})

	s.Run("exact drain flips status to exhausted", func() {
		budget, err := s.service.Consume(s.ctx, campaign, "transform-3", "SCREENING", domain.RiskFromUnits(7.0))
		s.Require().NoError(err)
		s.Equal(domain.Risk(0), budget.Remaining())
		s.Equal(StatusExhausted, budget.Status)
	})

	s.Run("consume on unknown campaign fails not found", func() {
		_, err := s.service.Consume(s.ctx, newCampaignID(), "transform-1", "SCREENING", domain.RiskFromUnits(1.0))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-positive cost is rejected", func() {
		_, err := s.service.Consume(s.ctx, campaign, "transform-1", "SCREENING", 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// Concurrent consumers must never drive remaining below zero and the sum
// consumed plus remaining must equal the allocation throughout.
func (s *PRBServiceSuite) TestConsumeConcurrent() {
	campaign := newCampaignID()
	_, err := s.service.Allocate(s.ctx, campaign, nil)
	s.Require().NoError(err)
	_, err = s.service.Lock(s.ctx, campaign)
	s.Require().NoError(err)

	const workers = 25
	cost := domain.RiskFromUnits(1.0)

	var wg sync.WaitGroup
	wg.Add(workers)
	successes := make(chan struct{}, workers)
	for range workers {
		go func() {
			defer wg.Done()
			if _, err := s.service.Consume(s.ctx, campaign, "transform-1", "SCREENING", cost); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	budget, err := s.service.Get(s.ctx, campaign)
	s.Require().NoError(err)
	s.GreaterOrEqual(int64(budget.Remaining()), int64(0))
	s.Equal(budget.Allocated, budget.Consumed+budget.Remaining())
	s.Equal(int64(len(successes))*int64(cost), int64(budget.Consumed))
}

func (s *PRBServiceSuite) TestCanConsume() {
	campaign := newCampaignID()
	_, err := s.service.Allocate(s.ctx, campaign, nil)
	s.Require().NoError(err)

	ok, err := s.service.CanConsume(s.ctx, campaign, domain.RiskFromUnits(10.0))
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.CanConsume(s.ctx, campaign, domain.RiskFromUnits(10.5))
	s.Require().NoError(err)
	s.False(ok)

	s.Run("pure read appends nothing to the chain", func() {
		before, err := s.auditStore.ListAll(s.ctx)
		s.Require().NoError(err)
		_, err = s.service.CanConsume(s.ctx, campaign, domain.RiskFromUnits(1.0))
		s.Require().NoError(err)
		after, err := s.auditStore.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Len(after, len(before))
	})
}
