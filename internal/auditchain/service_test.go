package auditchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"kanon/pkg/platform/sentinel"
)

type AuditChainServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
	ctx     context.Context
}

func TestAuditChainServiceSuite(t *testing.T) {
	suite.Run(t, new(AuditChainServiceSuite))
}

func (s *AuditChainServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	svc, err := NewService(s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = context.Background()
}

func (s *AuditChainServiceSuite) append(eventType EventType, actorID, resourceID string) Receipt {
	r, err := s.service.Append(s.ctx, eventType, actorID, ActorRequester, resourceID, "campaign", DetailsHash(map[string]string{"k": "v"}))
	s.Require().NoError(err)
	return r
}

func (s *AuditChainServiceSuite) TestAppend() {
	s.Run("first receipt links to genesis", func() {
		r := s.append(EventPRBAllocated, "req-1", "campaign-1")
		s.Equal(GenesisHash, r.PreviousHash)
		s.NotEmpty(r.ReceiptHash)
		s.NotEmpty(r.ID)
		s.False(r.CreatedAt.IsZero())
	})

	s.Run("subsequent receipts link to their predecessor", func() {
		first := s.append(EventPRBLocked, "req-1", "campaign-1")
		second := s.append(EventPRBConsumed, "req-1", "campaign-1")
		s.Equal(first.ReceiptHash, second.PreviousHash)
	})

	s.Run("receipt hash matches recomputation", func() {
		r := s.append(EventPolicyEvaluated, "req-2", "campaign-2")
		expected := ComputeReceiptHash(r.EventType, r.ActorID, r.ResourceID, r.DetailsHash, r.PreviousHash)
		s.Equal(expected, r.ReceiptHash)
	})
}

// Concurrent appends must still produce a single linear chain: exactly one
// receipt links to genesis and every hash appears as a previous hash at most
// once.
func (s *AuditChainServiceSuite) TestAppendConcurrent() {
	const writers = 32

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := range writers {
		go func() {
			defer wg.Done()
			_, err := s.service.Append(s.ctx, EventPRBConsumed, fmt.Sprintf("req-%d", i), ActorRequester, "campaign-1", "campaign", "")
			s.NoError(err)
		}()
	}
	wg.Wait()

	receipts, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(receipts, writers)

	result := VerifyChain(receipts)
	s.True(result.Valid, result.Reason)

	seen := map[string]int{}
	for _, r := range receipts {
		seen[r.PreviousHash]++
	}
	s.Equal(1, seen[GenesisHash])
	for prev, n := range seen {
		s.Equal(1, n, "previous hash %s referenced %d times", prev, n)
	}
}

func (s *AuditChainServiceSuite) TestVerify() {
	s.Run("empty chain is valid", func() {
		result, err := s.service.Verify(s.ctx)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Zero(result.Length)
	})

	s.Run("intact chain verifies", func() {
		for range 5 {
			s.append(EventPairwiseConsumed, "req-1", "ds-1:req-1")
		}
		result, err := s.service.Verify(s.ctx)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal(5, result.Length)
	})
}

func (s *AuditChainServiceSuite) TestVerifyDetectsTampering() {
	s.Run("mutated field breaks verification at that receipt", func() {
		s.append(EventPRBAllocated, "req-1", "campaign-1")
		victim := s.append(EventPRBConsumed, "req-1", "campaign-1")
		s.append(EventPRBConsumed, "req-1", "campaign-1")

		s.store.mu.Lock()
		s.store.receipts[s.store.byID[victim.ID]].ActorID = "someone-else"
		s.store.mu.Unlock()

		result, err := s.service.Verify(s.ctx)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(victim.ID, result.FirstBroken)
	})

	s.Run("relinked chain still fails on hash recomputation", func() {
		first := s.append(EventPRBAllocated, "req-2", "campaign-2")
		second := s.append(EventPRBConsumed, "req-2", "campaign-2")

		// An attacker who rewrites a receipt and its stored hash cannot fix
		// the successor's previous-hash link without rewriting it too.
		s.store.mu.Lock()
		tampered := &s.store.receipts[s.store.byID[first.ID]]
		tampered.DetailsHash = DetailsHash(map[string]string{"cost": "0.0"})
		tampered.ReceiptHash = ComputeReceiptHash(tampered.EventType, tampered.ActorID, tampered.ResourceID, tampered.DetailsHash, tampered.PreviousHash)
		s.store.mu.Unlock()

		result, err := s.service.Verify(s.ctx)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(second.ID, result.FirstBroken)
	})
}

func (s *AuditChainServiceSuite) TestVerifyReceipt() {
	s.Run("intact receipt passes both checks", func() {
		s.append(EventCohortBlock, "req-1", "cohort-1")
		r := s.append(EventLinkageBlock, "req-1", "ds-1")

		check, err := s.service.VerifyReceipt(s.ctx, r.ID)
		s.Require().NoError(err)
		s.True(check.HashValid)
		s.True(check.LinkValid)
		s.True(check.Valid)
	})

	s.Run("unknown receipt returns not found", func() {
		_, err := s.service.VerifyReceipt(s.ctx, "01K00000000000000000000000")
		s.Require().Error(err)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *AuditChainServiceSuite) TestList() {
	s.append(EventPRBAllocated, "req-1", "campaign-1")
	s.append(EventPRBConsumed, "req-1", "campaign-1")
	s.append(EventPRBAllocated, "req-2", "campaign-2")

	s.Run("filter by actor", func() {
		receipts, err := s.service.List(s.ctx, Filter{ActorID: "req-1"})
		s.Require().NoError(err)
		s.Len(receipts, 2)
	})

	s.Run("filter by event type", func() {
		receipts, err := s.service.List(s.ctx, Filter{EventType: EventPRBConsumed})
		s.Require().NoError(err)
		s.Len(receipts, 1)
	})

	s.Run("limit caps the result set", func() {
		receipts, err := s.service.List(s.ctx, Filter{Limit: 2})
		s.Require().NoError(err)
		s.Len(receipts, 2)
	})
}

// flakyMirror fails every publish; appends must still succeed.
type flakyMirror struct{ calls int }

func (m *flakyMirror) Publish(context.Context, Receipt) error {
	m.calls++
	return errors.New("broker unavailable")
}

func (s *AuditChainServiceSuite) TestMirrorFailureDoesNotBlockAppend() {
	mirror := &flakyMirror{}
	svc, err := NewService(NewInMemoryStore(),
		WithMirror(mirror),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	_, err = svc.Append(s.ctx, EventPRBAllocated, "req-1", ActorRequester, "campaign-1", "campaign", "")
	s.Require().NoError(err)
	s.Equal(1, mirror.calls)
}
