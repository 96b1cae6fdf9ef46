package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kanon/internal/cohort"
	"kanon/internal/linkage"
	"kanon/internal/pairwise"
	"kanon/pkg/domain"
	"kanon/pkg/requestcontext"
)

// signalTimeout bounds the parallel signal fetches for one evaluation.
const signalTimeout = 5 * time.Second

// errSignalPanic marks a collaborator panic caught on a signal goroutine.
// errgroup does not recover panics on its own goroutines, so each fetch must
// catch its own; the engine maps this sentinel to a catastrophic-failure
// denial.
var errSignalPanic = errors.New("signal fetch panicked")

// guard runs fn and converts a panic into an error carrying errSignalPanic.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errSignalPanic, r)
			}
		}()
		return fn()
	}
}

// signals holds everything the rule and cohort stages consume. Nil pointers
// mean the signal was not gatherable for this context, which the rules treat
// as uncertainty where the signal was required.
type signals struct {
	cohortResult *cohort.CheckResult
	assessment   *linkage.Assessment
	pairBlocked  *bool
	consentValid *bool
}

// gatherSignals fetches cohort, linkage, and consent inputs in parallel with
// shared cancellation. Any fetch error aborts the evaluation; the engine
// converts it to a denial, never a pass.
func (s *Service) gatherSignals(ctx context.Context, pc Context) (*signals, error) {
	ctx, cancel := context.WithTimeout(ctx, signalTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	sig := &signals{}

	if pc.CohortCriteria != nil {
		kMin := pc.KMin
		if kMin <= 0 {
			kMin = s.cfg.KMin
		}
		g.Go(guard(func() error {
			start := time.Now()
			defer s.observeSignal("cohort", start)

			result, err := s.cohort.Check(ctx, cohort.Criteria(pc.CohortCriteria), kMin)
			if err != nil {
				return err
			}
			sig.cohortResult = &result
			return nil
		}))
	}

	if key, ok := pairKeyFrom(pc); ok {
		g.Go(guard(func() error {
			start := time.Now()
			defer s.observeSignal("linkage", start)

			blocked, err := s.pairwise.CheckBlocked(ctx, key)
			if err != nil {
				return err
			}
			sig.pairBlocked = &blocked
			if blocked {
				return nil
			}

			records, err := s.pairwise.RecentQueries(ctx, key)
			if err != nil {
				return err
			}
			assessment, err := s.linkage.AssessRisk(ctx, key.RequesterID, toLinkageQueries(records))
			if err != nil {
				return err
			}
			sig.assessment = &assessment
			return nil
		}))
	}

	if consentID, ok := consentIDFrom(pc); ok {
		g.Go(guard(func() error {
			start := time.Now()
			defer s.observeSignal("consent", start)

			valid, err := s.consent.ValidAt(ctx, consentID, requestcontext.Now(ctx).UTC())
			if err != nil {
				return err
			}
			sig.consentValid = &valid
			return nil
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sig, nil
}

// pairKeyFrom derives the pair key when both identifiers are present and
// well formed. A malformed or absent pair means there is no query history to
// assess.
func pairKeyFrom(pc Context) (pairwise.PairKey, bool) {
	if pc.DataSubjectID == "" || pc.RequesterID == "" {
		return pairwise.PairKey{}, false
	}
	subject, err := domain.ParseDataSubjectID(pc.DataSubjectID)
	if err != nil {
		return pairwise.PairKey{}, false
	}
	requester, err := domain.ParseRequesterID(pc.RequesterID)
	if err != nil {
		return pairwise.PairKey{}, false
	}
	return pairwise.PairKey{DataSubjectID: subject, RequesterID: requester}, true
}

// consentIDFrom parses the consent reference when one was supplied.
func consentIDFrom(pc Context) (domain.ConsentID, bool) {
	if pc.ConsentID == "" {
		return domain.ConsentID{}, false
	}
	id, err := domain.ParseConsentID(pc.ConsentID)
	if err != nil {
		return domain.ConsentID{}, false
	}
	return id, true
}

func toLinkageQueries(records []pairwise.QueryRecord) []linkage.Query {
	out := make([]linkage.Query, len(records))
	for i, r := range records {
		out[i] = linkage.Query{
			Hash:      r.QueryHash,
			Cost:      r.Cost,
			Timestamp: r.CreatedAt,
		}
	}
	return out
}
