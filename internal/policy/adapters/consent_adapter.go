// Package adapters bridges the engine's ports onto the concrete services
// whose shapes differ from what the engine wants to consume.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kanon/internal/consent"
	"kanon/pkg/domain"
	"kanon/pkg/platform/sentinel"
)

// ConsentAdapter answers validity questions from the consent store. A
// missing contract is a definite "not valid", not an infrastructure error.
type ConsentAdapter struct {
	store consent.Store
}

// NewConsentAdapter wraps a consent store.
func NewConsentAdapter(store consent.Store) *ConsentAdapter {
	return &ConsentAdapter{store: store}
}

func (a *ConsentAdapter) ValidAt(ctx context.Context, id domain.ConsentID, at time.Time) (bool, error) {
	record, err := a.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get consent contract: %w", err)
	}
	return record.ValidAt(at), nil
}
