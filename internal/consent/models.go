// Package consent tracks consent contracts between data subjects and the
// platform. The decision engine consults contract validity during rule
// evaluation; grants and revocations are recorded here and audit-chained.
package consent

import (
	"time"

	"kanon/pkg/domain"
)

// Status is the lifecycle state of a consent contract.
type Status string

const (
	StatusGranted Status = "GRANTED"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

// Record is one consent contract. A revoked or expired contract never
// authorizes access again; a new grant creates a new contract.
type Record struct {
	ID            domain.ConsentID
	DataSubjectID domain.DataSubjectID
	Purpose       string
	Status        Status
	GrantedAt     time.Time
	ExpiresAt     *time.Time
	RevokedAt     *time.Time
}

// ValidAt reports whether the contract authorizes access at the given time.
func (r Record) ValidAt(now time.Time) bool {
	if r.Status != StatusGranted {
		return false
	}
	if r.RevokedAt != nil && !now.Before(*r.RevokedAt) {
		return false
	}
	return r.ExpiresAt == nil || now.Before(*r.ExpiresAt)
}
