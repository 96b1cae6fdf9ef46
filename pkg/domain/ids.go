// Package domain holds shared value types used across governance modules.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-assignment (a CampaignID can never be passed where a RequesterID is
// expected). Construct via the Parse helpers at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "kanon/pkg/domain-errors"
)

// CampaignID identifies a data-acquisition campaign.
type CampaignID uuid.UUID

// RequesterID identifies a data requester (buyer side).
type RequesterID uuid.UUID

// DataSubjectID identifies a data subject (seller side).
type DataSubjectID uuid.UUID

// ConsentID identifies a consent contract.
type ConsentID uuid.UUID

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

// ParseCampaignID constructs a CampaignID from external input.
func ParseCampaignID(s string) (CampaignID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CampaignID{}, err
	}
	return CampaignID(u), nil
}

// ParseRequesterID constructs a RequesterID from external input.
func ParseRequesterID(s string) (RequesterID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RequesterID{}, err
	}
	return RequesterID(u), nil
}

// ParseDataSubjectID constructs a DataSubjectID from external input.
func ParseDataSubjectID(s string) (DataSubjectID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DataSubjectID{}, err
	}
	return DataSubjectID(u), nil
}

// ParseConsentID constructs a ConsentID from external input.
func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ConsentID{}, err
	}
	return ConsentID(u), nil
}

func (id CampaignID) String() string    { return uuid.UUID(id).String() }
func (id RequesterID) String() string   { return uuid.UUID(id).String() }
func (id DataSubjectID) String() string { return uuid.UUID(id).String() }
func (id ConsentID) String() string     { return uuid.UUID(id).String() }

func (id CampaignID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequesterID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DataSubjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
