package domain

import (
	"strings"

	dErrors "kanon/pkg/domain-errors"
)

// ConsentPurpose identifies why data is processed under a consent contract.
// Purposes are free-form labels, normalized to lowercase at the trust
// boundary so "Research" and "research" name the same purpose.
type ConsentPurpose string

const maxPurposeLength = 128

// ParseConsentPurpose normalizes and validates external purpose input.
//
// Errors: returns CodeInvalidInput when the value is blank or too long.
func ParseConsentPurpose(s string) (ConsentPurpose, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	if len(normalized) > maxPurposeLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose too long")
	}
	return ConsentPurpose(normalized), nil
}

func (p ConsentPurpose) String() string {
	return string(p)
}
