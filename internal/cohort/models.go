// Package cohort estimates how many data subjects match a set of eligibility
// criteria and classifies the estimate against a k-anonymity minimum.
//
// Only allowlisted filter fields influence the estimate. Arbitrary filters
// could be combined to triangulate an individual, so anything outside the
// allowlist is dropped before the criteria are canonicalized and hashed.
package cohort

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Allowlisted criteria keys.
const (
	KeyAccountType   = "account_type"
	KeyStatus        = "status"
	KeyCreatedAfter  = "created_after"
	KeyCreatedBefore = "created_before"
)

var allowedKeys = map[string]struct{}{
	KeyAccountType:   {},
	KeyStatus:        {},
	KeyCreatedAfter:  {},
	KeyCreatedBefore: {},
}

// Criteria is a requester-submitted eligibility filter map.
type Criteria map[string]string

// Sanitize returns a copy holding only allowlisted keys with non-empty
// values.
func (c Criteria) Sanitize() Criteria {
	out := make(Criteria, len(c))
	for k, v := range c {
		if _, ok := allowedKeys[k]; ok && v != "" {
			out[k] = v
		}
	}
	return out
}

// Hash returns the canonical cache key: allowlisted entries only, sorted by
// key, length-delimited so adjacent fields cannot be confused.
func (c Criteria) Hash() string {
	sanitized := c.Sanitize()
	keys := make([]string, 0, len(sanitized))
	for k := range sanitized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := sanitized[k]
		fmt.Fprintf(&b, "%d:%s=%d:%s|", len(k), k, len(v), v)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// CheckResult is the cacheable outcome of one cohort check.
type CheckResult struct {
	CriteriaHash   string    `json:"criteria_hash"`
	CohortSize     int       `json:"cohort_size"`
	KMinThreshold  int       `json:"k_min_threshold"`
	MeetsThreshold bool      `json:"meets_threshold"`
	ComputedAt     time.Time `json:"computed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the result must not be served at the given time.
func (r CheckResult) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
