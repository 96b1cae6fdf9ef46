// Package linkage classifies recent query history for deanonymization risk.
// The detector is a pure classifier: it never mutates budgets, it only scores
// a window of queries and reports whether the sequence looks like a
// narrowing or triangulation attack.
package linkage

import (
	"time"

	"kanon/pkg/domain"
)

// RiskLevel orders assessment severity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Query is one fingerprinted query inside the analysis window.
type Query struct {
	Hash      string
	Cost      domain.Risk
	Timestamp time.Time
}

// Assessment is the detector's verdict over one window.
type Assessment struct {
	Level RiskLevel
	// Blocked is true exactly when Level is HIGH.
	Blocked bool
	// SimilarCount is the number of consecutive query pairs scoring at or
	// above the similarity threshold.
	SimilarCount int
	// NarrowingDetected reports a dominant strictly-increasing cost trend.
	NarrowingDetected bool
	TotalQueries      int
	// Score is the highest pairwise similarity observed.
	Score       float64
	WindowStart time.Time
	WindowEnd   time.Time
}

// RateLimitRecord captures a HIGH-risk window for later investigation.
type RateLimitRecord struct {
	ID              string
	RequesterID     domain.RequesterID
	QueryHash       string
	SimilarityScore float64
	QueryCount      int
	WindowStart     time.Time
	WindowEnd       time.Time
	Blocked         bool
	CreatedAt       time.Time
}
