package linkage

import (
	"sort"
	"time"
)

// Config carries the detector's thresholds.
type Config struct {
	// Window bounds the analysis to recent history.
	Window time.Duration
	// SimilarityThreshold is the score at or above which a consecutive pair
	// counts as similar.
	SimilarityThreshold float64
	// MaxSimilar is the similar-pair count that escalates to HIGH.
	MaxSimilar int
	// VolumeCeiling is the windowed query count that escalates to MEDIUM.
	VolumeCeiling int
	// NarrowingRatio is the fraction of consecutive pairs with strictly
	// increasing cost that flags narrowing.
	NarrowingRatio float64
}

// Detector scores query windows. Stateless and safe for concurrent use.
type Detector struct {
	cfg        Config
	similarity SimilarityFunc
}

// NewDetector creates a detector with the given similarity measure.
func NewDetector(similarity SimilarityFunc, cfg Config) *Detector {
	if similarity == nil {
		similarity = PrefixSimilarity(8)
	}
	if cfg.NarrowingRatio <= 0 {
		cfg.NarrowingRatio = 0.7
	}
	return &Detector{cfg: cfg, similarity: similarity}
}

// Assess scores the queries falling inside the window ending at now.
//
// LOW is the default. Volume above the ceiling or a similar-pair count at
// half the maximum escalates to MEDIUM. Reaching the maximum similar-pair
// count, or a dominant narrowing trend, escalates to HIGH and blocks.
func (d *Detector) Assess(now time.Time, queries []Query) Assessment {
	windowStart := now.Add(-d.cfg.Window)
	assessment := Assessment{
		Level:       RiskLow,
		WindowStart: windowStart,
		WindowEnd:   now,
	}

	windowed := make([]Query, 0, len(queries))
	for _, q := range queries {
		if !q.Timestamp.Before(windowStart) && !q.Timestamp.After(now) {
			windowed = append(windowed, q)
		}
	}
	sort.Slice(windowed, func(i, j int) bool {
		return windowed[i].Timestamp.Before(windowed[j].Timestamp)
	})
	assessment.TotalQueries = len(windowed)
	if len(windowed) < 2 {
		return assessment
	}

	increasing := 0
	for i := 1; i < len(windowed); i++ {
		score := d.similarity(windowed[i-1].Hash, windowed[i].Hash)
		if score > assessment.Score {
			assessment.Score = score
		}
		if score >= d.cfg.SimilarityThreshold {
			assessment.SimilarCount++
		}
		if windowed[i].Cost > windowed[i-1].Cost {
			increasing++
		}
	}

	pairs := len(windowed) - 1
	assessment.NarrowingDetected = float64(increasing)/float64(pairs) >= d.cfg.NarrowingRatio

	switch {
	case assessment.SimilarCount >= d.cfg.MaxSimilar || assessment.NarrowingDetected:
		assessment.Level = RiskHigh
		assessment.Blocked = true
	case assessment.TotalQueries > d.cfg.VolumeCeiling || assessment.SimilarCount >= (d.cfg.MaxSimilar+1)/2:
		assessment.Level = RiskMedium
	}
	return assessment
}
