package linkage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanon/pkg/domain"
)

func defaultConfig() Config {
	return Config{
		Window:              24 * time.Hour,
		SimilarityThreshold: 0.8,
		MaxSimilar:          10,
		VolumeCeiling:       20,
		NarrowingRatio:      0.7,
	}
}

func queriesAt(now time.Time, hashes ...string) []Query {
	out := make([]Query, len(hashes))
	for i, h := range hashes {
		out[i] = Query{
			Hash:      h,
			Cost:      domain.RiskFromUnits(0.01),
			Timestamp: now.Add(time.Duration(i-len(hashes)) * time.Minute),
		}
	}
	return out
}

func TestDetectorAssess(t *testing.T) {
	detector := NewDetector(nil, defaultConfig())
	now := time.Now().UTC()

	t.Run("empty history is low risk", func(t *testing.T) {
		a := detector.Assess(now, nil)
		assert.Equal(t, RiskLow, a.Level)
		assert.False(t, a.Blocked)
	})

	t.Run("distinct queries stay low", func(t *testing.T) {
		a := detector.Assess(now, queriesAt(now, "aaaaaaaa", "bbbbbbbb", "cccccccc"))
		assert.Equal(t, RiskLow, a.Level)
		assert.Zero(t, a.SimilarCount)
	})

	// Eleven near-identical queries give ten similar consecutive pairs,
	// hitting max-similar.
	t.Run("max similar pairs blocks at high risk", func(t *testing.T) {
		hashes := make([]string, 11)
		for i := range hashes {
			hashes[i] = "deadbeefcafe"
		}
		a := detector.Assess(now, queriesAt(now, hashes...))
		require.Equal(t, RiskHigh, a.Level)
		assert.True(t, a.Blocked)
		assert.Equal(t, 10, a.SimilarCount)
	})

	t.Run("half the ceiling escalates to medium", func(t *testing.T) {
		hashes := make([]string, 6)
		for i := range hashes {
			hashes[i] = "deadbeefcafe"
		}
		a := detector.Assess(now, queriesAt(now, hashes...))
		assert.Equal(t, RiskMedium, a.Level)
		assert.False(t, a.Blocked)
	})

	t.Run("volume above ceiling escalates to medium", func(t *testing.T) {
		hashes := make([]string, 21)
		for i := range hashes {
			hashes[i] = fmt.Sprintf("%08x-distinct", i*7919)
		}
		a := detector.Assess(now, queriesAt(now, hashes...))
		assert.Equal(t, RiskMedium, a.Level)
		assert.Equal(t, 21, a.TotalQueries)
	})

	t.Run("queries outside the window are ignored", func(t *testing.T) {
		old := make([]Query, 11)
		for i := range old {
			old[i] = Query{
				Hash:      "deadbeefcafe",
				Cost:      domain.RiskFromUnits(0.01),
				Timestamp: now.Add(-25 * time.Hour),
			}
		}
		a := detector.Assess(now, old)
		assert.Equal(t, RiskLow, a.Level)
		assert.Zero(t, a.TotalQueries)
	})
}

func TestDetectorNarrowing(t *testing.T) {
	detector := NewDetector(nil, defaultConfig())
	now := time.Now().UTC()

	makeQueries := func(costs ...float64) []Query {
		out := make([]Query, len(costs))
		for i, c := range costs {
			out[i] = Query{
				Hash:      fmt.Sprintf("%08x-narrow", i*104729),
				Cost:      domain.RiskFromUnits(c),
				Timestamp: now.Add(time.Duration(i-len(costs)) * time.Minute),
			}
		}
		return out
	}

	t.Run("strictly increasing costs flag narrowing and block", func(t *testing.T) {
		a := detector.Assess(now, makeQueries(0.01, 0.02, 0.03, 0.04, 0.05))
		require.True(t, a.NarrowingDetected)
		assert.Equal(t, RiskHigh, a.Level)
		assert.True(t, a.Blocked)
	})

	t.Run("flat costs do not flag narrowing", func(t *testing.T) {
		a := detector.Assess(now, makeQueries(0.02, 0.02, 0.02, 0.02, 0.02))
		assert.False(t, a.NarrowingDetected)
		assert.Equal(t, RiskLow, a.Level)
	})

	t.Run("trend below the ratio does not flag", func(t *testing.T) {
		// Two of four consecutive pairs increase: 50% < 70%.
		a := detector.Assess(now, makeQueries(0.01, 0.02, 0.01, 0.02, 0.01))
		assert.False(t, a.NarrowingDetected)
	})
}

func TestPrefixSimilarity(t *testing.T) {
	sim := PrefixSimilarity(8)

	assert.Equal(t, 1.0, sim("deadbeef-x", "deadbeef-y"))
	assert.Equal(t, 0.5, sim("deadxxxx", "deadyyyy"))
	assert.Equal(t, 0.0, sim("aaaa", "bbbb"))
	assert.Equal(t, 0.0, sim("", "deadbeef"))

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, sim("deadbe", "deadbeef"), sim("deadbeef", "deadbe"))
	})
}
