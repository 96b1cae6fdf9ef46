// Package config builds runtime configuration from the environment so main
// stays lean. Every governance knob has a documented default; production
// deployments override via env.
package config

import (
	"os"
	"strconv"
	"time"

	id "kanon/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres captures database connection configuration.
type Postgres struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Redis captures cache connection configuration. An empty URL disables Redis
// and the cohort cache falls back to the in-memory store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the audit outbox relay configuration. Empty brokers disable
// the relay; the chain store remains the source of truth either way.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Governance captures the privacy-governance parameters. Defaults mirror the
// documented policy defaults; they are sample business parameters, not derived
// constants, which is why they all live here rather than in code.
type Governance struct {
	// KMin is the minimum cohort size any discovery query must match.
	KMin int
	// CohortCacheTTL bounds how long a cohort estimate may be served from cache.
	CohortCacheTTL time.Duration
	// BroadeningCeiling is the largest multiplicative factor the engine may
	// apply when broadening an undersized cohort.
	BroadeningCeiling int
	// LinkageWindow is the rolling window inspected for linkage attacks.
	LinkageWindow time.Duration
	// LinkageMaxSimilar is the similar-query count that forces a block.
	LinkageMaxSimilar int
	// LinkageVolumeCeiling is the per-window query count that elevates risk.
	LinkageVolumeCeiling int
	// SimilarityThreshold is the [0,1] score at or above which two query
	// fingerprints count as similar.
	SimilarityThreshold float64
	// RulesetVersion tags every PRB and decision receipt.
	RulesetVersion string
	// BaseBudget is the PRB base amount before the risk multiplier.
	BaseBudget id.Risk
	// MaxCostPerQuery caps the cost of any single pairwise query regardless
	// of remaining balance.
	MaxCostPerQuery id.Risk
	// PairwiseDefaultBudget is the epsilon allocated to a new
	// (data subject, requester) pair when the caller gives no amount.
	PairwiseDefaultBudget id.Risk
	// PairwiseMaxSimilar is the similar-query ceiling for per-pair
	// deanonymization checks (half of it elevates risk to MEDIUM).
	PairwiseMaxSimilar int
}

// Config is the root configuration.
type Config struct {
	Server     Server
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Governance Governance
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envString("KANON_ADDR", ":8080"),
			JWTSigningKey: envString("KANON_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL:          os.Getenv("KANON_POSTGRES_URL"),
			MaxOpenConns: envInt("KANON_POSTGRES_MAX_OPEN", 16),
			MaxIdleConns: envInt("KANON_POSTGRES_MAX_IDLE", 4),
		},
		Redis: Redis{
			URL:          os.Getenv("KANON_REDIS_URL"),
			PoolSize:     envInt("KANON_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("KANON_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("KANON_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("KANON_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("KANON_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KANON_KAFKA_BROKERS")),
			Topic:   envString("KANON_KAFKA_AUDIT_TOPIC", "kanon.audit.receipts"),
		},
		Governance: DefaultGovernance(),
	}
}

// DefaultGovernance returns the documented governance defaults, overridable
// via env.
func DefaultGovernance() Governance {
	return Governance{
		KMin:                  envInt("KANON_K_MIN", 50),
		CohortCacheTTL:        envDuration("KANON_COHORT_CACHE_TTL", time.Hour),
		BroadeningCeiling:     envInt("KANON_BROADENING_CEILING", 4),
		LinkageWindow:         envDuration("KANON_LINKAGE_WINDOW", 24*time.Hour),
		LinkageMaxSimilar:     envInt("KANON_LINKAGE_MAX_SIMILAR", 10),
		LinkageVolumeCeiling:  envInt("KANON_LINKAGE_VOLUME_CEILING", 20),
		SimilarityThreshold:   envFloat("KANON_SIMILARITY_THRESHOLD", 0.8),
		RulesetVersion:        envString("KANON_RULESET_VERSION", "1.0.0"),
		BaseBudget:            envRisk("KANON_BASE_BUDGET", "10.0"),
		MaxCostPerQuery:       envRisk("KANON_MAX_COST_PER_QUERY", "0.1"),
		PairwiseDefaultBudget: envRisk("KANON_PAIRWISE_DEFAULT_BUDGET", "1.0"),
		PairwiseMaxSimilar:    envInt("KANON_PAIRWISE_MAX_SIMILAR", 5),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envRisk(key, def string) id.Risk {
	if v := os.Getenv(key); v != "" {
		if r, err := id.ParseRisk(v); err == nil && r > 0 {
			return r
		}
	}
	r, _ := id.ParseRisk(def)
	return r
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
