package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kanon/internal/auditchain"
	auditHandler "kanon/internal/auditchain/handler"
	"kanon/internal/cohort"
	cohortHandler "kanon/internal/cohort/handler"
	"kanon/internal/consent"
	consentHandler "kanon/internal/consent/handler"
	jwttoken "kanon/internal/jwt_token"
	"kanon/internal/linkage"
	linkageHandler "kanon/internal/linkage/handler"
	"kanon/internal/pairwise"
	pairwiseHandler "kanon/internal/pairwise/handler"
	"kanon/internal/platform/config"
	"kanon/internal/platform/httpserver"
	"kanon/internal/platform/logger"
	platformredis "kanon/internal/platform/redis"
	"kanon/internal/policy"
	"kanon/internal/policy/adapters"
	policyHandler "kanon/internal/policy/handler"
	policymetrics "kanon/internal/policy/metrics"
	"kanon/internal/prb"
	prbHandler "kanon/internal/prb/handler"
	httptransport "kanon/internal/transport/http"

	platformpostgres "kanon/internal/platform/postgres"
)

// main wires stores, services, and the HTTP router. With no Postgres URL the
// engine runs entirely on in-memory stores, which is enough for local
// development and the test suites.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var db *sql.DB
	if cfg.Postgres.URL != "" {
		var err error
		db, err = platformpostgres.Open(cfg.Postgres)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit chain first; every other service appends receipts to it.
	var auditStore auditchain.Store
	if db != nil {
		auditStore = auditchain.NewPostgresStore(db)
	} else {
		auditStore = auditchain.NewInMemoryStore()
	}
	auditOpts := []auditchain.Option{auditchain.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		mirror, err := auditchain.NewKafkaMirror(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka mirror setup failed", "error", err)
			os.Exit(1)
		}
		defer mirror.Close()
		auditOpts = append(auditOpts, auditchain.WithMirror(mirror))
	}
	auditService, err := auditchain.NewService(auditStore, auditOpts...)
	if err != nil {
		log.Error("audit chain setup failed", "error", err)
		os.Exit(1)
	}

	var prbStore prb.Store
	if db != nil {
		prbStore = prb.NewPostgresStore(db)
	} else {
		prbStore = prb.NewInMemoryStore()
	}
	prbService, err := prb.NewService(prbStore, auditService, prb.Config{
		BaseBudget:     cfg.Governance.BaseBudget,
		RulesetVersion: cfg.Governance.RulesetVersion,
	}, prb.WithLogger(log))
	if err != nil {
		log.Error("prb setup failed", "error", err)
		os.Exit(1)
	}

	similarity := linkage.PrefixSimilarity(8)

	var pairwiseStore pairwise.Store
	if db != nil {
		pairwiseStore = pairwise.NewPostgresStore(db)
	} else {
		pairwiseStore = pairwise.NewInMemoryStore()
	}
	pairwiseService, err := pairwise.NewService(pairwiseStore, auditService,
		pairwise.SimilarityFunc(similarity), pairwise.Config{
			DefaultBudget:       cfg.Governance.PairwiseDefaultBudget,
			MaxCostPerQuery:     cfg.Governance.MaxCostPerQuery,
			Window:              cfg.Governance.LinkageWindow,
			MaxSimilar:          cfg.Governance.PairwiseMaxSimilar,
			SimilarityThreshold: cfg.Governance.SimilarityThreshold,
		}, pairwise.WithLogger(log))
	if err != nil {
		log.Error("pairwise setup failed", "error", err)
		os.Exit(1)
	}

	var (
		counter     cohort.PopulationCounter
		cohortCache cohort.Cache
	)
	if db != nil {
		counter = cohort.NewPostgresCounter(db)
	} else {
		counter = &cohort.StaticCounter{}
	}
	switch {
	case redisClient != nil:
		cohortCache = cohort.NewRedisCache(redisClient.Client)
	case db != nil:
		cohortCache = cohort.NewPostgresCache(db)
	default:
		cohortCache = cohort.NewInMemoryCache()
	}
	cohortService, err := cohort.NewService(counter, cohortCache, auditService, cohort.Config{
		KMin:     cfg.Governance.KMin,
		CacheTTL: cfg.Governance.CohortCacheTTL,
	}, cohort.WithLogger(log))
	if err != nil {
		log.Error("cohort setup failed", "error", err)
		os.Exit(1)
	}

	detector := linkage.NewDetector(similarity, linkage.Config{
		Window:              cfg.Governance.LinkageWindow,
		SimilarityThreshold: cfg.Governance.SimilarityThreshold,
		MaxSimilar:          cfg.Governance.LinkageMaxSimilar,
		VolumeCeiling:       cfg.Governance.LinkageVolumeCeiling,
	})
	var linkageStore linkage.Store
	if db != nil {
		linkageStore = linkage.NewPostgresStore(db)
	} else {
		linkageStore = linkage.NewInMemoryStore()
	}
	linkageService, err := linkage.NewService(detector, linkageStore, auditService,
		linkage.WithLogger(log))
	if err != nil {
		log.Error("linkage setup failed", "error", err)
		os.Exit(1)
	}

	var consentStore consent.Store
	if db != nil {
		consentStore = consent.NewPostgresStore(db)
	} else {
		consentStore = consent.NewInMemoryStore()
	}
	consentService, err := consent.NewService(consentStore, auditService,
		consent.WithLogger(log))
	if err != nil {
		log.Error("consent setup failed", "error", err)
		os.Exit(1)
	}

	var decisionStore policy.Store
	if db != nil {
		decisionStore = policy.NewPostgresStore(db)
	} else {
		decisionStore = policy.NewInMemoryStore()
	}
	policyService, err := policy.NewService(
		cohortService, linkageService, pairwiseService,
		adapters.NewConsentAdapter(consentStore),
		decisionStore, auditService,
		policy.Config{
			KMin:              cfg.Governance.KMin,
			BroadeningCeiling: cfg.Governance.BroadeningCeiling,
			PolicyVersion:     cfg.Governance.RulesetVersion,
		},
		policy.WithLogger(log),
		policy.WithMetrics(policymetrics.New()),
	)
	if err != nil {
		log.Error("policy engine setup failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "kanon", "kanon-api")

	router := httptransport.NewRouter(httptransport.Deps{
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Logger:    log,
		Policy:    policyHandler.New(policyService, log),
		PRB:       prbHandler.New(prbService, log),
		Pairwise:  pairwiseHandler.New(pairwiseService, log),
		Cohort:    cohortHandler.New(cohortService, log),
		Consent:   consentHandler.New(consentService, log),
		Linkage:   linkageHandler.New(linkageService, log),
		Audit:     auditHandler.New(auditService, log),
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting kanon", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
