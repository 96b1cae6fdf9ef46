//go:build integration

package prb_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"kanon/internal/migrate"
	"kanon/internal/prb"
	"kanon/pkg/domain"
	"kanon/pkg/ids"
	"kanon/pkg/platform/sentinel"
)

// Run with: go test -tags=integration -timeout 120s ./internal/prb/...
func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("kanon_test"),
		tcpostgres.WithUsername("kanon"),
		tcpostgres.WithPassword("kanon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrate.NewManager(db, "../../migrations/sql").Up(ctx))

	store := prb.NewPostgresStore(db)
	campaignID := domain.CampaignID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)

	budget := prb.Budget{
		ID:             ids.New(),
		CampaignID:     campaignID,
		Allocated:      domain.RiskFromUnits(15),
		Consumed:       0,
		Status:         prb.StatusAllocated,
		RulesetVersion: "1.0.0",
		Version:        1,
		CreatedAt:      now,
	}

	t.Run("create and read back", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, budget))

		got, err := store.GetByCampaign(ctx, campaignID)
		require.NoError(t, err)
		require.Equal(t, budget.ID, got.ID)
		require.Equal(t, budget.Allocated, got.Allocated)
		require.Equal(t, prb.StatusAllocated, got.Status)
	})

	t.Run("duplicate campaign conflicts", func(t *testing.T) {
		dup := budget
		dup.ID = ids.New()
		require.ErrorIs(t, store.Create(ctx, dup), sentinel.ErrConflict)
	})

	t.Run("version-guarded update", func(t *testing.T) {
		current, err := store.GetByCampaign(ctx, campaignID)
		require.NoError(t, err)

		lockedAt := now.Add(time.Second)
		current.Status = prb.StatusLocked
		current.LockedAt = &lockedAt
		updated, err := store.Update(ctx, current)
		require.NoError(t, err)
		require.Equal(t, current.Version+1, updated.Version)

		// Updating with the original stale version must lose.
		stale := current
		stale.Consumed = domain.RiskFromUnits(3)
		_, err = store.Update(ctx, stale)
		require.ErrorIs(t, err, sentinel.ErrVersionConflict)
	})

	t.Run("consumption log", func(t *testing.T) {
		entry := prb.ConsumptionEntry{
			ID:             ids.New(),
			CampaignID:     campaignID,
			TransformID:    "transform-1",
			OperationType:  "AGGREGATE",
			Cost:           domain.RiskFromUnits(3),
			RemainingAfter: domain.RiskFromUnits(12),
			CreatedAt:      now.Add(2 * time.Second),
		}
		require.NoError(t, store.AppendConsumption(ctx, entry))

		entries, err := store.ListConsumptions(ctx, campaignID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, entry.TransformID, entries[0].TransformID)
		require.Equal(t, entry.Cost, entries[0].Cost)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, err := store.GetByCampaign(ctx, domain.CampaignID(uuid.New()))
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
