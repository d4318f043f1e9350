package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle/db"
)

func setupTestDB(t *testing.T) *db.DB {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	if err := db.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return &db.DB{Bun: bunDB}
}

func TestDrawResultIsWrittenOnce(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	first := &models.DrawResult{
		Raffle:         "raffle-1",
		Authority:      "authority",
		Blockhash:      "hash-a",
		Slot:           12,
		Commitment:     "c",
		Seed:           "s",
		TicketCount:    2,
		DrawnAt:        time.Now().UTC(),
		WinningTickets: []string{"t1"},
		WinningWallets: []string{"w1"},
	}

	// Test case: first draw is recorded
	written, err := store.SaveDrawResult(ctx, first)
	require.NoError(t, err)
	assert.True(t, written)

	// Test case: a second draw never replaces it
	second := *first
	second.Blockhash = "hash-b"
	second.WinningTickets = []string{"t2"}
	second.WinningWallets = []string{"w2"}
	written, err = store.SaveDrawResult(ctx, &second)
	require.NoError(t, err)
	assert.False(t, written)

	got, err := store.GetDrawResult(ctx, "raffle-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", got.Blockhash)
	assert.Equal(t, []string{"t1"}, got.WinningTickets)
	assert.Equal(t, []string{"w1"}, got.WinningWallets)

	// Test case: unknown raffle
	_, err = store.GetDrawResult(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrDrawNotFound)
}

func TestIncrementPurchaseCount(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.IncrementPurchaseCount(ctx, "raffle-1", day))
	require.NoError(t, store.IncrementPurchaseCount(ctx, "raffle-1", day.Add(2*time.Hour)))
	require.NoError(t, store.IncrementPurchaseCount(ctx, "raffle-1", day.Add(24*time.Hour)))
	require.NoError(t, store.IncrementPurchaseCount(ctx, "raffle-2", day))

	counts, err := store.GetPurchaseCounts(ctx, "raffle-1")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, 1, counts[1].Count)
}
