package archive_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-engine/archive"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *archive.Store {
	store, err := archive.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func rec(filename, date, subtotal string) archive.Record {
	return archive.Record{
		Filename:      filename,
		InvoiceNumber: "ACM-01-01-250601",
		CanonicalID:   "ACM-01-01-250601",
		ClientID:      "acme",
		Date:          date,
		Currency:      "INR",
		Subtotal:      decimal.RequireFromString(subtotal),
		TaxTotal:      decimal.Zero,
		FinalTotal:    decimal.RequireFromString(subtotal),
		ExchangeRate:  decimal.Zero,
		GeneratedAt:   time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestStore_UpsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, rec("b.yaml", "2025-06-01", "1000.50")))
	require.NoError(t, store.Upsert(ctx, rec("a.yaml", "2025-05-01", "2000")))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// ordered by invoice date
	assert.Equal(t, "a.yaml", records[0].Filename)
	assert.Equal(t, "b.yaml", records[1].Filename)
	assert.Equal(t, "1000.5", records[1].Subtotal.String())
	assert.Equal(t, "INR", records[1].Currency)
}

func TestStore_UpsertReplacesByFilename(t *testing.T) {
	// Regeneration must not duplicate the summary row.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, rec("a.yaml", "2025-05-01", "1000")))
	require.NoError(t, store.Upsert(ctx, rec("a.yaml", "2025-05-02", "1500")))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2025-05-02", records[0].Date)
	assert.Equal(t, "1500", records[0].Subtotal.String())
}

func TestStore_BetweenIsInclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, rec("mar.yaml", "2025-03-31", "1")))
	require.NoError(t, store.Upsert(ctx, rec("apr.yaml", "2025-04-01", "2")))
	require.NoError(t, store.Upsert(ctx, rec("next.yaml", "2026-04-01", "4")))

	records, err := store.Between(ctx, "2025-04-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "apr.yaml", records[0].Filename)
}
