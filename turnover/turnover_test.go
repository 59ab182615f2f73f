package turnover_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-engine/archive"
	"github.com/warp/invoice-engine/turnover"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func seedStore(t *testing.T, records ...archive.Record) *archive.Store {
	store, err := archive.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	for _, r := range records {
		require.NoError(t, store.Upsert(context.Background(), r))
	}
	return store
}

func inr(filename, date, subtotal string) archive.Record {
	return archive.Record{
		Filename:      filename,
		InvoiceNumber: "N",
		CanonicalID:   "N",
		Date:          date,
		Currency:      "INR",
		Subtotal:      decimal.RequireFromString(subtotal),
		GeneratedAt:   time.Now(),
	}
}

func usd(filename, date, subtotal, rate string) archive.Record {
	r := inr(filename, date, subtotal)
	r.Currency = "USD"
	r.ExchangeRate = decimal.RequireFromString(rate)
	return r
}

// =============================================================================
// FISCAL YEAR BOUNDS
// =============================================================================

func TestFiscalYearBounds(t *testing.T) {
	// March belongs to the previous fiscal year; April starts a new one.
	from, to, label := turnover.FiscalYearBounds(time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-04-01", from)
	assert.Equal(t, "2025-03-31", to)
	assert.Equal(t, "FY2024-25", label)

	from, to, label = turnover.FiscalYearBounds(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-04-01", from)
	assert.Equal(t, "2026-03-31", to)
	assert.Equal(t, "FY2025-26", label)
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestCompute_SumsOnlyTheFiscalYear(t *testing.T) {
	store := seedStore(t,
		inr("prev.yaml", "2025-03-15", "5000"),  // previous FY
		inr("a.yaml", "2025-04-10", "1000"),
		inr("b.yaml", "2025-04-20", "2000"),
		inr("c.yaml", "2025-07-01", "3000"),
	)

	stats, err := turnover.Compute(context.Background(), store, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "FY2025-26", stats.FiscalYear)
	assert.Equal(t, "6000", stats.Total.String())
	assert.Equal(t, 3, stats.InvoiceCount)

	require.Len(t, stats.ByMonth, 2)
	assert.Equal(t, "042025", stats.ByMonth[0].Period)
	assert.Equal(t, "3000", stats.ByMonth[0].Total.String())
	assert.Equal(t, "072025", stats.ByMonth[1].Period)
	assert.Equal(t, "3000", stats.ByMonth[1].Total.String())
}

func TestCompute_ConvertsForeignCurrencyAtRecordedRate(t *testing.T) {
	// 1000 USD at 83.25 converts to 83250 INR; rounding to 2 places.
	store := seedStore(t,
		usd("us.yaml", "2025-05-10", "1000", "83.25"),
		inr("in.yaml", "2025-05-20", "750"),
	)

	stats, err := turnover.Compute(context.Background(), store, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "84000", stats.Total.String())
}

func TestCompute_ForeignCurrencyWithoutRateKeptAsIs(t *testing.T) {
	// A missing rate means the amount was already recorded in INR terms.
	store := seedStore(t, usd("us.yaml", "2025-05-10", "1000", "0"))

	stats, err := turnover.Compute(context.Background(), store, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1000", stats.Total.String())
}

func TestComputeReport_PairsPrecedingAndCurrentYear(t *testing.T) {
	store := seedStore(t,
		inr("prev.yaml", "2025-03-15", "5000"),
		inr("cur.yaml", "2025-05-10", "1000"),
		// dated past the filing month, excluded from the current figure
		inr("later.yaml", "2025-08-20", "7000"),
	)

	report, err := turnover.ComputeReport(context.Background(), store, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "FY2024-25", report.Previous.FiscalYear)
	assert.Equal(t, "5000", report.Previous.Total.String())
	assert.Equal(t, "FY2025-26", report.Current.FiscalYear)
	assert.Equal(t, "1000", report.Current.Total.String())
}

func TestCompute_EmptyArchive(t *testing.T) {
	store := seedStore(t)

	stats, err := turnover.Compute(context.Background(), store, time.Now())
	require.NoError(t, err)
	assert.True(t, stats.Total.IsZero())
	assert.Zero(t, stats.InvoiceCount)
	assert.Empty(t, stats.ByMonth)
}
