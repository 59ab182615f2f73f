/*
Package turnover aggregates archived invoices into Indian fiscal-year
gross-turnover figures.

The fiscal year runs April 1 through March 31. Amounts invoiced in a
foreign currency convert to INR at the exchange rate recorded at
generation time; everything rounds to 2 decimal places.
*/
package turnover

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-engine/archive"
)

// Stats is the turnover report for one fiscal year.
type Stats struct {
	FiscalYear   string           // e.g. "FY2025-26"
	From, To     string           // inclusive date bounds, YYYY-MM-DD
	Total        decimal.Decimal  // gross turnover in INR
	ByMonth      []MonthTotal     // chronological
	InvoiceCount int
}

// MonthTotal is one month's slice of the turnover.
type MonthTotal struct {
	Period string // MMYYYY, e.g. "042025"
	Total  decimal.Decimal
}

// FiscalYearBounds returns the inclusive date bounds of the fiscal year
// containing ref.
func FiscalYearBounds(ref time.Time) (from, to string, label string) {
	startYear := ref.Year()
	if ref.Month() < time.April {
		startYear--
	}
	from = fmt.Sprintf("%04d-04-01", startYear)
	to = fmt.Sprintf("%04d-03-31", startYear+1)
	label = fmt.Sprintf("FY%04d-%02d", startYear, (startYear+1)%100)
	return from, to, label
}

// Compute builds the turnover report for the fiscal year containing ref.
func Compute(ctx context.Context, store *archive.Store, ref time.Time) (*Stats, error) {
	from, to, label := FiscalYearBounds(ref)
	return compute(ctx, store, from, to, label)
}

func compute(ctx context.Context, store *archive.Store, from, to, label string) (*Stats, error) {
	records, err := store.Between(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	stats := &Stats{FiscalYear: label, From: from, To: to}
	byMonth := make(map[string]decimal.Decimal)
	for _, rec := range records {
		inr := toINR(rec)
		stats.Total = stats.Total.Add(inr)
		stats.InvoiceCount++

		if d, err := time.Parse("2006-01-02", rec.Date); err == nil {
			period := fmt.Sprintf("%02d%04d", d.Month(), d.Year())
			byMonth[period] = byMonth[period].Add(inr)
		}
	}
	stats.Total = stats.Total.Round(2)

	periods := make([]string, 0, len(byMonth))
	for p := range byMonth {
		periods = append(periods, p)
	}
	// MMYYYY sorts chronologically on (YYYY, MM)
	sort.Slice(periods, func(i, j int) bool {
		return periods[i][2:]+periods[i][:2] < periods[j][2:]+periods[j][:2]
	})
	for _, p := range periods {
		stats.ByMonth = append(stats.ByMonth, MonthTotal{Period: p, Total: byMonth[p].Round(2)})
	}
	return stats, nil
}

// Report pairs the filing figures a GST return asks for: gross turnover
// of the preceding fiscal year and of the current one to date.
type Report struct {
	Previous *Stats
	Current  *Stats
}

// ComputeReport builds both fiscal-year figures around ref. The current
// year counts invoices only through the end of ref's month, mirroring a
// filing period that closes with the month.
func ComputeReport(ctx context.Context, store *archive.Store, ref time.Time) (*Report, error) {
	from, _, label := FiscalYearBounds(ref)
	monthEnd := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, -1).Format("2006-01-02")
	current, err := compute(ctx, store, from, monthEnd, label)
	if err != nil {
		return nil, err
	}
	previous, err := Compute(ctx, store, ref.AddDate(-1, 0, 0))
	if err != nil {
		return nil, err
	}
	return &Report{Previous: previous, Current: current}, nil
}

// toINR converts a record's subtotal to INR at its recorded rate. A zero
// or missing rate means the invoice was already in INR.
func toINR(rec archive.Record) decimal.Decimal {
	if rec.Currency == "INR" || rec.ExchangeRate.IsZero() {
		return rec.Subtotal.Round(2)
	}
	return rec.Subtotal.Mul(rec.ExchangeRate).Round(2)
}
