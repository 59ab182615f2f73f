/*
Package archive provides a SQLite-backed record of generated invoices.

PURPOSE:
  Every successful generation appends a summary row (numbers, date,
  subtotal, currency, exchange rate) to the archive. Turnover aggregation
  and the HTTP listing read from here instead of re-parsing every source
  file on each query.

APPEND/UPDATE SEMANTICS:
  One row per source filename, upserted on regeneration. The archive is a
  derived view - the registry stays the source of truth for identifiers,
  and a lost archive can be rebuilt by regenerating with --force.

PRECISION:
  Monetary columns are stored as TEXT and round-trip through
  decimal.Decimal; the database never does float arithmetic on them.

CONCURRENCY:
  Guarded by a sync.RWMutex, same as the batch model elsewhere: one writer
  per run. SQLite runs in WAL mode so a concurrent reader (the HTTP
  server) does not block the writer.

USAGE:
  store, err := archive.New("./data/archive.db")
  defer store.Close()
  store.Upsert(ctx, rec)

SEE ALSO:
  - turnover: fiscal-year aggregation over these rows
  - pipeline: the single writer
*/
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Record is the archived summary of one generated invoice.
type Record struct {
	Filename      string
	InvoiceNumber string
	CanonicalID   string
	ClientID      string
	Date          string // invoice date, YYYY-MM-DD
	Currency      string
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	FinalTotal    decimal.Decimal
	ExchangeRate  decimal.Decimal
	GeneratedAt   time.Time
}

// Store persists invoice summaries in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the archive at dbPath. Use ":memory:" in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		filename TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		canonical_id TEXT NOT NULL,
		client_id TEXT,
		invoice_date TEXT NOT NULL,
		currency TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		tax_total TEXT NOT NULL,
		final_total TEXT NOT NULL,
		exchange_rate TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices(invoice_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes the summary row for a source filename, replacing any
// earlier generation of the same file.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (
			filename, invoice_number, canonical_id, client_id, invoice_date,
			currency, subtotal, tax_total, final_total, exchange_rate, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			invoice_number = excluded.invoice_number,
			canonical_id   = excluded.canonical_id,
			client_id      = excluded.client_id,
			invoice_date   = excluded.invoice_date,
			currency       = excluded.currency,
			subtotal       = excluded.subtotal,
			tax_total      = excluded.tax_total,
			final_total    = excluded.final_total,
			exchange_rate  = excluded.exchange_rate,
			generated_at   = excluded.generated_at`,
		rec.Filename, rec.InvoiceNumber, rec.CanonicalID, rec.ClientID, rec.Date,
		rec.Currency, rec.Subtotal.String(), rec.TaxTotal.String(),
		rec.FinalTotal.String(), rec.ExchangeRate.String(),
		rec.GeneratedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// List returns all archived records ordered by invoice date.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT filename, invoice_number, canonical_id, client_id,
		invoice_date, currency, subtotal, tax_total, final_total, exchange_rate,
		generated_at FROM invoices ORDER BY invoice_date, filename`)
}

// Between returns records with from <= invoice_date <= to (inclusive,
// YYYY-MM-DD strings).
func (s *Store) Between(ctx context.Context, from, to string) ([]Record, error) {
	return s.query(ctx, `SELECT filename, invoice_number, canonical_id, client_id,
		invoice_date, currency, subtotal, tax_total, final_total, exchange_rate,
		generated_at FROM invoices
		WHERE invoice_date >= ? AND invoice_date <= ?
		ORDER BY invoice_date, filename`, from, to)
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var subtotal, taxTotal, finalTotal, exchangeRate, generatedAt string
		if err := rows.Scan(
			&rec.Filename, &rec.InvoiceNumber, &rec.CanonicalID, &rec.ClientID,
			&rec.Date, &rec.Currency, &subtotal, &taxTotal, &finalTotal,
			&exchangeRate, &generatedAt,
		); err != nil {
			return nil, err
		}
		rec.Subtotal, _ = decimal.NewFromString(subtotal)
		rec.TaxTotal, _ = decimal.NewFromString(taxTotal)
		rec.FinalTotal, _ = decimal.NewFromString(finalTotal)
		rec.ExchangeRate, _ = decimal.NewFromString(exchangeRate)
		rec.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
