/*
Package pipeline orchestrates invoice generation end to end.

PURPOSE:
  One Generate call takes a spec file from YAML to a finished invoice:

    read -> hash -> resolve -> bill -> tax -> registry update -> archive

  The content hash makes generation idempotent: an unchanged spec is
  skipped (unless forced), so re-running the batch over a whole directory
  only touches what actually changed.

BATCH MODEL:
  GenerateBatch isolates failures per file - one malformed spec never
  stops the rest of the run. The registry is loaded once per call and
  saved after each successful generation, so a crash mid-batch loses at
  most the in-flight file.

SEE ALSO:
  - invoice.Resolver: the merge cascade and entity resolution
  - billing.Calculator, tax.Compute: the pure computation stages
  - archive.Store: the summary sink turnover reads from
*/
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/invoice-engine/archive"
	"github.com/warp/invoice-engine/billing"
	"github.com/warp/invoice-engine/config"
	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/registry"
	"github.com/warp/invoice-engine/tax"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Generator drives the generation pipeline for one data root.
type Generator struct {
	cfg      *config.Config
	resolver *invoice.Resolver
	calc     *billing.Calculator
	store    *archive.Store
	taxRules tax.Rules
	log      zerolog.Logger
}

// New builds a Generator over a loaded configuration. The archive store is
// optional; with a nil store generation still works, only the turnover
// archive goes unrecorded.
func New(cfg *config.Config, store *archive.Store, log zerolog.Logger) (*Generator, error) {
	resolver, err := invoice.NewResolver(invoice.ResolverConfig{
		ProfilesDir:  cfg.ProfilesDir,
		ContractsDir: cfg.ContractsDir,
		InvoicesDir:  cfg.InvoicesDir,
		AssetsDir:    cfg.AssetsDir,
		Rules: invoice.ResolverRules{
			GSTThreshold:        cfg.Rules.GSTThreshold(),
			DefaultBanks:        cfg.Rules.DefaultBanks,
			DefaultSACCode:      cfg.Rules.TaxRules.DefaultSACCode,
			DefaultPaymentTerms: cfg.Rules.InvoiceDefaults.PaymentTerms,
		},
	}, log)
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		resolver: resolver,
		calc:     billing.NewCalculator(cfg.Billing),
		store:    store,
		taxRules: cfg.Rules.Tax(),
		log:      log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Invoice is a fully assembled invoice: the resolved state plus its
// monetary breakdown.
type Invoice struct {
	Resolved   *invoice.Resolved
	Financials *Financials
}

// Outcome reports what one Generate call did with a file.
type Outcome struct {
	Filename string
	Skipped  bool
	Invoice  *Invoice
}

// =============================================================================
// SINGLE FILE
// =============================================================================

// Assemble resolves and computes a spec without writing anything. The
// registry is consulted read-only so numbering matches what a real
// generation would produce.
func (g *Generator) Assemble(specPath string) (*Invoice, error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	spec, err := invoice.ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(specPath), err)
	}
	reg := registry.Load(g.cfg.RegistryPath)
	return g.assemble(spec, reg, filepath.Base(specPath))
}

func (g *Generator) assemble(spec *invoice.Spec, reg *registry.Registry, filename string) (*Invoice, error) {
	res, err := g.resolver.ResolveInvoice(spec, reg, filename)
	if err != nil {
		return nil, err
	}
	fin, err := computeFinancials(g.calc, g.taxRules, g.cfg.Rules.StateMap, res)
	if err != nil {
		return nil, err
	}
	return &Invoice{Resolved: res, Financials: fin}, nil
}

// Generate runs the full pipeline for one spec file. An unchanged file
// (same content hash as its registry entry) is skipped unless force is
// set.
func (g *Generator) Generate(ctx context.Context, specPath string, force bool) (*Outcome, error) {
	filename := filepath.Base(specPath)
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	hash := contentHash(data)

	reg := registry.Load(g.cfg.RegistryPath)
	if entry, ok := reg.Entry(filename); ok && !force && entry.ContentHash == hash {
		g.log.Debug().Str("file", filename).Msg("unchanged, skipping")
		return &Outcome{Filename: filename, Skipped: true}, nil
	}

	spec, err := invoice.ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	inv, err := g.assemble(spec, reg, filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	actualID := ""
	if inv.Resolved.InvoiceNumber != inv.Resolved.CanonicalNumber {
		actualID = inv.Resolved.InvoiceNumber
	}
	reg.UpdateEntry(filename, inv.Resolved.CanonicalNumber, hash, actualID)
	if err := reg.Save(g.cfg.RegistryPath); err != nil {
		return nil, fmt.Errorf("failed to save registry: %w", err)
	}

	if g.store != nil {
		if err := g.store.Upsert(ctx, g.record(filename, inv)); err != nil {
			// registry already updated; archive can be rebuilt with --force
			g.log.Warn().Err(err).Str("file", filename).Msg("failed to archive invoice")
		}
	}

	g.log.Info().
		Str("file", filename).
		Str("invoice_number", inv.Resolved.InvoiceNumber).
		Str("total", inv.Financials.FinalTotal.String()).
		Msg("invoice generated")
	return &Outcome{Filename: filename, Invoice: inv}, nil
}

func (g *Generator) record(filename string, inv *Invoice) archive.Record {
	return archive.Record{
		Filename:      filename,
		InvoiceNumber: inv.Resolved.InvoiceNumber,
		CanonicalID:   inv.Resolved.CanonicalNumber,
		ClientID:      inv.Resolved.Client.ID,
		Date:          inv.Resolved.Date.Format(invoice.DateLayout),
		Currency:      inv.Financials.Currency,
		Subtotal:      inv.Financials.Subtotal,
		TaxTotal:      inv.Financials.TaxTotal,
		FinalTotal:    inv.Financials.FinalTotal,
		ExchangeRate:  inv.Financials.ExchangeRate,
		GeneratedAt:   time.Now(),
	}
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// BATCH
// =============================================================================

// Failure pairs a file with the error that stopped it.
type Failure struct {
	Filename string
	Err      error
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Generated []*Outcome
	Skipped   []string
	Failed    []Failure
}

// GenerateBatch runs Generate over each path, isolating failures so one
// bad spec never stops the rest. Paths may be explicit files; with none
// given, every *.yaml under the invoices directory is processed.
func (g *Generator) GenerateBatch(ctx context.Context, paths []string, force bool) (*BatchResult, error) {
	if len(paths) == 0 {
		matches, err := filepath.Glob(filepath.Join(g.cfg.InvoicesDir, "*.yaml"))
		if err != nil {
			return nil, err
		}
		paths = matches
	}

	result := &BatchResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := g.Generate(ctx, path, force)
		if err != nil {
			g.log.Error().Err(err).Str("file", filepath.Base(path)).Msg("generation failed")
			result.Failed = append(result.Failed, Failure{Filename: filepath.Base(path), Err: err})
			continue
		}
		if outcome.Skipped {
			result.Skipped = append(result.Skipped, outcome.Filename)
			continue
		}
		result.Generated = append(result.Generated, outcome)
	}
	return result, nil
}

// =============================================================================
// PAYMENT
// =============================================================================

// MarkPaid records a receipt date against a generated invoice and saves
// the registry.
func MarkPaid(registryPath, filename, receiptDate string) error {
	reg := registry.Load(registryPath)
	if err := reg.MarkPaid(filename, receiptDate); err != nil {
		return err
	}
	return reg.Save(registryPath)
}
