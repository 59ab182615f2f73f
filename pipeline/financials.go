/*
financials.go - billing and tax composition

PURPOSE:
  Turns a resolved invoice into its final monetary breakdown: billing rows
  from the formula engine, tax lines from the GST engine, and the totals a
  renderer or API client needs. This is pure computation - no I/O, no
  registry access.
*/
package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-engine/billing"
	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/tax"
)

// Financials is the complete monetary breakdown of one invoice.
type Financials struct {
	Lines    []billing.Row
	Subtotal decimal.Decimal

	// ShowSubtotal is set when more than one billing line was produced;
	// a single-line invoice repeats no number.
	ShowSubtotal bool

	TaxLines   []tax.Line
	TaxTotal   decimal.Decimal
	FinalTotal decimal.Decimal
	LUTText    string

	Currency     string
	ExchangeRate decimal.Decimal
	SACCode      string
	PaymentTerms string

	// PlaceOfSupply is the client state's display name from the
	// configured state map, empty when the code is unmapped (overseas).
	PlaceOfSupply string
}

// computeFinancials evaluates the billing formula and the GST treatment
// for a resolved invoice. stateNames maps GST state codes to display
// names.
func computeFinancials(calc *billing.Calculator, rules tax.Rules, stateNames map[string]string, res *invoice.Resolved) (*Financials, error) {
	billed, err := calc.Calculate(res.Config.BillingPreset, res.Spec.LineItems, res.Config.Params, res.Date)
	if err != nil {
		return nil, err
	}

	taxed := tax.Compute(rules, tax.Input{
		Subtotal:       billed.Subtotal,
		InvoiceDate:    res.Date,
		ClientCategory: res.Client.GSTCategory,
		ClientState:    stateOf(res.Client.Entity),
		SenderState:    stateOf(res.Sender.Entity),
		LUTNumber:      res.Sender.LUTNumber,
		MultiLine:      len(billed.Lines) > 1,
	})

	return &Financials{
		Lines:         billed.Lines,
		Subtotal:      billed.Subtotal.Round(2),
		ShowSubtotal:  len(billed.Lines) > 1,
		TaxLines:      taxed.Lines,
		TaxTotal:      taxed.Total,
		FinalTotal:    billed.Subtotal.Add(taxed.Total).Round(2),
		LUTText:       taxed.LUTText,
		Currency:      res.Client.Currency,
		ExchangeRate:  invoice.ToDecimal(res.Config.Params["exchange_rate"]),
		SACCode:       res.Config.SACCode,
		PaymentTerms:  res.Config.PaymentTerms,
		PlaceOfSupply: stateNames[stateOf(res.Client.Entity)],
	}, nil
}

// stateOf derives an entity's GST state code: the first two digits of the
// GSTIN when registered, otherwise the configured state code.
func stateOf(e invoice.Entity) string {
	if len(e.GSTIN) >= 2 {
		return e.GSTIN[:2]
	}
	return e.StateCode
}
