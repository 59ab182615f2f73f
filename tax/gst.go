/*
Package tax computes GST lines and totals for an invoice.

PURPOSE:
  A pure function from (subtotal, invoice date, client jurisdiction, sender
  jurisdiction, LUT number) to tax lines, tax total, and the optional LUT
  disclosure. No I/O, no state - the same inputs always produce the same
  output, which is what makes invoices reproducible indefinitely.

BRANCHES:
  - Invoice dated before the GST threshold date: zero tax, no lines.
  - Overseas client: zero tax; when a LUT number resolved, the fixed legal
    disclosure string with the number interpolated (export of services
    under a Letter of Undertaking, without payment of integrated tax).
  - Same state as sender: CGST + SGST, each at the configured half-rate.
  - Different state: one IGST line at the full inter-state rate.

ROUNDING:
  Each tax line rounds half-up to 2 decimals. The total is the sum of the
  rounded lines (so CGST+SGST can differ by a paisa from a single IGST line
  on pathological subtotals - that matches the statutes, not a bug).

DISCLOSURE NUANCE:
  When the upstream billing produced more than one line, rate descriptions
  append "on sub-total". Presentation only; amounts are unaffected.
*/
package tax

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TYPES
// =============================================================================

// Rules carries the configured GST rates and threshold.
type Rules struct {
	DefaultRate   decimal.Decimal
	CGSTRate      decimal.Decimal
	SGSTRate      decimal.Decimal
	IGSTRate      decimal.Decimal
	ThresholdDate time.Time
	LUTTemplate   string
}

// Line is one computed tax line.
type Line struct {
	Label    string
	RateDesc string
	Amount   decimal.Decimal
}

// Result holds the computed tax lines and totals.
type Result struct {
	Lines   []Line
	Total   decimal.Decimal
	LUTText string
}

// Input identifies the transaction for tax purposes.
type Input struct {
	Subtotal       decimal.Decimal
	InvoiceDate    time.Time
	ClientCategory string // "regular", "overseas", ...
	ClientState    string
	SenderState    string
	LUTNumber      string

	// MultiLine is true when more than one billing line was produced
	// upstream; it only changes the rate description text.
	MultiLine bool
}

// =============================================================================
// COMPUTATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

func roundHalfUp(v decimal.Decimal) decimal.Decimal {
	// shopspring rounds half away from zero; amounts here are never
	// negative, so this is round-half-up.
	return v.Round(2)
}

func percentLabel(rate decimal.Decimal, multiLine bool) string {
	suffix := ""
	if multiLine {
		suffix = " on sub-total"
	}
	return "@ " + rate.Mul(hundred).Truncate(0).String() + "%" + suffix
}

// Compute derives the GST lines for an invoice. It is side-effect free.
func Compute(rules Rules, in Input) Result {
	res := Result{Total: decimal.Zero}

	if in.InvoiceDate.Before(rules.ThresholdDate) {
		return res
	}

	switch {
	case in.ClientCategory == "overseas":
		if in.LUTNumber != "" {
			res.LUTText = strings.ReplaceAll(rules.LUTTemplate, "{lut_number}", in.LUTNumber)
		}

	case in.ClientState == in.SenderState:
		half := roundHalfUp(in.Subtotal.Mul(rules.CGSTRate))
		desc := percentLabel(rules.CGSTRate, in.MultiLine)
		res.Lines = []Line{
			{Label: "CGST", RateDesc: desc, Amount: half},
			{Label: "SGST", RateDesc: desc, Amount: half},
		}
		res.Total = half.Add(half)

	default:
		amt := roundHalfUp(in.Subtotal.Mul(rules.IGSTRate))
		res.Lines = []Line{
			{Label: "IGST", RateDesc: percentLabel(rules.IGSTRate, in.MultiLine), Amount: amt},
		}
		res.Total = amt
	}

	return res
}
