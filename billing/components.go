/*
components.go - The two formula composition primitives

PURPOSE:
  Implements the closed set of component kinds a pricing formula may
  compose. Dispatch is an exhaustive switch in the calculator - there are
  exactly two kinds and no plugin mechanism.

FLAT RATE:
  A resolved amount emits exactly one row (suppressed when zero). Without a
  configured amount, the component treats the line items as independently
  amount-bearing entries (milestones, reimbursements) and emits one row per
  item with a non-zero amount; each row's templates interpolate with the
  item's own metadata merged into the context.

UNIT RATE:
  A resolved rate sums all item quantities, clamps the sum to max_quantity,
  subtracts min_quantity (floored at zero) and emits one row for the
  billable remainder (suppressed when zero). Without a configured rate,
  items group by their own declared rate - one row per distinct rate, in
  first-occurrence order; items without a rate are dropped.
*/
package billing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/invoice-engine/invoice"
)

// calculateFlatRate evaluates a flat_rate component against the items and
// live context, returning rows in emission order.
func calculateFlatRate(def ComponentDef, tmpl RowTemplate, items []invoice.LineItem, ctx map[string]interface{}) []Row {
	amountVal := resolveValue(def.Amount, ctx)

	// Case A: explicit amount from contract params.
	if amountVal != nil {
		amount := invoice.ToDecimal(amountVal)
		if amount.IsZero() {
			return nil
		}
		renderCtx := overlay(ctx, map[string]interface{}{
			"amount": FormatCurrency(amount),
		})
		return []Row{{
			Label:   Interpolate(tmpl.Label, renderCtx),
			Details: Interpolate(tmpl.Details, renderCtx),
			Amount:  amount,
		}}
	}

	// Case B: one row per amount-bearing item.
	var rows []Row
	for _, item := range items {
		if item.Amount == nil || item.Amount.IsZero() {
			continue
		}
		amount := *item.Amount

		renderCtx := overlay(ctx, item.Meta)
		renderCtx["amount"] = FormatCurrency(amount)
		if item.Description != "" {
			renderCtx["description"] = item.Description
		}
		// A label format carried in the context (defaults/params) is
		// itself interpolated with the item's metadata.
		if labelFmt, ok := renderCtx["label"].(string); ok && labelFmt != "" {
			renderCtx["label"] = Interpolate(labelFmt, renderCtx)
		}

		rows = append(rows, Row{
			Label:   Interpolate(tmpl.Label, renderCtx),
			Details: Interpolate(tmpl.Details, renderCtx),
			Amount:  amount,
		})
	}
	return rows
}

// calculateUnitRate evaluates a unit_rate component.
func calculateUnitRate(def ComponentDef, tmpl RowTemplate, items []invoice.LineItem, ctx map[string]interface{}) []Row {
	rateVal := resolveValue(def.Rate, ctx)
	minQty := invoice.ToDecimal(resolveValue(def.MinQuantity, ctx))

	var maxQty *decimal.Decimal
	if v := resolveValue(def.MaxQuantity, ctx); v != nil {
		m := invoice.ToDecimal(v)
		maxQty = &m
	}

	// Case A: fixed rate - sum all quantities, apply bounds, one row.
	if rateVal != nil {
		rate := invoice.ToDecimal(rateVal)
		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.Quantity)
		}

		billable := total
		if maxQty != nil && billable.GreaterThan(*maxQty) {
			billable = *maxQty
		}
		billable = billable.Sub(minQty)
		if !billable.IsPositive() {
			return nil
		}

		amount := billable.Mul(rate)
		unit, units := unitForms(ctx, billable)
		threshold := ""
		if minQty.IsPositive() {
			threshold = FormatQty(minQty)
		} else if maxQty != nil {
			threshold = FormatQty(*maxQty)
		}

		renderCtx := overlay(ctx, map[string]interface{}{
			"qty":       FormatQty(billable),
			"rate":      FormatCurrency(rate),
			"amount":    FormatCurrency(amount),
			"unit":      unit,
			"units":     units,
			"threshold": threshold,
		})
		return []Row{{
			Label:   Interpolate(tmpl.Label, renderCtx),
			Details: Interpolate(tmpl.Details, renderCtx),
			Amount:  amount,
		}}
	}

	// Case B: no fixed rate - group by each item's own rate, one row per
	// group in first-occurrence order. Items without a rate are dropped.
	var order []string
	totals := map[string]decimal.Decimal{}
	rates := map[string]decimal.Decimal{}
	for _, item := range items {
		if item.Rate == nil {
			continue
		}
		key := item.Rate.String()
		if _, seen := totals[key]; !seen {
			order = append(order, key)
			rates[key] = *item.Rate
		}
		totals[key] = totals[key].Add(item.Quantity)
	}

	var rows []Row
	for _, key := range order {
		rate := rates[key]
		qty := totals[key]
		amount := qty.Mul(rate)
		unit, units := unitForms(ctx, qty)

		renderCtx := overlay(ctx, map[string]interface{}{
			"qty":    FormatQty(qty),
			"rate":   FormatCurrency(rate),
			"amount": FormatCurrency(amount),
			"unit":   unit,
			"units":  units,
		})
		rows = append(rows, Row{
			Label:   Interpolate(tmpl.Label, renderCtx),
			Details: Interpolate(tmpl.Details, renderCtx),
			Amount:  amount,
		})
	}
	return rows
}

// overlay copies base and lays extra on top of it. The inputs are never
// mutated; every row renders against its own context.
func overlay(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
