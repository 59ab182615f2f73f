/*
calculator.go - Context assembly and ordered formula execution

PURPOSE:
  The entry point of the formula engine. Resolves a preset to its formula,
  builds the evaluation context (preset defaults overlaid by invoice
  params, plus derived date strings), and executes the formula's components
  strictly in declared order, accumulating the subtotal in emission order.

ERRORS:
  An unknown preset or formula id is a domain error that aborts processing
  of the single invoice referencing it. Component kinds outside the closed
  set are skipped; the set is fixed and data naming anything else carries
  no meaning for this engine.
*/
package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/invoice-engine/invoice"
)

var (
	// ErrUnknownPreset is returned when no invoice preset exists for the id.
	ErrUnknownPreset = errors.New("unknown invoice preset")

	// ErrUnknownFormula is returned when a preset references a pricing
	// formula that does not exist.
	ErrUnknownFormula = errors.New("unknown pricing formula")
)

// Calculator evaluates pricing formulas against line items.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Preset returns the preset configuration for an id.
func (c *Calculator) Preset(presetID string) (Preset, bool) {
	p, ok := c.cfg.Presets[presetID]
	return p, ok
}

// Calculate evaluates the preset's formula for the given items and params.
// Rows are returned in emission order; Subtotal accumulates their amounts
// in that order.
func (c *Calculator) Calculate(presetID string, items []invoice.LineItem, params map[string]interface{}, date time.Time) (*Result, error) {
	preset, ok := c.cfg.Presets[presetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, presetID)
	}
	formula, ok := c.cfg.Formulas[preset.FormulaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormula, preset.FormulaID)
	}

	// Defaults < params; later layers win.
	ctx := overlay(preset.Defaults, params)
	ctx["date"] = date.Format("2006-01-02")
	ctx["year"] = date.Format("2006")
	ctx["month"] = date.Format("January")

	result := &Result{Subtotal: decimal.Zero}
	for _, def := range formula.Components {
		tmpl := preset.RowTemplates[def.ID]

		var rows []Row
		switch def.Type {
		case FlatRate:
			rows = calculateFlatRate(def, tmpl, items, ctx)
		case UnitRate:
			rows = calculateUnitRate(def, tmpl, items, ctx)
		}

		for _, row := range rows {
			result.Lines = append(result.Lines, row)
			result.Subtotal = result.Subtotal.Add(row.Amount)
		}
	}
	return result, nil
}
