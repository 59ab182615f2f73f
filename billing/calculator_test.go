package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-engine/billing"
	"github.com/warp/invoice-engine/invoice"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func retainerConfig() billing.Config {
	return billing.Config{
		Formulas: map[string]billing.Formula{
			"retainer": {Components: []billing.ComponentDef{
				{Type: billing.FlatRate, ID: "base", Amount: "{retainer_fee}"},
				{Type: billing.UnitRate, ID: "overage", Rate: "{overage_rate}", MinQuantity: "{included_quantity}"},
			}},
		},
		Presets: map[string]billing.Preset{
			"monthly_retainer": {
				FormulaID: "retainer",
				RowTemplates: map[string]billing.RowTemplate{
					"base":    {Label: "Monthly retainer - {month} {year}"},
					"overage": {Label: "Additional {units}", Details: "{qty} {units} beyond {threshold} @ {rate}"},
				},
				Defaults: map[string]interface{}{"unit_name": "hour"},
			},
		},
	}
}

func qtyItem(qty int64) invoice.LineItem {
	return invoice.LineItem{Quantity: decimal.NewFromInt(qty)}
}

func ratedItem(qty, rate int64) invoice.LineItem {
	r := decimal.NewFromInt(rate)
	return invoice.LineItem{Quantity: decimal.NewFromInt(qty), Rate: &r}
}

func amountItem(amount int64, meta map[string]interface{}) invoice.LineItem {
	a := decimal.NewFromInt(amount)
	return invoice.LineItem{Amount: &a, Meta: meta}
}

var june = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

// =============================================================================
// RETAINER FORMULA
// =============================================================================

func TestCalculate_Retainer_UnderThreshold(t *testing.T) {
	// GIVEN: 1000 retainer covering 5 hours, 100/hour beyond
	// WHEN: 3 hours are worked
	// THEN: Only the retainer row is emitted

	calc := billing.NewCalculator(retainerConfig())
	params := map[string]interface{}{
		"retainer_fee":      1000,
		"overage_rate":      100,
		"included_quantity": 5,
	}

	result, err := calc.Calculate("monthly_retainer", []invoice.LineItem{qtyItem(3)}, params, june)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, "Monthly retainer - June 2025", result.Lines[0].Label)
	assert.Equal(t, "1000", result.Subtotal.String())
}

func TestCalculate_Retainer_ExactlyAtThreshold(t *testing.T) {
	// GIVEN: Same retainer setup
	// WHEN: Exactly the included 5 hours are worked
	// THEN: No overage row; the flat fee alone bills

	calc := billing.NewCalculator(retainerConfig())
	params := map[string]interface{}{
		"retainer_fee":      1000,
		"overage_rate":      100,
		"included_quantity": 5,
	}

	result, err := calc.Calculate("monthly_retainer", []invoice.LineItem{qtyItem(5)}, params, june)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, "Monthly retainer - June 2025", result.Lines[0].Label)
	assert.Equal(t, "1000", result.Subtotal.String())
}

func TestCalculate_Retainer_OverThreshold(t *testing.T) {
	// GIVEN: Same retainer setup
	// WHEN: 7 hours are worked (2 beyond the included 5)
	// THEN: Retainer row plus 200 overage, subtotal 1200

	calc := billing.NewCalculator(retainerConfig())
	params := map[string]interface{}{
		"retainer_fee":      1000,
		"overage_rate":      100,
		"included_quantity": 5,
	}

	result, err := calc.Calculate("monthly_retainer", []invoice.LineItem{qtyItem(4), qtyItem(3)}, params, june)
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, "Additional hours", result.Lines[1].Label)
	assert.Equal(t, "2 hours beyond 5 @ 100.00", result.Lines[1].Details)
	assert.Equal(t, "200", result.Lines[1].Amount.String())
	assert.Equal(t, "1200", result.Subtotal.String())
}

func TestCalculate_Retainer_NoItems(t *testing.T) {
	// GIVEN: Same retainer setup
	// WHEN: No work items at all
	// THEN: The flat fee still bills; the overage row is suppressed

	calc := billing.NewCalculator(retainerConfig())
	params := map[string]interface{}{
		"retainer_fee":      1000,
		"overage_rate":      100,
		"included_quantity": 5,
	}

	result, err := calc.Calculate("monthly_retainer", nil, params, june)
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, "1000", result.Subtotal.String())
}

// =============================================================================
// PER-ITEM RATES
// =============================================================================

func TestCalculate_UnitRate_GroupsByItemRate(t *testing.T) {
	// GIVEN: A unit_rate component with no fixed rate
	// WHEN: Items carry rates 200, 200, 100 with quantities 5, 3, 10
	// THEN: Two rows in first-occurrence order: 8x200=1600, 10x100=1000

	cfg := billing.Config{
		Formulas: map[string]billing.Formula{
			"hourly": {Components: []billing.ComponentDef{
				{Type: billing.UnitRate, ID: "work"},
			}},
		},
		Presets: map[string]billing.Preset{
			"hourly": {
				FormulaID: "hourly",
				RowTemplates: map[string]billing.RowTemplate{
					"work": {Label: "{qty} {units} @ {rate}"},
				},
				Defaults: map[string]interface{}{"unit_name": "hour"},
			},
		},
	}
	calc := billing.NewCalculator(cfg)

	items := []invoice.LineItem{ratedItem(5, 200), ratedItem(3, 200), ratedItem(10, 100)}
	result, err := calc.Calculate("hourly", items, nil, june)
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, "8 hours @ 200.00", result.Lines[0].Label)
	assert.Equal(t, "1600", result.Lines[0].Amount.String())
	assert.Equal(t, "10 hours @ 100.00", result.Lines[1].Label)
	assert.Equal(t, "1000", result.Lines[1].Amount.String())
	assert.Equal(t, "2600", result.Subtotal.String())
}

func TestCalculate_UnitRate_MaxQuantityClamp(t *testing.T) {
	// GIVEN: A capped unit_rate (max 4 units at 10 each)
	// WHEN: 6 units are worked
	// THEN: Only 4 bill

	cfg := billing.Config{
		Formulas: map[string]billing.Formula{
			"capped": {Components: []billing.ComponentDef{
				{Type: billing.UnitRate, ID: "work", Rate: 10, MaxQuantity: 4},
			}},
		},
		Presets: map[string]billing.Preset{
			"capped": {FormulaID: "capped", RowTemplates: map[string]billing.RowTemplate{}, Defaults: map[string]interface{}{}},
		},
	}
	calc := billing.NewCalculator(cfg)

	result, err := calc.Calculate("capped", []invoice.LineItem{qtyItem(6)}, nil, june)
	require.NoError(t, err)
	assert.Equal(t, "40", result.Subtotal.String())
}

func TestCalculate_UnitRate_RatelessItemsDropped(t *testing.T) {
	// GIVEN: A unit_rate component with no fixed rate
	// WHEN: One item has a rate, one does not
	// THEN: The rateless item contributes nothing

	cfg := billing.Config{
		Formulas: map[string]billing.Formula{
			"hourly": {Components: []billing.ComponentDef{{Type: billing.UnitRate, ID: "work"}}},
		},
		Presets: map[string]billing.Preset{
			"hourly": {FormulaID: "hourly", RowTemplates: map[string]billing.RowTemplate{}, Defaults: map[string]interface{}{}},
		},
	}
	calc := billing.NewCalculator(cfg)

	result, err := calc.Calculate("hourly", []invoice.LineItem{ratedItem(2, 50), qtyItem(9)}, nil, june)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "100", result.Subtotal.String())
}

// =============================================================================
// PER-ITEM AMOUNTS (MILESTONES, REIMBURSEMENTS)
// =============================================================================

func TestCalculate_FlatRate_PerItemAmounts(t *testing.T) {
	// GIVEN: A flat_rate component with no configured amount
	// WHEN: Items carry their own amounts and metadata
	// THEN: One row per item, templates see the item's metadata

	cfg := billing.Config{
		Formulas: map[string]billing.Formula{
			"milestones": {Components: []billing.ComponentDef{{Type: billing.FlatRate, ID: "milestone"}}},
		},
		Presets: map[string]billing.Preset{
			"milestones": {
				FormulaID: "milestones",
				RowTemplates: map[string]billing.RowTemplate{
					"milestone": {Label: "Milestone {number}", Details: "{percentage}% of {total_value}"},
				},
				Defaults: map[string]interface{}{},
			},
		},
	}
	calc := billing.NewCalculator(cfg)

	items := []invoice.LineItem{
		amountItem(30000, map[string]interface{}{"number": "1", "percentage": "30", "total_value": "100,000.00"}),
		amountItem(70000, map[string]interface{}{"number": "2", "percentage": "70", "total_value": "100,000.00"}),
	}
	result, err := calc.Calculate("milestones", items, nil, june)
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, "Milestone 1", result.Lines[0].Label)
	assert.Equal(t, "30% of 100,000.00", result.Lines[0].Details)
	assert.Equal(t, "Milestone 2", result.Lines[1].Label)
	assert.Equal(t, "100000", result.Subtotal.String())
}

func TestCalculate_FlatRate_ZeroAmountSuppressed(t *testing.T) {
	// GIVEN: A flat_rate component resolving to zero
	// WHEN: Calculated
	// THEN: No row is emitted

	cfg := billing.Config{
		Formulas: map[string]billing.Formula{
			"flat": {Components: []billing.ComponentDef{{Type: billing.FlatRate, ID: "fee", Amount: 0}}},
		},
		Presets: map[string]billing.Preset{
			"flat": {FormulaID: "flat", RowTemplates: map[string]billing.RowTemplate{}, Defaults: map[string]interface{}{}},
		},
	}
	calc := billing.NewCalculator(cfg)

	result, err := calc.Calculate("flat", nil, nil, june)
	require.NoError(t, err)
	assert.Empty(t, result.Lines)
	assert.True(t, result.Subtotal.IsZero())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCalculate_UnknownPreset(t *testing.T) {
	calc := billing.NewCalculator(retainerConfig())

	_, err := calc.Calculate("no_such_preset", nil, nil, june)
	assert.ErrorIs(t, err, billing.ErrUnknownPreset)
}

func TestCalculate_UnknownFormula(t *testing.T) {
	cfg := billing.Config{
		Formulas: map[string]billing.Formula{},
		Presets: map[string]billing.Preset{
			"broken": {FormulaID: "missing", RowTemplates: map[string]billing.RowTemplate{}, Defaults: map[string]interface{}{}},
		},
	}
	calc := billing.NewCalculator(cfg)

	_, err := calc.Calculate("broken", nil, nil, june)
	assert.ErrorIs(t, err, billing.ErrUnknownFormula)
}

// =============================================================================
// CONFIG PARSING
// =============================================================================

func TestParseConfig_RowTemplatesNestedInBillingTable(t *testing.T) {
	// GIVEN: A preset whose row_templates nest under billing_table
	// WHEN: Parsed
	// THEN: Templates are hoisted onto the preset

	doc := []byte(`
pricing_formulas:
  simple:
    components:
      - type: flat_rate
        id: fee
        amount: "{fee}"
invoice_presets:
  simple:
    formula_id: simple
    billing_table:
      unit_name: session
      row_templates:
        fee:
          label: "Consultation fee"
`)
	cfg, err := billing.ParseConfig(doc)
	require.NoError(t, err)

	preset, ok := cfg.Presets["simple"]
	require.True(t, ok)
	assert.Equal(t, "Invoice", preset.DisplayTitle)
	assert.Equal(t, "session", preset.BillingTable.UnitName)
	assert.Equal(t, "Consultation fee", preset.RowTemplates["fee"].Label)
}
