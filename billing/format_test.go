package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/invoice-engine/billing"
)

func TestInterpolate_SubstitutesKnownKeys(t *testing.T) {
	ctx := map[string]interface{}{"month": "June", "year": "2025"}

	out := billing.Interpolate("Retainer - {month} {year}", ctx)
	assert.Equal(t, "Retainer - June 2025", out)
}

func TestInterpolate_AnyMissingKeyReturnsTemplateUnmodified(t *testing.T) {
	// A stale template must never half-render.
	ctx := map[string]interface{}{"month": "June"}

	out := billing.Interpolate("Retainer - {month} {year}", ctx)
	assert.Equal(t, "Retainer - {month} {year}", out)
}

func TestFormatCurrency(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"950":        "950.00",
		"1000":       "1,000.00",
		"1234567.8":  "1,234,567.80",
		"-42000.5":   "-42,000.50",
	}
	for in, want := range cases {
		v, err := decimal.NewFromString(in)
		assert.NoError(t, err)
		assert.Equal(t, want, billing.FormatCurrency(v), "input %s", in)
	}
}

func TestFormatQty(t *testing.T) {
	assert.Equal(t, "8", billing.FormatQty(decimal.NewFromInt(8)))
	assert.Equal(t, "2.50", billing.FormatQty(decimal.RequireFromString("2.5")))
}
