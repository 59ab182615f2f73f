/*
rules.go - business_rules.yaml schema

PURPOSE:
  Decodes the jurisdiction-level configuration: GST rates and threshold
  date, the state-code to name map, the default bank per GST category, and
  invoice-level defaults. Rates arrive as fractions (0.09 = 9%) and are
  converted to decimals at load time so downstream math never touches
  floats.
*/
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/invoice-engine/tax"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// TaxRules is the tax section of business_rules.yaml.
type TaxRules struct {
	DefaultGSTRate   float64 `yaml:"default_gst_rate"`
	CGSTRate         float64 `yaml:"cgst_rate"`
	SGSTRate         float64 `yaml:"sgst_rate"`
	IGSTRate         float64 `yaml:"igst_rate"`
	GSTThresholdDate string  `yaml:"gst_threshold_date"`
	DefaultSACCode   string  `yaml:"default_sac_code"`
	LUTTextTemplate  string  `yaml:"lut_text_template"`
}

// InvoiceDefaults carries fallbacks applied when neither the spec nor the
// contract supplies a value.
type InvoiceDefaults struct {
	PaymentTerms string `yaml:"payment_terms"`
}

// BusinessRules is the decoded business_rules.yaml.
type BusinessRules struct {
	TaxRules        TaxRules          `yaml:"tax_rules"`
	StateMap        map[string]string `yaml:"state_map"`
	DefaultBanks    map[string]string `yaml:"default_banks"`
	InvoiceDefaults InvoiceDefaults   `yaml:"invoice_defaults"`

	thresholdDate time.Time
}

// ParseBusinessRules decodes and validates the business rules YAML.
func ParseBusinessRules(data []byte) (BusinessRules, error) {
	rules := BusinessRules{
		TaxRules: TaxRules{
			DefaultGSTRate:  0.18,
			CGSTRate:        0.09,
			SGSTRate:        0.09,
			IGSTRate:        0.18,
			DefaultSACCode:  "998399",
			LUTTextTemplate: "Supply meant for export under LUT No. {lut_number} without payment of integrated tax.",
		},
		InvoiceDefaults: InvoiceDefaults{PaymentTerms: "Net 30"},
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("invalid business rules: %w", err)
	}

	if rules.TaxRules.GSTThresholdDate == "" {
		rules.TaxRules.GSTThresholdDate = "2024-04-16"
	}
	t, err := time.Parse(dateLayout, rules.TaxRules.GSTThresholdDate)
	if err != nil {
		return rules, fmt.Errorf("invalid gst_threshold_date %q: %w", rules.TaxRules.GSTThresholdDate, err)
	}
	rules.thresholdDate = t

	if rules.StateMap == nil {
		rules.StateMap = map[string]string{}
	}
	if rules.DefaultBanks == nil {
		rules.DefaultBanks = map[string]string{}
	}
	return rules, nil
}

// GSTThreshold returns the parsed GST threshold date.
func (r BusinessRules) GSTThreshold() time.Time {
	return r.thresholdDate
}

// Tax converts the configured rates into the tax engine's rules.
func (r BusinessRules) Tax() tax.Rules {
	return tax.Rules{
		DefaultRate:   decimal.NewFromFloat(r.TaxRules.DefaultGSTRate),
		CGSTRate:      decimal.NewFromFloat(r.TaxRules.CGSTRate),
		SGSTRate:      decimal.NewFromFloat(r.TaxRules.SGSTRate),
		IGSTRate:      decimal.NewFromFloat(r.TaxRules.IGSTRate),
		ThresholdDate: r.thresholdDate,
		LUTTemplate:   r.TaxRules.LUTTextTemplate,
	}
}

// DefaultBank returns the bank id for a GST category, falling back to the
// "default" key. Empty when neither is configured.
func (r BusinessRules) DefaultBank(gstCategory string) string {
	if id, ok := r.DefaultBanks[gstCategory]; ok {
		return id
	}
	return r.DefaultBanks["default"]
}
