/*
Package billing provides the fee-formula evaluation engine.

PURPOSE:
  Turns a named, data-defined pricing formula (an ordered list of
  components) plus the merged parameter context into billing rows and a
  subtotal. Formulas live in configuration, not code: a preset references a
  formula by id and supplies row label/detail templates and default
  parameters.

KEY CONCEPTS:
  - Formula: ordered component list; components execute in declared order
  - Component: flat_rate or unit_rate - a CLOSED set, dispatched
    exhaustively (no plugin mechanism, by spec of the domain)
  - Context: preset defaults overlaid by invoice params plus derived
    date strings; "{name}" placeholders resolve against it at
    calculation time, not at load time
  - Row: one emitted billing line (label, details, amount)

COMPOSITION PRIMITIVES:
  flat_rate: one row from a fixed/interpolated amount, or one row per
             amount-bearing item (milestones, reimbursements)
  unit_rate: one row from summed quantities at a fixed rate (with
             min/max clamping), or one row per distinct per-item rate

PRECISION:
  All monetary and quantity arithmetic uses decimal.Decimal. Formatting
  (thousands separators, naive pluralization) is cosmetic and never feeds
  back into computation.

SEE ALSO:
  - components.go: The two component kinds
  - calculator.go: Context assembly and ordered execution
  - format.go: Placeholder interpolation and display formatting
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// COMPONENT & FORMULA DEFINITIONS
// =============================================================================

type ComponentType string

const (
	FlatRate ComponentType = "flat_rate"
	UnitRate ComponentType = "unit_rate"
)

// ComponentDef is one step of a pricing formula. Amount, Rate, MinQuantity
// and MaxQuantity hold either a literal number or a "{placeholder}" string
// resolved from the live context at calculation time.
type ComponentDef struct {
	Type        ComponentType `yaml:"type"`
	ID          string        `yaml:"id"`
	Amount      interface{}   `yaml:"amount"`
	Rate        interface{}   `yaml:"rate"`
	MinQuantity interface{}   `yaml:"min_quantity"`
	MaxQuantity interface{}   `yaml:"max_quantity"`
}

// Formula is an ordered list of components.
type Formula struct {
	Components []ComponentDef `yaml:"components"`
}

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

// RowTemplate carries the label/details templates for one component id.
type RowTemplate struct {
	Label   string `yaml:"label"`
	Details string `yaml:"details"`
}

// TableConfig describes presentation hints for a preset's tables. The
// engine itself only reads unit_name; the rest is forwarded to rendering.
type TableConfig struct {
	Headers  map[string]string `yaml:"headers"`
	Columns  []string          `yaml:"columns"`
	UnitName string            `yaml:"unit_name"`
}

// Preset is a named billing configuration referencing a formula.
type Preset struct {
	FormulaID    string                 `yaml:"formula_id"`
	DisplayTitle string                 `yaml:"display_title"`
	WorkTable    *TableConfig           `yaml:"work_table"`
	BillingTable TableConfig            `yaml:"billing_table"`
	RowTemplates map[string]RowTemplate `yaml:"row_templates"`
	Defaults     map[string]interface{} `yaml:"defaults"`
}

// presetYAML mirrors the on-disk shape, where row_templates nest inside
// billing_table.
type presetYAML struct {
	FormulaID    string                 `yaml:"formula_id"`
	DisplayTitle string                 `yaml:"display_title"`
	WorkTable    *TableConfig           `yaml:"work_table"`
	BillingTable struct {
		Headers      map[string]string      `yaml:"headers"`
		Columns      []string               `yaml:"columns"`
		UnitName     string                 `yaml:"unit_name"`
		RowTemplates map[string]RowTemplate `yaml:"row_templates"`
	} `yaml:"billing_table"`
	RowTemplates map[string]RowTemplate `yaml:"row_templates"`
	Defaults     map[string]interface{} `yaml:"defaults"`
}

func (p *Preset) UnmarshalYAML(node *yaml.Node) error {
	var raw presetYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p.FormulaID = raw.FormulaID
	p.DisplayTitle = raw.DisplayTitle
	if p.DisplayTitle == "" {
		p.DisplayTitle = "Invoice"
	}
	p.WorkTable = raw.WorkTable
	p.BillingTable = TableConfig{
		Headers:  raw.BillingTable.Headers,
		Columns:  raw.BillingTable.Columns,
		UnitName: raw.BillingTable.UnitName,
	}
	p.RowTemplates = raw.RowTemplates
	if p.RowTemplates == nil {
		p.RowTemplates = raw.BillingTable.RowTemplates
	}
	if p.RowTemplates == nil {
		p.RowTemplates = map[string]RowTemplate{}
	}
	if raw.Defaults == nil {
		p.Defaults = map[string]interface{}{}
	} else {
		p.Defaults = raw.Defaults
	}
	return nil
}

// Config bundles the named formulas and presets from config/billing.yaml.
type Config struct {
	Formulas map[string]Formula `yaml:"pricing_formulas"`
	Presets  map[string]Preset  `yaml:"invoice_presets"`
}

// ParseConfig decodes the billing configuration YAML.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid billing config: %w", err)
	}
	if cfg.Formulas == nil {
		cfg.Formulas = map[string]Formula{}
	}
	if cfg.Presets == nil {
		cfg.Presets = map[string]Preset{}
	}
	return cfg, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// Row is one emitted billing line.
type Row struct {
	Label   string
	Details string
	Amount  decimal.Decimal
}

// Result is the output of evaluating a formula: rows in emission order and
// their accumulated subtotal.
type Result struct {
	Lines    []Row
	Subtotal decimal.Decimal
}
