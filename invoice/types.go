/*
Package invoice provides the canonical data model for the invoice engine.

PURPOSE:
  This package contains the typed structures every other component consumes:
  the raw per-invoice specification, reusable contracts, normalized line
  items, and the resolved entities (client, sender, bank). All inputs are
  normalized ONCE at decode time - downstream components never re-check
  legacy keys or sniff between maps and models.

KEY CONCEPTS IN THIS FILE (types.go):
  - Dec: A YAML-decodable fixed-point decimal (money and quantities)
  - LineItem: One unit of billable work, with unit aliases normalized
  - Resolved: The immutable output of the resolution pipeline

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Normalization at ingestion: unit aliases (hours/sessions/words/
     articles) and legacy field names are rewritten during decode
  3. Immutability: a Resolved invoice is never mutated after construction

SEE ALSO:
  - spec.go: InvoiceSpec and Contract decoding
  - entity.go: Client/Sender entities and format validation
  - resolver.go: The merge cascade producing Resolved
*/
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DEC - YAML-friendly fixed-point decimal
// =============================================================================

// Dec wraps decimal.Decimal so YAML scalars (quoted or not, with or without
// thousands separators) decode into exact values.
type Dec struct {
	decimal.Decimal
}

func NewDec(s string) Dec {
	return Dec{Decimal: MustDecimal(s)}
}

func (d *Dec) UnmarshalYAML(node *yaml.Node) error {
	s := strings.ReplaceAll(strings.TrimSpace(node.Value), ",", "")
	if s == "" || s == "~" || s == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", node.Value, err)
	}
	d.Decimal = v
	return nil
}

func (d Dec) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MustDecimal parses a decimal string, returning zero on failure.
func MustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return v
}

// ToDecimal coerces an arbitrary YAML/JSON value (string, int, float,
// decimal, nil) into a decimal. Nil and unparseable values become zero.
func ToDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case Dec:
		return x.Decimal
	case *Dec:
		if x == nil {
			return decimal.Zero
		}
		return x.Decimal
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		return MustDecimal(x)
	default:
		return MustDecimal(fmt.Sprint(x))
	}
}

// =============================================================================
// LINE ITEM - One unit of billable work
// =============================================================================

// LineItem is the canonical, already-normalized form of a work entry.
// Quantity defaults to 1.00; Amount and Rate are nil when the source
// specification omits them (the distinction matters to the formula engine).
type LineItem struct {
	Description string
	Date        string
	Quantity    decimal.Decimal
	Amount      *decimal.Decimal
	Rate        *decimal.Decimal
	Unit        string
	Owner       string
	Meta        map[string]interface{}

	// DateCompleted is only consulted by milestone expansion, where the
	// positional override items may carry a completion date.
	DateCompleted string
}

// lineItemYAML is the raw wire shape, including unit aliases that are
// folded into (quantity, unit) during decode.
type lineItemYAML struct {
	Description string                 `yaml:"description"`
	Date        string                 `yaml:"date"`
	Quantity    *Dec                   `yaml:"quantity"`
	Amount      *Dec                   `yaml:"amount"`
	Rate        *Dec                   `yaml:"rate"`
	Unit        string                 `yaml:"unit"`
	Owner       string                 `yaml:"owner"`
	Meta        map[string]interface{} `yaml:"meta"`

	DateCompleted string `yaml:"date_completed"`

	// Unit aliases. Exactly one is expected; first match wins.
	Hours    *Dec `yaml:"hours"`
	Sessions *Dec `yaml:"sessions"`
	Words    *Dec `yaml:"words"`
	Articles *Dec `yaml:"articles"`
}

func (li *LineItem) UnmarshalYAML(node *yaml.Node) error {
	var raw lineItemYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}

	li.Description = raw.Description
	li.Date = raw.Date
	li.Unit = raw.Unit
	li.Owner = raw.Owner
	li.Meta = raw.Meta
	li.DateCompleted = raw.DateCompleted

	li.Quantity = decimal.NewFromInt(1)
	if raw.Quantity != nil {
		li.Quantity = raw.Quantity.Decimal
	}
	for _, alias := range []struct {
		val  *Dec
		unit string
	}{
		{raw.Hours, "hour"},
		{raw.Sessions, "session"},
		{raw.Words, "word"},
		{raw.Articles, "article"},
	} {
		if alias.val != nil {
			li.Quantity = alias.val.Decimal
			li.Unit = alias.unit
			break
		}
	}

	if raw.Amount != nil {
		v := raw.Amount.Decimal
		li.Amount = &v
	}
	if raw.Rate != nil {
		v := raw.Rate.Decimal
		li.Rate = &v
	}
	return nil
}

// =============================================================================
// RESOLVED INVOICE - Output of the resolution pipeline
// =============================================================================

// MergedConfig is the single flattened configuration produced by the merge
// cascade. Later layers have already won; no component downstream consults
// the contract or the raw spec again.
type MergedConfig struct {
	ClientID      string
	SenderID      string
	BankID        string
	WorkSeq       string
	BillingPreset string
	Params        map[string]interface{}

	PONumber     string
	ContractRef  string
	Service      string
	SACCode      string
	PaymentTerms string
	ContactID    string
	Labels       map[string]string

	ClientOverrides map[string]interface{}
	SenderOverrides map[string]interface{}
	BankOverrides   map[string]interface{}

	ContractSeries bool
}

// Resolved is the fully assembled invoice state. It is owned by exactly one
// ResolveInvoice call and never mutated afterwards.
type Resolved struct {
	Spec            *Spec
	Config          MergedConfig
	Client          Client
	Sender          Sender
	Bank            map[string]interface{}
	InvoiceNumber   string
	CanonicalNumber string
	Date            time.Time
	PostGST         bool
}
