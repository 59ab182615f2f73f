/*
spec.go - Invoice specification and contract decoding

PURPOSE:
  Decodes the two YAML inputs that drive generation: the per-invoice
  specification and the reusable contract it may reference. Legacy field
  names are rewritten here, during decode, so the rest of the engine only
  ever sees the canonical schema:

    billing_type          -> billing_preset (input only, preset absent)
    contract_number       -> contract_ref
    service_description   -> service
    invoice_sequence_number "00" -> contract_series: false
    single-shot billing types    -> contract_series: false

FAIL FAST:
  The date must parse as YYYY-MM-DD at construction time. A spec with a
  malformed date is rejected before any resolution or computation happens.
*/
package invoice

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used across all YAML inputs.
const DateLayout = "2006-01-02"

// =============================================================================
// INVOICE SPEC
// =============================================================================

// Spec is the raw per-invoice input, normalized to the canonical schema.
type Spec struct {
	Date string `yaml:"date"`

	ContractSeries *bool  `yaml:"contract_series"`
	BillingPreset  string `yaml:"billing_preset"`

	ContractID         string `yaml:"contract_id"`
	ClientID           string `yaml:"client_id"`
	SenderID           string `yaml:"sender_id"`
	BankID             string `yaml:"bank_id"`
	WorkSequenceNumber string `yaml:"work_sequence_number"`
	BillingType        string `yaml:"billing_type"`

	PONumber     string `yaml:"po_number"`
	ContractRef  string `yaml:"contract_ref"`
	Service      string `yaml:"service"`
	SACCode      string `yaml:"sac_code"`
	PaymentTerms string `yaml:"payment_terms"`
	ContactID    string `yaml:"contact_id"`

	MilestoneRefs []string               `yaml:"milestones_refs"`
	LineItems     []LineItem             `yaml:"line_items"`
	Params        map[string]interface{} `yaml:"params"`
	BillingTerms  map[string]interface{} `yaml:"billing_terms"`
	Labels        map[string]string      `yaml:"labels"`

	Client map[string]interface{} `yaml:"client"`
	Sender map[string]interface{} `yaml:"sender"`
	Bank   map[string]interface{} `yaml:"bank"`

	InvoiceSequenceNumber string `yaml:"invoice_sequence_number"`
	InvoiceNumber         string `yaml:"invoice_number"`

	// Legacy aliases consumed by normalize; canonical fields above win.
	LegacyContractNumber string `yaml:"contract_number"`
	LegacyService        string `yaml:"service_description"`
}

// oneOffBillingTypes are legacy billing types that imply a standalone
// (non-series) invoice.
var oneOffBillingTypes = map[string]bool{
	"flat_fee_single": true,
	"rate_single":     true,
	"reimbursement":   true,
}

// ParseSpec decodes and normalizes a YAML invoice specification.
func ParseSpec(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Spec) normalize() {
	if s.BillingPreset == "" && s.BillingType != "" {
		s.BillingPreset = s.BillingType
		if oneOffBillingTypes[s.BillingType] && s.ContractSeries == nil {
			f := false
			s.ContractSeries = &f
		}
	}
	if s.ContractSeries == nil && s.InvoiceSequenceNumber == "00" {
		f := false
		s.ContractSeries = &f
	}
	if s.ContractRef == "" && s.LegacyContractNumber != "" {
		s.ContractRef = s.LegacyContractNumber
	}
	if s.Service == "" && s.LegacyService != "" {
		s.Service = s.LegacyService
	}
	if s.Params == nil {
		s.Params = map[string]interface{}{}
	}
	if s.BillingTerms == nil {
		s.BillingTerms = map[string]interface{}{}
	}
	if s.Labels == nil {
		s.Labels = map[string]string{}
	}
	if s.Client == nil {
		s.Client = map[string]interface{}{}
	}
	if s.Sender == nil {
		s.Sender = map[string]interface{}{}
	}
	if s.Bank == nil {
		s.Bank = map[string]interface{}{}
	}
}

// Validate enforces the fail-fast invariants of a spec.
func (s *Spec) Validate() error {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidSpec, s.Date)
	}
	return nil
}

// ParsedDate returns the invoice date. Validate must have passed.
func (s *Spec) ParsedDate() time.Time {
	t, _ := time.Parse(DateLayout, s.Date)
	return t
}

// =============================================================================
// CONTRACT
// =============================================================================

// Milestone is one entry of a contract's milestone table. Amount, when set,
// bypasses percentage math entirely.
type Milestone struct {
	Number      string `yaml:"number"`
	Percentage  *Dec   `yaml:"percentage"`
	Amount      *Dec   `yaml:"amount"`
	Description string `yaml:"description"`
}

// Contract is a reusable engagement template.
type Contract struct {
	ClientID           string `yaml:"client_id"`
	SenderID           string `yaml:"sender_id"`
	BankID             string `yaml:"bank_id"`
	WorkSequenceNumber string `yaml:"work_sequence_number"`
	BillingPreset      string `yaml:"billing_preset"`
	BillingType        string `yaml:"billing_type"`

	Params       map[string]interface{} `yaml:"params"`
	BillingTerms map[string]interface{} `yaml:"billing_terms"`
	Labels       map[string]string      `yaml:"labels"`

	Client map[string]interface{} `yaml:"client"`
	Sender map[string]interface{} `yaml:"sender"`
	Bank   map[string]interface{} `yaml:"bank"`

	Milestones map[string]Milestone `yaml:"milestones"`

	PONumber     string `yaml:"po_number"`
	ContractRef  string `yaml:"contract_ref"`
	Service      string `yaml:"service"`
	SACCode      string `yaml:"sac_code"`
	PaymentTerms string `yaml:"payment_terms"`
	ContactID    string `yaml:"contact_id"`

	ContractSeries *bool `yaml:"contract_series"`
}

// ParseContract decodes a YAML contract.
func ParseContract(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}
	if c.Params == nil {
		c.Params = map[string]interface{}{}
	}
	if c.BillingTerms == nil {
		c.BillingTerms = map[string]interface{}{}
	}
	if c.Labels == nil {
		c.Labels = map[string]string{}
	}
	if c.Client == nil {
		c.Client = map[string]interface{}{}
	}
	if c.Sender == nil {
		c.Sender = map[string]interface{}{}
	}
	if c.Bank == nil {
		c.Bank = map[string]interface{}{}
	}
	return &c, nil
}

// Series reports whether the contract runs a numbered invoice series.
// Contracts are series engagements unless they opt out.
func (c *Contract) Series() bool {
	return c.ContractSeries == nil || *c.ContractSeries
}
