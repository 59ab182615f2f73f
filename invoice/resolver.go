/*
resolver.go - The configuration merge cascade and entity resolution

PURPOSE:
  Top-level orchestrator of the resolution pipeline. Merges a spec with its
  contract (when referenced) and the profile databases into one flattened
  MergedConfig, expands milestone references into line items, resolves the
  client/sender/bank entities, and delegates identifier assignment to the
  numbering engine. The output is an immutable Resolved invoice.

MERGE PRECEDENCE (lowest to highest, later wins on key collision):
  contract.params < contract.billing_terms < spec.billing_terms < spec.params
  contract.{client,sender,bank} < spec.{client,sender,bank}

  Billing preset resolution: spec.billing_preset > contract.billing_preset
  > spec.billing_type (legacy) > contract.billing_type.

  Legacy parameter aliases fill ONLY an absent target key:
  rate_per_unit / rate_per_hour -> rate, included_hours -> threshold.

ENTITY RESOLUTION:
  Client  = profile overridden by merged client overrides, id injected.
  Bank    = explicit id, else default_banks[client.gst_category], else
            default_banks["default"].
  Sender  = the "consultant" profile when the invoice date is on or after
            the GST threshold date, else the configured sender_id. This
            models a real entity-structure change effective that date and
            is deliberately not parameterizable per invoice.
  LUT     = lut_order_number.current, overridden by the fiscal-year entry
            in history when one matches (FY starts April 1); attached to
            the sender only for overseas clients.
  Asset path fields are rewritten to the assets directory by basename.

MILESTONES:
  Each reference expands to one line item. Amount = the milestone's
  explicit amount, else total_contract_value x percentage/100 rounded
  half-up to 2 places. Unresolved references are skipped (logged at warn;
  outputs unchanged). Dates come positionally from the spec's raw line
  items when present.
*/
package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/invoice-engine/numbering"
	"github.com/warp/invoice-engine/registry"
)

// =============================================================================
// RESOLVER SETUP
// =============================================================================

// ResolverRules are the business-rule inputs resolution depends on.
type ResolverRules struct {
	GSTThreshold        time.Time
	DefaultBanks        map[string]string
	DefaultSACCode      string
	DefaultPaymentTerms string
}

// DefaultBank returns the bank id for a GST category, falling back to the
// "default" key.
func (r ResolverRules) DefaultBank(gstCategory string) string {
	if id, ok := r.DefaultBanks[gstCategory]; ok {
		return id
	}
	return r.DefaultBanks["default"]
}

// ResolverConfig wires the resolver to its data directories and rules.
type ResolverConfig struct {
	ProfilesDir  string
	ContractsDir string
	InvoicesDir  string
	AssetsDir    string
	Rules        ResolverRules
}

// Resolver performs the merge cascade and entity resolution.
type Resolver struct {
	cfg       ResolverConfig
	profiles  *Profiles
	numbering *numbering.Engine
	log       zerolog.Logger
}

// NewResolver loads the profile databases once and prepares the numbering
// engine over the same client set.
func NewResolver(cfg ResolverConfig, log zerolog.Logger) (*Resolver, error) {
	profiles, err := LoadProfiles(cfg.ProfilesDir)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		cfg:      cfg,
		profiles: profiles,
		numbering: &numbering.Engine{
			ContractsDir: cfg.ContractsDir,
			InvoicesDir:  cfg.InvoicesDir,
			Clients:      profiles.Clients,
		},
		log: log.With().Str("component", "resolver").Logger(),
	}, nil
}

// Profiles exposes the loaded profile databases (read-only use).
func (r *Resolver) Profiles() *Profiles { return r.profiles }

// =============================================================================
// RESOLUTION ENTRY POINT
// =============================================================================

// ResolveInvoice assembles the full invoice state for one source file.
func (r *Resolver) ResolveInvoice(spec *Spec, reg *registry.Registry, filename string) (*Resolved, error) {
	var merged MergedConfig
	if spec.ContractID != "" {
		contract, err := r.loadContract(spec.ContractID)
		if err != nil {
			return nil, err
		}
		merged, err = r.mergeContract(spec, contract)
		if err != nil {
			return nil, err
		}
		r.expandMilestones(spec, contract, merged.Params)
	} else {
		var err error
		merged, err = r.configFromSpec(spec)
		if err != nil {
			return nil, err
		}
	}

	date := spec.ParsedDate()
	client, sender, bank, err := r.resolveEntities(&merged, date)
	if err != nil {
		return nil, err
	}

	if merged.WorkSeq == "" {
		merged.WorkSeq = r.numbering.WorkSequence(client.Prefix, reg, filename, spec.Date)
	}

	series := merged.ContractSeries
	if spec.InvoiceSequenceNumber == "00" {
		series = false
	}
	oneOff := !series

	invoiceNumber := r.numbering.InvoiceNumber(
		client.Prefix, merged.WorkSeq, date.Format(numbering.CanonicalDateLayout),
		filename, oneOff, reg, spec.InvoiceNumber,
	)
	canonicalNumber := r.numbering.CanonicalID(
		client.Prefix, merged.WorkSeq, date, filename, oneOff, spec.InvoiceSequenceNumber,
	)

	return &Resolved{
		Spec:            spec,
		Config:          merged,
		Client:          client,
		Sender:          sender,
		Bank:            bank,
		InvoiceNumber:   invoiceNumber,
		CanonicalNumber: canonicalNumber,
		Date:            date,
		PostGST:         !date.Before(r.cfg.Rules.GSTThreshold),
	}, nil
}

func (r *Resolver) loadContract(contractID string) (*Contract, error) {
	path := filepath.Join(r.cfg.ContractsDir, contractID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, contractID)
	}
	return ParseContract(data)
}

// =============================================================================
// MERGE CASCADE
// =============================================================================

// mergeMaps copies base and lays each subsequent layer on top.
func mergeMaps(layers ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func mergeLabels(base, top map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// applyParamAliases fills canonical parameter keys from their legacy
// names, only when the target key is absent.
func applyParamAliases(params map[string]interface{}) {
	if _, ok := params["rate"]; !ok {
		if v, ok := params["rate_per_unit"]; ok {
			params["rate"] = v
		} else if v, ok := params["rate_per_hour"]; ok {
			params["rate"] = v
		}
	}
	if _, ok := params["threshold"]; !ok {
		if v, ok := params["included_hours"]; ok {
			params["threshold"] = v
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r *Resolver) mergeContract(spec *Spec, contract *Contract) (MergedConfig, error) {
	if contract.ClientID == "" || contract.SenderID == "" {
		return MergedConfig{}, fmt.Errorf("%w: contract must name client_id and sender_id", ErrMissingReference)
	}

	params := mergeMaps(contract.Params, contract.BillingTerms, spec.BillingTerms, spec.Params)

	labels := mergeLabels(contract.Labels, spec.Labels)
	for k, v := range labels {
		params[k] = v
	}

	applyParamAliases(params)

	return MergedConfig{
		ClientID:      contract.ClientID,
		SenderID:      contract.SenderID,
		BankID:        firstNonEmpty(spec.BankID, contract.BankID),
		WorkSeq:       firstNonEmpty(spec.WorkSequenceNumber, contract.WorkSequenceNumber),
		BillingPreset: firstNonEmpty(spec.BillingPreset, contract.BillingPreset, spec.BillingType, contract.BillingType),
		Params:        params,

		PONumber:     firstNonEmpty(spec.PONumber, contract.PONumber),
		ContractRef:  firstNonEmpty(spec.ContractRef, contract.ContractRef),
		Service:      firstNonEmpty(spec.Service, contract.Service),
		SACCode:      firstNonEmpty(spec.SACCode, contract.SACCode, r.cfg.Rules.DefaultSACCode),
		PaymentTerms: firstNonEmpty(spec.PaymentTerms, contract.PaymentTerms, r.cfg.Rules.DefaultPaymentTerms),
		ContactID:    firstNonEmpty(spec.ContactID, contract.ContactID),
		Labels:       labels,

		ClientOverrides: mergeMaps(contract.Client, spec.Client),
		SenderOverrides: mergeMaps(contract.Sender, spec.Sender),
		BankOverrides:   mergeMaps(contract.Bank, spec.Bank),

		ContractSeries: contract.Series(),
	}, nil
}

func (r *Resolver) configFromSpec(spec *Spec) (MergedConfig, error) {
	if spec.ClientID == "" {
		return MergedConfig{}, fmt.Errorf("%w: client_id required", ErrMissingReference)
	}
	if spec.SenderID == "" {
		return MergedConfig{}, fmt.Errorf("%w: sender_id required", ErrMissingReference)
	}
	// Contract invoices may leave the bank to the default-bank chain; a
	// standalone spec must name all three parties itself.
	if spec.BankID == "" {
		return MergedConfig{}, fmt.Errorf("%w: bank_id required", ErrMissingReference)
	}

	params := mergeMaps(spec.BillingTerms, spec.Params)
	applyParamAliases(params)

	series := true
	if spec.ContractSeries != nil {
		series = *spec.ContractSeries
	}

	return MergedConfig{
		ClientID:      spec.ClientID,
		SenderID:      spec.SenderID,
		BankID:        spec.BankID,
		WorkSeq:       spec.WorkSequenceNumber,
		BillingPreset: spec.BillingPreset,
		Params:        params,

		PONumber:     spec.PONumber,
		ContractRef:  spec.ContractRef,
		Service:      spec.Service,
		SACCode:      firstNonEmpty(spec.SACCode, r.cfg.Rules.DefaultSACCode),
		PaymentTerms: firstNonEmpty(spec.PaymentTerms, r.cfg.Rules.DefaultPaymentTerms),
		ContactID:    spec.ContactID,
		Labels:       spec.Labels,

		ClientOverrides: spec.Client,
		SenderOverrides: spec.Sender,
		BankOverrides:   spec.Bank,

		ContractSeries: series,
	}, nil
}

// =============================================================================
// MILESTONE EXPANSION
// =============================================================================

func (r *Resolver) expandMilestones(spec *Spec, contract *Contract, params map[string]interface{}) {
	if len(spec.MilestoneRefs) == 0 || len(contract.Milestones) == 0 {
		return
	}

	totalValue := ToDecimal(params["total_contract_value"])
	currency := "INR"
	if v, ok := params["currency"]; ok && v != nil {
		currency = fmt.Sprint(v)
	}

	overrides := spec.LineItems
	spec.LineItems = nil

	for idx, ref := range spec.MilestoneRefs {
		def, ok := contract.Milestones[ref]
		if !ok {
			r.log.Warn().Str("milestone", ref).Str("contract", spec.ContractID).
				Msg("unresolved milestone reference skipped")
			continue
		}

		percentage := "0"
		if def.Percentage != nil {
			percentage = def.Percentage.String()
		}

		var amount decimal.Decimal
		if def.Amount != nil {
			amount = def.Amount.Decimal
		} else {
			pct := decimal.Zero
			if def.Percentage != nil {
				pct = def.Percentage.Decimal
			}
			amount = totalValue.Mul(pct.Div(decimal.NewFromInt(100))).Round(2)
		}

		description := def.Description
		if description == "" {
			description = "Milestone: " + ref
		}

		date := ""
		if idx < len(overrides) {
			date = firstNonEmpty(overrides[idx].DateCompleted, overrides[idx].Date)
		}

		number := def.Number
		if number == "" {
			number = "--"
		}

		amt := amount
		spec.LineItems = append(spec.LineItems, LineItem{
			Description: description,
			Date:        date,
			Quantity:    decimal.NewFromInt(1),
			Amount:      &amt,
			Meta: map[string]interface{}{
				"number":      number,
				"percentage":  percentage,
				"currency":    currency,
				"total_value": totalValue.String(),
			},
		})
	}
}

// =============================================================================
// ENTITY RESOLUTION
// =============================================================================

func (r *Resolver) resolveEntities(cfg *MergedConfig, date time.Time) (Client, Sender, map[string]interface{}, error) {
	clientProfile, ok := r.profiles.Clients[cfg.ClientID]
	if !ok {
		return Client{}, Sender{}, nil, fmt.Errorf("%w: unknown client %q", ErrMissingReference, cfg.ClientID)
	}
	clientData := mergeMaps(clientProfile, cfg.ClientOverrides)
	clientData["id"] = cfg.ClientID
	client, err := NewClient(clientData)
	if err != nil {
		return Client{}, Sender{}, nil, err
	}

	bankID := cfg.BankID
	if bankID == "" {
		bankID = r.cfg.Rules.DefaultBank(client.GSTCategory)
	}
	bankProfile, ok := r.profiles.Banks[bankID]
	if !ok {
		return Client{}, Sender{}, nil, fmt.Errorf("%w: unknown bank %q", ErrMissingReference, bankID)
	}
	bank := mergeMaps(bankProfile, cfg.BankOverrides)

	// The sender entity structure changed on the GST threshold date; all
	// invoices from that date onward issue from the consultant profile.
	senderID := cfg.SenderID
	if !date.Before(r.cfg.Rules.GSTThreshold) {
		senderID = "consultant"
	}
	senderProfile, ok := r.profiles.Self.Profiles[senderID]
	if !ok {
		return Client{}, Sender{}, nil, fmt.Errorf("%w: unknown sender %q", ErrMissingReference, senderID)
	}

	lutNumber := r.profiles.Self.LUTOrderNumber.Current
	if v, ok := r.profiles.Self.LUTOrderNumber.History[fiscalYearKey(date)]; ok {
		lutNumber = v
	}

	senderData := mergeMaps(senderProfile, cfg.SenderOverrides)
	if lutNumber != "" && client.GSTCategory == "overseas" {
		senderData["lut_number"] = lutNumber
	}
	sender, err := NewSender(senderData)
	if err != nil {
		return Client{}, Sender{}, nil, err
	}

	if sender.LogoPath != "" {
		sender.LogoPath = filepath.Join(r.cfg.AssetsDir, filepath.Base(sender.LogoPath))
	}
	if sender.SignaturePath != "" {
		sender.SignaturePath = filepath.Join(r.cfg.AssetsDir, filepath.Base(sender.SignaturePath))
	}

	return client, sender, bank, nil
}

// fiscalYearKey returns the "fy{YY}-{YY}" key for the fiscal year (April 1
// start) containing date.
func fiscalYearKey(date time.Time) string {
	start := date.Year()
	if date.Month() < time.April {
		start--
	}
	return fmt.Sprintf("fy%02d-%02d", start%100, (start+1)%100)
}
