package invoice_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/registry"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testClientsYAML = `
acme:
  name: Acme Corp
  prefix: ACM
  gstin: "27AAACA1234A1Z5"
  currency: INR
globex:
  name: Globex LLC
  prefix: GLX
  gst_category: overseas
  currency: USD
`

const testBanksYAML = `
hdfc_inr:
  name: HDFC Bank
  account: "1111"
sbi_usd:
  name: SBI
  account: "2222"
`

const testSelfYAML = `
profiles:
  consultant:
    name: Jane Doe
    gstin: "27ABCDE1234F1Z8"
    state_code: "27"
  studio:
    name: Jane Doe Studio
lut_order_number:
  current: "LUT-CURRENT"
  history:
    fy24-25: "LUT-2425"
    fy25-26: "LUT-2526"
`

func newTestResolver(t *testing.T) (*invoice.Resolver, string) {
	root := t.TempDir()
	profilesDir := filepath.Join(root, "profiles")
	contractsDir := filepath.Join(root, "contracts")
	invoicesDir := filepath.Join(root, "invoices")
	for _, dir := range []string{profilesDir, contractsDir, invoicesDir} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(profilesDir, "clients.yaml"), []byte(testClientsYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(profilesDir, "banks.yaml"), []byte(testBanksYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(profilesDir, "self.yaml"), []byte(testSelfYAML), 0o644))

	r, err := invoice.NewResolver(invoice.ResolverConfig{
		ProfilesDir:  profilesDir,
		ContractsDir: contractsDir,
		InvoicesDir:  invoicesDir,
		AssetsDir:    filepath.Join(root, "assets"),
		Rules: invoice.ResolverRules{
			GSTThreshold: time.Date(2024, time.April, 16, 0, 0, 0, 0, time.UTC),
			DefaultBanks: map[string]string{
				"regular":  "hdfc_inr",
				"overseas": "sbi_usd",
				"default":  "hdfc_inr",
			},
			DefaultSACCode:      "998399",
			DefaultPaymentTerms: "Net 30",
		},
	}, zerolog.Nop())
	require.NoError(t, err)
	return r, contractsDir
}

func writeContract(t *testing.T, contractsDir, id, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(contractsDir, id+".yaml"), []byte(content), 0o644))
}

func mustParse(t *testing.T, doc string) *invoice.Spec {
	t.Helper()
	spec, err := invoice.ParseSpec([]byte(doc))
	require.NoError(t, err)
	return spec
}

// =============================================================================
// MERGE CASCADE
// =============================================================================

func TestResolveInvoice_MergePrecedence(t *testing.T) {
	// GIVEN: The same key set at all four cascade layers
	// WHEN: Resolved
	// THEN: spec.params > spec.billing_terms > contract.billing_terms >
	//       contract.params, key by key

	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "acme-eng", `
client_id: acme
sender_id: consultant
bank_id: hdfc_inr
work_sequence_number: "01"
billing_preset: monthly_retainer
params:
  rate: 100
  retainer_fee: 5000
  currency: INR
billing_terms:
  rate: 200
  threshold: 10
`)

	spec := mustParse(t, `
date: 2025-06-01
contract_id: acme-eng
billing_terms:
  rate: 300
params:
  rate: 400
`)

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, 400, res.Config.Params["rate"])
	assert.Equal(t, 10, res.Config.Params["threshold"])   // untouched by spec
	assert.Equal(t, 5000, res.Config.Params["retainer_fee"]) // contract.params survives
	assert.Equal(t, "monthly_retainer", res.Config.BillingPreset)
}

func TestResolveInvoice_SpecPresetOverridesContract(t *testing.T) {
	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "acme-eng", `
client_id: acme
sender_id: consultant
bank_id: hdfc_inr
work_sequence_number: "01"
billing_preset: monthly_retainer
`)

	spec := mustParse(t, "date: 2025-06-01\ncontract_id: acme-eng\nbilling_preset: hourly\n")

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, "hourly", res.Config.BillingPreset)
}

func TestResolveInvoice_LegacyParamAliases(t *testing.T) {
	// rate_per_hour and included_hours are pre-schema names.
	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "acme-eng", `
client_id: acme
sender_id: consultant
bank_id: hdfc_inr
work_sequence_number: "01"
params:
  rate_per_hour: 150
  included_hours: 20
`)

	spec := mustParse(t, "date: 2025-06-01\ncontract_id: acme-eng\n")

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, 150, res.Config.Params["rate"])
	assert.Equal(t, 20, res.Config.Params["threshold"])
}

func TestResolveInvoice_DefaultsApplied(t *testing.T) {
	r, _ := newTestResolver(t)
	spec := mustParse(t, "date: 2025-06-01\nclient_id: acme\nsender_id: consultant\nbank_id: hdfc_inr\n")

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "998399", res.Config.SACCode)
	assert.Equal(t, "Net 30", res.Config.PaymentTerms)
}

// =============================================================================
// STANDALONE SPECS
// =============================================================================

func TestResolveInvoice_StandaloneRequiresAllParties(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.ResolveInvoice(mustParse(t, "date: 2025-06-01\nsender_id: consultant\nbank_id: hdfc_inr\n"), registry.New(), "t.yaml")
	assert.ErrorIs(t, err, invoice.ErrMissingReference)

	_, err = r.ResolveInvoice(mustParse(t, "date: 2025-06-01\nclient_id: acme\nbank_id: hdfc_inr\n"), registry.New(), "t.yaml")
	assert.ErrorIs(t, err, invoice.ErrMissingReference)

	// Without a contract there is no default-bank fallback either.
	_, err = r.ResolveInvoice(mustParse(t, "date: 2025-06-01\nclient_id: acme\nsender_id: consultant\n"), registry.New(), "t.yaml")
	assert.ErrorIs(t, err, invoice.ErrMissingReference)
}

func TestResolveInvoice_UnknownContract(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.ResolveInvoice(mustParse(t, "date: 2025-06-01\ncontract_id: ghost\n"), registry.New(), "t.yaml")
	assert.ErrorIs(t, err, invoice.ErrContractNotFound)
}

func TestResolveInvoice_DefaultBankByGSTCategory(t *testing.T) {
	// Contract names client and sender but no bank: the client's GST
	// category picks one from default_banks.
	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "globex-ret", `
client_id: globex
sender_id: consultant
work_sequence_number: "03"
`)

	res, err := r.ResolveInvoice(mustParse(t, "date: 2025-06-01\ncontract_id: globex-ret\n"), registry.New(), "t.yaml")
	require.NoError(t, err)
	assert.Equal(t, "SBI", res.Bank["name"])
}

// =============================================================================
// MILESTONE EXPANSION
// =============================================================================

func TestResolveInvoice_MilestonePercentages(t *testing.T) {
	// GIVEN: A 100000 contract with 30/70 milestones
	// WHEN: Both are referenced
	// THEN: Line items of 30000 and 70000 with milestone metadata

	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "acme-proj", `
client_id: acme
sender_id: consultant
bank_id: hdfc_inr
work_sequence_number: "02"
params:
  total_contract_value: 100000
milestones:
  discovery:
    number: "1"
    percentage: 30
    description: Discovery phase
  delivery:
    number: "2"
    percentage: 70
`)

	spec := mustParse(t, `
date: 2025-06-01
contract_id: acme-proj
milestones_refs: [discovery, delivery]
`)

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)

	items := res.Spec.LineItems
	require.Len(t, items, 2)
	assert.Equal(t, "Discovery phase", items[0].Description)
	assert.Equal(t, "30000", items[0].Amount.String())
	assert.Equal(t, "30", items[0].Meta["percentage"])
	assert.Equal(t, "100000", items[0].Meta["total_value"])
	assert.Equal(t, "Milestone: delivery", items[1].Description)
	assert.Equal(t, "70000", items[1].Amount.String())
}

func TestResolveInvoice_MilestoneExplicitAmountBypassesPercentage(t *testing.T) {
	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "acme-proj", `
client_id: acme
sender_id: consultant
bank_id: hdfc_inr
work_sequence_number: "02"
params:
  total_contract_value: 100000
milestones:
  fixed:
    percentage: 50
    amount: 12345.67
`)

	spec := mustParse(t, "date: 2025-06-01\ncontract_id: acme-proj\nmilestones_refs: [fixed]\n")

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)
	require.Len(t, res.Spec.LineItems, 1)
	assert.Equal(t, "12345.67", res.Spec.LineItems[0].Amount.String())
}

func TestResolveInvoice_UnresolvedMilestoneRefSkipped(t *testing.T) {
	r, contractsDir := newTestResolver(t)
	writeContract(t, contractsDir, "acme-proj", `
client_id: acme
sender_id: consultant
bank_id: hdfc_inr
work_sequence_number: "02"
params:
  total_contract_value: 1000
milestones:
  real:
    percentage: 100
`)

	spec := mustParse(t, "date: 2025-06-01\ncontract_id: acme-proj\nmilestones_refs: [ghost, real]\n")

	res, err := r.ResolveInvoice(spec, registry.New(), "test.yaml")
	require.NoError(t, err)
	require.Len(t, res.Spec.LineItems, 1)
	assert.Equal(t, "1000", res.Spec.LineItems[0].Amount.String())
}

// =============================================================================
// SENDER AND LUT SELECTION
// =============================================================================

func TestResolveInvoice_PostThresholdForcesConsultantSender(t *testing.T) {
	// From the GST registration date onward, all invoices issue from the
	// consultant profile whatever the spec says.
	r, _ := newTestResolver(t)

	res, err := r.ResolveInvoice(mustParse(t, "date: 2025-06-01\nclient_id: acme\nsender_id: studio\nbank_id: hdfc_inr\n"), registry.New(), "t.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Sender.Name)
	assert.True(t, res.PostGST)
}

func TestResolveInvoice_PreThresholdKeepsConfiguredSender(t *testing.T) {
	r, _ := newTestResolver(t)

	res, err := r.ResolveInvoice(mustParse(t, "date: 2024-01-15\nclient_id: acme\nsender_id: studio\nbank_id: hdfc_inr\n"), registry.New(), "t.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe Studio", res.Sender.Name)
	assert.False(t, res.PostGST)
}

func TestResolveInvoice_LUTNumberPerFiscalYear(t *testing.T) {
	// GIVEN: LUT history keyed by fiscal year (April 1 start)
	// WHEN: An overseas invoice is dated inside fy24-25 (Feb 2025)
	// THEN: The fy24-25 number attaches, not the current one

	r, _ := newTestResolver(t)

	res, err := r.ResolveInvoice(mustParse(t, "date: 2025-02-10\nclient_id: globex\nsender_id: consultant\nbank_id: sbi_usd\n"), registry.New(), "t.yaml")
	require.NoError(t, err)
	assert.Equal(t, "LUT-2425", res.Sender.LUTNumber)

	res, err = r.ResolveInvoice(mustParse(t, "date: 2025-06-10\nclient_id: globex\nsender_id: consultant\nbank_id: sbi_usd\n"), registry.New(), "t.yaml")
	require.NoError(t, err)
	assert.Equal(t, "LUT-2526", res.Sender.LUTNumber)
}

func TestResolveInvoice_NoLUTForDomesticClients(t *testing.T) {
	r, _ := newTestResolver(t)

	res, err := r.ResolveInvoice(mustParse(t, "date: 2025-06-01\nclient_id: acme\nsender_id: consultant\nbank_id: hdfc_inr\n"), registry.New(), "t.yaml")
	require.NoError(t, err)
	assert.Empty(t, res.Sender.LUTNumber)
}

// =============================================================================
// NUMBERING INTEGRATION
// =============================================================================

func TestResolveInvoice_OneOffSequenceZero(t *testing.T) {
	r, _ := newTestResolver(t)

	spec := mustParse(t, "date: 2025-06-01\nclient_id: acme\nsender_id: consultant\nbank_id: hdfc_inr\nbilling_type: reimbursement\n")
	res, err := r.ResolveInvoice(spec, registry.New(), "exp.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ACM-01-00-250601", res.CanonicalNumber)
	assert.Equal(t, "ACM-01-00-250601", res.InvoiceNumber)
}

func TestResolveInvoice_FrozenNumberSurvivesRegeneration(t *testing.T) {
	// A registry entry freezes the display number even when the sibling
	// set has since changed.
	r, _ := newTestResolver(t)
	reg := registry.New()
	reg.UpdateEntry("t.yaml", "ACM-01-01-250601", "h", "ACM-LEGACY-7")

	spec := mustParse(t, "date: 2025-06-01\nclient_id: acme\nsender_id: consultant\nbank_id: hdfc_inr\n")
	res, err := r.ResolveInvoice(spec, reg, "t.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ACM-LEGACY-7", res.InvoiceNumber)
}
