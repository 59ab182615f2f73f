/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: decimals
  serialize as strings so clients never receive a float-rounded amount.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/invoice-engine/pipeline"
	"github.com/warp/invoice-engine/registry"
	"github.com/warp/invoice-engine/turnover"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LineDTO is one billing or tax line.
type LineDTO struct {
	Label   string `json:"label"`
	Details string `json:"details,omitempty"`
	Amount  string `json:"amount"`
}

// InvoiceDTO is the assembled invoice returned by preview and generate.
type InvoiceDTO struct {
	Filename      string `json:"filename,omitempty"`
	InvoiceNumber string `json:"invoice_number"`
	CanonicalID   string `json:"canonical_id"`
	Date          string `json:"date"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	Currency      string `json:"currency"`

	Lines        []LineDTO `json:"lines"`
	Subtotal     string    `json:"subtotal"`
	ShowSubtotal bool      `json:"show_subtotal"`
	TaxLines     []LineDTO `json:"tax_lines"`
	TaxTotal     string    `json:"tax_total"`
	FinalTotal   string    `json:"final_total"`
	LUTText      string    `json:"lut_text,omitempty"`

	SACCode       string `json:"sac_code,omitempty"`
	PaymentTerms  string `json:"payment_terms,omitempty"`
	PlaceOfSupply string `json:"place_of_supply,omitempty"`
}

// RegistryEntryDTO is one ledger entry in API responses.
type RegistryEntryDTO struct {
	Filename      string `json:"filename"`
	CanonicalID   string `json:"canonical_id"`
	ActualID      string `json:"actual_id,omitempty"`
	Paid          bool   `json:"paid"`
	LastGenerated string `json:"last_generated"`
}

// GenerateRequest asks for a batch run over the configured invoices
// directory, or the named files within it.
type GenerateRequest struct {
	Files []string `json:"files,omitempty"`
	Force bool     `json:"force,omitempty"`
}

// GenerateResponseDTO summarizes a batch run.
type GenerateResponseDTO struct {
	Generated []InvoiceDTO      `json:"generated"`
	Skipped   []string          `json:"skipped"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// MarkPaidRequest records a payment receipt against a generated file.
type MarkPaidRequest struct {
	Filename    string `json:"filename"`
	ReceiptDate string `json:"receipt_date"`
}

// MonthTotalDTO is one month's turnover slice.
type MonthTotalDTO struct {
	Period string `json:"period"`
	Total  string `json:"total"`
}

// TurnoverDTO is the fiscal-year turnover report.
type TurnoverDTO struct {
	FiscalYear   string          `json:"fiscal_year"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Total        string          `json:"total"`
	InvoiceCount int             `json:"invoice_count"`
	ByMonth      []MonthTotalDTO `json:"by_month"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toInvoiceDTO(filename string, inv *pipeline.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		Filename:      filename,
		InvoiceNumber: inv.Resolved.InvoiceNumber,
		CanonicalID:   inv.Resolved.CanonicalNumber,
		Date:          inv.Resolved.Date.Format("2006-01-02"),
		ClientID:      inv.Resolved.Client.ID,
		ClientName:    inv.Resolved.Client.Name,
		Currency:      inv.Financials.Currency,
		Subtotal:      inv.Financials.Subtotal.StringFixed(2),
		ShowSubtotal:  inv.Financials.ShowSubtotal,
		TaxTotal:      inv.Financials.TaxTotal.StringFixed(2),
		FinalTotal:    inv.Financials.FinalTotal.StringFixed(2),
		LUTText:       inv.Financials.LUTText,
		SACCode:       inv.Financials.SACCode,
		PaymentTerms:  inv.Financials.PaymentTerms,
		PlaceOfSupply: inv.Financials.PlaceOfSupply,
	}
	for _, line := range inv.Financials.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			Label:   line.Label,
			Details: line.Details,
			Amount:  line.Amount.StringFixed(2),
		})
	}
	for _, line := range inv.Financials.TaxLines {
		dto.TaxLines = append(dto.TaxLines, LineDTO{
			Label:   line.Label,
			Details: line.RateDesc,
			Amount:  line.Amount.StringFixed(2),
		})
	}
	return dto
}

func toRegistryEntryDTO(filename string, e *registry.Entry) RegistryEntryDTO {
	return RegistryEntryDTO{
		Filename:      filename,
		CanonicalID:   e.CanonicalID,
		ActualID:      e.ActualID,
		Paid:          e.Paid(),
		LastGenerated: e.LastGenerated.Format("2006-01-02"),
	}
}

func toTurnoverDTO(stats *turnover.Stats) TurnoverDTO {
	dto := TurnoverDTO{
		FiscalYear:   stats.FiscalYear,
		From:         stats.From,
		To:           stats.To,
		Total:        stats.Total.StringFixed(2),
		InvoiceCount: stats.InvoiceCount,
	}
	for _, m := range stats.ByMonth {
		dto.ByMonth = append(dto.ByMonth, MonthTotalDTO{Period: m.Period, Total: m.Total.StringFixed(2)})
	}
	return dto
}
