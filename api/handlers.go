/*
handlers.go - HTTP API handlers for the invoice engine

PURPOSE:
  Exposes the generation pipeline via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Invoices:
    POST   /api/invoices/generate           Run the batch pipeline
    GET    /api/invoices/{filename}/preview Assemble without writing

  Registry:
    GET    /api/registry                    List ledger entries
    POST   /api/registry/paid               Record a payment receipt

  Reports:
    GET    /api/turnover                    Fiscal-year turnover

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown file or registry entry
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/invoice-engine/archive"
	"github.com/warp/invoice-engine/config"
	"github.com/warp/invoice-engine/pipeline"
	"github.com/warp/invoice-engine/registry"
	"github.com/warp/invoice-engine/turnover"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Config    *config.Config
	Generator *pipeline.Generator
	Archive   *archive.Store
}

// NewHandler creates a new handler over a loaded configuration.
func NewHandler(cfg *config.Config, gen *pipeline.Generator, store *archive.Store) *Handler {
	return &Handler{Config: cfg, Generator: gen, Archive: store}
}

// =============================================================================
// INVOICES
// =============================================================================

// GenerateInvoices runs the batch pipeline over the invoices directory, or
// the files named in the request body.
func (h *Handler) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	var paths []string
	for _, f := range req.Files {
		name, ok := safeSpecName(f)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid filename: "+f, nil)
			return
		}
		paths = append(paths, filepath.Join(h.Config.InvoicesDir, name))
	}

	result, err := h.Generator.GenerateBatch(r.Context(), paths, req.Force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Batch run failed", err)
		return
	}

	resp := GenerateResponseDTO{Skipped: result.Skipped}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	resp.Generated = []InvoiceDTO{}
	for _, outcome := range result.Generated {
		resp.Generated = append(resp.Generated, toInvoiceDTO(outcome.Filename, outcome.Invoice))
	}
	if len(result.Failed) > 0 {
		resp.Failed = make(map[string]string, len(result.Failed))
		for _, f := range result.Failed {
			resp.Failed[f.Filename] = f.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PreviewInvoice assembles a spec file without touching the registry or
// the archive.
func (h *Handler) PreviewInvoice(w http.ResponseWriter, r *http.Request) {
	name, ok := safeSpecName(chi.URLParam(r, "filename"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid filename", nil)
		return
	}

	inv, err := h.Generator.Assemble(filepath.Join(h.Config.InvoicesDir, name))
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "failed to read spec") {
			status = http.StatusNotFound
		}
		writeError(w, status, "Failed to assemble invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(name, inv))
}

// =============================================================================
// REGISTRY
// =============================================================================

// ListRegistry returns all ledger entries, most recent canonical id first.
func (h *Handler) ListRegistry(w http.ResponseWriter, r *http.Request) {
	reg := registry.Load(h.Config.RegistryPath)

	filenames := make([]string, 0, len(reg.Entries))
	for name := range reg.Entries {
		filenames = append(filenames, name)
	}
	sort.Strings(filenames)

	dtos := make([]RegistryEntryDTO, 0, len(filenames))
	for _, name := range filenames {
		dtos = append(dtos, toRegistryEntryDTO(name, reg.Entries[name]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkPaid records a payment receipt for a generated invoice.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required", nil)
		return
	}
	if req.ReceiptDate == "" {
		req.ReceiptDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", req.ReceiptDate); err != nil {
		writeError(w, http.StatusBadRequest, "receipt_date must be YYYY-MM-DD", err)
		return
	}

	if err := pipeline.MarkPaid(h.Config.RegistryPath, req.Filename, req.ReceiptDate); err != nil {
		writeError(w, http.StatusNotFound, "Failed to mark paid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REPORTS
// =============================================================================

// GetTurnover reports fiscal-year turnover. Optional ?date=YYYY-MM-DD
// selects the fiscal year containing that date; default is today.
func (h *Handler) GetTurnover(w http.ResponseWriter, r *http.Request) {
	ref := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
			return
		}
		ref = parsed
	}

	stats, err := turnover.Compute(r.Context(), h.Archive, ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute turnover", err)
		return
	}
	writeJSON(w, http.StatusOK, toTurnoverDTO(stats))
}

// =============================================================================
// HELPERS
// =============================================================================

// safeSpecName confines a client-supplied filename to a single *.yaml name
// inside the invoices directory.
func safeSpecName(name string) (string, bool) {
	base := filepath.Base(name)
	if base != name || !strings.HasSuffix(base, ".yaml") || strings.HasPrefix(base, ".") {
		return "", false
	}
	return base, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
