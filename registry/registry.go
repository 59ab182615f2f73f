/*
Package registry provides the persisted idempotency ledger for generated
invoices.

PURPOSE:
  Maps each source filename to its permanently assigned identifiers and the
  content hash of the input that produced them. Once an entry exists, its
  canonical id is frozen: replaying an unchanged file must reproduce
  byte-identical output, and a previously issued number never changes.

LEDGER SEMANTICS:
  - Entries are created on first successful generation
  - Entries are updated (never deleted) on subsequent generations
  - mark-paid is NOT create-on-write: it fails for unknown filenames
  - Load never fails: a missing or corrupt file yields an empty registry

ON-DISK FORMAT (JSON):
  {
    "2025-01-acme.yaml": {
      "canonical_id": "ACM-01-03-250115",
      "content_hash": "sha256...",
      "actual_id": "ACM-01-04-250115",     // only when display != canonical
      "payment_received": "2025-02-01",    // date string, or true (legacy)
      "last_generated": "..."
    }
  }
  Object keys are sorted by the YYMMDD suffix embedded in canonical_id,
  falling back to the filename when the suffix cannot be extracted.

CONCURRENCY:
  Single-writer batch model. The registry is read once per run, mutated in
  memory, and written after each successful invoice. Concurrent processes
  against the same file are unsafe (no locking, no compare-and-swap).
*/
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is the ledger record for one source file.
type Entry struct {
	CanonicalID string `json:"canonical_id"`
	ContentHash string `json:"content_hash"`

	// ActualID is the displayed number when it differs from the canonical
	// id (legacy numbering or an explicit operator override).
	ActualID string `json:"actual_id,omitempty"`

	// PaymentReceived is a receipt date string, or a bare true in old
	// registries. Kept loosely typed to round-trip both.
	PaymentReceived interface{} `json:"payment_received,omitempty"`

	LastGenerated time.Time `json:"last_generated"`
}

// Paid reports whether payment has been recorded for this entry.
func (e *Entry) Paid() bool {
	switch v := e.PaymentReceived.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

type Registry struct {
	Entries map[string]*Entry
}

func New() *Registry {
	return &Registry{Entries: map[string]*Entry{}}
}

// Load reads the registry at path. It never fails: a missing or corrupt
// file yields an empty registry.
func Load(path string) *Registry {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	entries := map[string]*Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return New()
	}
	r := New()
	for name, e := range entries {
		if e != nil {
			r.Entries[name] = e
		}
	}
	return r
}

// Entry returns the ledger record for a source filename.
func (r *Registry) Entry(filename string) (*Entry, bool) {
	e, ok := r.Entries[filename]
	return e, ok
}

// UpdateEntry upserts the record for filename, refreshing its timestamp and
// preserving all unrelated entries and the payment marker.
func (r *Registry) UpdateEntry(filename, canonicalID, contentHash, actualID string) {
	if e, ok := r.Entries[filename]; ok {
		e.CanonicalID = canonicalID
		e.ContentHash = contentHash
		e.ActualID = actualID
		e.LastGenerated = time.Now()
		return
	}
	r.Entries[filename] = &Entry{
		CanonicalID:   canonicalID,
		ContentHash:   contentHash,
		ActualID:      actualID,
		LastGenerated: time.Now(),
	}
}

// MarkPaid records a receipt date for an existing entry. Marking an unknown
// filename is an error: payment is never a create-on-write operation.
func (r *Registry) MarkPaid(filename, receiptDate string) error {
	e, ok := r.Entries[filename]
	if !ok {
		return fmt.Errorf("invoice %s not found in registry", filename)
	}
	e.PaymentReceived = receiptDate
	return nil
}

// Unpaid returns the filenames without a recorded payment, sorted
// descending (newest filing first, matching the receipt workflow).
func (r *Registry) Unpaid() []string {
	var names []string
	for name, e := range r.Entries {
		if !e.Paid() {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// dateSuffix extracts the 6-digit YYMMDD suffix from a canonical id, or ""
// when the id does not carry one.
func dateSuffix(canonicalID string) string {
	parts := strings.Split(canonicalID, "-")
	if len(parts) < 4 {
		return ""
	}
	last := parts[len(parts)-1]
	if len(last) != 6 {
		return ""
	}
	for _, c := range last {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return last
}

func sortKey(filename string, e *Entry) string {
	if s := dateSuffix(e.CanonicalID); s != "" {
		return s
	}
	return filename
}

// Save serializes the registry as a JSON object whose keys are ordered by
// the date suffix of each entry's canonical id.
func (r *Registry) Save(path string) error {
	names := make([]string, 0, len(r.Entries))
	for name := range r.Entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return sortKey(names[i], r.Entries[names[i]]) < sortKey(names[j], r.Entries[names[j]])
	})

	// encoding/json sorts map keys alphabetically, so the ordered object
	// is assembled by hand.
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, name := range names {
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		val, err := json.MarshalIndent(r.Entries[name], "  ", "  ")
		if err != nil {
			return err
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
