/*
Package numbering computes the two identifiers an invoice carries.

PURPOSE:
  Every invoice has a permanent (canonical) id and a display (actual)
  number. The canonical id is a pure function of (client prefix, work
  sequence, chronological rank among siblings, date) - NEVER of wall-clock
  generation order. That is what keeps output byte-identical across
  replays: a backdated sibling slots into its date-correct position; ranks
  already frozen in the registry stay frozen.

IDENTIFIER FORMAT:
  {PREFIX}-{WORK_SEQ:02d}-{SEQ:02d}-{YYMMDD}

  PREFIX    client prefix (e.g. ACM)
  WORK_SEQ  client-scoped ordinal distinguishing engagements
  SEQ       rank within the (prefix, work_seq) sibling set; "00" = one-off
  YYMMDD    invoice date

DISPLAY NUMBER PRECEDENCE:
  1. Explicit override on the spec (absolute, bypasses everything)
  2. Existing registry entry: actual_id, else canonical_id (a previously
     issued number never changes)
  3. One-off: {prefix}-{work_seq}-00-{date}
  4. Series: max sequence observed in registry canonical ids, plus one

RANKING:
  Canonical SEQ is the 1-indexed rank of the file among ALL files (registry
  plus contract/invoice directories) sharing (prefix, work_seq), ordered by
  (invoice date, filename). The sibling set is fully re-sorted on every
  computation - there is no incrementing counter. The work sequence is the
  same ranking over all files sharing only the prefix; registry entries
  contribute dates decoded from their own canonical-id suffix.

DEGRADATION:
  Unreadable or malformed sibling files are silently excluded from ranking
  scans. A file that later becomes parseable can shift computed ranks for
  entries not yet frozen in the registry.

SEE ALSO:
  - registry: the frozen-id ledger these scans consult
  - invoice.Resolver: the single caller of this engine
*/
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/warp/invoice-engine/registry"
)

// CanonicalDateLayout is the YYMMDD suffix format of canonical ids.
const CanonicalDateLayout = "060102"

// Engine computes invoice identifiers. Clients maps client id to its
// profile map (for prefix lookup during directory scans).
type Engine struct {
	ContractsDir string
	InvoicesDir  string
	Clients      map[string]map[string]interface{}
}

// =============================================================================
// DISPLAY NUMBER
// =============================================================================

// InvoiceNumber determines the display number for a source file. dateStr
// is the invoice date in YYMMDD form.
func (e *Engine) InvoiceNumber(prefix, workSeq, dateStr, filename string, oneOff bool, reg *registry.Registry, override string) string {
	if override != "" {
		return override
	}

	if entry, ok := reg.Entry(filename); ok {
		if entry.ActualID != "" {
			return entry.ActualID
		}
		return entry.CanonicalID
	}

	if oneOff {
		return fmt.Sprintf("%s-%s-00-%s", prefix, workSeq, dateStr)
	}

	// Monotonic counter scoped to registry contents: the maximum sequence
	// observed among canonical ids for this (prefix, work_seq), plus one.
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-` + regexp.QuoteMeta(workSeq) + `-(\d{2})-`)
	maxSeq := 0
	for _, entry := range reg.Entries {
		m := pattern.FindStringSubmatch(entry.CanonicalID)
		if m == nil {
			continue
		}
		if seq, err := strconv.Atoi(m[1]); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}
	return fmt.Sprintf("%s-%s-%02d-%s", prefix, workSeq, maxSeq+1, dateStr)
}

// =============================================================================
// CANONICAL ID
// =============================================================================

// CanonicalID computes the permanent identifier for a source file. A
// manual sequence override wins outright; one-off invoices take "00";
// otherwise the sequence is the file's 1-indexed rank among all siblings
// sharing (prefix, workSeq), ordered by (date, filename).
func (e *Engine) CanonicalID(prefix, workSeq string, date time.Time, filename string, oneOff bool, manualSeq string) string {
	dateStr := date.Format(CanonicalDateLayout)

	if manualSeq != "" {
		return fmt.Sprintf("%s-%s-%s-%s", prefix, workSeq, manualSeq, dateStr)
	}
	if oneOff {
		return fmt.Sprintf("%s-%s-00-%s", prefix, workSeq, dateStr)
	}

	siblings := e.scanFiles(func(f fileFacts) bool {
		return f.prefix == prefix && f.workSeq == workSeq && f.date != ""
	}, true)

	rank := rankOf(siblings, filename)
	return fmt.Sprintf("%s-%s-%02d-%s", prefix, workSeq, rank, dateStr)
}

// =============================================================================
// WORK SEQUENCE
// =============================================================================

// WorkSequence ranks the current file among every invoice sharing the
// client prefix, regardless of work sequence. Registry entries supply
// dates decoded from their canonical-id suffix; files absent from the
// registry are parsed (or, for the in-flight file, currentDate is used).
func (e *Engine) WorkSequence(prefix string, reg *registry.Registry, currentFile, currentDate string) string {
	var partners []partner
	seen := map[string]bool{}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-\d{2}-\d{2}-(\d{6})$`)
	for fname, entry := range reg.Entries {
		m := pattern.FindStringSubmatch(entry.CanonicalID)
		if m == nil {
			continue
		}
		partners = append(partners, partner{file: fname, date: "20" + m[1]})
		seen[fname] = true
	}

	for _, f := range e.specFiles() {
		fname := f.name
		if seen[fname] {
			continue
		}
		if fname == currentFile && currentDate != "" {
			partners = append(partners, partner{file: fname, date: compactDate(currentDate)})
			continue
		}
		facts, ok := e.readFacts(f.path, false)
		if !ok || facts.date == "" {
			continue
		}
		if facts.prefix != prefix {
			continue
		}
		partners = append(partners, partner{file: fname, date: compactDate(facts.date)})
	}

	sortPartners(partners)
	rank := 1
	for _, p := range partners {
		if p.file == currentFile {
			break
		}
		rank++
	}
	return fmt.Sprintf("%02d", rank)
}
