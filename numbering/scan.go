/*
scan.go - Sibling-file scanning for ranking

PURPOSE:
  The ranking scans walk the contract and invoice directories, pulling the
  three facts a rank needs from each YAML file: client prefix, work
  sequence, and date. Files that cannot be read or parsed are silently
  excluded - an unreadable sibling must not abort generation of the file
  being processed.

CONTRACT RESOLUTION:
  Canonical-id scans resolve a file's contract reference to recover a
  missing client_id or work sequence. Work-sequence scans do not: there,
  files without a direct client_id simply drop out of the ranking set, and
  registry entries (which carry their date in the canonical id) cover the
  already-generated majority.
*/
package numbering

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type partner struct {
	file string
	date string // sortable compact form, e.g. "20250115"
}

func sortPartners(partners []partner) {
	sort.Slice(partners, func(i, j int) bool {
		if partners[i].date != partners[j].date {
			return partners[i].date < partners[j].date
		}
		return partners[i].file < partners[j].file
	})
}

// rankOf returns the 1-indexed position of filename in the sorted partner
// set, or len+1 when the file is not part of it.
func rankOf(partners []partner, filename string) int {
	rank := 1
	for _, p := range partners {
		if p.file == filename {
			break
		}
		rank++
	}
	return rank
}

// compactDate strips separators so dashed and compact dates sort together.
func compactDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

// =============================================================================
// FILE FACTS
// =============================================================================

// fileFacts are the resolved ranking inputs of one sibling file.
type fileFacts struct {
	prefix  string
	workSeq string
	date    string
}

// siblingYAML is the minimal decode of a sibling spec or contract.
type siblingYAML struct {
	Date               string      `yaml:"date"`
	ClientID           string      `yaml:"client_id"`
	WorkSequenceNumber interface{} `yaml:"work_sequence_number"`
	ContractID         string      `yaml:"contract_id"`
}

type specFile struct {
	name string
	path string
}

// specFiles lists every YAML file in the contract and invoice directories.
func (e *Engine) specFiles() []specFile {
	var files []specFile
	for _, dir := range []string{e.ContractsDir, e.InvoicesDir} {
		matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			files = append(files, specFile{name: filepath.Base(path), path: path})
		}
	}
	return files
}

// readFacts extracts ranking facts from one file. resolveContract controls
// whether a contract reference is followed to fill missing fields. The
// second return is false for unreadable or malformed files.
func (e *Engine) readFacts(path string, resolveContract bool) (fileFacts, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileFacts{}, false
	}
	var raw siblingYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fileFacts{}, false
	}

	clientID := raw.ClientID
	workSeq := stringify(raw.WorkSequenceNumber)

	if resolveContract && (clientID == "" || workSeq == "") && raw.ContractID != "" {
		ctPath := filepath.Join(e.ContractsDir, raw.ContractID+".yaml")
		if ctData, err := os.ReadFile(ctPath); err == nil {
			var ct siblingYAML
			if err := yaml.Unmarshal(ctData, &ct); err == nil {
				if clientID == "" {
					clientID = ct.ClientID
				}
				if workSeq == "" {
					workSeq = stringify(ct.WorkSequenceNumber)
				}
			}
		}
	}

	if clientID == "" {
		return fileFacts{}, false
	}

	prefix := ""
	if profile, ok := e.Clients[clientID]; ok {
		if v, ok := profile["prefix"]; ok && v != nil {
			prefix = stringify(v)
		}
	}

	return fileFacts{prefix: prefix, workSeq: workSeq, date: raw.Date}, true
}

// scanFiles collects the sorted partner set of files matching the filter.
func (e *Engine) scanFiles(match func(fileFacts) bool, resolveContracts bool) []partner {
	var partners []partner
	for _, f := range e.specFiles() {
		facts, ok := e.readFacts(f.path, resolveContracts)
		if !ok || !match(facts) {
			continue
		}
		partners = append(partners, partner{file: f.name, date: compactDate(facts.date)})
	}
	sortPartners(partners)
	return partners
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
