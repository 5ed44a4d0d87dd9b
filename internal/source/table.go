// Package source reads the CRM export and candidate files into records keyed
// by header label, computing each row's match key and collecting diagnostics
// for rows and sheets that had to be skipped.
package source

import (
	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/tabular"
)

// Record maps header labels to the string values of one row. Records are built
// once per row and never mutated afterwards.
type Record map[string]string

// Entry is a kept row together with its non-empty match key.
type Entry struct {
	Record Record
	Key    string
}

// Table is everything read from one source.
type Table struct {
	Source string
	// Header is the output header: the file header for delimited text, the
	// first usable sheet's header for workbooks.
	Header      []string
	HeaderSheet string
	// LastColumn and FirstColumn are the Header labels holding the identity.
	LastColumn  string
	FirstColumn string
	Entries     []Entry
	Diagnostics []diag.Diagnostic
}

// Records returns the kept records in row order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Record
	}
	return out
}

// Skipped counts diagnostics that dropped a row or a sheet.
func (t *Table) Skipped() int {
	n := 0
	for _, d := range t.Diagnostics {
		if d.Kind.Skip() {
			n++
		}
	}
	return n
}

// rowResult is the outcome of one row: a kept entry, a diagnostic, or both nil
// for rows that are silently ignored.
type rowResult struct {
	entry *Entry
	diag  *diag.Diagnostic
}

func (t *Table) add(r rowResult) {
	if r.entry != nil {
		t.Entries = append(t.Entries, *r.entry)
	}
	if r.diag != nil {
		t.Diagnostics = append(t.Diagnostics, *r.diag)
	}
}

func (t *Table) note(d diag.Diagnostic) {
	t.Diagnostics = append(t.Diagnostics, d)
}

func (t *Table) setHeader(header []string, id tabular.Identity) {
	t.Header = append([]string(nil), header...)
	t.LastColumn = header[id.Last.Index]
	t.FirstColumn = header[id.First.Index]
}
