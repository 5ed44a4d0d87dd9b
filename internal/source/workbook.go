package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/namekey"
	"github.com/sells-group/crm-dedupe/internal/tabular"
)

// WorkbookOptions configures a multi-sheet spreadsheet source.
type WorkbookOptions struct {
	LastName  string
	FirstName string
}

// OpenWorkbook reads every sheet of the XLSX file at path. See ReadWorkbook.
func OpenWorkbook(ctx context.Context, path string, opts WorkbookOptions) (*Table, error) {
	name := filepath.Base(path)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: NotFound, Source: name, Detail: path}
		}
		return nil, &Error{Kind: Unreadable, Source: name, Err: eris.Wrap(err, "stat file")}
	}

	sheets, err := tabular.OpenWorkbook(path)
	if err != nil {
		return nil, &Error{Kind: Unreadable, Source: name, Err: err}
	}

	return ReadWorkbook(ctx, name, sheets, opts)
}

// ReadWorkbook concatenates the rows of every sheet into one stream. Sheets that
// are empty or lack the identity columns are skipped with a diagnostic. The
// output header is the header of the first usable sheet; rows of later sheets
// are re-keyed onto it by column label, not by position.
func ReadWorkbook(ctx context.Context, name string, sheets []tabular.Sheet, opts WorkbookOptions) (*Table, error) {
	t := &Table{Source: name}
	var seen []string

	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "source: %s: read cancelled", name)
		}

		if !hasData(sheet.Rows) {
			seen = append(seen, fmt.Sprintf("%s (empty)", sheet.Name))
			t.note(diag.Diagnostic{
				Kind:   diag.SheetEmpty,
				Source: name,
				Sheet:  sheet.Name,
				Detail: "sheet has no data rows; skipped",
			})
			continue
		}

		header := sheet.Rows[0]
		seen = append(seen, fmt.Sprintf("%s [%s]", sheet.Name, strings.Join(header, ", ")))

		id, ok := tabular.ResolvePair(header, opts.LastName, opts.FirstName)
		if !ok {
			t.note(diag.Diagnostic{
				Kind:   diag.SheetMissingColumns,
				Source: name,
				Sheet:  sheet.Name,
				Detail: fmt.Sprintf("expected columns %q and %q, found: %s; skipped",
					opts.LastName, opts.FirstName, strings.Join(header, ", ")),
			})
			continue
		}

		if t.Header == nil {
			t.setHeader(header, id)
			t.HeaderSheet = sheet.Name
		}
		if id.CaseFolded() {
			t.note(caseFallbackNote(name, sheet.Name, opts.LastName, opts.FirstName,
				header[id.Last.Index], header[id.First.Index]))
		}

		labels := t.labelsFor(header, id)
		for i, cells := range sheet.Rows[1:] {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrapf(err, "source: %s: read cancelled", name)
			}
			t.add(sheetRow(name, sheet.Name, i+2, labels, id, cells))
		}
	}

	if t.Header == nil {
		return nil, &Error{
			Kind:   NoUsableSheet,
			Source: name,
			Wanted: []string{opts.LastName, opts.FirstName},
			Found:  seen,
		}
	}

	return t, nil
}

// labelsFor maps each column of a sheet header to the output header label its
// values are stored under. Identity columns always land on the output identity
// labels; other columns follow label resolution against the output header and
// keep their own label when nothing matches.
func (t *Table) labelsFor(header []string, id tabular.Identity) []string {
	labels := make([]string, len(header))
	for j, h := range header {
		switch j {
		case id.Last.Index:
			labels[j] = t.LastColumn
			continue
		case id.First.Index:
			labels[j] = t.FirstColumn
			continue
		}

		labels[j] = h
		col := tabular.Resolve(t.Header, strings.TrimSpace(h))
		if !col.Found() {
			continue
		}
		if target := t.Header[col.Index]; target != t.LastColumn && target != t.FirstColumn {
			labels[j] = target
		}
	}
	return labels
}

func sheetRow(name, sheet string, rowNum int, labels []string, id tabular.Identity, cells []string) rowResult {
	if isBlank(cells) {
		return rowResult{}
	}

	rec := make(Record, len(labels))
	for j, label := range labels {
		v := tabular.Cell(cells, j)
		if prev, ok := rec[label]; ok && (v == "" || prev != "") {
			continue
		}
		rec[label] = v
	}

	last := tabular.Cell(cells, id.Last.Index)
	first := tabular.Cell(cells, id.First.Index)
	key := namekey.Build(last, first)
	if key == "" {
		return rowResult{diag: unusableIdentity(name, sheet, rowNum, last, first)}
	}

	return rowResult{entry: &Entry{Record: rec, Key: key}}
}

// hasData reports whether a sheet has a header and at least one non-blank row.
func hasData(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	for _, r := range rows[1:] {
		if !isBlank(r) {
			return true
		}
	}
	return false
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
