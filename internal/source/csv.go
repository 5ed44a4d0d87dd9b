package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/namekey"
	"github.com/sells-group/crm-dedupe/internal/tabular"
)

// CSVOptions configures a delimited-text source.
type CSVOptions struct {
	Delimiter rune // default ','
	LastName  string
	FirstName string
}

// OpenCSV reads the delimited file at path. See ReadCSV.
func OpenCSV(ctx context.Context, path string, opts CSVOptions) (*Table, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: NotFound, Source: name, Detail: path}
		}
		return nil, &Error{Kind: Unreadable, Source: name, Err: eris.Wrap(err, "open file")}
	}
	defer f.Close()

	return ReadCSV(ctx, name, f, opts)
}

// ReadCSV reads delimited text whose first row is the header. Rows whose field
// count differs from the header, and rows without a usable name, are skipped
// with a diagnostic. A missing header or missing identity columns are fatal.
func ReadCSV(ctx context.Context, name string, r io.Reader, opts CSVOptions) (*Table, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := tabular.StreamCSV(streamCtx, r, tabular.CSVOptions{
		Delimiter:  opts.Delimiter,
		LazyQuotes: true,
	})

	first, ok := <-rowCh
	if !ok {
		if err := <-errCh; err != nil {
			return nil, streamError(ctx, name, err)
		}
		return nil, &Error{Kind: EmptySource, Source: name}
	}

	header := first.Fields
	id, ok := tabular.ResolvePair(header, opts.LastName, opts.FirstName)
	if !ok {
		return nil, &Error{
			Kind:   MissingColumns,
			Source: name,
			Wanted: []string{opts.LastName, opts.FirstName},
			Found:  header,
		}
	}

	t := &Table{Source: name}
	t.setHeader(header, id)
	if id.CaseFolded() {
		t.note(caseFallbackNote(name, "", opts.LastName, opts.FirstName, t.LastColumn, t.FirstColumn))
	}

	for row := range rowCh {
		t.add(csvRow(name, header, id, row))
	}
	if err := <-errCh; err != nil {
		return nil, streamError(ctx, name, err)
	}

	return t, nil
}

func csvRow(name string, header []string, id tabular.Identity, row tabular.Row) rowResult {
	if len(row.Fields) != len(header) {
		return rowResult{diag: &diag.Diagnostic{
			Kind:   diag.RowShapeMismatch,
			Source: name,
			Row:    row.Line,
			Detail: fmt.Sprintf("row has %d fields, expected %d; skipped", len(row.Fields), len(header)),
		}}
	}

	rec := make(Record, len(header))
	for i, h := range header {
		rec[h] = row.Fields[i]
	}

	last := row.Fields[id.Last.Index]
	first := row.Fields[id.First.Index]
	key := namekey.Build(last, first)
	if key == "" {
		return rowResult{diag: unusableIdentity(name, "", row.Line, last, first)}
	}

	return rowResult{entry: &Entry{Record: rec, Key: key}}
}

func streamError(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return eris.Wrapf(ctx.Err(), "source: %s: read cancelled", name)
	}
	return &Error{Kind: Unreadable, Source: name, Err: err}
}

func unusableIdentity(name, sheet string, row int, last, first string) *diag.Diagnostic {
	return &diag.Diagnostic{
		Kind:   diag.UnusableIdentity,
		Source: name,
		Sheet:  sheet,
		Row:    row,
		Detail: fmt.Sprintf("name %q and forename %q are empty after normalization; skipped", last, first),
	}
}

func caseFallbackNote(name, sheet, wantLast, wantFirst, gotLast, gotFirst string) diag.Diagnostic {
	return diag.Diagnostic{
		Kind:   diag.HeaderCaseFallback,
		Source: name,
		Sheet:  sheet,
		Detail: fmt.Sprintf("columns %q and %q matched as %q and %q", wantLast, wantFirst, gotLast, gotFirst),
	}
}
