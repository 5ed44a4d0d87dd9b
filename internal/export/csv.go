// Package export writes classified records back out as delimited text.
package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-dedupe/internal/source"
)

// WriteCSV writes a header row followed by one row per record, fields in header
// order. Fields missing from a record are written empty; fields not in the
// header are dropped.
func WriteCSV(w io.Writer, header []string, records []source.Record, delimiter rune) error {
	if len(header) == 0 {
		return eris.New("export: output header missing")
	}

	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}

	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	row := make([]string, len(header))
	for _, rec := range records {
		for i, h := range header {
			row[i] = rec[h]
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// WriteFile writes records to path with WriteCSV.
func WriteFile(path string, header []string, records []source.Record, delimiter rune) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}

	if err := WriteCSV(f, header, records, delimiter); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "export: close file")
}
