package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the container format of a candidate file.
type Format int

// Candidate file formats.
const (
	FormatUnknown Format = iota
	// FormatCSV is delimited text.
	FormatCSV
	// FormatWorkbook is an xlsx workbook.
	FormatWorkbook
)

// DetectFormat picks the reader for path from its extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatWorkbook, nil
	case ".xls":
		return FormatUnknown, &Error{
			Kind:   UnsupportedFormat,
			Source: filepath.Base(path),
			Detail: "legacy .xls workbooks are not supported; re-save the file as .xlsx",
		}
	default:
		return FormatUnknown, &Error{
			Kind:   UnsupportedFormat,
			Source: filepath.Base(path),
			Detail: fmt.Sprintf("unsupported file type %q (expected .csv or .xlsx)", ext),
		}
	}
}

// CandidateOptions configures reading a batch of new records.
type CandidateOptions struct {
	NameColumn     string
	ForenameColumn string
	CSVDelimiter   rune // delimited files only
}

// OpenCandidates reads a candidate file as delimited text or as a workbook
// depending on its extension.
func OpenCandidates(ctx context.Context, path string, opts CandidateOptions) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == FormatWorkbook {
		return OpenWorkbook(ctx, path, WorkbookOptions{
			LastName:  opts.NameColumn,
			FirstName: opts.ForenameColumn,
		})
	}
	return OpenCSV(ctx, path, CSVOptions{
		Delimiter: opts.CSVDelimiter,
		LastName:  opts.NameColumn,
		FirstName: opts.ForenameColumn,
	})
}
