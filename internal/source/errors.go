package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a fatal source failure.
type ErrorKind string

// Source failure kinds.
const (
	NotFound          ErrorKind = "not_found"          // file does not exist
	Unreadable        ErrorKind = "unreadable"         // open, decode or parse failure
	EmptySource       ErrorKind = "empty_source"       // no header row
	MissingColumns    ErrorKind = "missing_columns"    // identity columns absent from the header
	NoUsableSheet     ErrorKind = "no_usable_sheet"    // no sheet has both identity columns
	UnsupportedFormat ErrorKind = "unsupported_format" // extension has no reader
	HeaderUnresolved  ErrorKind = "header_unresolved"  // no output header could be chosen
)

// Error is a fatal failure reading a source. Its message always says what was
// expected and what was actually found so column settings can be fixed without
// opening the file.
type Error struct {
	Kind   ErrorKind
	Source string
	Wanted []string // requested column labels
	Found  []string // header actually read, or per-sheet summaries
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source: %s: ", e.Source)

	switch e.Kind {
	case NotFound:
		b.WriteString("file not found")
	case EmptySource:
		b.WriteString("file is empty or has no header row")
	case MissingColumns:
		fmt.Fprintf(&b, "required columns %s not found; found header: %s", quoteAll(e.Wanted), strings.Join(e.Found, ", "))
	case NoUsableSheet:
		fmt.Fprintf(&b, "no sheet contains the required columns %s; sheets seen: %s", quoteAll(e.Wanted), strings.Join(e.Found, "; "))
	case HeaderUnresolved:
		fmt.Fprintf(&b, "no output header could be determined for columns %s", quoteAll(e.Wanted))
	default:
		b.WriteString(string(e.Kind))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is, or wraps, a source *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}
