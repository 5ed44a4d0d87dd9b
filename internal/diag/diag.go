// Package diag carries the non-fatal notes produced while reading sources:
// skipped rows, skipped sheets and header resolution fallbacks.
package diag

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a diagnostic.
type Kind string

// Diagnostic kinds. All but HeaderCaseFallback mean rows were dropped.
const (
	RowShapeMismatch    Kind = "row_shape_mismatch"    // field count differs from the header
	UnusableIdentity    Kind = "unusable_identity"     // name and forename normalize to nothing
	SheetMissingColumns Kind = "sheet_missing_columns" // sheet lacks an identity column
	SheetEmpty          Kind = "sheet_empty"           // sheet has no data rows
	HeaderCaseFallback  Kind = "header_case_fallback"  // column matched ignoring case
)

// Skip reports whether the diagnostic means data was dropped.
func (k Kind) Skip() bool {
	return k != HeaderCaseFallback
}

// Diagnostic is one structured note. Row is the 1-based row locator (0 when
// the note concerns a whole sheet or source); Sheet is empty for delimited text.
type Diagnostic struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
	Sheet  string `json:"sheet,omitempty"`
	Row    int    `json:"row,omitempty"`
	Detail string `json:"detail"`
}

// String renders the diagnostic for humans.
func (d Diagnostic) String() string {
	loc := d.Source
	if d.Sheet != "" {
		loc += fmt.Sprintf(" sheet %q", d.Sheet)
	}
	if d.Row > 0 {
		loc += fmt.Sprintf(" row %d", d.Row)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, loc, d.Detail)
}

// Sink receives diagnostics. Implementations must not block.
type Sink interface {
	Emit(Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

// Emit calls f(d).
func (f SinkFunc) Emit(d Diagnostic) { f(d) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Multi fans a diagnostic out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(d)
			}
		}
	})
}

// Collector keeps every diagnostic it receives, in order.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Emit appends d.
func (c *Collector) Emit(d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// All returns a copy of the collected diagnostics.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// LogSink writes diagnostics to a zap logger: skips at warn, notes at info.
type LogSink struct {
	Logger *zap.Logger
}

// Emit logs d.
func (s LogSink) Emit(d Diagnostic) {
	logger := s.Logger
	if logger == nil {
		logger = zap.L()
	}
	fields := []zap.Field{
		zap.String("kind", string(d.Kind)),
		zap.String("source", d.Source),
	}
	if d.Sheet != "" {
		fields = append(fields, zap.String("sheet", d.Sheet))
	}
	if d.Row > 0 {
		fields = append(fields, zap.Int("row", d.Row))
	}
	if d.Kind.Skip() {
		logger.Warn(d.Detail, fields...)
		return
	}
	logger.Info(d.Detail, fields...)
}
