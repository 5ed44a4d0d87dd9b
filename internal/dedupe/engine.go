package dedupe

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/source"
)

// Options are the matching settings for one run.
type Options struct {
	CRMDelimiter       rune
	CRMLastName        string
	CRMFirstName       string
	CandidateName      string
	CandidateForename  string
	CandidateDelimiter rune
	Workers            int
}

// Stats summarizes a run.
type Stats struct {
	CRMRecords int `json:"crm_records"`
	CRMKeys    int `json:"crm_keys"`
	Candidates int `json:"candidates"`
	Uniques    int `json:"uniques"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Result is the outcome of one run. Uniques and Duplicates are interpreted and
// serialized through Header.
type Result struct {
	RunID          string
	Header         []string
	NameColumn     string
	ForenameColumn string
	Uniques        []source.Record
	Duplicates     []source.Record
	Diagnostics    []diag.Diagnostic
	Stats          Stats
}

// Engine reads the CRM export and a candidate file and classifies the
// candidates against it.
type Engine struct {
	opts Options
	sink diag.Sink
}

// New creates an Engine. A nil sink discards diagnostics; they are still
// returned on the Result.
func New(opts Options, sink diag.Sink) *Engine {
	if sink == nil {
		sink = diag.Discard
	}
	return &Engine{opts: opts, sink: sink}
}

// Run performs one full pass: the CRM export is read completely and frozen into
// a KeySet before the candidate file is opened. Any fatal error aborts the run
// and no partial Result is returned.
func (e *Engine) Run(ctx context.Context, crmPath, candidatesPath string) (*Result, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	log.Info("dedupe: reading crm export",
		zap.String("file", filepath.Base(crmPath)),
		zap.String("delimiter", string(e.opts.CRMDelimiter)),
		zap.String("last_name_column", e.opts.CRMLastName),
		zap.String("first_name_column", e.opts.CRMFirstName),
	)

	crm, err := source.OpenCSV(ctx, crmPath, source.CSVOptions{
		Delimiter: e.opts.CRMDelimiter,
		LastName:  e.opts.CRMLastName,
		FirstName: e.opts.CRMFirstName,
	})
	if err != nil {
		log.Error("dedupe: crm export failed", zap.Error(err))
		return nil, err
	}

	var diags []diag.Diagnostic
	diags = e.forward(diags, crm.Diagnostics)

	keys := NewKeySet(crm.Entries)
	if keys.Len() == 0 {
		log.Warn("dedupe: crm export yielded no match keys")
	}
	log.Info("dedupe: crm export loaded",
		zap.Int("records", len(crm.Entries)),
		zap.Int("keys", keys.Len()),
		zap.Int("skipped", crm.Skipped()),
	)

	log.Info("dedupe: reading candidates",
		zap.String("file", filepath.Base(candidatesPath)),
		zap.String("name_column", e.opts.CandidateName),
		zap.String("forename_column", e.opts.CandidateForename),
	)

	cands, err := source.OpenCandidates(ctx, candidatesPath, source.CandidateOptions{
		NameColumn:     e.opts.CandidateName,
		ForenameColumn: e.opts.CandidateForename,
		CSVDelimiter:   e.opts.CandidateDelimiter,
	})
	if err != nil {
		log.Error("dedupe: candidates failed", zap.Error(err))
		return nil, err
	}
	diags = e.forward(diags, cands.Diagnostics)

	if len(cands.Header) == 0 {
		err := &source.Error{
			Kind:   source.HeaderUnresolved,
			Source: cands.Source,
			Wanted: []string{e.opts.CandidateName, e.opts.CandidateForename},
		}
		log.Error("dedupe: candidates failed", zap.Error(err))
		return nil, err
	}
	if cands.HeaderSheet != "" {
		log.Info("dedupe: using sheet header for output",
			zap.String("sheet", cands.HeaderSheet),
			zap.Strings("header", cands.Header),
		)
	}
	if len(cands.Entries) == 0 {
		log.Warn("dedupe: candidate file has a header but no usable rows")
	}

	part, err := Classify(ctx, keys, cands.Entries, e.opts.Workers)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:          runID,
		Header:         cands.Header,
		NameColumn:     cands.LastColumn,
		ForenameColumn: cands.FirstColumn,
		Uniques:        part.Uniques,
		Duplicates:     part.Duplicates,
		Diagnostics:    diags,
		Stats: Stats{
			CRMRecords: len(crm.Entries),
			CRMKeys:    keys.Len(),
			Candidates: len(cands.Entries),
			Uniques:    len(part.Uniques),
			Duplicates: len(part.Duplicates),
			Skipped:    crm.Skipped() + cands.Skipped(),
		},
	}

	log.Info("dedupe: complete",
		zap.Int("uniques", res.Stats.Uniques),
		zap.Int("duplicates", res.Stats.Duplicates),
		zap.Int("skipped", res.Stats.Skipped),
	)

	return res, nil
}

func (e *Engine) forward(all, ds []diag.Diagnostic) []diag.Diagnostic {
	for _, d := range ds {
		e.sink.Emit(d)
	}
	return append(all, ds...)
}
