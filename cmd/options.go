package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-dedupe/internal/config"
	"github.com/sells-group/crm-dedupe/internal/dedupe"
)

// matchOverrides replaces configured match settings for one run. Empty fields
// keep the configured value.
type matchOverrides struct {
	CRMDelimiter       string
	CRMLastName        string
	CRMFirstName       string
	CandidateName      string
	CandidateForename  string
	CandidateDelimiter string
}

func (o matchOverrides) apply(m config.MatchConfig) config.MatchConfig {
	if o.CRMDelimiter != "" {
		m.CRMDelimiter = o.CRMDelimiter
	}
	if o.CRMLastName != "" {
		m.CRMLastNameColumn = o.CRMLastName
	}
	if o.CRMFirstName != "" {
		m.CRMFirstNameColumn = o.CRMFirstName
	}
	if o.CandidateName != "" {
		m.CandidateNameColumn = o.CandidateName
	}
	if o.CandidateForename != "" {
		m.CandidateForenameColumn = o.CandidateForename
	}
	if o.CandidateDelimiter != "" {
		m.CandidateCSVDelimiter = o.CandidateDelimiter
	}
	return m
}

// engineOptions converts validated match settings into dedupe.Options.
func engineOptions(m config.MatchConfig, workers int) (dedupe.Options, error) {
	if err := m.Validate(); err != nil {
		return dedupe.Options{}, err
	}
	crmDelim, err := config.ParseDelimiter(m.CRMDelimiter)
	if err != nil {
		return dedupe.Options{}, eris.Wrap(err, "crm delimiter")
	}
	candDelim, err := config.ParseDelimiter(m.CandidateCSVDelimiter)
	if err != nil {
		return dedupe.Options{}, eris.Wrap(err, "candidate delimiter")
	}

	return dedupe.Options{
		CRMDelimiter:       crmDelim,
		CRMLastName:        m.CRMLastNameColumn,
		CRMFirstName:       m.CRMFirstNameColumn,
		CandidateName:      m.CandidateNameColumn,
		CandidateForename:  m.CandidateForenameColumn,
		CandidateDelimiter: candDelim,
		Workers:            workers,
	}, nil
}

// outputDelimiter returns the configured output delimiter, or a comma when it
// does not parse.
func outputDelimiter(c *config.Config) rune {
	r, err := config.ParseDelimiter(c.Output.Delimiter)
	if err != nil {
		return ','
	}
	return r
}
