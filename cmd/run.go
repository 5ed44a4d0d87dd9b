package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-dedupe/internal/dedupe"
	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/export"
	"github.com/sells-group/crm-dedupe/internal/source"
)

var (
	runCRM           string
	runCandidates    string
	runUniquesOut    string
	runDuplicatesOut string
	runWorkers       int
	runOverrides     matchOverrides
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify a candidate file against a CRM export",
	Long:  "Reads the CRM export and the candidate file, then writes the candidates not found in the CRM and the candidates that duplicate a CRM contact to two separate files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runCRM == "" || runCandidates == "" {
			return eris.New("run: --crm and --candidates are required")
		}

		c := *cfg
		c.Match = runOverrides.apply(c.Match)
		if runWorkers > 0 {
			c.Classify.Workers = runWorkers
		}
		if runUniquesOut != "" {
			c.Output.UniquesFile = runUniquesOut
		}
		if runDuplicatesOut != "" {
			c.Output.DuplicatesFile = runDuplicatesOut
		}
		if err := c.Validate("run"); err != nil {
			return err
		}

		opts, err := engineOptions(c.Match, c.Classify.Workers)
		if err != nil {
			return err
		}

		res, err := dedupe.New(opts, diag.LogSink{}).Run(cmd.Context(), runCRM, runCandidates)
		if err != nil {
			return err
		}

		err = saveResults(res.Header, []resultFile{
			{set: "uniques", path: c.Output.UniquesFile, records: res.Uniques},
			{set: "duplicates", path: c.Output.DuplicatesFile, records: res.Duplicates},
		}, outputDelimiter(&c))
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), res, c.Output.UniquesFile, c.Output.DuplicatesFile)
		return nil
	},
}

// resultFile is one result set and its destination.
type resultFile struct {
	set     string
	path    string
	records []source.Record
}

// saveResults writes every set, empty ones as a header row only, to a
// temporary file beside its destination and renames them into place once all
// were written. Existing files are replaced.
func saveResults(header []string, files []resultFile, delim rune) error {
	staged := make([]string, 0, len(files))
	defer func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()

	for _, f := range files {
		tmp, err := stageFile(f.path, header, f.records, delim)
		if err != nil {
			return eris.Wrapf(err, "run: save %s", f.set)
		}
		staged = append(staged, tmp)
	}

	for i, f := range files {
		if err := os.Rename(staged[i], f.path); err != nil {
			return eris.Wrapf(err, "run: save %s", f.set)
		}
		zap.L().Info("run: saved",
			zap.String("set", f.set),
			zap.String("path", f.path),
			zap.Int("records", len(f.records)),
		)
	}
	return nil
}

func stageFile(path string, header []string, records []source.Record, delim rune) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	name := tmp.Name()

	if err := export.WriteCSV(tmp, header, records, delim); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", eris.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", eris.Wrap(err, "close temp file")
	}
	return name, nil
}

func printSummary(w io.Writer, res *dedupe.Result, uniquesPath, duplicatesPath string) {
	fmt.Fprintf(w, "run %s\n", res.RunID)
	fmt.Fprintf(w, "  crm records:  %d (%d keys)\n", res.Stats.CRMRecords, res.Stats.CRMKeys)
	fmt.Fprintf(w, "  candidates:   %d\n", res.Stats.Candidates)
	fmt.Fprintf(w, "  to import:    %d -> %s\n", res.Stats.Uniques, uniquesPath)
	fmt.Fprintf(w, "  duplicates:   %d -> %s\n", res.Stats.Duplicates, duplicatesPath)
	if res.Stats.Skipped > 0 {
		fmt.Fprintf(w, "  rows skipped: %d\n", res.Stats.Skipped)
	}
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runCRM, "crm", "", "CRM contact export (delimited text)")
	f.StringVar(&runCandidates, "candidates", "", "candidate file (.csv or .xlsx)")
	f.StringVar(&runUniquesOut, "uniques-out", "", "output file for new contacts (default from config)")
	f.StringVar(&runDuplicatesOut, "duplicates-out", "", "output file for duplicates (default from config)")
	f.IntVar(&runWorkers, "workers", 0, "classification workers (default from config)")
	f.StringVar(&runOverrides.CRMDelimiter, "crm-delimiter", "", "CRM export delimiter")
	f.StringVar(&runOverrides.CRMLastName, "crm-last-name-column", "", "CRM last name column")
	f.StringVar(&runOverrides.CRMFirstName, "crm-first-name-column", "", "CRM first name column")
	f.StringVar(&runOverrides.CandidateName, "candidate-name-column", "", "candidate last name column")
	f.StringVar(&runOverrides.CandidateForename, "candidate-forename-column", "", "candidate first name column")
	f.StringVar(&runOverrides.CandidateDelimiter, "candidate-csv-delimiter", "", "candidate CSV delimiter")
	_ = runCmd.MarkFlagRequired("crm")
	_ = runCmd.MarkFlagRequired("candidates")
	rootCmd.AddCommand(runCmd)
}
