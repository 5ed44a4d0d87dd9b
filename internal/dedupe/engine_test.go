package dedupe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/source"
)

var defaultOpts = Options{
	CRMDelimiter:       ';',
	CRMLastName:        "Nom",
	CRMFirstName:       "Prénom",
	CandidateName:      "Nom",
	CandidateForename:  "Prénom",
	CandidateDelimiter: ',',
	Workers:            2,
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeXLSX(t *testing.T, dir string, sheets map[string][][]string, order []string) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range order {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range sheets[name] {
			row := sheet.AddRow()
			for _, v := range rowData {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(dir, "new.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestEngineRun_CSVScenario(t *testing.T) {
	dir := t.TempDir()
	crm := writeFile(t, dir, "crm.csv", "Nom;Prénom\nDupont;Jean\n")
	cands := writeFile(t, dir, "new.csv", "Nom,Prénom\nDupont,Jean\nMartin,Claire\n")

	var c diag.Collector
	res, err := New(defaultOpts, &c).Run(context.Background(), crm, cands)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"Nom", "Prénom"}, res.Header)
	require.Len(t, res.Duplicates, 1)
	require.Len(t, res.Uniques, 1)
	assert.Equal(t, source.Record{"Nom": "Dupont", "Prénom": "Jean"}, res.Duplicates[0])
	assert.Equal(t, source.Record{"Nom": "Martin", "Prénom": "Claire"}, res.Uniques[0])
	assert.Equal(t, Stats{CRMRecords: 1, CRMKeys: 1, Candidates: 2, Uniques: 1, Duplicates: 1}, res.Stats)
	assert.Empty(t, c.All())
}

func TestEngineRun_NormalizedMatch(t *testing.T) {
	dir := t.TempDir()
	crm := writeFile(t, dir, "crm.csv", "Nom;Prénom\nLefèvre-Durand;René\nO'Brien;Seán\n")
	cands := writeFile(t, dir, "new.csv", "NOM,PRENOM\n\"LEFEVRE - DURAND\",rene\nobrien,sean\nobrien,\n")

	opts := defaultOpts
	opts.CandidateForename = "Prenom"
	res, err := New(opts, nil).Run(context.Background(), crm, cands)
	require.NoError(t, err)

	assert.Len(t, res.Duplicates, 2)
	require.Len(t, res.Uniques, 1)
	assert.Equal(t, "obrien", res.Uniques[0]["NOM"])
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diag.HeaderCaseFallback, res.Diagnostics[0].Kind)
}

func TestEngineRun_RowShapeMismatchExcluded(t *testing.T) {
	dir := t.TempDir()
	crm := writeFile(t, dir, "crm.csv", "Nom;Prénom\nDupont;Jean\n")
	cands := writeFile(t, dir, "new.csv", "Nom,Prénom,Email\nDupont,Jean,a@x\nMartin,Claire\nDurand,Paul,p@x\n")

	var c diag.Collector
	res, err := New(defaultOpts, &c).Run(context.Background(), crm, cands)
	require.NoError(t, err)

	assert.Len(t, res.Duplicates, 1)
	require.Len(t, res.Uniques, 1)
	assert.Equal(t, "Durand", res.Uniques[0]["Nom"])
	for _, r := range append(res.Uniques, res.Duplicates...) {
		assert.NotEqual(t, "Martin", r["Nom"])
	}
	require.Len(t, c.All(), 1)
	assert.Equal(t, diag.RowShapeMismatch, c.All()[0].Kind)
	assert.Equal(t, 1, res.Stats.Skipped)
}

func TestEngineRun_WorkbookScenario(t *testing.T) {
	dir := t.TempDir()
	crm := writeFile(t, dir, "crm.csv", "Nom;Prénom\nDupont;Jean\n")
	cands := writeXLSX(t, dir, map[string][][]string{
		"Sommaire": {{"Titre"}, {"Import mars"}},
		"Contacts": {
			{"Email", "Nom", "Prénom"},
			{"j@x", "Dupont", "Jean"},
			{"c@x", "Martin", "Claire"},
			{"p@x", "Durand", "Paul"},
		},
	}, []string{"Sommaire", "Contacts"})

	var c diag.Collector
	res, err := New(defaultOpts, &c).Run(context.Background(), crm, cands)
	require.NoError(t, err)

	assert.Equal(t, []string{"Email", "Nom", "Prénom"}, res.Header)
	assert.Len(t, res.Duplicates, 1)
	assert.Len(t, res.Uniques, 2)
	assert.Equal(t, "Martin", res.Uniques[0]["Nom"])
	assert.Equal(t, "Durand", res.Uniques[1]["Nom"])

	all := c.All()
	require.Len(t, all, 1)
	assert.Equal(t, diag.SheetMissingColumns, all[0].Kind)
	assert.Equal(t, "Sommaire", all[0].Sheet)
}

func TestEngineRun_FatalErrors(t *testing.T) {
	dir := t.TempDir()
	goodCRM := writeFile(t, dir, "crm.csv", "Nom;Prénom\nDupont;Jean\n")
	badCRM := writeFile(t, dir, "bad.csv", "Name;Surname\nJean;Dupont\n")
	emptyCRM := writeFile(t, dir, "empty.csv", "")
	goodCands := writeFile(t, dir, "new.csv", "Nom,Prénom\nMartin,Claire\n")
	badCands := writeFile(t, dir, "cols.csv", "First,Last\nClaire,Martin\n")
	xls := writeFile(t, dir, "old.xls", "binary")
	noSheet := writeXLSX(t, dir, map[string][][]string{"S": {{"x"}, {"y"}}}, []string{"S"})

	tests := []struct {
		name  string
		crm   string
		cands string
		kind  source.ErrorKind
	}{
		{"crm not found", filepath.Join(dir, "nope.csv"), goodCands, source.NotFound},
		{"crm empty", emptyCRM, goodCands, source.EmptySource},
		{"crm columns", badCRM, goodCands, source.MissingColumns},
		{"candidates not found", goodCRM, filepath.Join(dir, "nope.csv"), source.NotFound},
		{"candidate columns", goodCRM, badCands, source.MissingColumns},
		{"xls", goodCRM, xls, source.UnsupportedFormat},
		{"no usable sheet", goodCRM, noSheet, source.NoUsableSheet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(defaultOpts, nil).Run(context.Background(), tt.crm, tt.cands)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, source.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestEngineRun_MissingColumnsMessageShowsHeader(t *testing.T) {
	dir := t.TempDir()
	crm := writeFile(t, dir, "crm.csv", "Name;Surname;Mail\nJean;Dupont;x\n")
	cands := writeFile(t, dir, "new.csv", "Nom,Prénom\nMartin,Claire\n")

	_, err := New(defaultOpts, nil).Run(context.Background(), crm, cands)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm.csv")
	assert.Contains(t, err.Error(), `"Nom", "Prénom"`)
	assert.Contains(t, err.Error(), "Name, Surname, Mail")
}

func TestSession_KeepsPreviousResultOnFailure(t *testing.T) {
	dir := t.TempDir()
	crm := writeFile(t, dir, "crm.csv", "Nom;Prénom\nDupont;Jean\n")
	cands := writeFile(t, dir, "new.csv", "Nom,Prénom\nMartin,Claire\n")

	var s Session
	assert.Nil(t, s.Last())

	eng := New(defaultOpts, nil)
	first, err := s.Process(context.Background(), eng, crm, cands)
	require.NoError(t, err)
	assert.Same(t, first, s.Last())

	res, err := s.Process(context.Background(), eng, crm, filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Same(t, first, s.Last())
}
