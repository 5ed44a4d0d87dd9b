package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type namedSheet struct {
	name string
	rows [][]string
}

func createTestXLSX(t *testing.T, sheets ...namedSheet) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		require.NoError(t, err)
		for _, rowData := range s.rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestOpenWorkbook_SheetOrder(t *testing.T) {
	path := createTestXLSX(t,
		namedSheet{"Zeta", [][]string{{"a", "b"}, {"1", "2"}}},
		namedSheet{"Alpha", [][]string{{"x"}, {"y"}}},
	)

	sheets, err := OpenWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "Zeta", sheets[0].Name)
	assert.Equal(t, "Alpha", sheets[1].Name)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, sheets[0].Rows)
	assert.Equal(t, [][]string{{"x"}, {"y"}}, sheets[1].Rows)
}

func TestReadWorkbook_FromBytes(t *testing.T) {
	path := createTestXLSX(t, namedSheet{"Contacts", [][]string{{"Nom", "Prénom"}, {"Dupont", "Jean"}}})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	sheets, err := ReadWorkbook(data)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, []string{"Dupont", "Jean"}, sheets[0].Rows[1])
}

func TestOpenWorkbook_Missing(t *testing.T) {
	_, err := OpenWorkbook(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestCell(t *testing.T) {
	row := []string{"a", "b"}
	assert.Equal(t, "a", Cell(row, 0))
	assert.Equal(t, "b", Cell(row, 1))
	assert.Equal(t, "", Cell(row, 2))
	assert.Equal(t, "", Cell(row, -1))
	assert.Equal(t, "", Cell(nil, 0))
}
