package tabular

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is one worksheet flattened to strings, in workbook order.
type Sheet struct {
	Name string
	Rows [][]string
}

// OpenWorkbook reads every sheet of an XLSX file.
func OpenWorkbook(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return workbookSheets(f), nil
}

// ReadWorkbook reads every sheet of an in-memory XLSX document.
func ReadWorkbook(data []byte) ([]Sheet, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open binary")
	}
	return workbookSheets(f), nil
}

func workbookSheets(f *xlsx.File) []Sheet {
	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			rows = append(rows, rowToStrings(row))
		}
		sheets = append(sheets, Sheet{Name: sheet.Name, Rows: rows})
	}
	return sheets
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}

// Cell returns row[i], or "" when the row is shorter than i+1 cells.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
