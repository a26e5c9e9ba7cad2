package sheets

import (
	"fmt"
	"strings"
)

// CellRef addresses a single cell.
type CellRef struct {
	Sheet  string
	Row    int
	Column int
}

// A1 renders the reference in A1 notation, e.g. 'Liquids'!C5.
func (c CellRef) A1() string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(c.Sheet), ColumnLetter(c.Column), c.Row)
}

func (c CellRef) String() string {
	return c.A1()
}

// ColumnLetter converts a 0-based column index to its letter form (0 -> A, 26 -> AA).
func ColumnLetter(idx int) string {
	if idx < 0 {
		return ""
	}
	var out []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!%d:%d", quoteSheet(sheet), row, row)
}
