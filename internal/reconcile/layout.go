package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

var errBlankRow = errors.New("blank row")

// Layout is the fixed column order of every category worksheet. Column
// indexes are 0-based; HeaderRows leading rows are ignored.
type Layout struct {
	HeaderRows   int
	ColName      int
	ColAttribute int
	ColQuantity  int
	ColPrice     int
	ColCost      int
}

// LayoutFromConfig copies the column layout out of the sheets config.
func LayoutFromConfig(cfg config.SheetsConfig) Layout {
	return Layout{
		HeaderRows:   cfg.HeaderRows,
		ColName:      cfg.ColName,
		ColAttribute: cfg.ColAttribute,
		ColQuantity:  cfg.ColQuantity,
		ColPrice:     cfg.ColPrice,
		ColCost:      cfg.ColCost,
	}
}

// QuantityCell returns the cell holding the product's quantity. Archived
// products have no row of their own: the row they last held may belong to
// another product now.
func (l Layout) QuantityCell(p models.Product) (sheets.CellRef, bool) {
	if p.Archived || p.SheetRow <= l.HeaderRows || p.Category == "" {
		return sheets.CellRef{}, false
	}
	return sheets.CellRef{Sheet: p.Category, Row: p.SheetRow, Column: l.ColQuantity}, true
}

// Row is a parsed product row.
type Row struct {
	Name      string
	Attribute string
	Quantity  int
	Price     decimal.Decimal
	Cost      decimal.Decimal
	SheetRow  int
}

// ParseRow validates one worksheet row. Rows with no product name return
// errBlankRow; missing or non-numeric quantity, price or cost is malformed.
func (l Layout) ParseRow(cells []string, sheetRow int) (Row, error) {
	get := func(idx int) string {
		if idx < len(cells) {
			return strings.TrimSpace(cells[idx])
		}
		return ""
	}

	name := get(l.ColName)
	if name == "" {
		return Row{}, errBlankRow
	}
	quantity, err := parseQuantity(get(l.ColQuantity))
	if err != nil {
		return Row{}, err
	}
	price, err := parseAmount("price", get(l.ColPrice))
	if err != nil {
		return Row{}, err
	}
	cost, err := parseAmount("cost", get(l.ColCost))
	if err != nil {
		return Row{}, err
	}

	return Row{
		Name:      name,
		Attribute: get(l.ColAttribute),
		Quantity:  quantity,
		Price:     price,
		Cost:      cost,
		SheetRow:  sheetRow,
	}, nil
}

func parseQuantity(raw string) (int, error) {
	if raw == "" {
		return 0, errors.New("quantity is empty")
	}
	value, err := decimal.NewFromString(normalizeNumber(raw))
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not numeric", raw)
	}
	if !value.IsInteger() {
		return 0, fmt.Errorf("quantity %q is not a whole number", raw)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("quantity %q is negative", raw)
	}
	return int(value.IntPart()), nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%s is empty", field)
	}
	value, err := decimal.NewFromString(normalizeNumber(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q is not numeric", field, raw)
	}
	return value, nil
}

// normalizeNumber turns a sheet-formatted number such as "1 234,50 ₽" or
// "$1,234.50" into decimal notation. Spaces and currency symbols are dropped.
// When both separators appear the later one is the decimal mark; a lone comma
// is a decimal mark and repeated ones group thousands.
func normalizeNumber(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) || r == '\'' {
			return -1
		}
		return r
	}, raw)

	lastDot, lastComma := strings.LastIndex(cleaned, "."), strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			return strings.Replace(cleaned, ",", ".", 1)
		}
		return strings.ReplaceAll(cleaned, ",", "")
	case strings.Count(cleaned, ",") > 1:
		return strings.ReplaceAll(cleaned, ",", "")
	case lastComma >= 0:
		return strings.Replace(cleaned, ",", ".", 1)
	case strings.Count(cleaned, ".") > 1:
		return strings.ReplaceAll(cleaned, ".", "")
	}
	return cleaned
}
