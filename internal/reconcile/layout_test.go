package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/pkg/db/models"
)

func testLayout() Layout {
	return Layout{HeaderRows: 1, ColName: 0, ColAttribute: 1, ColQuantity: 2, ColPrice: 3, ColCost: 4}
}

func TestParseRow(t *testing.T) {
	layout := testLayout()

	row, err := layout.ParseRow([]string{" Berry ", "10ml", "12", "4,50", "2.10"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "Berry", row.Name)
	assert.Equal(t, "10ml", row.Attribute)
	assert.Equal(t, 12, row.Quantity)
	assert.True(t, row.Price.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, row.Cost.Equal(decimal.RequireFromString("2.10")))
	assert.Equal(t, 3, row.SheetRow)
}

func TestParseRowReadsFormattedAmounts(t *testing.T) {
	cases := map[string]string{
		"1,234.50":     "1234.50",
		"1.234,50":     "1234.50",
		"1 234,50 ₽":   "1234.50",
		"$1,234.50":    "1234.50",
		"1,234,567":    "1234567",
		"1.234.567":    "1234567",
		"12,5":         "12.5",
		"\u00a0 990 €": "990",
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			row, err := testLayout().ParseRow([]string{"Berry", "", "1 200", raw, "1"}, 2)
			require.NoError(t, err)
			assert.Equal(t, 1200, row.Quantity)
			assert.True(t, row.Price.Equal(decimal.RequireFromString(want)), "got %s", row.Price)
		})
	}
}

func TestParseRowRejects(t *testing.T) {
	layout := testLayout()
	cases := map[string][]string{
		"negative quantity":   {"Berry", "", "-1", "1", "1"},
		"fractional quantity": {"Berry", "", "1.5", "1", "1"},
		"missing price":       {"Berry", "", "1"},
		"text cost":           {"Berry", "", "1", "1", "n/a"},
		"empty quantity":      {"Berry", "", "", "1", "1"},
		"currency word":       {"Berry", "", "1", "10 rub", "1"},
	}
	for name, cells := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := layout.ParseRow(cells, 2)
			require.Error(t, err)
			assert.NotErrorIs(t, err, errBlankRow)
		})
	}
}

func TestParseRowBlank(t *testing.T) {
	_, err := testLayout().ParseRow([]string{"", "x", "1"}, 2)
	assert.ErrorIs(t, err, errBlankRow)

	_, err = testLayout().ParseRow(nil, 2)
	assert.ErrorIs(t, err, errBlankRow)
}

func TestQuantityCell(t *testing.T) {
	layout := testLayout()

	cell, ok := layout.QuantityCell(models.Product{Category: "Liquids", SheetRow: 4})
	require.True(t, ok)
	assert.Equal(t, "'Liquids'!C4", cell.A1())

	_, ok = layout.QuantityCell(models.Product{Category: "Liquids", SheetRow: 1})
	assert.False(t, ok)

	_, ok = layout.QuantityCell(models.Product{SheetRow: 4})
	assert.False(t, ok)

	_, ok = layout.QuantityCell(models.Product{Category: "Liquids", SheetRow: 4, Archived: true})
	assert.False(t, ok, "archived products must not address the row they used to hold")
}
