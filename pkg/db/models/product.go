package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one row of a category worksheet mirrored into the ledger.
// Identity is (category, name, attribute); rows are archived, never deleted.
type Product struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	Category         string          `gorm:"column:category;not null;uniqueIndex:ux_products_identity,priority:1;index:idx_products_category_archived,priority:1"`
	Name             string          `gorm:"column:name;not null;uniqueIndex:ux_products_identity,priority:2"`
	Attribute        string          `gorm:"column:attribute;not null;uniqueIndex:ux_products_identity,priority:3"`
	Quantity         int             `gorm:"column:quantity;not null;default:0;check:chk_products_quantity_non_negative,quantity >= 0"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Cost             decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null"`
	SheetRow         int             `gorm:"column:sheet_row;not null;default:0"`
	Archived         bool            `gorm:"column:archived;not null;default:false;index:idx_products_category_archived,priority:2"`
	WriteBackPending bool            `gorm:"column:writeback_pending;not null;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// DisplayName renders "Name (Attribute)", or just the name when the attribute is blank.
func (p Product) DisplayName() string {
	if p.Attribute == "" {
		return p.Name
	}
	return p.Name + " (" + p.Attribute + ")"
}

// InStock reports whether at least qty units are on hand.
func (p Product) InStock(qty int) bool {
	return qty > 0 && p.Quantity >= qty
}
