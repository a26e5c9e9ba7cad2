package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a line of an order. Price and cost are captured when the line is
// first added; ProductName survives the product being removed.
type OrderItem struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     string          `gorm:"column:order_id;type:varchar(8);not null;uniqueIndex:ux_order_items_order_product,priority:1"`
	ProductID   *uint           `gorm:"column:product_id;uniqueIndex:ux_order_items_order_product,priority:2"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null;check:chk_order_items_quantity_positive,quantity > 0"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Cost        decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	Product     *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) LineCost() decimal.Decimal {
	return i.Cost.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
