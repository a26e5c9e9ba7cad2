package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger/pkg/enums"
)

// Order owns its line items and profit adjustments. Monetary aggregates are
// derived on demand and never persisted.
type Order struct {
	ID          string             `gorm:"column:id;type:varchar(8);primaryKey"`
	Name        *string            `gorm:"column:name;type:varchar(30);uniqueIndex:ux_orders_active_name,where:status <> 'completed' AND name IS NOT NULL"`
	Status      enums.OrderStatus  `gorm:"column:status;type:varchar(16);not null;index"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	CompletedAt *time.Time         `gorm:"column:completed_at;index"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	Items       []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Adjustments []ProfitAdjustment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// DisplayName returns the human name when set, otherwise the id.
func (o Order) DisplayName() string {
	if o.Name != nil && *o.Name != "" {
		return *o.Name
	}
	return o.ID
}

func (o Order) IsPending() bool {
	return o.Status == enums.OrderStatusPending
}

func (o Order) IsCompleted() bool {
	return o.Status == enums.OrderStatusCompleted
}

// TotalItems is the sum of price x quantity over all line items.
func (o Order) TotalItems() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// TotalAdjustments sums only the adjustments that change the customer total.
func (o Order) TotalAdjustments() decimal.Decimal {
	sum := decimal.Zero
	for _, adj := range o.Adjustments {
		if adj.AffectsTotal {
			sum = sum.Add(adj.Amount)
		}
	}
	return sum
}

// Total is what the customer pays.
func (o Order) Total() decimal.Decimal {
	return o.TotalItems().Add(o.TotalAdjustments())
}

func (o Order) TotalCost() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.LineCost())
	}
	return sum
}

// Profit includes every adjustment, total-affecting or not.
func (o Order) Profit() decimal.Decimal {
	profit := o.TotalItems().Sub(o.TotalCost())
	for _, adj := range o.Adjustments {
		profit = profit.Add(adj.Amount)
	}
	return profit
}

// Discount is the (non-positive) sum of negative total-affecting adjustments.
func (o Order) Discount() decimal.Decimal {
	sum := decimal.Zero
	for _, adj := range o.Adjustments {
		if adj.AffectsTotal && adj.Amount.IsNegative() {
			sum = sum.Add(adj.Amount)
		}
	}
	return sum
}

// ItemFor returns the line for productID, if any.
func (o Order) ItemFor(productID uint) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID != nil && *o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}
