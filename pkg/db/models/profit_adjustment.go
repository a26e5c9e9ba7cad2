package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProfitAdjustment is a signed correction to an order. Adjustments with
// AffectsTotal=false change recorded profit only.
type ProfitAdjustment struct {
	ID           uint            `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID      string          `gorm:"column:order_id;type:varchar(8);not null;index"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason       string          `gorm:"column:reason;not null"`
	AffectsTotal bool            `gorm:"column:affects_total;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
