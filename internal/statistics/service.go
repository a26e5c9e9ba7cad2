package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

// OrderSource lists completed orders for an inclusive range of days.
type OrderSource interface {
	CompletedOrdersBetween(ctx context.Context, start, end time.Time) ([]models.Order, error)
}

// Summary aggregates completed orders over a period.
type Summary struct {
	Period           Period
	Orders           []models.Order
	Count            int
	TotalSum         decimal.Decimal
	TotalCost        decimal.Decimal
	TotalAdjustments decimal.Decimal
	NetProfit        decimal.Decimal
}

// Service computes sales statistics.
type Service interface {
	Statistics(ctx context.Context, start, end time.Time) (*Summary, error)
	ForPreset(ctx context.Context, preset Preset) (*Summary, error)
	Report(ctx context.Context, start, end time.Time) (*Report, error)
}

type service struct {
	orders OrderSource
	loc    *time.Location
	now    func() time.Time
}

// NewService builds the statistics service. loc decides where days begin.
func NewService(orders OrderSource, loc *time.Location, now func() time.Time) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &service{orders: orders, loc: loc, now: now}, nil
}

func (s *service) Statistics(ctx context.Context, start, end time.Time) (*Summary, error) {
	start, end = startOfDay(start.In(s.loc)), startOfDay(end.In(s.loc))
	if end.Before(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end date precedes start date")
	}
	orders, err := s.orders.CompletedOrdersBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return Summarize(Period{Start: start, End: end}, orders), nil
}

func (s *service) ForPreset(ctx context.Context, preset Preset) (*Summary, error) {
	if !preset.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid statistics preset %q", preset))
	}
	period := preset.Range(s.now().In(s.loc))
	return s.Statistics(ctx, period.Start, period.End)
}

// Summarize folds already-selected orders into a Summary.
func Summarize(period Period, orders []models.Order) *Summary {
	summary := &Summary{
		Period:           period,
		Orders:           orders,
		Count:            len(orders),
		TotalSum:         decimal.Zero,
		TotalCost:        decimal.Zero,
		TotalAdjustments: decimal.Zero,
		NetProfit:        decimal.Zero,
	}
	for _, order := range orders {
		summary.TotalSum = summary.TotalSum.Add(order.Total())
		summary.TotalCost = summary.TotalCost.Add(order.TotalCost())
		summary.TotalAdjustments = summary.TotalAdjustments.Add(order.TotalAdjustments())
		summary.NetProfit = summary.NetProfit.Add(order.Profit())
	}
	return summary
}
