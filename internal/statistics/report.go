package statistics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockledger/pkg/db/models"
)

// Report is the per-order breakdown behind a Summary, in a shape ready for
// export. Amounts are rendered with two decimals.
type Report struct {
	From             string        `json:"from"`
	To               string        `json:"to"`
	Count            int           `json:"count"`
	TotalSum         string        `json:"total_sum"`
	TotalCost        string        `json:"total_cost"`
	TotalAdjustments string        `json:"total_adjustments"`
	NetProfit        string        `json:"net_profit"`
	Orders           []OrderReport `json:"orders"`
}

type OrderReport struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Total       string             `json:"total"`
	Cost        string             `json:"cost"`
	Discount    string             `json:"discount"`
	Profit      string             `json:"profit"`
	Items       []ItemReport       `json:"items"`
	Adjustments []AdjustmentReport `json:"adjustments"`
}

type ItemReport struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	LineTotal   string `json:"line_total"`
}

type AdjustmentReport struct {
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
	AffectsTotal bool   `json:"affects_total"`
}

func (s *service) Report(ctx context.Context, start, end time.Time) (*Report, error) {
	summary, err := s.Statistics(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return BuildReport(summary), nil
}

// BuildReport renders a Summary and its orders.
func BuildReport(summary *Summary) *Report {
	report := &Report{
		From:             summary.Period.Start.Format(time.DateOnly),
		To:               summary.Period.End.Format(time.DateOnly),
		Count:            summary.Count,
		TotalSum:         money(summary.TotalSum),
		TotalCost:        money(summary.TotalCost),
		TotalAdjustments: money(summary.TotalAdjustments),
		NetProfit:        money(summary.NetProfit),
		Orders:           make([]OrderReport, 0, len(summary.Orders)),
	}
	for _, order := range summary.Orders {
		report.Orders = append(report.Orders, NewOrderReport(order))
	}
	return report
}

// NewOrderReport dumps a single order with its lines and adjustments.
func NewOrderReport(order models.Order) OrderReport {
	out := OrderReport{
		ID:          order.ID,
		DisplayName: order.DisplayName(),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
		CompletedAt: order.CompletedAt,
		Total:       money(order.Total()),
		Cost:        money(order.TotalCost()),
		Discount:    money(order.Discount()),
		Profit:      money(order.Profit()),
		Items:       make([]ItemReport, 0, len(order.Items)),
		Adjustments: make([]AdjustmentReport, 0, len(order.Adjustments)),
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, ItemReport{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       money(item.Price),
			LineTotal:   money(item.LineTotal()),
		})
	}
	for _, adj := range order.Adjustments {
		out.Adjustments = append(out.Adjustments, AdjustmentReport{
			Amount:       money(adj.Amount),
			Reason:       adj.Reason,
			AffectsTotal: adj.AffectsTotal,
		})
	}
	return out
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
