package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/api/validators"
	"github.com/angelmondragon/stockledger/internal/statistics"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const (
	defaultCompletedDays = 7
	maxCompletedDays     = 90
)

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListActiveOrders(ctx context.Context) ([]models.Order, error)
	CompletedDates(ctx context.Context, lastNDays int) ([]time.Time, error)
}

// OrderDetail dumps one order with its lines and adjustments.
func OrderDetail(svc OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID)
		order, err := svc.GetOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, statistics.NewOrderReport(*order))
	}
}

// ActiveOrders lists pending orders.
func ActiveOrders(svc OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orders, err := svc.ListActiveOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]statistics.OrderReport, 0, len(orders))
		for _, order := range orders {
			out = append(out, statistics.NewOrderReport(order))
		}
		responses.WriteSuccess(w, out)
	}
}

// CompletedDates lists the days, newest first, on which orders were completed.
func CompletedDates(svc OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		days, err := validators.ParseQueryInt(r, "days", defaultCompletedDays, 1, maxCompletedDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dates, err := svc.CompletedDates(r.Context(), days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]string, 0, len(dates))
		for _, d := range dates {
			out = append(out, d.Format(time.DateOnly))
		}
		responses.WriteSuccess(w, map[string]any{"days": days, "dates": out})
	}
}
