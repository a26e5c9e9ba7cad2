package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/api/validators"
	"github.com/angelmondragon/stockledger/internal/statistics"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

type StatisticsReader interface {
	ForPreset(ctx context.Context, preset statistics.Preset) (*statistics.Summary, error)
	Report(ctx context.Context, start, end time.Time) (*statistics.Report, error)
}

// Statistics returns the sales report for an explicit from/to pair of days or
// for a named preset. Without parameters it reports today.
func Statistics(svc StatisticsReader, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "statistics service unavailable"))
			return
		}

		start, hasFrom, err := validators.ParseQueryDate(r, "from", loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, hasTo, err := validators.ParseQueryDate(r, "to", loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if hasFrom || hasTo {
			if !hasFrom || !hasTo {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together"))
				return
			}
			report, err := svc.Report(r.Context(), start, end)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, report)
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("preset"))
		if raw == "" {
			raw = statistics.PresetToday.String()
		}
		preset, err := statistics.ParsePreset(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid preset").WithDetails(map[string]any{"field": "preset"}))
			return
		}
		summary, err := svc.ForPreset(r.Context(), preset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statistics.BuildReport(summary))
	}
}
