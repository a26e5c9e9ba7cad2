package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/internal/reconcile"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (reconcile.Stats, error)
}

type syncResponse struct {
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Archived   int `json:"archived"`
	Unarchived int `json:"unarchived"`
	Skipped    int `json:"skipped"`
	Requeued   int `json:"requeued"`
}

// Sync runs a reconciliation pass now. It waits for any pass already holding
// the sheet gate, so the request deadline bounds the wait.
func Sync(engine Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation unavailable"))
			return
		}
		ctx := logg.WithJob(r.Context(), reconcile.JobName)
		stats, err := engine.Reconcile(ctx)
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconciliation failed").WithDetails(statsBody(stats))
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "sync.manual_complete")
		responses.WriteSuccess(w, statsBody(stats))
	}
}

func statsBody(s reconcile.Stats) syncResponse {
	return syncResponse{
		Created:    s.Created,
		Updated:    s.Updated,
		Archived:   s.Archived,
		Unarchived: s.Unarchived,
		Skipped:    s.Skipped,
		Requeued:   s.Requeued,
	}
}
