package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/pkg/config"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const (
	readinessTimeout = 3 * time.Second
	envHeader        = "X-StockLedger-Env"
)

// Pinger is anything the readiness probe must reach.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails with DEPENDENCY_ERROR listing
// the ones that did not answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		failed := false
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				failed = true
				continue
			}
			checks[name] = "ok"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
