package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/api/middleware"
	"github.com/angelmondragon/stockledger/internal/access"
	"github.com/angelmondragon/stockledger/internal/reconcile"
	"github.com/angelmondragon/stockledger/internal/statistics"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrders struct{}

func (stubOrders) GetOrder(context.Context, string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrders) ListActiveOrders(context.Context) ([]models.Order, error) { return nil, nil }

func (stubOrders) CompletedDates(context.Context, int) ([]time.Time, error) { return nil, nil }

type stubStatistics struct{}

func (stubStatistics) ForPreset(context.Context, statistics.Preset) (*statistics.Summary, error) {
	return statistics.Summarize(statistics.Period{}, nil), nil
}

func (stubStatistics) Report(context.Context, time.Time, time.Time) (*statistics.Report, error) {
	return statistics.BuildReport(statistics.Summarize(statistics.Period{}, nil)), nil
}

type countingEngine struct{ calls int }

func (e *countingEngine) Reconcile(context.Context) (reconcile.Stats, error) {
	e.calls++
	return reconcile.Stats{}, nil
}

func newTestRouter(t *testing.T, engine *countingEngine) http.Handler {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Env: "dev"},
		HTTP: config.HTTPConfig{AdminToken: "ops-secret"},
	}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	metrics.NewReconcileMetrics(reg).Add("created", 1)

	gate, err := access.NewGate(access.GateParams{
		Store:        access.NewMemoryStore(),
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Logger:       logg,
	})
	require.NoError(t, err)

	return NewRouter(cfg, logg, stubPinger{}, stubPinger{}, reg, stubOrders{}, stubStatistics{}, engine, gate, time.UTC)
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter(t, &countingEngine{})

	cases := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/statistics?preset=month", http.StatusOK},
		{http.MethodGet, "/api/v1/orders", http.StatusOK},
		{http.MethodGet, "/api/v1/orders/completed-dates", http.StatusOK},
		{http.MethodGet, "/api/v1/orders/abcd1234", http.StatusNotFound},
		{http.MethodPost, "/api/v1/sync", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/access/42", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.target)
	}
}

func TestRouterMetricsExposeReconcileCounters(t *testing.T) {
	router := newTestRouter(t, &countingEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reconcile")
}

func TestRouterSyncWithAdminToken(t *testing.T) {
	engine := &countingEngine{}
	router := newTestRouter(t, engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	req.Header.Set(middleware.AdminTokenHeader, "ops-secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, engine.calls)
}

func TestRouterAccessStatusWithAdminToken(t *testing.T) {
	router := newTestRouter(t, &countingEngine{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/access/42", nil)
	req.Header.Set(middleware.AdminTokenHeader, "ops-secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authorized":false`)
}
