package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockledger/api/controllers"
	"github.com/angelmondragon/stockledger/api/middleware"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

// NewRouter wires the ops API. Reads are open; the manual sync trigger and the
// access gate need the admin token.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	gatherer prometheus.Gatherer,
	ordersSvc controllers.OrderReader,
	statsSvc controllers.StatisticsReader,
	engine controllers.Reconciler,
	accessGate controllers.AccessGate,
	loc *time.Location,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/statistics", controllers.Statistics(statsSvc, loc, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ActiveOrders(ordersSvc, logg))
			r.Get("/completed-dates", controllers.CompletedDates(ordersSvc, logg))
			r.Get("/{orderID}", controllers.OrderDetail(ordersSvc, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminToken(cfg.HTTP.AdminToken, logg))
			r.Post("/sync", controllers.Sync(engine, logg))
			r.Route("/access", func(r chi.Router) {
				r.Post("/attempts", controllers.AccessAttempt(accessGate, logg))
				r.Get("/{userID}", controllers.AccessStatus(accessGate, logg))
				r.Post("/{userID}/ban", controllers.AccessBan(accessGate, logg))
			})
		})
	})

	return r
}
