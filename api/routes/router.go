package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/materiel-backend/api/controllers"
	"github.com/angelmondragon/materiel-backend/api/middleware"
	"github.com/angelmondragon/materiel-backend/internal/materiel"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/internal/materieltypes"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
	"github.com/angelmondragon/materiel-backend/pkg/metrics"
	"github.com/angelmondragon/materiel-backend/pkg/redis"
	"github.com/angelmondragon/materiel-backend/pkg/tracing"
)

// NewRouter wires the HTTP surface. redisClient may be nil, in which case
// idempotency replay and per-user write limits are disabled.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	materielService materiel.Service,
	typeService materieltypes.Service,
	historyService materiellogs.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		tracing.Middleware(cfg.App.ServiceName),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	var (
		redisPinger controllers.Pinger
		idemStore   redis.IdempotencyStore
		rateStore   middleware.RateLimitStore
	)
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
		rateStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	writePolicy := middleware.NewWriteRateLimitPolicy("writes", cfg.RateLimit.Window, cfg.RateLimit.WriteRequests)
	idempotent := middleware.Idempotency(idemStore, cfg.Idempotency.TTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window, logg))
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.WriteRateLimit(writePolicy, rateStore, logg))

		r.Get("/materiel-statuses", controllers.MaterielStatuses())

		r.Route("/materiel-types", func(r chi.Router) {
			r.Get("/", controllers.MaterielTypeList(typeService, logg))
			r.Post("/", controllers.MaterielTypeCreate(typeService, logg))
			r.Put("/{typeId}", controllers.MaterielTypeUpdate(typeService, logg))
			r.Delete("/{typeId}", controllers.MaterielTypeDelete(typeService, logg))
		})

		r.Route("/materiels", func(r chi.Router) {
			r.Get("/", controllers.MaterielList(materielService, logg))
			r.Post("/", controllers.MaterielCreate(materielService, logg))
			r.Get("/by-identifier/{identifier}", controllers.MaterielGetByIdentifier(materielService, logg))
			r.Get("/{materielId}", controllers.MaterielGet(materielService, logg))
			r.Put("/{materielId}", controllers.MaterielUpdate(materielService, logg))
			r.Delete("/{materielId}", controllers.MaterielDelete(materielService, logg))
			r.With(idempotent).Post("/{materielId}/checkout", controllers.MaterielCheckout(materielService, logg))
			r.With(idempotent).Post("/{materielId}/checkin", controllers.MaterielCheckin(materielService, logg))
			r.Get("/{materielId}/history", controllers.MaterielHistory(historyService, logg))
		})

		r.Get("/users/{userId}/materiel-history", controllers.UserMaterielHistory(historyService, logg))
	})

	return r
}
