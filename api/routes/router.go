package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openbasket/storefront/api/controllers"
	cartcontrollers "github.com/openbasket/storefront/api/controllers/cart"
	"github.com/openbasket/storefront/api/middleware"
	"github.com/openbasket/storefront/pkg/config"
	"github.com/openbasket/storefront/pkg/logger"
	"github.com/openbasket/storefront/pkg/redis"
)

type sessionManager interface {
	controllers.SessionService
}

type cartEngine interface {
	cartcontrollers.Service
	controllers.CartSource
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	storeP controllers.Pinger,
	redisClient *redis.Client,
	sessions sessionManager,
	eng cartEngine,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cacheP controllers.Pinger
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		cacheP = redisClient
		idemStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, storeP, cacheP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SessionMode(sessions, logg))
		r.Use(middleware.Idempotency(idemStore, cfg.Idempotency.TTL, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(eng, logg))
			r.Post("/items", cartcontrollers.AddItem(eng, logg))
			r.Patch("/items/{itemID}", cartcontrollers.UpdateQuantity(eng, logg))
			r.Delete("/items/{itemID}", cartcontrollers.RemoveItem(eng, logg))
			r.Post("/items/{itemID}/wishlist", cartcontrollers.MoveToWishlist(eng, logg))
			r.Post("/coupon", cartcontrollers.ApplyCoupon(eng, logg))
			r.Delete("/coupon", cartcontrollers.RemoveCoupon(eng, logg))
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionStatus(sessions))
			r.Post("/login", controllers.SessionLogin(sessions, eng, logg))
			r.Post("/logout", controllers.SessionLogout(sessions, eng, logg))
		})
	})

	return r
}
