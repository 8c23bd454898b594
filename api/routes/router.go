package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmfellows/bidstreet-backend/api/controllers"
	webhookcontrollers "github.com/dmfellows/bidstreet-backend/api/controllers/webhooks"
	"github.com/dmfellows/bidstreet-backend/api/middleware"
	"github.com/dmfellows/bidstreet-backend/internal/address"
	"github.com/dmfellows/bidstreet-backend/internal/cart"
	checkoutsvc "github.com/dmfellows/bidstreet-backend/internal/checkout"
	"github.com/dmfellows/bidstreet-backend/internal/cron"
	gatewaywebhook "github.com/dmfellows/bidstreet-backend/internal/webhooks/gateway"
	"github.com/dmfellows/bidstreet-backend/pkg/config"
	"github.com/dmfellows/bidstreet-backend/pkg/db"
	"github.com/dmfellows/bidstreet-backend/pkg/gateway"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
	"github.com/dmfellows/bidstreet-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Assembler,
	checkoutService checkoutsvc.Assembler,
	addressRepo address.Repository,
	gatewayClient *gateway.Client,
	webhookService *gatewaywebhook.Service,
	settlementJob *cron.AuctionSettlementJob,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		var limiter middleware.FixedWindowLimiter
		if redisClient != nil {
			limiter = redisClient
		}
		r.Use(middleware.RateLimit(limiter, logg, "gateway-webhook",
			cfg.Gateway.WebhookRateLimit, cfg.Gateway.WebhookRateLimitWindow))
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(webhookService, gatewayClient, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Group(func(r chi.Router) {
			r.Get("/ping", controllers.PrivatePing())

			r.Route("/v1/cart", func(r chi.Router) {
				r.Get("/", controllers.CartQuote(cartService, logg))
				r.Post("/", controllers.CartAddItem(cartService, logg))
				r.Put("/", controllers.CartUpdateItem(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
			})

			r.Route("/v1/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(addressRepo, logg))
				r.Post("/", controllers.AddressCreate(addressRepo, logg))
				r.Delete("/{addressId}", controllers.AddressDelete(addressRepo, logg))
			})

			r.Post("/v1/checkout", controllers.Checkout(checkoutService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/settlement", func(r chi.Router) {
			r.Post("/run", controllers.AdminRunSettlement(settlementJob, logg))
		})
	})

	return r
}
