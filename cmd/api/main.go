package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmfellows/bidstreet-backend/api/routes"
	"github.com/dmfellows/bidstreet-backend/internal/address"
	"github.com/dmfellows/bidstreet-backend/internal/auctions"
	"github.com/dmfellows/bidstreet-backend/internal/cart"
	"github.com/dmfellows/bidstreet-backend/internal/checkout"
	"github.com/dmfellows/bidstreet-backend/internal/cron"
	"github.com/dmfellows/bidstreet-backend/internal/inventory"
	"github.com/dmfellows/bidstreet-backend/internal/orders"
	gatewaywebhook "github.com/dmfellows/bidstreet-backend/internal/webhooks/gateway"
	"github.com/dmfellows/bidstreet-backend/pkg/config"
	"github.com/dmfellows/bidstreet-backend/pkg/db"
	"github.com/dmfellows/bidstreet-backend/pkg/gateway"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
	"github.com/dmfellows/bidstreet-backend/pkg/migrate"
	"github.com/dmfellows/bidstreet-backend/pkg/outbox"
	"github.com/dmfellows/bidstreet-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	inventoryLedger, err := inventory.NewLedger(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	orderLedger, err := orders.NewLedger(orders.NewRepository(conn), dbClient, outboxService, inventoryLedger)
	if err != nil {
		logg.Error(context.Background(), "failed to create order ledger", err)
		os.Exit(1)
	}

	pricing := cart.PricingConfig{
		TaxRateBasisPoints:   cfg.Checkout.TaxRateBasisPoints,
		ShippingFlatCents:    cfg.Checkout.ShippingFlatCents,
		FreeShippingMinCents: cfg.Checkout.FreeShippingMinCents,
	}

	cartAssembler, err := cart.NewAssembler(cart.NewRepository(conn), pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart assembler", err)
		os.Exit(1)
	}

	addressRepo := address.NewRepository(conn)

	checkoutAssembler, err := checkout.NewAssembler(checkout.AssemblerParams{
		Orders:    orderLedger,
		OrderRepo: orders.NewRepository(conn),
		Inventory: inventoryLedger,
		Carts:     cart.NewRepository(conn),
		Addresses: addressRepo,
		Gateway:   gatewayClient,
		Tx:        dbClient,
		Outbox:    outboxService,
		Pricing:   pricing,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout assembler", err)
		os.Exit(1)
	}

	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookDedupTTL, "gateway-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedupe guard", err)
		os.Exit(1)
	}

	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Orders:            orderLedger,
		Refunds:           gatewaywebhook.NewRefundRepository(conn),
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Guard:             webhookGuard,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway webhook service", err)
		os.Exit(1)
	}

	settler, err := auctions.NewSettler(auctions.NewRepository(conn), dbClient, orderLedger, inventoryLedger, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create auction settler", err)
		os.Exit(1)
	}

	settlementJob, err := cron.NewAuctionSettlementJob(cron.AuctionSettlementJobParams{
		Logger:        logg,
		Settler:       settler,
		BatchSize:     cfg.Settlement.BatchSize,
		Parallelism:   cfg.Settlement.Parallelism,
		SlowThreshold: cfg.Settlement.SlowThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement job", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartAssembler,
			checkoutAssembler,
			addressRepo,
			gatewayClient,
			webhookService,
			settlementJob,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
