package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voltara/prebooking-backend/api/routes"
	"github.com/voltara/prebooking-backend/internal/booking"
	"github.com/voltara/prebooking-backend/internal/catalog"
	"github.com/voltara/prebooking-backend/internal/checkout"
	"github.com/voltara/prebooking-backend/internal/coordinator"
	"github.com/voltara/prebooking-backend/internal/settlement"
	"github.com/voltara/prebooking-backend/internal/terms"
	"github.com/voltara/prebooking-backend/internal/verification"
	"github.com/voltara/prebooking-backend/pkg/config"
	"github.com/voltara/prebooking-backend/pkg/db"
	"github.com/voltara/prebooking-backend/pkg/gateway"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/metrics"
	"github.com/voltara/prebooking-backend/pkg/migrate"
	"github.com/voltara/prebooking-backend/pkg/outbox"
	"github.com/voltara/prebooking-backend/pkg/redis"
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
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	txMetrics := metrics.NewTransactionMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	termsSvc, err := terms.NewService(
		terms.NewRepository(dbClient.DB()),
		dbClient,
		terms.NewLogSender(logg),
		outboxSvc,
		cfg.OTP,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create terms service", err)
		os.Exit(1)
	}

	bookingRepo := booking.NewRepository(dbClient.DB())
	bookingSvc, err := booking.NewService(
		bookingRepo,
		dbClient,
		catalogSvc,
		termsSvc,
		redisClient,
		outboxSvc,
		cfg.Booking,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		checkout.NewRepository(dbClient.DB()),
		dbClient,
		bookingRepo,
		gatewayClient,
		txMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	verificationSvc, err := verification.NewService(
		verification.NewRepository(dbClient.DB()),
		gatewayClient,
		txMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(
		settlement.NewRepository(dbClient.DB()),
		bookingRepo,
		dbClient,
		verificationSvc,
		settlement.NewLogNotifier(logg),
		outboxSvc,
		cfg.Referral,
		txMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	coordinatorSvc, err := coordinator.NewService(bookingSvc, checkoutSvc, settlementSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction coordinator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Metrics:     txMetrics,
			Catalog:     catalogSvc,
			Terms:       termsSvc,
			Bookings:    bookingSvc,
			Coordinator: coordinatorSvc,
			Settlement:  settlementSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
