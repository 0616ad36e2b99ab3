package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fanjava-backend/api/routes"
	"github.com/angelmondragon/fanjava-backend/internal/analytics"
	"github.com/angelmondragon/fanjava-backend/internal/auth"
	"github.com/angelmondragon/fanjava-backend/internal/cart"
	"github.com/angelmondragon/fanjava-backend/internal/categories"
	"github.com/angelmondragon/fanjava-backend/internal/checkout"
	"github.com/angelmondragon/fanjava-backend/internal/inventory"
	"github.com/angelmondragon/fanjava-backend/internal/notifications"
	"github.com/angelmondragon/fanjava-backend/internal/orders"
	"github.com/angelmondragon/fanjava-backend/internal/products"
	"github.com/angelmondragon/fanjava-backend/internal/reviews"
	"github.com/angelmondragon/fanjava-backend/internal/users"
	"github.com/angelmondragon/fanjava-backend/pkg/auth/session"
	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
	"github.com/angelmondragon/fanjava-backend/pkg/migrate"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		File: logger.FileOptions{
			Path:       cfg.App.LogFile,
			MaxSizeMB:  cfg.App.LogMaxSizeMB,
			MaxAgeDays: cfg.App.LogMaxAgeDay,
		},
	})
	defer logg.Close()

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing redis", err)
		}
	}()

	registry := metrics.NewRegistry()

	deps, fanout, err := buildDeps(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := fanout.Close(shutdownTimeout); err != nil {
			logg.Error(bootCtx, "notification fan-out did not drain", err)
		}
	}()

	addr := cfg.App.ListenAddr()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (routes.Deps, *notifications.Fanout, error) {
	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return routes.Deps{}, nil, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, nil, err
	}

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	guard := inventory.NewGuard()
	stats := analytics.NewStatsWriter()

	cartStore, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
	if err != nil {
		return routes.Deps{}, nil, err
	}
	cartService, err := cart.NewService(cartStore, cart.NewProductReader(dbClient.DB()))
	if err != nil {
		return routes.Deps{}, nil, err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:      dbClient,
		Cart:    cartService,
		Orders:  ordersRepo,
		Guard:   guard,
		Stats:   stats,
		Outbox:  emitter,
		Metrics: metrics.NewCheckoutMetrics(registry),
		Logger:  logg,
		Config:  cfg.Checkout,
	})
	if err != nil {
		return routes.Deps{}, nil, err
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, emitter, guard, stats)
	if err != nil {
		return routes.Deps{}, nil, err
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	fanout, err := notifications.NewFanout(notificationsRepo, cfg.Notifications, metrics.NewFanoutMetrics(registry), logg)
	if err != nil {
		return routes.Deps{}, nil, err
	}
	notificationsService, err := notifications.NewService(notificationsRepo, fanout, cfg.Notifications, logg)
	if err != nil {
		return routes.Deps{}, nil, err
	}

	reviewsService, err := reviews.NewService(reviews.NewRepository(dbClient.DB()), dbClient, ordersRepo, emitter, cfg.Reviews)
	if err != nil {
		return routes.Deps{}, nil, err
	}

	productsService, err := products.NewService(products.NewRepository(dbClient.DB()), dbClient, guard, emitter)
	if err != nil {
		return routes.Deps{}, nil, err
	}

	categoriesService, err := categories.NewService(categories.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Deps{}, nil, err
	}

	analyticsService, err := analytics.NewService(analytics.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Deps{}, nil, err
	}

	return routes.Deps{
		DB:            dbClient,
		Store:         redisClient,
		Sessions:      sessions,
		Metrics:       registry,
		HTTP:          metrics.NewHTTPMetrics(registry),
		Auth:          authService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Notifications: notificationsService,
		Reviews:       reviewsService,
		Products:      productsService,
		Categories:    categoriesService,
		Analytics:     analyticsService,
	}, fanout, nil
}
