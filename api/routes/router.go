package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fanjava-backend/api/controllers"
	"github.com/angelmondragon/fanjava-backend/api/middleware"
	"github.com/angelmondragon/fanjava-backend/internal/analytics"
	"github.com/angelmondragon/fanjava-backend/internal/auth"
	"github.com/angelmondragon/fanjava-backend/internal/cart"
	"github.com/angelmondragon/fanjava-backend/internal/checkout"
	"github.com/angelmondragon/fanjava-backend/internal/notifications"
	"github.com/angelmondragon/fanjava-backend/internal/orders"
	"github.com/angelmondragon/fanjava-backend/internal/products"
	"github.com/angelmondragon/fanjava-backend/internal/reviews"
	"github.com/angelmondragon/fanjava-backend/pkg/auth/session"
	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
	"github.com/angelmondragon/fanjava-backend/pkg/redis"
)

// KeyValueStore is the Redis surface used by health checks, idempotency and throttling.
type KeyValueStore interface {
	redis.Pinger
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Deps carries everything the HTTP surface dispatches to. Nil services answer 500.
type Deps struct {
	DB       db.Pinger
	Store    KeyValueStore
	Sessions session.AccessSessionChecker
	Metrics  prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Auth          auth.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Notifications notifications.Service
	Reviews       reviews.Service
	Products      products.Service
	Categories    controllers.CategoryService
	Analytics     analytics.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimitWindow,
		middleware.PerUser(cfg.Checkout.RateLimitPerUser),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Store))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg)
	idempotent := middleware.Idempotency(deps.Store, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, deps.Store, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.RateLimit(registerPolicy, deps.Store, logg), idempotent).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		// catalog reads are public; a valid token only personalises review visibility
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/products", controllers.ListProducts(deps.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
			r.Get("/products/{productId}/reviews", controllers.ListProductReviews(deps.Reviews, logg))
			r.Get("/products/{productId}/rating", controllers.ProductRating(deps.Reviews, logg))
			r.Get("/categories", controllers.ListCategories(deps.Categories, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(idempotent)

			r.Get("/orders", controllers.ListOrders(deps.Orders, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.Patch("/orders/{orderId}", controllers.UpdateOrderStatus(deps.Orders, logg))

			r.Get("/notifications", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/notifications/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			r.Post("/notifications/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/notifications/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))

			r.Put("/reviews/{reviewId}", controllers.UpdateReview(deps.Reviews, logg))
			r.Delete("/reviews/{reviewId}", controllers.DeleteReview(deps.Reviews, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleClient))
				r.Get("/cart", controllers.CartView(deps.Cart, logg))
				r.Post("/cart/add", controllers.CartAdd(deps.Cart, logg))
				r.Post("/cart/update", controllers.CartUpdate(deps.Cart, logg))
				r.Post("/cart/remove", controllers.CartRemove(deps.Cart, logg))
				r.Post("/cart/clear", controllers.CartClear(deps.Cart, logg))
				r.With(middleware.RateLimit(checkoutPolicy, deps.Store, logg)).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
				r.Post("/reviews", controllers.CreateReview(deps.Reviews, logg))
			})

			// vendor routes stay inline so idempotency sees the full route pattern
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleVendor))
				r.Get("/vendor/products", controllers.VendorListProducts(deps.Products, logg))
				r.Post("/vendor/products", controllers.VendorCreateProduct(deps.Products, logg))
				r.Patch("/vendor/products/{productId}", controllers.VendorUpdateProduct(deps.Products, logg))
				r.Delete("/vendor/products/{productId}", controllers.VendorDeleteProduct(deps.Products, logg))
				r.Put("/vendor/products/{productId}/stock", controllers.VendorSetStock(deps.Products, logg))
				r.Get("/vendor/stats", controllers.VendorStats(deps.Analytics, logg))
				r.Get("/vendor/stats/top-products", controllers.VendorTopProducts(deps.Analytics, logg))
				r.Get("/vendor/stats/low-stock", controllers.VendorLowStock(deps.Analytics, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Post("/notifications/bulk", controllers.BroadcastNotification(deps.Notifications, logg))
				r.Get("/notifications/{notificationId}/stats", controllers.NotificationStats(deps.Notifications, logg))
				r.Patch("/notifications/{notificationId}/toggle_active", controllers.ToggleNotification(deps.Notifications, logg))
				r.Get("/reviews/pending", controllers.ListPendingReviews(deps.Reviews, logg))
				r.Post("/reviews/{reviewId}/approve", controllers.ApproveReview(deps.Reviews, logg))
				r.Post("/categories", controllers.CreateCategory(deps.Categories, logg))
				r.Delete("/categories/{categoryId}", controllers.DeleteCategory(deps.Categories, logg))
			})
		})
	})

	return r
}
