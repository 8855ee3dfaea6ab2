package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/expiry-tracker/api/controllers"
	"github.com/angelmondragon/expiry-tracker/api/middleware"
	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

// RedisStore backs readiness checks and the job-run rate limit.
type RedisStore interface {
	Ping(ctx context.Context) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Services groups the handlers' domain dependencies.
type Services struct {
	Scheduler     controllers.Scheduler
	Items         items.Service
	Notifications notifications.Service
	Inventory     controllers.InventoryAccounts
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisStore,
		}))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	if !cfg.Ops.JobAPIEnabled() {
		return r
	}

	runPolicy := middleware.NewRateLimitPolicy("job-run", cfg.Ops.RunWindow, cfg.Ops.RunLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OpsToken(cfg.Ops.Token, logg))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", controllers.ListJobs(svcs.Scheduler))
			r.With(middleware.RateLimit(runPolicy, redisStore, logg)).Post("/{name}/run", controllers.RunJob(svcs.Scheduler, logg))
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
			})

			r.Route("/items", func(r chi.Router) {
				r.Post("/", controllers.CreateItem(svcs.Items, logg))
				r.Put("/{itemID}", controllers.UpdateItem(svcs.Items, logg))
				r.Delete("/{itemID}", controllers.DeleteItem(svcs.Items, logg))
				r.Post("/{itemID}/refresh", controllers.RefreshItemStatus(svcs.Items, logg))
				r.Post("/{itemID}/discount", controllers.SetItemDiscount(svcs.Items, logg))
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/auth-url", controllers.InventoryAuthURL(svcs.Inventory, logg))
				r.Post("/connect", controllers.InventoryConnect(svcs.Inventory, logg))
				r.Post("/sync", controllers.InventorySync(svcs.Inventory, logg))
			})
		})
	})

	return r
}
