package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/expiry-tracker/api/routes"
	"github.com/angelmondragon/expiry-tracker/internal/cron"
	"github.com/angelmondragon/expiry-tracker/internal/inventorysync"
	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/internal/users"
	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/mailer"
	"github.com/angelmondragon/expiry-tracker/pkg/metrics"
	"github.com/angelmondragon/expiry-tracker/pkg/migrate"
	"github.com/angelmondragon/expiry-tracker/pkg/redis"
	"github.com/angelmondragon/expiry-tracker/pkg/zoho"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
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

	redisClient, err := redis.New(bootCtx, cfg.Redis, redis.NewKeyspace(cfg.Redis.KeyPrefix, cfg.App.Env), logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing redis", err)
		}
	}()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	expiryMetrics := metrics.NewExpiryMetrics(prometheus.DefaultRegisterer)

	zohoClient, err := zoho.NewClient(cfg.Zoho, nil, logg)
	if err != nil {
		return err
	}
	mail, err := mailer.New(cfg.SMTP, logg)
	if err != nil {
		return err
	}
	renderer, err := notifications.NewRenderer()
	if err != nil {
		return err
	}

	usersRepo := users.NewRepository(dbClient.DB())
	itemsRepo := items.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	recorder, err := notifications.NewRecorder(notificationsRepo, loc)
	if err != nil {
		return err
	}
	policy, err := items.PolicyFromConfig(cfg)
	if err != nil {
		return err
	}

	adapter, err := inventorysync.NewAdapter(inventorysync.AdapterParams{
		Logger:     logg,
		Remote:     zohoClient,
		Users:      usersRepo,
		Items:      itemsRepo,
		Limiter:    redisClient,
		RateLimit:  cfg.Zoho.RateLimit,
		RateWindow: cfg.Zoho.RateWindow,
		Metrics:    expiryMetrics,
	})
	if err != nil {
		return err
	}

	dispatcher, err := items.NewDispatcher(items.DispatcherParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: itemsRepo,
		Recorder:   recorder,
		Remote:     adapter,
		Metrics:    expiryMetrics,
	})
	if err != nil {
		return err
	}
	sweeper, err := items.NewSweeper(items.SweeperParams{
		Logger:     logg,
		Repository: itemsRepo,
		Dispatcher: dispatcher,
		Policy:     policy,
	})
	if err != nil {
		return err
	}
	itemsService, err := items.NewService(items.ServiceParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: itemsRepo,
		Dispatcher: dispatcher,
		Remote:     adapter,
		Policy:     policy,
	})
	if err != nil {
		return err
	}
	digest, err := notifications.NewDigestSweeper(notifications.DigestSweeperParams{
		Logger:     logg,
		Items:      itemsRepo,
		Users:      usersRepo,
		Repository: notificationsRepo,
		Recorder:   recorder,
		Mailer:     mail,
		Renderer:   renderer,
		Metrics:    expiryMetrics,
		Config:     cfg.Notifications,
		Location:   loc,
	})
	if err != nil {
		return err
	}
	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		return err
	}

	locks, err := cron.NewRedisLocks(redisClient, redisClient.Keys().JobLock, cfg.Scheduler.LockTTL)
	if err != nil {
		return err
	}
	state, err := cron.NewRedisRunState(redisClient, redisClient.Keys().JobLastRun)
	if err != nil {
		return err
	}

	scheduler, err := cron.NewSchedulerService(cron.SchedulerParams{
		Logger:       logg,
		Registry:     cron.NewRegistry(),
		Locks:        locks,
		State:        state,
		Metrics:      cronMetrics,
		Location:     loc,
		MisfireGrace: cfg.Scheduler.MisfireGrace,
	})
	if err != nil {
		return err
	}

	jobs, err := buildJobs(cfg, loc, logg, dbClient, itemsRepo, usersRepo, notificationsRepo, recorder, adapter, sweeper, digest)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := scheduler.AddJob(job); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"timezone":    loc.String(),
	})

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "starting cron worker")

	server := &http.Server{
		Addr: net.JoinHostPort("", cfg.App.Port),
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, prometheus.DefaultGatherer, routes.Services{
			Scheduler:     scheduler,
			Items:         itemsService,
			Notifications: notificationsService,
			Inventory:     adapter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = err
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Ops.ShutdownWait)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "http server shutdown", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "scheduler did not drain in time", err)
	}
	return runErr
}

func buildJobs(
	cfg *config.Config,
	loc *time.Location,
	logg *logger.Logger,
	dbClient *db.Client,
	itemsRepo items.Repository,
	usersRepo *users.Repository,
	notificationsRepo notifications.Repository,
	recorder *notifications.Recorder,
	adapter *inventorysync.Adapter,
	sweeper *items.Sweeper,
	digest *notifications.DigestSweeper,
) ([]cron.JobConfig, error) {
	sched := cfg.Scheduler

	sweepJob, err := cron.NewExpirySweepJob(cron.ExpirySweepJobParams{
		Logger:    logg,
		Lifecycle: sweeper,
		Digest:    digest,
	})
	if err != nil {
		return nil, err
	}
	expiredJob, err := cron.NewExpiredCleanupJob(cron.ExpiredCleanupJobParams{
		Logger:   logg,
		DB:       dbClient,
		Items:    itemsRepo,
		Recorder: recorder,
		Remote:   adapter,
		Grace:    cfg.Cleanup.ExpiredGrace,
	})
	if err != nil {
		return nil, err
	}
	unverifiedJob, err := cron.NewUnverifiedCleanupJob(cron.UnverifiedCleanupJobParams{
		Logger: logg,
		DB:     dbClient,
		Users:  usersRepo,
		Grace:  cfg.Cleanup.UnverifiedGrace,
	})
	if err != nil {
		return nil, err
	}
	syncJob, err := cron.NewInventorySyncJob(cron.InventorySyncJobParams{
		Logger: logg,
		Users:  usersRepo,
		Syncer: adapter,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Notifications: notificationsRepo,
		Days:          cfg.Notifications.RetentionDays,
		Location:      loc,
	})
	if err != nil {
		return nil, err
	}

	return []cron.JobConfig{
		{Job: sweepJob, Spec: sched.DailySweepSpec, Coalesce: sched.Coalesce},
		{Job: expiredJob, Spec: sched.ExpiredCleanupSpec, Coalesce: sched.Coalesce},
		{Job: unverifiedJob, Spec: sched.UnverifiedSpec, Coalesce: sched.Coalesce},
		{Job: syncJob, Spec: sched.InventorySyncSpec, Coalesce: sched.Coalesce},
		{Job: retentionJob, Spec: sched.RetentionSpec, Coalesce: sched.Coalesce},
	}, nil
}
