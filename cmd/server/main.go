package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/donana/kitchen-api/internal/config"
	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/logger"
	"github.com/donana/kitchen-api/internal/router"
	"github.com/donana/kitchen-api/internal/service"
	"github.com/donana/kitchen-api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("ping database")
	}

	services := router.Services{
		Catalog: service.NewCatalogService(pool, func(db database.DBTX) service.CatalogStore {
			return database.New(db)
		}, log.WithField("component", "catalog")),
		Scheduler: service.NewSchedulerService(pool, func(db database.DBTX) service.SchedulerStore {
			return database.New(db)
		}, service.SchedulerOptions{
			DailyCapacity: cfg.DailyCapacity,
			Location:      cfg.Location,
		}, log.WithField("component", "scheduler")),
		Ledger: service.NewLedgerService(pool, func(db database.DBTX) service.LedgerStore {
			return database.New(db)
		}, log.WithField("component", "ledger")),
		Projector: service.NewProjectorService(pool, func(db database.DBTX) service.ProjectorStore {
			return database.New(db)
		}, log.WithField("component", "projector")),
	}

	hub := ws.NewHub(log.WithField("component", "ws"))
	hubDone := make(chan struct{})
	go hub.Run(hubDone)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, services, hub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":           cfg.Port,
			"daily_capacity": cfg.DailyCapacity,
			"timezone":       cfg.Location.String(),
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	close(hubDone)
}
