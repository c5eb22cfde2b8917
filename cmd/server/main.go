package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/skymaintain/service-layer/internal/app"
	"github.com/skymaintain/service-layer/internal/app/httpapi"
	"github.com/skymaintain/service-layer/internal/app/metrics"
	"github.com/skymaintain/service-layer/internal/app/storage/postgres"
	"github.com/skymaintain/service-layer/internal/app/system"
	"github.com/skymaintain/service-layer/internal/config"
	"github.com/skymaintain/service-layer/pkg/logger"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("configuration error")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "server",
	})

	thresholds, err := cfg.Thresholds()
	if err != nil {
		log.WithError(err).Error("rule threshold configuration error")
		os.Exit(1)
	}

	var stores app.Stores
	if cfg.Database.Driver == "postgres" {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("database connection failed")
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		defer db.Close()

		if err := postgres.Migrate(db); err != nil {
			log.WithError(err).Error("database migration failed")
			os.Exit(1)
		}

		store := postgres.New(db)
		stores = app.Stores{
			Ingestion: store,
			Decisions: store,
			Audit:     store,
			APIKeys:   store,
			Orgs:      store,
		}
	}

	m := metrics.New()
	application := app.New(app.Options{
		Stores:     stores,
		Logger:     log,
		Metrics:    m,
		Thresholds: thresholds,
		StampKey:   []byte(cfg.StampKey),
	})

	resolver := httpapi.NewHeaderResolver([]byte(cfg.IdentityJWTKey))
	handler := httpapi.NewHandler(application, resolver)
	server := httpapi.NewServer(cfg.Server.Addr(), handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, log)

	manager := system.NewManager(log)
	manager.Register(server)

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		log.WithError(err).Error("startup failed")
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}
}
