// Command server runs the deals HTTP API.
//
// Configuration comes from the environment (see internal/config); a .env
// file in the working directory is loaded first when present. Pass -seed to
// insert the default categories before serving.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/config"
	apphttp "github.com/tbourn/go-deals-backend/internal/http"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/repo"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	seed := flag.Bool("seed", false, "insert the default categories before serving")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(nil, "api", cfg.LogLevel, cfg.LogPretty)
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Process{Role: "api", Version: ver})
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := openStore(ctx, cfg, *seed)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("database setup failed")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	apphttp.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	go purgeIdempotency(ctx, idem, time.Hour)

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// openStore opens the database, migrates the schema, converts legacy
// category lists, and optionally seeds default categories.
func openStore(ctx context.Context, cfg config.Config, seed bool) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	n, err := repo.MigrateLegacyCategories(ctx, db, cfg.Paging.MaxCategories-1)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Info().Int("deals", n).Msg("converted legacy category lists")
	}
	if seed {
		if err := repo.Seed(ctx, db); err != nil {
			return nil, err
		}
		log.Info().Msg("default categories seeded")
	}
	return db, nil
}

func purgeIdempotency(ctx context.Context, idem *services.IdempotencyService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := idem.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
