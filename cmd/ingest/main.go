// Command ingest runs the deal ingestion worker.
//
// By default it loops: every -interval it ingests the catalogue names whose
// last run is older than INGEST_REFRESH_AFTER, plus any new names listed in
// INGEST_NEW_SOFTWARE_FILE. -once runs a single round and exits. -name runs
// the pipeline for one software name immediately, ignoring the schedule.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-deals-backend/internal/config"
	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/ingest"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/repo"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/sysutil"
)

var version = "dev"

func main() {
	once := flag.Bool("once", false, "run one round and exit")
	name := flag.String("name", "", "ingest this software name now and exit")
	keyword := flag.Int("keyword", 1, "1-based keyword index used with -name")
	interval := flag.Duration("interval", time.Hour, "pause between rounds")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()
	sysutil.SetupLogger(nil, "ingest", cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Process{
		Role:    "ingest",
		Version: sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	extractor, err := ingest.NewGeminiExtractor(ctx, cfg.Ingest.GeminiAPIKey, cfg.Ingest.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini setup failed")
	}

	httpFetcher := ingest.NewHTTPFetcher(cfg.Ingest.FetchTimeout, cfg.Ingest.UserAgent)
	var fetcher ingest.Fetcher = httpFetcher
	if cfg.Ingest.Renderer == "chrome" {
		fetcher = &ingest.ChromeFetcher{UserAgent: cfg.Ingest.UserAgent, Timeout: cfg.Ingest.FetchTimeout}
	}

	deals := services.NewDealService(db)
	deals.MaxCategories = cfg.Paging.MaxCategories
	pipeline := &ingest.Pipeline{
		Search:   &ingest.HTMLSearcher{URL: cfg.Ingest.SearchURL, Fetcher: httpFetcher},
		Fetch:    fetcher,
		Extract:  extractor,
		Apply:    services.NewIngestService(db, deals, services.NewCategoryService(db)),
		MaxPages: cfg.Ingest.MaxPages,
	}

	if *name != "" {
		job := ingest.Job{Name: *name, Keyword: keywordAt(cfg.Ingest.Keywords, *keyword-1), New: true}
		res, err := pipeline.Run(ctx, job)
		if err != nil {
			log.Fatal().Err(err).Str("stage", ingest.StageOf(err)).Msg("ingest failed")
		}
		status := ingest.StatusUpdated
		if res.Created {
			status = ingest.StatusCreated
		}
		if err := repo.SaveIngestRun(ctx, db, &domain.IngestRun{SoftwareName: *name, Status: status, DealID: &res.Deal.ID}); err != nil {
			log.Error().Err(err).Msg("record run")
		}
		return
	}

	sched := &ingest.Scheduler{
		DB:              db,
		Runner:          pipeline,
		RefreshAfter:    cfg.Ingest.RefreshAfter,
		MinDelay:        cfg.Ingest.MinDelay,
		MaxDelay:        cfg.Ingest.MaxDelay,
		NewSoftwareFile: cfg.Ingest.NewSoftwareFile,
		Keywords:        cfg.Ingest.Keywords,
	}
	if *once {
		if _, err := sched.RunOnce(ctx); err != nil {
			log.Fatal().Err(err).Msg("ingest round failed")
		}
		return
	}
	if err := sched.Run(ctx, *interval); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("scheduler stopped")
	}
	log.Info().Msg("ingest worker stopped")
}

func keywordAt(keywords []string, i int) string {
	if i >= 0 && i < len(keywords) {
		return keywords[i]
	}
	if len(keywords) > 0 {
		return keywords[0]
	}
	return "coupon code"
}
