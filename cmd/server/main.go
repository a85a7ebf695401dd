package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearcite/integrity-engine/internal/analysis"
	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/analysis/recommend"
	"github.com/clearcite/integrity-engine/internal/analysis/score"
	"github.com/clearcite/integrity-engine/internal/analysis/similarity"
	"github.com/clearcite/integrity-engine/internal/config"
	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/data/db"
	"github.com/clearcite/integrity-engine/internal/data/repos"
	httpH "github.com/clearcite/integrity-engine/internal/http/handlers"
	httpMW "github.com/clearcite/integrity-engine/internal/http/middleware"
	"github.com/clearcite/integrity-engine/internal/jobs"
	"github.com/clearcite/integrity-engine/internal/jobs/runtime"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
	"github.com/clearcite/integrity-engine/internal/realtime"
	"github.com/clearcite/integrity-engine/internal/server"
	"github.com/clearcite/integrity-engine/internal/submission"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}

	// Database
	gdb, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}

	// Repos
	log.Info("Setting up repos...")
	submissionRepo := repos.NewSubmissionRepo(gdb, log)
	documentRepo := repos.NewDocumentRepo(gdb, log)
	resultRepo := repos.NewAnalysisResultRepo(gdb, log)
	jobRepo := repos.NewAnalysisJobRepo(gdb, log)
	corpusRepo := repos.NewCorpusRepo(gdb, log)
	libraryRepo := repos.NewLibraryRepo(gdb, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Corpus snapshot
	index := corpus.NewIndex(corpusRepo, log)
	if err := index.Reload(ctx); err != nil {
		// Jobs fail with index_unavailable until a reload succeeds; the
		// server still comes up so uploads and reads keep working.
		log.Warn("Initial corpus load failed", "error", err)
	}

	// Event bus
	var bus realtime.Bus = realtime.NopBus{}
	if cfg.Redis.Addr != "" {
		rb, err := realtime.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			log.Warn("Redis bus init failed, job events disabled", "error", err)
		} else {
			bus = rb
			defer bus.Close()
		}
	}

	// Analysis pipeline
	log.Info("Setting up analysis pipeline...")
	ingestor := ingest.New(log)
	engine := similarity.NewEngine(cfg.Analysis.ShingleSize, cfg.Analysis.MinSpanShingles, cfg.Analysis.GapTolerance, log)
	scorer := score.New(cfg.Analysis.FlagThreshold, cfg.Analysis.HighSeverity, cfg.Analysis.ModerateSeverity)
	recommender := recommend.New(recommend.NewGormStore(libraryRepo), cfg.Analysis.TopK, log)

	// Jobs + lifecycle
	enqueuer := jobs.NewEnqueuer(jobRepo, log)
	subService := submission.NewService(log, submissionRepo, documentRepo, resultRepo, ingestor, enqueuer)

	pipeline := analysis.NewPipeline(documentRepo, resultRepo, index, ingestor, engine, scorer, recommender, subService, log)
	registry := runtime.NewRegistry()
	registry.Register(pipeline)

	worker := jobs.NewWorker(jobRepo, registry, bus, log, cfg.Worker.Concurrency, cfg.Worker.PollInterval, cfg.Analysis.JobTimeout)
	worker.Start(ctx)

	// Handlers
	log.Info("Setting up handlers...")
	documentHandler := httpH.NewDocumentHandler(subService)
	jobHandler := httpH.NewJobHandler(jobRepo, resultRepo, enqueuer)
	submissionHandler := httpH.NewSubmissionHandler(subService)
	healthHandler := httpH.NewHealthHandler()

	// Middleware
	authMiddleware := httpMW.NewAuthMiddleware(log, cfg.Auth.JWTSecret)

	// Router
	srv := server.NewServer(server.RouterConfig{
		AllowOrigins:      cfg.HTTP.AllowOrigins,
		AuthMiddleware:    authMiddleware,
		DocumentHandler:   documentHandler,
		JobHandler:        jobHandler,
		SubmissionHandler: submissionHandler,
		HealthHandler:     healthHandler,
	})

	log.Info("Server listening", "addr", cfg.HTTP.Addr)
	if err := srv.Run(cfg.HTTP.Addr); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
