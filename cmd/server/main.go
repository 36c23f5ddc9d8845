package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/scoring"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Proctor")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	examCache := repository.NewExamCache(rdb)
	sessionRepo := repository.NewExamSessionRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	submittedSet := repository.NewSubmissionSet(rdb)
	drafts := repository.NewDraftStore(rdb)
	producer := worker.NewProducer(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	examService := service.NewExamService(examRepo, examCache, log)
	submissions := service.NewSubmissionIndex(submittedSet, answerRepo, log)
	proctorService := service.NewProctorService(
		examService, submissions, sessionRepo, activityRepo, producer, authService, cfg.DedupWindow, log,
	)
	gradingService := service.NewGradingService(
		examService, submissions, answerRepo, resultRepo, drafts, producer,
		scoring.NewEngine(cfg.PointsPerQuestion, cfg.ScoreScaleMax), log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(examService, log),
		Session: handler.NewSessionHandler(proctorService, log),
		Grading: handler.NewGradingHandler(gradingService, log),
		WS:      handler.NewWSHandler(proctorService, gradingService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(rdb, proctorService, log),
		System: handler.NewSystemHandler(
			handler.PingFunc(pool.Ping),
			handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			producer,
			log,
		),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	for _, w := range []interface{ Start(context.Context) }{
		worker.NewAnswerWorker(pool, rdb, log),
		worker.NewResultWorker(pool, rdb, log),
		worker.NewActivityWorker(pool, rdb, log),
	} {
		workers.Add(1)
		go func(w interface{ Start(context.Context) }) {
			defer workers.Done()
			w.Start(workerCtx)
		}(w)
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams and their submitters into Redis BEFORE
	// accepting traffic.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}
	warmSubmissions(ctx, examService, submissions, log)

	// ─── Restore Open Sessions ────────────────────────────────────────
	if n, err := proctorService.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Session restore failed")
	} else {
		log.Info().Int("sessions", n).Msg("Open sessions restored")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the in-flight batch.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// warmSubmissions seeds the submitted-student sets of every published exam.
func warmSubmissions(ctx context.Context, exams *service.ExamService, idx *service.SubmissionIndex, log zerolog.Logger) {
	published, err := exams.List(ctx, model.ExamStatusPublished)
	if err != nil {
		log.Warn().Err(err).Msg("Submission warm skipped")
		return
	}
	total := 0
	for _, e := range published {
		n, err := idx.Warm(ctx, e.ID)
		if err != nil {
			log.Warn().Err(err).Str("exam_id", e.ID).Msg("Submission warm failed")
			continue
		}
		total += n
	}
	log.Info().Int("exams", len(published)).Int("students", total).Msg("Submission sets warmed")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
