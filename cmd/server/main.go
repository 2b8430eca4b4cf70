package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/config"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/infra"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/router"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/service"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	cutoff, err := cfg.Cutoff()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid cutoff date")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Composition root: the worker pool and services are wired here so the
	// orchestrator has full access to all infrastructure dependencies.
	rsClient := infra.NewRSClient(cfg.RSServiceURL, cfg.RSServiceUser, cfg.RSServicePassword, cfg.RSTimeout())
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	mailer := infra.NewMailer(cfg)

	paymentRepo := repository.NewPaymentRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	startingDebtRepo := repository.NewStartingDebtRepository(db)

	writer := service.NewSummaryWriter(summaryRepo, rdb)
	debts := service.NewDebtService(rsClient, cb, paymentRepo, startingDebtRepo, writer, cutoff)
	statements := service.NewStatementService(paymentRepo, cutoff)

	pool := worker.NewPool(cfg.WorkerPoolSize, cfg.JobQueueSize)
	registry := worker.NewJobRegistry()
	orchestrator := worker.NewOrchestrator(pool, registry, debts, mailer)
	orchestrator.StartCleanupCron(ctx, time.Hour, time.Duration(cfg.JobRetentionHours)*time.Hour)

	r := router.New(cfg, router.Deps{
		DB:           db,
		RDB:          rdb,
		CB:           cb,
		Debts:        debts,
		Statements:   statements,
		Orchestrator: orchestrator,
		Registry:     registry,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("debt tracker backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	// Let queued reconciliation runs finish; they mutate only the job registry
	// and the summary table.
	pool.Shutdown(shutdownCtx)
	log.Info().Msg("server exited")
}
