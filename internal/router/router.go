package router

import (
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/config"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/handler"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/infra"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/middleware"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/service"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps carries the shared infrastructure wired in main.
type Deps struct {
	DB           *gorm.DB
	RDB          *redis.Client
	CB           *infra.CircuitBreaker
	Debts        service.DebtService
	Statements   service.StatementService
	Orchestrator *worker.Orchestrator
	Registry     *worker.JobRegistry
}

// New wires all handlers and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis.
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(600, time.Minute))

	paymentRepo := repository.NewPaymentRepository(d.DB)
	summaryRepo := repository.NewSummaryRepository(d.DB)
	startingDebtRepo := repository.NewStartingDebtRepository(d.DB)

	debtH := handler.NewDebtHandler(d.Orchestrator, d.Debts, summaryRepo, d.RDB)
	paymentsH := handler.NewPaymentsHandler(d.Statements, paymentRepo, d.Orchestrator)
	startingH := handler.NewStartingDebtsHandler(startingDebtRepo)

	r.GET("/health", handler.Health(d.DB, d.RDB, d.CB, d.Registry))

	v1 := r.Group("/v1")
	{
		v1.POST("/debts/reconcile", debtH.Trigger)
		v1.GET("/debts/jobs/:id", debtH.Status)
		v1.GET("/debts", debtH.List)
		v1.GET("/debts/counterparty/:id", debtH.GetByCounterparty)

		v1.POST("/payments/import", paymentsH.ImportStatement)
		v1.POST("/payments/cash", paymentsH.AddManualCash)
		v1.GET("/payments", paymentsH.ListByCounterparty)

		v1.GET("/starting-debts", startingH.List)
		v1.PUT("/starting-debts", startingH.UpsertBatch)
	}

	return r
}
