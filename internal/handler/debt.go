package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/apierror"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/dto"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/service"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	summaryCacheKey = "cache:debt-summaries"
	summaryCacheTTL = 60 * time.Second
)

// DebtHandler exposes the trigger/poll surface of the job orchestrator plus
// the summary read API.
type DebtHandler struct {
	orchestrator *worker.Orchestrator
	debts        service.DebtService
	summaries    repository.SummaryRepository
	rdb          *redis.Client
}

func NewDebtHandler(orchestrator *worker.Orchestrator, debts service.DebtService, summaries repository.SummaryRepository, rdb *redis.Client) *DebtHandler {
	return &DebtHandler{orchestrator: orchestrator, debts: debts, summaries: summaries, rdb: rdb}
}

// Trigger starts an async reconciliation run. Downstream failures are never
// surfaced here — they are observable only by polling the job.
func (h *DebtHandler) Trigger(c *gin.Context) {
	var req dto.TriggerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	jobID, err := h.orchestrator.Trigger(req.Source)
	switch {
	case errors.As(err, &worker.ErrInvalidSource{}):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	case errors.Is(err, worker.ErrPoolBusy):
		c.Header("Retry-After", "30")
		c.JSON(http.StatusTooManyRequests, apierror.New("reconciliation queue is full, retry later"))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, apierror.New("failed to schedule reconciliation"))
		return
	}

	c.JSON(http.StatusAccepted, dto.TriggerResponse{JobID: jobID})
}

// Status polls one job.
func (h *DebtHandler) Status(c *gin.Context) {
	job, ok := h.orchestrator.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, apierror.New("job not found"))
		return
	}
	c.JSON(http.StatusOK, dto.JobStatusResponse{Job: job})
}

// List returns all stored summaries, served from a short-lived redis cache
// that the summary writer invalidates after every changed write.
func (h *DebtHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if cached, ok := h.cachedList(ctx); ok {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	summaries, err := h.debts.Summaries(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := dto.SummaryListResponse{Summaries: summaries, Count: len(summaries)}
	h.storeList(ctx, resp)
	c.JSON(http.StatusOK, resp)
}

// GetByCounterparty returns one stored summary.
func (h *DebtHandler) GetByCounterparty(c *gin.Context) {
	s, err := h.summaries.FindByCounterparty(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("counterparty not found"))
	case err != nil:
		_ = c.Error(err)
	default:
		c.JSON(http.StatusOK, s)
	}
}

func (h *DebtHandler) cachedList(ctx context.Context) ([]byte, bool) {
	if h.rdb == nil {
		return nil, false
	}
	data, err := h.rdb.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (h *DebtHandler) storeList(ctx context.Context, resp dto.SummaryListResponse) {
	if h.rdb == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := h.rdb.Set(ctx, summaryCacheKey, data, summaryCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to cache summary list")
	}
}
