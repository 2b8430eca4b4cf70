package handler

import (
	"net/http"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/apierror"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/dto"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/service"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxStatementSize caps uploaded workbooks at 10 MiB.
const maxStatementSize = 10 << 20

// PaymentsHandler covers statement ingestion, manual cash entry, and the
// payment read API. A successful import auto-triggers a reconciliation run.
type PaymentsHandler struct {
	statements   service.StatementService
	payments     repository.PaymentRepository
	orchestrator *worker.Orchestrator
}

func NewPaymentsHandler(statements service.StatementService, payments repository.PaymentRepository, orchestrator *worker.Orchestrator) *PaymentsHandler {
	return &PaymentsHandler{statements: statements, payments: payments, orchestrator: orchestrator}
}

// ImportStatement accepts a multipart XLSX bank statement. The "source" form
// field names the bank channel.
func (h *PaymentsHandler) ImportStatement(c *gin.Context) {
	source := c.PostForm("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, apierror.New("source form field is required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("file form field is required"))
		return
	}
	if fileHeader.Size > maxStatementSize {
		c.JSON(http.StatusRequestEntityTooLarge, apierror.New("statement file too large"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer f.Close()

	result, err := h.statements.ImportXLSX(c.Request.Context(), f, source)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
		return
	}

	// New payments change debts, so kick off a run. A saturated pool is not an
	// import failure — the next manual trigger will pick the payments up.
	jobID := ""
	if result.Imported > 0 {
		jobID, err = h.orchestrator.Trigger("import:" + source)
		if err != nil {
			log.Warn().Err(err).Str("source", source).Msg("import succeeded but reconciliation not scheduled")
		}
	}

	c.JSON(http.StatusOK, gin.H{"import": result, "job_id": jobID})
}

// AddManualCash records a cash payment.
func (h *PaymentsHandler) AddManualCash(c *gin.Context) {
	var req dto.ManualCashRequest
	if !bindAndValidate(c, &req) {
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid date"))
		return
	}

	payment, err := h.statements.AddManualCash(c.Request.Context(), req.CounterpartyID, req.Name, date, req.Amount, req.PostBalance)
	if err != nil {
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ListByCounterparty returns the stored payments of one counterparty.
func (h *PaymentsHandler) ListByCounterparty(c *gin.Context) {
	counterpartyID := c.Query("counterparty_id")
	if counterpartyID == "" {
		c.JSON(http.StatusBadRequest, apierror.New("counterparty_id query parameter is required"))
		return
	}
	payments, err := h.payments.ListByCounterparty(c.Request.Context(), counterpartyID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if payments == nil {
		payments = []model.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}
