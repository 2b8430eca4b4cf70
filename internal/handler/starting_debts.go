package handler

import (
	"net/http"
	"time"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/apierror"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/dto"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"
	"github.com/BorisSolomonia/Tasty-new-sub000/internal/repository"

	"github.com/gin-gonic/gin"
)

// StartingDebtsHandler manages the manually configured opening balances.
type StartingDebtsHandler struct {
	repo repository.StartingDebtRepository
}

func NewStartingDebtsHandler(repo repository.StartingDebtRepository) *StartingDebtsHandler {
	return &StartingDebtsHandler{repo: repo}
}

func (h *StartingDebtsHandler) List(c *gin.Context) {
	debts, err := h.repo.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if debts == nil {
		debts = []model.StartingDebt{}
	}
	c.JSON(http.StatusOK, gin.H{"starting_debts": debts, "count": len(debts)})
}

func (h *StartingDebtsHandler) UpsertBatch(c *gin.Context) {
	var req dto.StartingDebtBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}

	debts := make([]model.StartingDebt, 0, len(req.Items))
	for _, item := range req.Items {
		sd := model.StartingDebt{
			CounterpartyID: item.CounterpartyID,
			Name:           item.Name,
			Debt:           item.Debt,
		}
		if item.Date != "" {
			t, err := time.Parse("2006-01-02", item.Date)
			if err != nil {
				c.JSON(http.StatusBadRequest, apierror.New("invalid date for "+item.CounterpartyID))
				return
			}
			sd.Date = &t
		}
		debts = append(debts, sd)
	}

	if err := h.repo.UpsertBatch(c.Request.Context(), debts); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upserted": len(debts)})
}
