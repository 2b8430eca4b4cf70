package dto

import (
	"github.com/shopspring/decimal"
)

// ManualCashRequest records a cash payment taken outside any bank channel.
type ManualCashRequest struct {
	CounterpartyID string          `json:"counterparty_id" validate:"required,max=32"`
	Name           string          `json:"name" validate:"max=255"`
	Date           string          `json:"date" validate:"required,datetime=2006-01-02"`
	Amount         decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PostBalance    decimal.Decimal `json:"post_balance"`
}

// StartingDebtItem is one configured opening balance.
type StartingDebtItem struct {
	CounterpartyID string          `json:"counterparty_id" validate:"required,max=32"`
	Name           string          `json:"name" validate:"max=255"`
	Debt           decimal.Decimal `json:"debt"`
	Date           string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// StartingDebtBatchRequest upserts opening balances in bulk.
type StartingDebtBatchRequest struct {
	Items []StartingDebtItem `json:"items" validate:"required,min=1,dive"`
}
