package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StartingDebt is a manually configured opening balance: the debt a
// counterparty carried at the cutoff date, before live aggregation starts.
// A counterparty with only a starting debt and no activity still gets a summary.
type StartingDebt struct {
	CounterpartyID string          `gorm:"primaryKey;size:32" json:"counterparty_id"`
	Name           string          `gorm:"size:255" json:"name"`
	Debt           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"debt"`
	Date           *time.Time      `json:"date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
