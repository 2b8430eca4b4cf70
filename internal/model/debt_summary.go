package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtSummary is the per-counterparty aggregated debt record. It is always
// recomputed from scratch on every reconciliation run; the writer persists it
// only when a compared field differs from the stored row (the store bills per
// write). Rows are never deleted.
//
// Invariant: CurrentDebt = StartingDebt + TotalSales − TotalPayments − TotalCashPayments.
type DebtSummary struct {
	CounterpartyID    string          `gorm:"primaryKey;size:32" json:"counterparty_id"`
	CounterpartyName  string          `gorm:"size:255" json:"counterparty_name"`
	TotalSales        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_sales"`
	SaleCount         int             `gorm:"not null" json:"sale_count"`
	LastSaleDate      *time.Time      `json:"last_sale_date,omitempty"`
	TotalPayments     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_payments"`
	PaymentCount      int             `gorm:"not null" json:"payment_count"`
	LastPaymentDate   *time.Time      `json:"last_payment_date,omitempty"`
	TotalCashPayments decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_cash_payments"`
	CashPaymentCount  int             `gorm:"not null" json:"cash_payment_count"`
	StartingDebt      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"starting_debt"`
	StartingDebtDate  *time.Time      `json:"starting_debt_date,omitempty"`
	CurrentDebt       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"current_debt"`
	LastUpdated       time.Time       `json:"last_updated"`
	UpdateSource      string          `gorm:"size:50" json:"update_source"`
}

func (DebtSummary) TableName() string { return "debt_summaries" }

// Equal compares every financial/count/date field. LastUpdated, UpdateSource
// and the display name are metadata: they must not force a write on their own,
// otherwise a re-run with unchanged data would re-write every row.
func (s DebtSummary) Equal(o DebtSummary) bool {
	return s.TotalSales.Equal(o.TotalSales) &&
		s.SaleCount == o.SaleCount &&
		equalDate(s.LastSaleDate, o.LastSaleDate) &&
		s.TotalPayments.Equal(o.TotalPayments) &&
		s.PaymentCount == o.PaymentCount &&
		equalDate(s.LastPaymentDate, o.LastPaymentDate) &&
		s.TotalCashPayments.Equal(o.TotalCashPayments) &&
		s.CashPaymentCount == o.CashPaymentCount &&
		s.StartingDebt.Equal(o.StartingDebt) &&
		equalDate(s.StartingDebtDate, o.StartingDebtDate) &&
		s.CurrentDebt.Equal(o.CurrentDebt)
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
