package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceManualCash marks payments entered by hand rather than imported from a
// bank statement. All other sources carry the bank channel name ("BOG", "TBC", …).
const SourceManualCash = "manual-cash"

// Payment is one bank-statement or manual-cash payment. The UniqueCode is the
// deterministic dedup identity (see service.PaymentIdentity) and the primary
// key, so re-importing an overlapping statement produces zero new rows.
// Payments are immutable — a changed payment is a new record with a new identity.
type Payment struct {
	UniqueCode       string          `gorm:"primaryKey;size:128" json:"unique_code"`
	CounterpartyID   string          `gorm:"size:32;index" json:"counterparty_id"`
	CounterpartyName string          `gorm:"size:255" json:"counterparty_name"`
	Date             time.Time       `gorm:"index" json:"date"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PostBalance      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"post_balance"`
	Source           string          `gorm:"size:50;not null" json:"source"`
	// AfterWindow is precomputed at ingestion: date >= cutoff + 1 day.
	AfterWindow bool      `gorm:"index" json:"after_window"`
	CreatedAt   time.Time `json:"created_at"`
}

// Cash reports whether this payment counts toward totalCashPayments rather
// than totalPayments.
func (p Payment) Cash() bool { return p.Source == SourceManualCash }
