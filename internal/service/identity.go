package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIdentity computes the deterministic dedup key for a payment:
// date|cents(amount)|trim(counterpartyID)|cents(postBalance).
//
// The post-transaction balance is part of the identity on purpose: a customer
// can legitimately pay the same amount twice on the same day (two invoices),
// and only the resulting account balance distinguishes the two transfers.
// Conversely, two import batches that each carry a transaction with identical
// date, amount, counterparty and post-balance are by definition the same
// transaction. The key doubles as the storage primary key, which makes
// re-importing an overlapping bank statement a zero-write no-op.
func PaymentIdentity(date time.Time, amount decimal.Decimal, counterpartyID string, postBalance decimal.Decimal) string {
	return fmt.Sprintf("%s|%d|%s|%d",
		date.Format("2006-01-02"),
		cents(amount),
		strings.TrimSpace(counterpartyID),
		cents(postBalance),
	)
}

// cents rounds half-up to the nearest cent.
func cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
