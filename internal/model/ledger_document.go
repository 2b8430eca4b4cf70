package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction distinguishes sales documents (we are the seller) from purchase
// documents (we are the buyer) on the revenue-service side.
type Direction string

const (
	DirectionSale     Direction = "SALE"
	DirectionPurchase Direction = "PURCHASE"
)

// RS.ge marks cancelled and deleted invoices with negative status codes.
// Both must be excluded before any aggregation.
const (
	StatusCancelled = -1
	StatusDeleted   = -2
)

// LedgerDocument is one sales or purchase transaction fetched live from the
// revenue service. Documents are never persisted — every reconciliation run
// re-fetches them (storage quota policy, see DESIGN.md).
type LedgerDocument struct {
	ID               string
	Direction        Direction
	CounterpartyID   string
	CounterpartyName string
	Date             time.Time
	GrossAmount      decimal.Decimal
	StatusCode       int
	Items            []LedgerItem
}

// LedgerItem is an optional invoice line.
type LedgerItem struct {
	Name     string
	Quantity decimal.Decimal
	Unit     string
}

// Cancelled reports whether the document carries a cancelled/deleted status.
func (d LedgerDocument) Cancelled() bool {
	return d.StatusCode == StatusCancelled || d.StatusCode == StatusDeleted
}
