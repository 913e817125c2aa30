package stock

import (
	"errors"
	"time"
)

// EntryType enumerates supported stock movements.
type EntryType string

const (
	// EntryTypeReceipt records accepted quantity from a goods receipt.
	EntryTypeReceipt EntryType = "RECEIPT"
	// EntryTypeDispatch records quantity consumed by a committed dispatch.
	EntryTypeDispatch EntryType = "DISPATCH"
	// EntryTypeRelease returns quantity from a cancelled dispatch.
	EntryTypeRelease EntryType = "RELEASE"
)

// LedgerEntry is an immutable movement record. Qty is signed: positive for
// receipts and releases, negative for dispatch consumption.
type LedgerEntry struct {
	ID        int64
	SKU       string
	Type      EntryType
	Qty       float64
	Balance   float64
	RefModule string
	RefID     string
	Note      string
	ActorID   string
	PostedAt  time.Time
}

// Balance summarises available stock per SKU: accepted receipts minus
// committed dispatches.
type Balance struct {
	SKU       string
	Available float64
	UpdatedAt time.Time
}

// MovementItem is one SKU/quantity pair inside a posting.
type MovementItem struct {
	SKU string
	Qty float64
}

// PostingInput groups movement items sharing one reference.
type PostingInput struct {
	RefModule string
	RefID     string
	Note      string
	ActorID   string
	Items     []MovementItem
}

// LedgerFilter filters ledger entries for the stock card.
type LedgerFilter struct {
	SKU   string
	From  time.Time
	To    time.Time
	Limit int
}

// ErrBalanceNotFound indicates a missing balance row; callers treat it as zero
// stock, never as an error surfaced to the API.
var ErrBalanceNotFound = errors.New("stock: balance not found")

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")
