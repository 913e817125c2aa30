package catalog

import "time"

// Product is a catalogue entry. SKUs are stored upper-cased and act as the
// join key for purchase orders, goods receipts and the stock ledger.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Category  string
	UOM       string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows product listings.
type Filter struct {
	Category string
	Search   string
	Active   *bool
	Limit    int
	Offset   int
}
