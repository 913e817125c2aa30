package vendors

import "time"

// Vendor is a supplier record. Purchase orders copy a snapshot of these
// fields at raise time rather than referencing the row.
type Vendor struct {
	ID            int64
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
	GSTIN         string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter narrows vendor listings.
type Filter struct {
	Active *bool
	Search string
	Limit  int
	Offset int
}
