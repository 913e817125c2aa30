package procurement

import "time"

// Purchase order lifecycle statuses. The lifecycle is strictly forward:
// draft -> approved -> received -> delivered.
type POStatus string

const (
	POStatusDraft     POStatus = "draft"
	POStatusApproved  POStatus = "approved"
	POStatusReceived  POStatus = "received"
	POStatusDelivered POStatus = "delivered"
)

// QC statuses for goods receipts.
type QCStatus string

const (
	QCStatusExcellent QCStatus = "excellent"
	QCStatusModerate  QCStatus = "moderate"
	QCStatusBad       QCStatus = "bad"
)

// IsValid reports whether the QC status is one of the known dispositions.
func (s QCStatus) IsValid() bool {
	switch s {
	case QCStatusExcellent, QCStatusModerate, QCStatusBad:
		return true
	default:
		return false
	}
}

// POOperation names the operations gated by the transition table.
type POOperation string

const (
	POOpApprove       POOperation = "approve"
	POOpUpdate        POOperation = "update"
	POOpDelete        POOperation = "delete"
	POOpCreateGRN     POOperation = "create_grn"
	POOpMarkReceived  POOperation = "mark_received"
	POOpMarkDelivered POOperation = "mark_delivered"
)

// poTransitions is the explicit (status, operation) table. Anything absent is
// forbidden; the check runs server-side regardless of what the caller's UI
// permits.
var poTransitions = map[POStatus]map[POOperation]bool{
	POStatusDraft: {
		POOpApprove: true,
		POOpUpdate:  true,
		POOpDelete:  true,
	},
	POStatusApproved: {
		POOpCreateGRN:     true,
		POOpMarkReceived:  true,
		POOpMarkDelivered: true,
	},
	POStatusReceived: {
		POOpCreateGRN:     true,
		POOpMarkReceived:  true, // idempotent re-entry
		POOpMarkDelivered: true,
	},
	POStatusDelivered: {
		POOpMarkDelivered: true, // idempotent re-entry
	},
}

// Allows reports whether the operation is permitted in this status.
func (s POStatus) Allows(op POOperation) bool {
	return poTransitions[s][op]
}

// VendorSnapshot is the vendor record denormalized into the PO at raise time.
// It is intentionally not a live reference: the PO reflects what was ordered
// even if the vendor record later changes.
type VendorSnapshot struct {
	VendorID      int64  `json:"vendor_id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
	GSTIN         string `json:"gstin,omitempty"`
}

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID         int64
	PONumber   string
	Status     POStatus
	RaisedAt   time.Time
	Vendor     VendorSnapshot
	Lines      []POLine
	CreatedBy  string
	ApprovedBy string
	ApprovedAt time.Time
}

// POLine is one ordered item. LineNo is stable and unique within the PO.
type POLine struct {
	LineNo      int
	SKU         string
	ProductName string
	Category    string
	Quantity    float64
	UOM         string
	UnitPrice   float64
}

// GoodsReceipt records physically received goods against a PO.
type GoodsReceipt struct {
	ID              int64
	GRNNumber       string
	POID            int64
	PONumber        string
	DeliveryChallan string
	TransporterName string
	VehicleNumber   string
	ReceivedAt      time.Time
	Remarks         string
	ScannedChallan  string
	QCStatus        QCStatus
	Lines           []GRNLine
	CreatedBy       string
}

// GRNLine mirrors a PO line with receipt quantities. Quantities are immutable
// once created; a correction requires a new GRN.
type GRNLine struct {
	LineNo      int
	SKU         string
	ProductName string
	Category    string
	OrderedQty  float64
	ReceivedQty float64
	AcceptedQty float64
	RejectedQty float64
	UnitPrice   float64
	Location    string
}

// LineReceipt aggregates receipt totals per PO line across all GRNs.
type LineReceipt struct {
	LineNo   int
	Received float64
	Accepted float64
}

// POFilter filters purchase order listings. Zero values mean "no filter".
type POFilter struct {
	Status    POStatus
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// GRNFilter filters goods receipt listings.
type GRNFilter struct {
	QCStatus  QCStatus
	PONumber  string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}
