package dispatch

import "time"

// Dispatch order statuses. Forward path is pending -> in-transit -> delivered;
// cancellation is allowed until delivery and returns the reserved stock.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in-transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
}

// CanTransitionTo reports whether the move from s to next is permitted.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is an outbound dispatch. Stock is consumed at creation time, so a
// pending order already holds its quantities.
type Order struct {
	ID          int64
	DispatchID  string
	Destination string
	AgentID     int64
	AgentName   string
	Notes       string
	Status      Status
	Lines       []Line
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line is one dispatched product.
type Line struct {
	SKU         string
	ProductName string
	Quantity    float64
}

// Filter narrows dispatch listings. Zero values mean "no filter".
type Filter struct {
	Status    Status
	AgentID   int64
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}
