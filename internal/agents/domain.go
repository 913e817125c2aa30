package agents

import "time"

// FieldAgent is a delivery agent who can be assigned dispatches.
type FieldAgent struct {
	ID             int64
	Name           string
	Phone          string
	Email          string
	AssignedRoutes []string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter narrows agent listings.
type Filter struct {
	Active *bool
	Route  string
	Limit  int
	Offset int
}
