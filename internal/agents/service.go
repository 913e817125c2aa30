package agents

import (
	"context"
	"slices"
	"strconv"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, agent FieldAgent) (FieldAgent, error)
	Update(ctx context.Context, agent FieldAgent) error
	Get(ctx context.Context, id int64) (FieldAgent, error)
	List(ctx context.Context, filter Filter) ([]FieldAgent, int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the field agent registry. Deactivated agents keep their
// history but stop being assignable to new dispatches.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the agent service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries a new agent registration.
type CreateInput struct {
	Name   string
	Phone  string
	Email  string
	Routes []string
}

// Create registers an agent, active by default.
func (s *Service) Create(ctx context.Context, input CreateInput) (FieldAgent, error) {
	if input.Name == "" {
		return FieldAgent{}, shared.NewValidationError("name", "required")
	}
	agent, err := s.repo.Create(ctx, FieldAgent{
		Name:           input.Name,
		Phone:          input.Phone,
		Email:          input.Email,
		AssignedRoutes: dedupeRoutes(input.Routes),
		Active:         true,
	})
	if err != nil {
		return FieldAgent{}, err
	}
	s.record(ctx, "agent:create", agent.ID)
	return agent, nil
}

// UpdateInput carries agent profile edits. Routes replace the existing set.
type UpdateInput struct {
	Name   string
	Phone  string
	Email  string
	Routes []string
}

// Update edits an agent's profile and route assignments.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (FieldAgent, error) {
	if input.Name == "" {
		return FieldAgent{}, shared.NewValidationError("name", "required")
	}
	agent, err := s.repo.Get(ctx, id)
	if err != nil {
		return FieldAgent{}, err
	}
	agent.Name = input.Name
	agent.Phone = input.Phone
	agent.Email = input.Email
	agent.AssignedRoutes = dedupeRoutes(input.Routes)
	if err := s.repo.Update(ctx, agent); err != nil {
		return FieldAgent{}, err
	}
	s.record(ctx, "agent:update", id)
	return agent, nil
}

// AssignRoute adds one route to an agent. Adding an already assigned route is
// a no-op.
func (s *Service) AssignRoute(ctx context.Context, id int64, route string) (FieldAgent, error) {
	if route == "" {
		return FieldAgent{}, shared.NewValidationError("route", "required")
	}
	agent, err := s.repo.Get(ctx, id)
	if err != nil {
		return FieldAgent{}, err
	}
	if !slices.Contains(agent.AssignedRoutes, route) {
		agent.AssignedRoutes = append(agent.AssignedRoutes, route)
		if err := s.repo.Update(ctx, agent); err != nil {
			return FieldAgent{}, err
		}
		s.record(ctx, "agent:assign_route", id)
	}
	return agent, nil
}

// UnassignRoute removes one route from an agent.
func (s *Service) UnassignRoute(ctx context.Context, id int64, route string) (FieldAgent, error) {
	agent, err := s.repo.Get(ctx, id)
	if err != nil {
		return FieldAgent{}, err
	}
	before := len(agent.AssignedRoutes)
	agent.AssignedRoutes = slices.DeleteFunc(agent.AssignedRoutes, func(r string) bool { return r == route })
	if len(agent.AssignedRoutes) != before {
		if err := s.repo.Update(ctx, agent); err != nil {
			return FieldAgent{}, err
		}
		s.record(ctx, "agent:unassign_route", id)
	}
	return agent, nil
}

// SetActive toggles whether the agent can take new dispatches.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (FieldAgent, error) {
	agent, err := s.repo.Get(ctx, id)
	if err != nil {
		return FieldAgent{}, err
	}
	if agent.Active != active {
		agent.Active = active
		if err := s.repo.Update(ctx, agent); err != nil {
			return FieldAgent{}, err
		}
		s.record(ctx, "agent:set_active", id)
	}
	return agent, nil
}

// Get returns one agent.
func (s *Service) Get(ctx context.Context, id int64) (FieldAgent, error) {
	return s.repo.Get(ctx, id)
}

// List returns agents matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter Filter) ([]FieldAgent, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "field_agent",
		EntityID: strconv.FormatInt(id, 10),
	})
}

func dedupeRoutes(routes []string) []string {
	out := make([]string, 0, len(routes))
	for _, route := range routes {
		if route == "" || slices.Contains(out, route) {
			continue
		}
		out = append(out, route)
	}
	return out
}
