package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian-wms/internal/shared"
	"github.com/meridian-wms/meridian-wms/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, dispatchID string) (Order, error)
	List(ctx context.Context, filter Filter) ([]Order, int, error)
}

// StockPort reserves and releases ledger quantities.
type StockPort interface {
	Consume(ctx context.Context, input stock.PostingInput) error
	Release(ctx context.Context, input stock.PostingInput) error
}

// AgentInfo is the slice of the field agent record the dispatcher needs.
type AgentInfo struct {
	ID     int64
	Name   string
	Active bool
}

// AgentPort resolves delivery agents.
type AgentPort interface {
	Info(ctx context.Context, agentID int64) (AgentInfo, error)
}

// ProductInfo carries catalogue attributes copied onto dispatch lines.
type ProductInfo struct {
	Name string
}

// CatalogPort resolves SKUs against the product catalogue.
type CatalogPort interface {
	Lookup(ctx context.Context, sku string) (ProductInfo, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns outbound dispatches. Creation consumes stock through the
// ledger's locked check-and-commit, so two dispatches racing for the same SKU
// can never both succeed past the available quantity.
type Service struct {
	repo    RepositoryPort
	stock   StockPort
	agents  AgentPort
	catalog CatalogPort
	audit   AuditPort
}

// NewService builds the dispatch service.
func NewService(repo RepositoryPort, stockPort StockPort, agents AgentPort, catalog CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, stock: stockPort, agents: agents, catalog: catalog, audit: audit}
}

// ItemInput is one requested dispatch line.
type ItemInput struct {
	SKU      string
	Quantity float64
}

// CreateInput carries a dispatch creation request.
type CreateInput struct {
	DispatchID  string
	Destination string
	AgentID     int64
	Notes       string
	Items       []ItemInput
}

// Create validates the request, then persists the pending order and consumes
// stock inside one transaction. A failure on either side leaves neither the
// order row nor the ledger entries behind.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.Destination == "" {
		return Order{}, shared.NewValidationError("destination", "required")
	}
	if len(input.Items) == 0 {
		return Order{}, shared.NewValidationError("products", "at least one product required")
	}
	lines := make([]Line, 0, len(input.Items))
	for i, item := range input.Items {
		field := fmt.Sprintf("products[%d]", i)
		if item.SKU == "" {
			return Order{}, shared.NewValidationError(field+".sku", "required")
		}
		if item.Quantity <= 0 {
			return Order{}, shared.NewValidationError(field+".quantity", "must be positive")
		}
		line := Line{SKU: item.SKU, Quantity: item.Quantity}
		if s.catalog != nil {
			product, err := s.catalog.Lookup(ctx, item.SKU)
			if err != nil {
				if shared.IsNotFound(err) {
					return Order{}, shared.NewValidationError(field+".sku", "unknown sku")
				}
				return Order{}, err
			}
			line.ProductName = product.Name
		}
		lines = append(lines, line)
	}

	agent, err := s.agents.Info(ctx, input.AgentID)
	if err != nil {
		if shared.IsNotFound(err) {
			return Order{}, shared.NewValidationError("agent_id", "unknown agent")
		}
		return Order{}, err
	}
	if !agent.Active {
		return Order{}, shared.NewValidationError("agent_id", "agent is inactive")
	}

	actor := shared.ActorFromContext(ctx)
	order := Order{
		DispatchID:  input.DispatchID,
		Destination: input.Destination,
		AgentID:     agent.ID,
		AgentName:   agent.Name,
		Notes:       input.Notes,
		Status:      StatusPending,
		Lines:       lines,
		CreatedBy:   actor.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if order.DispatchID == "" {
		order.DispatchID = fmt.Sprintf("DSP-%s", strings.ToUpper(uuid.NewString()[:8]))
	} else if _, err := s.repo.Get(ctx, order.DispatchID); err == nil {
		return Order{}, &shared.ConflictError{Entity: "dispatch", Ref: order.DispatchID}
	} else if !shared.IsNotFound(err) {
		return Order{}, err
	}

	items := make([]stock.MovementItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, stock.MovementItem{SKU: line.SKU, Qty: line.Quantity})
	}
	posting := stock.PostingInput{
		RefModule: "dispatch",
		RefID:     order.DispatchID,
		Note:      fmt.Sprintf("dispatch to %s", order.Destination),
		ActorID:   actor.ID,
		Items:     items,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Create(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return s.stock.Consume(ctx, posting)
	})
	if err != nil {
		return Order{}, err
	}

	s.record(ctx, "dispatch:create", order.DispatchID, map[string]any{"destination": order.Destination, "lines": len(lines)})
	return order, nil
}

// UpdateStatus advances a dispatch along its lifecycle. Cancellation releases
// the consumed stock in the same call.
func (s *Service) UpdateStatus(ctx context.Context, dispatchID string, next Status) (Order, error) {
	if !next.IsValid() || next == StatusPending {
		return Order{}, shared.NewValidationError("status", "unknown status")
	}
	actor := shared.ActorFromContext(ctx)
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, dispatchID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return &shared.InvalidStateTransitionError{Entity: "dispatch", From: string(order.Status), Op: string(next)}
		}
		if err := tx.UpdateStatus(ctx, order.ID, next); err != nil {
			return err
		}
		if next == StatusCancelled {
			items := make([]stock.MovementItem, 0, len(order.Lines))
			for _, line := range order.Lines {
				items = append(items, stock.MovementItem{SKU: line.SKU, Qty: line.Quantity})
			}
			if err := s.stock.Release(ctx, stock.PostingInput{
				RefModule: "dispatch",
				RefID:     order.DispatchID,
				Note:      "dispatch cancelled",
				ActorID:   actor.ID,
				Items:     items,
			}); err != nil {
				return err
			}
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, fmt.Sprintf("dispatch:%s", next), dispatchID, nil)
	return order, nil
}

// Get returns one dispatch by its public ID.
func (s *Service) Get(ctx context.Context, dispatchID string) (Order, error) {
	return s.repo.Get(ctx, dispatchID)
}

// List returns dispatches matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter Filter) ([]Order, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, shared.NewValidationError("status", "unknown status")
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) record(ctx context.Context, action, ref string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "dispatch",
		EntityID: ref,
		Meta:     meta,
	})
}
