package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	GetBySKU(ctx context.Context, sku string) (Product, error)
	List(ctx context.Context, filter Filter) ([]Product, int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the product catalogue. SKUs and categories are normalized
// on the way in so lookups from the other modules are case-insensitive.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	title cases.Caser
}

// NewService builds the catalogue service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, title: cases.Title(language.English)}
}

// Input carries product creation and edit fields.
type Input struct {
	SKU      string
	Name     string
	Category string
	UOM      string
}

// Create registers a product.
func (s *Service) Create(ctx context.Context, input Input) (Product, error) {
	product, err := s.normalize(input)
	if err != nil {
		return Product{}, err
	}
	product.Active = true
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "product:create", created.SKU)
	return created, nil
}

// Update edits a product. The SKU itself is immutable; ledger history and PO
// lines reference it.
func (s *Service) Update(ctx context.Context, sku string, input Input) (Product, error) {
	existing, err := s.repo.GetBySKU(ctx, NormalizeSKU(sku))
	if err != nil {
		return Product{}, err
	}
	input.SKU = existing.SKU
	normalized, err := s.normalize(input)
	if err != nil {
		return Product{}, err
	}
	existing.Name = normalized.Name
	existing.Category = normalized.Category
	existing.UOM = normalized.UOM
	if err := s.repo.Update(ctx, existing); err != nil {
		return Product{}, err
	}
	s.record(ctx, "product:update", existing.SKU)
	return existing, nil
}

// SetActive toggles whether the product can appear on new documents.
func (s *Service) SetActive(ctx context.Context, sku string, active bool) (Product, error) {
	product, err := s.repo.GetBySKU(ctx, NormalizeSKU(sku))
	if err != nil {
		return Product{}, err
	}
	if product.Active != active {
		product.Active = active
		if err := s.repo.Update(ctx, product); err != nil {
			return Product{}, err
		}
		s.record(ctx, "product:set_active", product.SKU)
	}
	return product, nil
}

// Get returns one product by SKU.
func (s *Service) Get(ctx context.Context, sku string) (Product, error) {
	return s.repo.GetBySKU(ctx, NormalizeSKU(sku))
}

// List returns products matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter Filter) ([]Product, int, error) {
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	return s.repo.List(ctx, filter)
}

func (s *Service) normalize(input Input) (Product, error) {
	sku := NormalizeSKU(input.SKU)
	if sku == "" {
		return Product{}, shared.NewValidationError("sku", "required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Product{}, shared.NewValidationError("name", "required")
	}
	uom := strings.ToLower(strings.TrimSpace(input.UOM))
	if uom == "" {
		return Product{}, shared.NewValidationError("uom", "required")
	}
	return Product{
		SKU:      sku,
		Name:     s.title.String(name),
		Category: strings.ToLower(strings.TrimSpace(input.Category)),
		UOM:      uom,
	}, nil
}

func (s *Service) record(ctx context.Context, action, sku string) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "product",
		EntityID: sku,
	})
}

// NormalizeSKU canonicalizes a SKU for storage and lookup.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
