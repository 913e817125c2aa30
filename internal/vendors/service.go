package vendors

import (
	"context"
	"strconv"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, vendor Vendor) error
	Get(ctx context.Context, id int64) (Vendor, error)
	List(ctx context.Context, filter Filter) ([]Vendor, int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the vendor registry.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the vendor service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Input carries vendor creation and edit fields.
type Input struct {
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
	GSTIN         string
}

// Create registers a vendor, active by default.
func (s *Service) Create(ctx context.Context, input Input) (Vendor, error) {
	if input.Name == "" {
		return Vendor{}, shared.NewValidationError("name", "required")
	}
	vendor, err := s.repo.Create(ctx, Vendor{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Phone:         input.Phone,
		Email:         input.Email,
		Address:       input.Address,
		GSTIN:         input.GSTIN,
		Active:        true,
	})
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, "vendor:create", vendor.ID)
	return vendor, nil
}

// Update edits a vendor record. Existing purchase orders keep the snapshot
// taken when they were raised.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Vendor, error) {
	if input.Name == "" {
		return Vendor{}, shared.NewValidationError("name", "required")
	}
	vendor, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	vendor.Name = input.Name
	vendor.ContactPerson = input.ContactPerson
	vendor.Phone = input.Phone
	vendor.Email = input.Email
	vendor.Address = input.Address
	vendor.GSTIN = input.GSTIN
	if err := s.repo.Update(ctx, vendor); err != nil {
		return Vendor{}, err
	}
	s.record(ctx, "vendor:update", id)
	return vendor, nil
}

// SetActive toggles whether new purchase orders may reference the vendor.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (Vendor, error) {
	vendor, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	if vendor.Active != active {
		vendor.Active = active
		if err := s.repo.Update(ctx, vendor); err != nil {
			return Vendor{}, err
		}
		s.record(ctx, "vendor:set_active", id)
	}
	return vendor, nil
}

// Get returns one vendor.
func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.Get(ctx, id)
}

// List returns vendors matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter Filter) ([]Vendor, int, error) {
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
		Entity:   "vendor",
		EntityID: strconv.FormatInt(id, 10),
	})
}
