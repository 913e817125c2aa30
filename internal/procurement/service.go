package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the services.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, poNumber string) (PurchaseOrder, error)
	ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, int, error)
	GetGRN(ctx context.Context, grnNumber string) (GoodsReceipt, error)
	ListGRNs(ctx context.Context, filter GRNFilter) ([]GoodsReceipt, int, error)
}

// VendorPort resolves vendors into point-in-time snapshots.
type VendorPort interface {
	Snapshot(ctx context.Context, vendorID int64) (VendorSnapshot, error)
}

// ProductInfo carries catalogue attributes copied onto PO lines.
type ProductInfo struct {
	Name     string
	Category string
	UOM      string
}

// CatalogPort resolves SKUs against the product catalogue.
type CatalogPort interface {
	Lookup(ctx context.Context, sku string) (ProductInfo, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the purchase order lifecycle. Every mutation re-reads the PO
// under a row lock and consults the transition table before acting, so stale
// or malicious callers cannot force an illegal transition.
type Service struct {
	repo    RepositoryPort
	vendors VendorPort
	catalog CatalogPort
	audit   AuditPort
}

// NewService builds the purchase order service.
func NewService(repo RepositoryPort, vendors VendorPort, catalog CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, vendors: vendors, catalog: catalog, audit: audit}
}

// POLineInput is one requested line. Product attributes come from the
// catalogue, not the caller.
type POLineInput struct {
	SKU       string
	Quantity  float64
	UnitPrice float64
}

// CreatePOInput carries a PO creation request.
type CreatePOInput struct {
	PONumber string
	VendorID int64
	RaisedAt time.Time
	Lines    []POLineInput
}

// Create raises a new purchase order in draft with a denormalized vendor
// snapshot.
func (s *Service) Create(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	snapshot, err := s.vendors.Snapshot(ctx, input.VendorID)
	if err != nil {
		if shared.IsNotFound(err) {
			return PurchaseOrder{}, shared.NewValidationError("vendor_id", "unknown vendor")
		}
		return PurchaseOrder{}, err
	}
	actor := shared.ActorFromContext(ctx)
	po := PurchaseOrder{
		PONumber:  input.PONumber,
		Status:    POStatusDraft,
		RaisedAt:  input.RaisedAt,
		Vendor:    snapshot,
		Lines:     lines,
		CreatedBy: actor.ID,
	}
	if po.PONumber == "" {
		po.PONumber = generateNumber("PO")
	}
	if po.RaisedAt.IsZero() {
		po.RaisedAt = time.Now().UTC()
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		return tx.ReplacePOLines(ctx, id, po.Lines)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po:create", po.PONumber, map[string]any{"vendor_id": input.VendorID, "lines": len(po.Lines)})
	return po, nil
}

// Approve moves a draft PO to approved, stamping the approver.
func (s *Service) Approve(ctx context.Context, poNumber string) (PurchaseOrder, error) {
	actor := shared.ActorFromContext(ctx)
	now := time.Now().UTC()
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetPOForUpdate(ctx, poNumber)
		if err != nil {
			return err
		}
		if !po.Status.Allows(POOpApprove) {
			return &shared.InvalidStateTransitionError{Entity: "purchase order", From: string(po.Status), Op: string(POOpApprove)}
		}
		if err := tx.UpdatePOStatus(ctx, po.ID, POStatusApproved); err != nil {
			return err
		}
		if err := tx.SetPOApproval(ctx, po.ID, actor.ID, now); err != nil {
			return err
		}
		po.Status = POStatusApproved
		po.ApprovedBy = actor.ID
		po.ApprovedAt = now
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po:approve", po.PONumber, nil)
	return po, nil
}

// UpdatePOInput carries an edit to a draft PO. A zero VendorID keeps the
// existing snapshot.
type UpdatePOInput struct {
	VendorID int64
	Lines    []POLineInput
}

// Update replaces the lines (and optionally the vendor snapshot) of a draft PO.
func (s *Service) Update(ctx context.Context, poNumber string, input UpdatePOInput) (PurchaseOrder, error) {
	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	var snapshot *VendorSnapshot
	if input.VendorID != 0 {
		snap, err := s.vendors.Snapshot(ctx, input.VendorID)
		if err != nil {
			if shared.IsNotFound(err) {
				return PurchaseOrder{}, shared.NewValidationError("vendor_id", "unknown vendor")
			}
			return PurchaseOrder{}, err
		}
		snapshot = &snap
	}
	var po PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetPOForUpdate(ctx, poNumber)
		if err != nil {
			return err
		}
		if !po.Status.Allows(POOpUpdate) {
			return &shared.InvalidStateTransitionError{Entity: "purchase order", From: string(po.Status), Op: string(POOpUpdate)}
		}
		if err := tx.ReplacePOLines(ctx, po.ID, lines); err != nil {
			return err
		}
		po.Lines = lines
		if snapshot != nil {
			po.Vendor = *snapshot
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po:update", po.PONumber, map[string]any{"lines": len(lines)})
	return po, nil
}

// Delete removes a draft PO and its lines.
func (s *Service) Delete(ctx context.Context, poNumber string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, poNumber)
		if err != nil {
			return err
		}
		if !po.Status.Allows(POOpDelete) {
			return &shared.InvalidStateTransitionError{Entity: "purchase order", From: string(po.Status), Op: string(POOpDelete)}
		}
		return tx.DeletePO(ctx, po.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "po:delete", poNumber, nil)
	return nil
}

// MarkReceived is the system-driven transition fired when goods first arrive.
// Calling it on an already received PO is a no-op.
func (s *Service) MarkReceived(ctx context.Context, poNumber string) error {
	return s.advance(ctx, poNumber, POOpMarkReceived, POStatusReceived)
}

// MarkDelivered is the system-driven transition fired when every line is fully
// received. Calling it on an already delivered PO is a no-op.
func (s *Service) MarkDelivered(ctx context.Context, poNumber string) error {
	return s.advance(ctx, poNumber, POOpMarkDelivered, POStatusDelivered)
}

func (s *Service) advance(ctx context.Context, poNumber string, op POOperation, target POStatus) error {
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, poNumber)
		if err != nil {
			return err
		}
		if po.Status == target {
			return nil
		}
		if !po.Status.Allows(op) {
			return &shared.InvalidStateTransitionError{Entity: "purchase order", From: string(po.Status), Op: string(op)}
		}
		changed = true
		return tx.UpdatePOStatus(ctx, po.ID, target)
	})
	if err != nil {
		return err
	}
	if changed {
		s.record(ctx, fmt.Sprintf("po:%s", op), poNumber, nil)
	}
	return nil
}

// Get returns one PO by number.
func (s *Service) Get(ctx context.Context, poNumber string) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, poNumber)
}

// List returns POs matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter POFilter) ([]PurchaseOrder, int, error) {
	if filter.Status != "" {
		switch filter.Status {
		case POStatusDraft, POStatusApproved, POStatusReceived, POStatusDelivered:
		default:
			return nil, 0, shared.NewValidationError("status", "unknown status")
		}
	}
	return s.repo.ListPOs(ctx, filter)
}

func (s *Service) buildLines(ctx context.Context, inputs []POLineInput) ([]POLine, error) {
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("lines", "at least one line required")
	}
	lines := make([]POLine, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("lines[%d]", i)
		if in.SKU == "" {
			return nil, shared.NewValidationError(field+".sku", "required")
		}
		if in.Quantity <= 0 {
			return nil, shared.NewValidationError(field+".quantity", "must be positive")
		}
		if in.UnitPrice <= 0 {
			return nil, shared.NewValidationError(field+".unit_price", "must be positive")
		}
		product, err := s.catalog.Lookup(ctx, in.SKU)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.NewValidationError(field+".sku", "unknown sku")
			}
			return nil, err
		}
		lines = append(lines, POLine{
			LineNo:      i + 1,
			SKU:         in.SKU,
			ProductName: product.Name,
			Category:    product.Category,
			Quantity:    in.Quantity,
			UOM:         product.UOM,
			UnitPrice:   in.UnitPrice,
		})
	}
	return lines, nil
}

func (s *Service) record(ctx context.Context, action, ref string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: ref,
		Meta:     meta,
	})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}
