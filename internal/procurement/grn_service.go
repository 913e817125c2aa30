package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-wms/meridian-wms/internal/shared"
	"github.com/meridian-wms/meridian-wms/internal/stock"
)

// StockPort posts accepted quantities into the stock ledger.
type StockPort interface {
	PostReceipts(ctx context.Context, input stock.PostingInput) error
}

// IdempotencyPort guards against duplicate GRN submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ReceiptService records goods receipts against purchase orders. A GRN is the
// only way accepted stock enters availability; receipt quantities are
// immutable once written, corrections go through a fresh GRN.
type ReceiptService struct {
	repo        RepositoryPort
	stock       StockPort
	idempotency IdempotencyPort
	audit       AuditPort
}

// NewReceiptService builds the goods receipt service.
func NewReceiptService(repo RepositoryPort, stockPort StockPort, idempotency IdempotencyPort, audit AuditPort) *ReceiptService {
	return &ReceiptService{repo: repo, stock: stockPort, idempotency: idempotency, audit: audit}
}

// GRNLineInput references a PO line by its stable LineNo.
type GRNLineInput struct {
	LineNo      int
	ReceivedQty float64
	AcceptedQty float64
	RejectedQty float64
	Location    string
}

// CreateGRNInput carries a goods receipt submission.
type CreateGRNInput struct {
	PONumber        string
	DeliveryChallan string
	TransporterName string
	VehicleNumber   string
	ReceivedAt      time.Time
	Remarks         string
	ScannedChallan  string
	QCStatus        QCStatus
	Lines           []GRNLineInput
}

// Create records a GRN, posts accepted quantities to stock and advances the
// PO status. The PO row is locked for the duration so concurrent receipts
// against the same PO serialize and per-line over-receipt is caught exactly.
func (s *ReceiptService) Create(ctx context.Context, input CreateGRNInput) (GoodsReceipt, error) {
	if err := validateGRNInput(input); err != nil {
		return GoodsReceipt{}, err
	}
	actor := shared.ActorFromContext(ctx)

	idemKey := fmt.Sprintf("grn:%s:%s", input.PONumber, input.DeliveryChallan)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "procurement"); err != nil {
			return GoodsReceipt{}, err
		}
	}

	grn := GoodsReceipt{
		GRNNumber:       generateNumber("GRN"),
		PONumber:        input.PONumber,
		DeliveryChallan: input.DeliveryChallan,
		TransporterName: input.TransporterName,
		VehicleNumber:   input.VehicleNumber,
		ReceivedAt:      input.ReceivedAt,
		Remarks:         input.Remarks,
		ScannedChallan:  input.ScannedChallan,
		QCStatus:        input.QCStatus,
		CreatedBy:       actor.ID,
	}
	if grn.ReceivedAt.IsZero() {
		grn.ReceivedAt = time.Now().UTC()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, input.PONumber)
		if err != nil {
			return err
		}
		if !po.Status.Allows(POOpCreateGRN) {
			return &shared.InvalidStateTransitionError{Entity: "purchase order", From: string(po.Status), Op: string(POOpCreateGRN)}
		}
		received, err := tx.LineReceipts(ctx, po.ID)
		if err != nil {
			return err
		}
		lines, err := buildGRNLines(po, received, input.Lines)
		if err != nil {
			return err
		}
		grn.POID = po.ID

		// the header goes in bare; lines are attached one by one so the
		// repository owns exactly one copy of each receipt line
		grnID, err := tx.CreateGRN(ctx, grn)
		if err != nil {
			return err
		}
		grn.ID = grnID
		for _, line := range lines {
			if err := tx.InsertGRNLine(ctx, grnID, line); err != nil {
				return err
			}
		}
		grn.Lines = lines

		switch {
		case fullyReceived(po, received, lines):
			if err := tx.UpdatePOStatus(ctx, po.ID, POStatusDelivered); err != nil {
				return err
			}
		case po.Status == POStatusApproved:
			if err := tx.UpdatePOStatus(ctx, po.ID, POStatusReceived); err != nil {
				return err
			}
		}

		items := acceptedItems(lines)
		if len(items) == 0 {
			return nil
		}
		return s.stock.PostReceipts(ctx, stock.PostingInput{
			RefModule: "grn",
			RefID:     grn.GRNNumber,
			Note:      fmt.Sprintf("receipt against %s", po.PONumber),
			ActorID:   actor.ID,
			Items:     items,
		})
	})
	if err != nil {
		if s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return GoodsReceipt{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "grn:create",
			Entity:   "goods_receipt",
			EntityID: grn.GRNNumber,
			Meta:     map[string]any{"po_number": grn.PONumber, "lines": len(grn.Lines)},
		})
	}
	return grn, nil
}

// UpdateQC revises the QC disposition and remarks of an existing GRN. QC is
// metadata only and never touches availability, so it stays editable in every
// PO status.
func (s *ReceiptService) UpdateQC(ctx context.Context, grnNumber string, status QCStatus, remarks string) (GoodsReceipt, error) {
	if !status.IsValid() {
		return GoodsReceipt{}, shared.NewValidationError("qc_status", "must be excellent, moderate or bad")
	}
	grn, err := s.repo.GetGRN(ctx, grnNumber)
	if err != nil {
		return GoodsReceipt{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateGRNQC(ctx, grn.ID, status, remarks)
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	grn.QCStatus = status
	grn.Remarks = remarks
	if s.audit != nil {
		actor := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "grn:qc_update",
			Entity:   "goods_receipt",
			EntityID: grnNumber,
			Meta:     map[string]any{"qc_status": string(status)},
		})
	}
	return grn, nil
}

// Get returns one GRN by number.
func (s *ReceiptService) Get(ctx context.Context, grnNumber string) (GoodsReceipt, error) {
	return s.repo.GetGRN(ctx, grnNumber)
}

// List returns GRNs matching the filter plus the total match count.
func (s *ReceiptService) List(ctx context.Context, filter GRNFilter) ([]GoodsReceipt, int, error) {
	if filter.QCStatus != "" && !filter.QCStatus.IsValid() {
		return nil, 0, shared.NewValidationError("qc_status", "unknown status")
	}
	return s.repo.ListGRNs(ctx, filter)
}

func validateGRNInput(input CreateGRNInput) error {
	if input.PONumber == "" {
		return shared.NewValidationError("po_number", "required")
	}
	if input.DeliveryChallan == "" {
		return shared.NewValidationError("delivery_challan", "required")
	}
	if !input.QCStatus.IsValid() {
		return shared.NewValidationError("qc_status", "must be excellent, moderate or bad")
	}
	if len(input.Lines) == 0 {
		return shared.NewValidationError("lines", "at least one line required")
	}
	return nil
}

// buildGRNLines validates receipt quantities against the PO lines and the
// cumulative receipts so far, and materializes the GRN lines.
func buildGRNLines(po PurchaseOrder, prior []LineReceipt, inputs []GRNLineInput) ([]GRNLine, error) {
	poLines := make(map[int]POLine, len(po.Lines))
	for _, line := range po.Lines {
		poLines[line.LineNo] = line
	}
	priorByLine := make(map[int]LineReceipt, len(prior))
	for _, receipt := range prior {
		priorByLine[receipt.LineNo] = receipt
	}
	seen := make(map[int]bool, len(inputs))
	lines := make([]GRNLine, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("lines[%d]", i)
		poLine, ok := poLines[in.LineNo]
		if !ok {
			return nil, shared.NewValidationError(field+".line_no", "not a line of this purchase order")
		}
		if seen[in.LineNo] {
			return nil, shared.NewValidationError(field+".line_no", "duplicate line")
		}
		seen[in.LineNo] = true
		if in.ReceivedQty <= 0 {
			return nil, shared.NewValidationError(field+".received_qty", "must be positive")
		}
		if in.AcceptedQty < 0 || in.RejectedQty < 0 {
			return nil, shared.NewValidationError(field+".accepted_qty", "must not be negative")
		}
		if in.AcceptedQty+in.RejectedQty > in.ReceivedQty {
			return nil, shared.NewValidationError(field+".accepted_qty", "accepted plus rejected exceeds received")
		}
		remaining := poLine.Quantity - priorByLine[in.LineNo].Received
		if in.ReceivedQty > remaining {
			return nil, shared.NewValidationError(field+".received_qty",
				fmt.Sprintf("exceeds remaining ordered quantity %g", remaining))
		}
		lines = append(lines, GRNLine{
			LineNo:      in.LineNo,
			SKU:         poLine.SKU,
			ProductName: poLine.ProductName,
			Category:    poLine.Category,
			OrderedQty:  poLine.Quantity,
			ReceivedQty: in.ReceivedQty,
			AcceptedQty: in.AcceptedQty,
			RejectedQty: in.RejectedQty,
			UnitPrice:   poLine.UnitPrice,
			Location:    in.Location,
		})
	}
	return lines, nil
}

// fullyReceived reports whether, including this GRN, cumulative received
// quantity accounts for the ordered quantity on every PO line. Rejected goods
// still count as accounted for; they just never enter availability.
func fullyReceived(po PurchaseOrder, prior []LineReceipt, current []GRNLine) bool {
	received := make(map[int]float64, len(po.Lines))
	for _, receipt := range prior {
		received[receipt.LineNo] = receipt.Received
	}
	for _, line := range current {
		received[line.LineNo] += line.ReceivedQty
	}
	for _, line := range po.Lines {
		if received[line.LineNo] < line.Quantity {
			return false
		}
	}
	return true
}

func acceptedItems(lines []GRNLine) []stock.MovementItem {
	items := make([]stock.MovementItem, 0, len(lines))
	for _, line := range lines {
		if line.AcceptedQty > 0 {
			items = append(items, stock.MovementItem{SKU: line.SKU, Qty: line.AcceptedQty})
		}
	}
	return items
}
