package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/platform/db"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetPOForUpdate(ctx context.Context, poNumber string) (PurchaseOrder, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	ReplacePOLines(ctx context.Context, poID int64, lines []POLine) error
	UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error
	SetPOApproval(ctx context.Context, poID int64, approvedBy string, approvedAt time.Time) error
	DeletePO(ctx context.Context, poID int64) error
	CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error)
	InsertGRNLine(ctx context.Context, grnID int64, line GRNLine) error
	UpdateGRNQC(ctx context.Context, grnID int64, status QCStatus, remarks string) error
	LineReceipts(ctx context.Context, poID int64) ([]LineReceipt, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction, joining the
// caller's transaction when one is already open.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetPO returns a purchase order and its lines by number.
func (r *Repository) GetPO(ctx context.Context, poNumber string) (PurchaseOrder, error) {
	return scanPO(ctx, r.pool, poNumber, false)
}

// ListPOs returns purchase orders matching the filter, newest first.
func (r *Repository) ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, po_number, status, raised_at, vendor_details, created_by, COALESCE(approved_by,''), COALESCE(approved_at, 'epoch')
FROM purchase_orders
WHERE ($1 = '' OR status = $1)
  AND raised_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY raised_at DESC, id DESC
LIMIT $4 OFFSET $5`, string(filter.Status), nullTime(filter.StartDate), nullTime(filter.EndDate), limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var pos []PurchaseOrder
	for rows.Next() {
		po, err := scanPORow(rows)
		if err != nil {
			return nil, 0, err
		}
		pos = append(pos, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders
WHERE ($1 = '' OR status = $1)
  AND raised_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')`,
		string(filter.Status), nullTime(filter.StartDate), nullTime(filter.EndDate)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	for i := range pos {
		lines, err := r.poLines(ctx, pos[i].ID)
		if err != nil {
			return nil, 0, err
		}
		pos[i].Lines = lines
	}
	return pos, total, nil
}

// GetGRN returns a goods receipt and its lines by number.
func (r *Repository) GetGRN(ctx context.Context, grnNumber string) (GoodsReceipt, error) {
	var grn GoodsReceipt
	err := r.pool.QueryRow(ctx, `SELECT g.id, g.grn_number, g.po_id, p.po_number, g.delivery_challan, g.transporter_name, g.vehicle_number,
g.received_at, g.remarks, g.scanned_challan, g.qc_status, g.created_by
FROM goods_receipts g JOIN purchase_orders p ON p.id = g.po_id
WHERE g.grn_number=$1`, grnNumber).
		Scan(&grn.ID, &grn.GRNNumber, &grn.POID, &grn.PONumber, &grn.DeliveryChallan, &grn.TransporterName, &grn.VehicleNumber,
			&grn.ReceivedAt, &grn.Remarks, &grn.ScannedChallan, &grn.QCStatus, &grn.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceipt{}, &shared.NotFoundError{Entity: "goods receipt", Ref: grnNumber}
		}
		return GoodsReceipt{}, err
	}
	lines, err := r.grnLines(ctx, grn.ID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	grn.Lines = lines
	return grn, nil
}

// ListGRNs returns goods receipts matching the filter, newest first.
func (r *Repository) ListGRNs(ctx context.Context, filter GRNFilter) ([]GoodsReceipt, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT g.id, g.grn_number, g.po_id, p.po_number, g.delivery_challan, g.transporter_name, g.vehicle_number,
g.received_at, g.remarks, g.scanned_challan, g.qc_status, g.created_by
FROM goods_receipts g JOIN purchase_orders p ON p.id = g.po_id
WHERE ($1 = '' OR g.qc_status = $1)
  AND ($2 = '' OR p.po_number = $2)
  AND g.received_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY g.received_at DESC, g.id DESC
LIMIT $5 OFFSET $6`, string(filter.QCStatus), filter.PONumber, nullTime(filter.StartDate), nullTime(filter.EndDate), limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var grns []GoodsReceipt
	for rows.Next() {
		var grn GoodsReceipt
		if err := rows.Scan(&grn.ID, &grn.GRNNumber, &grn.POID, &grn.PONumber, &grn.DeliveryChallan, &grn.TransporterName, &grn.VehicleNumber,
			&grn.ReceivedAt, &grn.Remarks, &grn.ScannedChallan, &grn.QCStatus, &grn.CreatedBy); err != nil {
			return nil, 0, err
		}
		grns = append(grns, grn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM goods_receipts g JOIN purchase_orders p ON p.id = g.po_id
WHERE ($1 = '' OR g.qc_status = $1)
  AND ($2 = '' OR p.po_number = $2)
  AND g.received_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')`,
		string(filter.QCStatus), filter.PONumber, nullTime(filter.StartDate), nullTime(filter.EndDate)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	for i := range grns {
		lines, err := r.grnLines(ctx, grns[i].ID)
		if err != nil {
			return nil, 0, err
		}
		grns[i].Lines = lines
	}
	return grns, total, nil
}

func (r *Repository) poLines(ctx context.Context, poID int64) ([]POLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT line_no, sku, product_name, category, quantity, uom, unit_price FROM po_lines WHERE po_id=$1 ORDER BY line_no`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.LineNo, &line.SKU, &line.ProductName, &line.Category, &line.Quantity, &line.UOM, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *Repository) grnLines(ctx context.Context, grnID int64) ([]GRNLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT line_no, sku, product_name, category, ordered_qty, received_qty, accepted_qty, rejected_qty, unit_price, location
FROM grn_lines WHERE grn_id=$1 ORDER BY line_no`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []GRNLine
	for rows.Next() {
		var line GRNLine
		if err := rows.Scan(&line.LineNo, &line.SKU, &line.ProductName, &line.Category, &line.OrderedQty, &line.ReceivedQty, &line.AcceptedQty, &line.RejectedQty, &line.UnitPrice, &line.Location); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (tx *txRepo) GetPOForUpdate(ctx context.Context, poNumber string) (PurchaseOrder, error) {
	po, err := scanPO(ctx, tx.tx, poNumber, true)
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := tx.tx.Query(ctx, `SELECT line_no, sku, product_name, category, quantity, uom, unit_price FROM po_lines WHERE po_id=$1 ORDER BY line_no`, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.LineNo, &line.SKU, &line.ProductName, &line.Category, &line.Quantity, &line.UOM, &line.UnitPrice); err != nil {
			return PurchaseOrder{}, err
		}
		po.Lines = append(po.Lines, line)
	}
	return po, rows.Err()
}

func (tx *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	vendorJSON, err := json.Marshal(po.Vendor)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders (po_number, status, raised_at, vendor_details, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`, po.PONumber, po.Status, po.RaisedAt, vendorJSON, po.CreatedBy).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &shared.ConflictError{Entity: "purchase order", Ref: po.PONumber}
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) ReplacePOLines(ctx context.Context, poID int64, lines []POLine) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM po_lines WHERE po_id=$1`, poID); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := tx.tx.Exec(ctx, `INSERT INTO po_lines (po_id, line_no, sku, product_name, category, quantity, uom, unit_price)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, poID, line.LineNo, line.SKU, line.ProductName, line.Category, line.Quantity, line.UOM, line.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1 WHERE id=$2`, status, poID)
	return err
}

func (tx *txRepo) SetPOApproval(ctx context.Context, poID int64, approvedBy string, approvedAt time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET approved_by=$1, approved_at=$2 WHERE id=$3`, approvedBy, approvedAt, poID)
	return err
}

func (tx *txRepo) DeletePO(ctx context.Context, poID int64) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM po_lines WHERE po_id=$1`, poID); err != nil {
		return err
	}
	_, err := tx.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, poID)
	return err
}

func (tx *txRepo) CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO goods_receipts (grn_number, po_id, delivery_challan, transporter_name, vehicle_number, received_at, remarks, scanned_challan, qc_status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW()) RETURNING id`,
		grn.GRNNumber, grn.POID, grn.DeliveryChallan, grn.TransporterName, grn.VehicleNumber, grn.ReceivedAt, grn.Remarks, grn.ScannedChallan, grn.QCStatus, grn.CreatedBy).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &shared.ConflictError{Entity: "goods receipt", Ref: grn.GRNNumber}
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) InsertGRNLine(ctx context.Context, grnID int64, line GRNLine) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO grn_lines (grn_id, line_no, sku, product_name, category, ordered_qty, received_qty, accepted_qty, rejected_qty, unit_price, location)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		grnID, line.LineNo, line.SKU, line.ProductName, line.Category, line.OrderedQty, line.ReceivedQty, line.AcceptedQty, line.RejectedQty, line.UnitPrice, line.Location)
	return err
}

func (tx *txRepo) UpdateGRNQC(ctx context.Context, grnID int64, status QCStatus, remarks string) error {
	_, err := tx.tx.Exec(ctx, `UPDATE goods_receipts SET qc_status=$1, remarks=$2 WHERE id=$3`, status, remarks, grnID)
	return err
}

func (tx *txRepo) LineReceipts(ctx context.Context, poID int64) ([]LineReceipt, error) {
	rows, err := tx.tx.Query(ctx, `SELECT l.line_no, COALESCE(SUM(l.received_qty),0), COALESCE(SUM(l.accepted_qty),0)
FROM grn_lines l JOIN goods_receipts g ON g.id = l.grn_id
WHERE g.po_id=$1
GROUP BY l.line_no`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var receipts []LineReceipt
	for rows.Next() {
		var receipt LineReceipt
		if err := rows.Scan(&receipt.LineNo, &receipt.Received, &receipt.Accepted); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanPO(ctx context.Context, q rowQuerier, poNumber string, forUpdate bool) (PurchaseOrder, error) {
	query := `SELECT id, po_number, status, raised_at, vendor_details, created_by, COALESCE(approved_by,''), COALESCE(approved_at, 'epoch')
FROM purchase_orders WHERE po_number=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var po PurchaseOrder
	var vendorJSON []byte
	err := q.QueryRow(ctx, query, poNumber).
		Scan(&po.ID, &po.PONumber, &po.Status, &po.RaisedAt, &vendorJSON, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, &shared.NotFoundError{Entity: "purchase order", Ref: poNumber}
		}
		return PurchaseOrder{}, err
	}
	if err := json.Unmarshal(vendorJSON, &po.Vendor); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: decode vendor snapshot: %w", err)
	}
	return po, nil
}

type poRowScanner interface {
	Scan(dest ...any) error
}

func scanPORow(row poRowScanner) (PurchaseOrder, error) {
	var po PurchaseOrder
	var vendorJSON []byte
	if err := row.Scan(&po.ID, &po.PONumber, &po.Status, &po.RaisedAt, &vendorJSON, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt); err != nil {
		return PurchaseOrder{}, err
	}
	if err := json.Unmarshal(vendorJSON, &po.Vendor); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: decode vendor snapshot: %w", err)
	}
	return po, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
