package dispatch

import (
	"context"
	"errors"
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
	GetForUpdate(ctx context.Context, dispatchID string) (Order, error)
	Create(ctx context.Context, order Order) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
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

const orderColumns = `d.id, d.dispatch_id, d.destination, d.agent_id, COALESCE(a.name,''), d.notes, d.status, d.created_by, d.created_at, d.updated_at`

// Get returns one dispatch with its lines.
func (r *Repository) Get(ctx context.Context, dispatchID string) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+`
FROM dispatch_orders d LEFT JOIN field_agents a ON a.id = d.agent_id
WHERE d.dispatch_id=$1`, dispatchID)
	order, err := scanOrder(row, dispatchID)
	if err != nil {
		return Order{}, err
	}
	lines, err := r.lines(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	order.Lines = lines
	return order, nil
}

// List returns dispatches matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Order, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
FROM dispatch_orders d LEFT JOIN field_agents a ON a.id = d.agent_id
WHERE ($1 = '' OR d.status = $1)
  AND ($2 = 0 OR d.agent_id = $2)
  AND d.created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY d.created_at DESC, d.id DESC
LIMIT $5 OFFSET $6`, string(filter.Status), filter.AgentID, nullTime(filter.StartDate), nullTime(filter.EndDate), limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.DispatchID, &order.Destination, &order.AgentID, &order.AgentName, &order.Notes, &order.Status, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dispatch_orders d
WHERE ($1 = '' OR d.status = $1)
  AND ($2 = 0 OR d.agent_id = $2)
  AND d.created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')`,
		string(filter.Status), filter.AgentID, nullTime(filter.StartDate), nullTime(filter.EndDate)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		lines, err := r.lines(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Lines = lines
	}
	return orders, total, nil
}

func (r *Repository) lines(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku, product_name, quantity FROM dispatch_lines WHERE dispatch_order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.SKU, &line.ProductName, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (tx *txRepo) GetForUpdate(ctx context.Context, dispatchID string) (Order, error) {
	row := tx.tx.QueryRow(ctx, `SELECT d.id, d.dispatch_id, d.destination, d.agent_id, '', d.notes, d.status, d.created_by, d.created_at, d.updated_at
FROM dispatch_orders d WHERE d.dispatch_id=$1 FOR UPDATE`, dispatchID)
	order, err := scanOrder(row, dispatchID)
	if err != nil {
		return Order{}, err
	}
	rows, err := tx.tx.Query(ctx, `SELECT sku, product_name, quantity FROM dispatch_lines WHERE dispatch_order_id=$1 ORDER BY id`, order.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.SKU, &line.ProductName, &line.Quantity); err != nil {
			return Order{}, err
		}
		order.Lines = append(order.Lines, line)
	}
	return order, rows.Err()
}

func (tx *txRepo) Create(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO dispatch_orders (dispatch_id, destination, agent_id, notes, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING id`,
		order.DispatchID, order.Destination, order.AgentID, order.Notes, order.Status, order.CreatedBy, order.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, &shared.ConflictError{Entity: "dispatch", Ref: order.DispatchID}
		}
		return 0, err
	}
	for _, line := range order.Lines {
		if _, err := tx.tx.Exec(ctx, `INSERT INTO dispatch_lines (dispatch_order_id, sku, product_name, quantity)
VALUES ($1,$2,$3,$4)`, id, line.SKU, line.ProductName, line.Quantity); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := tx.tx.Exec(ctx, `UPDATE dispatch_orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}

type orderRow interface {
	Scan(dest ...any) error
}

func scanOrder(row orderRow, dispatchID string) (Order, error) {
	var order Order
	err := row.Scan(&order.ID, &order.DispatchID, &order.Destination, &order.AgentID, &order.AgentName, &order.Notes, &order.Status, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, &shared.NotFoundError{Entity: "dispatch", Ref: dispatchID}
		}
		return Order{}, err
	}
	return order, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
