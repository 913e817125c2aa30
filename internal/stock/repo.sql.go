package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetBalancesForUpdate(ctx context.Context, skus []string) (map[string]Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertEntry(ctx context.Context, entry LedgerEntry) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction, joining
// the caller's transaction when one is already open.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetBalance returns the balance row for one SKU.
func (r *Repository) GetBalance(ctx context.Context, sku string) (Balance, error) {
	var bal Balance
	err := r.pool.QueryRow(ctx, `SELECT sku, available, updated_at FROM stock_balances WHERE sku=$1`, sku).
		Scan(&bal.SKU, &bal.Available, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{SKU: sku}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

// ListLedger returns movement history for a SKU, oldest first.
func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sku, entry_type, qty, balance, ref_module, ref_id, note, actor_id, posted_at
FROM stock_ledger
WHERE sku=$1 AND posted_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $4`, filter.SKU, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var entry LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.SKU, &entry.Type, &entry.Qty, &entry.Balance, &entry.RefModule, &entry.RefID, &entry.Note, &entry.ActorID, &entry.PostedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *txRepository) GetBalancesForUpdate(ctx context.Context, skus []string) (map[string]Balance, error) {
	balances := make(map[string]Balance, len(skus))
	// skus arrive pre-sorted; locking follows that order.
	for _, sku := range skus {
		var bal Balance
		err := r.tx.QueryRow(ctx, `SELECT sku, available, updated_at FROM stock_balances WHERE sku=$1 FOR UPDATE`, sku).
			Scan(&bal.SKU, &bal.Available, &bal.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				balances[sku] = Balance{SKU: sku}
				continue
			}
			return nil, err
		}
		balances[sku] = bal
	}
	return balances, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (sku, available, updated_at)
VALUES ($1,$2,NOW())
ON CONFLICT (sku) DO UPDATE SET available=EXCLUDED.available, updated_at=NOW()`, balance.SKU, balance.Available)
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, entry LedgerEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_ledger (sku, entry_type, qty, balance, ref_module, ref_id, note, actor_id, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, entry.SKU, string(entry.Type), entry.Qty, entry.Balance, entry.RefModule, entry.RefID, entry.Note, entry.ActorID, entry.PostedAt)
	return err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
