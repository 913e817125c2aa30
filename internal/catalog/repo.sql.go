package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Create inserts a product and returns it with its assigned ID.
func (r *Repository) Create(ctx context.Context, product Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, category, uom, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		product.SKU, product.Name, product.Category, product.UOM, product.Active).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, &shared.ConflictError{Entity: "product", Ref: product.SKU}
		}
		return Product{}, err
	}
	return product, nil
}

// Update replaces the mutable fields of a product.
func (r *Repository) Update(ctx context.Context, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$1, category=$2, uom=$3, active=$4, updated_at=NOW() WHERE sku=$5`,
		product.Name, product.Category, product.UOM, product.Active, product.SKU)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "product", Ref: product.SKU}
	}
	return nil
}

// GetBySKU returns one product.
func (r *Repository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	var product Product
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, category, uom, active, created_at, updated_at FROM products WHERE sku=$1`, sku).
		Scan(&product.ID, &product.SKU, &product.Name, &product.Category, &product.UOM, &product.Active, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, &shared.NotFoundError{Entity: "product", Ref: sku}
		}
		return Product{}, err
	}
	return product, nil
}

// List returns products matching the filter.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Product, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var active any
	if filter.Active != nil {
		active = *filter.Active
	}
	search := "%" + filter.Search + "%"
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, category, uom, active, created_at, updated_at
FROM products
WHERE ($1 = '' OR category = $1)
  AND ($2::boolean IS NULL OR active = $2)
  AND ($3 = '%%' OR name ILIKE $3 OR sku ILIKE $3)
ORDER BY sku
LIMIT $4 OFFSET $5`, filter.Category, active, search, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.SKU, &product.Name, &product.Category, &product.UOM, &product.Active, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products
WHERE ($1 = '' OR category = $1)
  AND ($2::boolean IS NULL OR active = $2)
  AND ($3 = '%%' OR name ILIKE $3 OR sku ILIKE $3)`, filter.Category, active, search).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
