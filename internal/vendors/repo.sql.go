package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
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

// Create inserts a vendor and returns it with its assigned ID.
func (r *Repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO vendors (name, contact_person, phone, email, address, gstin, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		vendor.Name, vendor.ContactPerson, vendor.Phone, vendor.Email, vendor.Address, vendor.GSTIN, vendor.Active).
		Scan(&vendor.ID, &vendor.CreatedAt, &vendor.UpdatedAt)
	if err != nil {
		return Vendor{}, err
	}
	return vendor, nil
}

// Update replaces the mutable fields of a vendor.
func (r *Repository) Update(ctx context.Context, vendor Vendor) error {
	tag, err := r.pool.Exec(ctx, `UPDATE vendors SET name=$1, contact_person=$2, phone=$3, email=$4, address=$5, gstin=$6, active=$7, updated_at=NOW() WHERE id=$8`,
		vendor.Name, vendor.ContactPerson, vendor.Phone, vendor.Email, vendor.Address, vendor.GSTIN, vendor.Active, vendor.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "vendor", Ref: fmt.Sprintf("%d", vendor.ID)}
	}
	return nil
}

// Get returns one vendor by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Vendor, error) {
	var vendor Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, name, contact_person, phone, email, address, gstin, active, created_at, updated_at FROM vendors WHERE id=$1`, id).
		Scan(&vendor.ID, &vendor.Name, &vendor.ContactPerson, &vendor.Phone, &vendor.Email, &vendor.Address, &vendor.GSTIN, &vendor.Active, &vendor.CreatedAt, &vendor.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, &shared.NotFoundError{Entity: "vendor", Ref: fmt.Sprintf("%d", id)}
		}
		return Vendor{}, err
	}
	return vendor, nil
}

// List returns vendors matching the filter.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Vendor, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var active any
	if filter.Active != nil {
		active = *filter.Active
	}
	search := "%" + filter.Search + "%"
	rows, err := r.pool.Query(ctx, `SELECT id, name, contact_person, phone, email, address, gstin, active, created_at, updated_at
FROM vendors
WHERE ($1::boolean IS NULL OR active = $1)
  AND ($2 = '%%' OR name ILIKE $2 OR gstin ILIKE $2)
ORDER BY name
LIMIT $3 OFFSET $4`, active, search, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		var vendor Vendor
		if err := rows.Scan(&vendor.ID, &vendor.Name, &vendor.ContactPerson, &vendor.Phone, &vendor.Email, &vendor.Address, &vendor.GSTIN, &vendor.Active, &vendor.CreatedAt, &vendor.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, vendor)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendors
WHERE ($1::boolean IS NULL OR active = $1)
  AND ($2 = '%%' OR name ILIKE $2 OR gstin ILIKE $2)`, active, search).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
