package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

type memoryCatalogRepo struct {
	products map[string]Product
	nextID   int64
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{products: make(map[string]Product)}
}

func (r *memoryCatalogRepo) Create(ctx context.Context, product Product) (Product, error) {
	if _, ok := r.products[product.SKU]; ok {
		return Product{}, &shared.ConflictError{Entity: "product", Ref: product.SKU}
	}
	r.nextID++
	product.ID = r.nextID
	r.products[product.SKU] = product
	return product, nil
}

func (r *memoryCatalogRepo) Update(ctx context.Context, product Product) error {
	if _, ok := r.products[product.SKU]; !ok {
		return &shared.NotFoundError{Entity: "product", Ref: product.SKU}
	}
	r.products[product.SKU] = product
	return nil
}

func (r *memoryCatalogRepo) GetBySKU(ctx context.Context, sku string) (Product, error) {
	product, ok := r.products[sku]
	if !ok {
		return Product{}, &shared.NotFoundError{Entity: "product", Ref: sku}
	}
	return product, nil
}

func (r *memoryCatalogRepo) List(ctx context.Context, filter Filter) ([]Product, int, error) {
	var out []Product
	for _, product := range r.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		out = append(out, product)
	}
	return out, len(out), nil
}

func TestCreateNormalizesFields(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil)
	ctx := context.Background()

	product, err := svc.Create(ctx, Input{
		SKU:      "  sku-tea ",
		Name:     "assam tea 500g",
		Category: " Beverages ",
		UOM:      "BOX",
	})
	require.NoError(t, err)
	require.Equal(t, "SKU-TEA", product.SKU)
	require.Equal(t, "Assam Tea 500G", product.Name)
	require.Equal(t, "beverages", product.Category)
	require.Equal(t, "box", product.UOM)
	require.True(t, product.Active)

	// lookup is case-insensitive through normalization
	got, err := svc.Get(ctx, "sku-tea")
	require.NoError(t, err)
	require.Equal(t, product.ID, got.ID)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{SKU: "SKU-TEA", Name: "Tea", UOM: "box"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{SKU: "sku-tea", Name: "Tea Again", UOM: "box"})
	require.True(t, shared.IsConflict(err))
}

func TestUpdateKeepsSKUImmutable(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{SKU: "SKU-TEA", Name: "Tea", Category: "beverages", UOM: "box"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "SKU-TEA", Input{Name: "premium assam tea", Category: "Beverages", UOM: "carton"})
	require.NoError(t, err)
	require.Equal(t, "SKU-TEA", updated.SKU)
	require.Equal(t, "Premium Assam Tea", updated.Name)
	require.Equal(t, "carton", updated.UOM)

	_, err = svc.Update(ctx, "SKU-NOPE", Input{Name: "x", UOM: "box"})
	require.True(t, shared.IsNotFound(err))
}

func TestValidationErrors(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Tea", UOM: "box"})
	require.True(t, shared.IsValidation(err))
	_, err = svc.Create(ctx, Input{SKU: "SKU-TEA", UOM: "box"})
	require.True(t, shared.IsValidation(err))
	_, err = svc.Create(ctx, Input{SKU: "SKU-TEA", Name: "Tea"})
	require.True(t, shared.IsValidation(err))
}
