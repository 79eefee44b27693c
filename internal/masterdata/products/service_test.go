package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	mdshared "github.com/stockpilot/stockpilot/internal/masterdata/shared"
	"github.com/stockpilot/stockpilot/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	products map[int64]Product
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, products: map[int64]Product{}}
}

func (m *memoryRepo) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = product
	return product, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	existing, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	product.InitialQuantity = existing.InitialQuantity
	product.Quantity = existing.Quantity
	m.products[id] = product
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func TestCreateSetsOpeningBaseline(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Product{
		Name: "Basmati Rice", Unit: "kg", PurchasePrice: 80, GSTRate: 5, InitialQuantity: 100, Quantity: 100,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, 100.0, created.InitialQuantity)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{Name: "Milk", GSTRate: 120})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{Name: "Milk", InitialQuantity: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateKeepsBaselineImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Name: "Rice", Unit: "kg", InitialQuantity: 100, Quantity: 100})
	require.NoError(t, err)

	err = svc.Update(ctx, created.ID, Product{Name: "Rice Premium", Unit: "kg", InitialQuantity: 500, Quantity: 999})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Rice Premium", got.Name)
	require.Equal(t, 100.0, got.InitialQuantity)
	require.Equal(t, 100.0, got.Quantity)
}

func TestGetRejectsBadID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}
