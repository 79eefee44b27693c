package outward

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/shared"
)

type memProduct struct {
	initial  float64
	quantity float64
	price    float64
}

type memPurchase struct {
	outwarded bool
}

type memoryRepo struct {
	outwards  map[int64]OutwardEntry
	items     map[int64][]OutwardItem
	products  map[int64]*memProduct
	purchases map[int64]*memPurchase
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		outwards:  make(map[int64]OutwardEntry),
		items:     make(map[int64][]OutwardItem),
		products:  make(map[int64]*memProduct),
		purchases: make(map[int64]*memPurchase),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Mutations are applied to copies so a failed callback leaves the
	// repo untouched, mirroring a rolled back transaction.
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: snapshot}); err != nil {
		return err
	}
	*r = *snapshot
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	c.nextID = r.nextID
	for id, o := range r.outwards {
		c.outwards[id] = o
	}
	for id, items := range r.items {
		c.items[id] = append([]OutwardItem(nil), items...)
	}
	for id, p := range r.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, p := range r.purchases {
		cp := *p
		c.purchases[id] = &cp
	}
	return c
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters) ([]OutwardEntry, int, error) {
	var items []OutwardEntry
	for _, o := range r.outwards {
		items = append(items, o)
	}
	return items, len(items), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (OutwardEntry, error) {
	o, ok := r.outwards[id]
	if !ok {
		return OutwardEntry{}, shared.ErrNotFound
	}
	o.Items = append([]OutwardItem(nil), r.items[id]...)
	return o, nil
}

func (tx *memoryTx) GetOutward(ctx context.Context, id int64) (OutwardEntry, error) {
	o, ok := tx.repo.outwards[id]
	if !ok {
		return OutwardEntry{}, shared.ErrNotFound
	}
	return o, nil
}

func (tx *memoryTx) InsertOutward(ctx context.Context, entry OutwardEntry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.outwards[entry.ID] = entry
	return entry.ID, nil
}

func (tx *memoryTx) UpdateOutward(ctx context.Context, entry OutwardEntry) error {
	if _, ok := tx.repo.outwards[entry.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.outwards[entry.ID] = entry
	return nil
}

func (tx *memoryTx) DeleteOutward(ctx context.Context, id int64) error {
	if _, ok := tx.repo.outwards[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.outwards, id)
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item OutwardItem) error {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.OutwardID] = append(tx.repo.items[item.OutwardID], item)
	return nil
}

func (tx *memoryTx) DeleteItems(ctx context.Context, outwardID int64) error {
	delete(tx.repo.items, outwardID)
	return nil
}

func (tx *memoryTx) ItemProductIDs(ctx context.Context, outwardID int64) ([]int64, error) {
	seen := map[int64]struct{}{}
	var ids []int64
	for _, item := range tx.repo.items[outwardID] {
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids, nil
}

func (tx *memoryTx) ProductPrice(ctx context.Context, productID int64) (float64, error) {
	p, ok := tx.repo.products[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return p.price, nil
}

func (tx *memoryTx) MarkPurchaseOutwarded(ctx context.Context, purchaseID int64) error {
	p, ok := tx.repo.purchases[purchaseID]
	if !ok {
		return shared.ErrNotFound
	}
	p.outwarded = true
	return nil
}

func (tx *memoryTx) LiveStock(ctx context.Context, productID int64) (float64, error) {
	p, ok := tx.repo.products[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	live := p.initial
	for _, lines := range tx.repo.items {
		for _, item := range lines {
			if item.ProductID == productID {
				live -= item.Quantity
			}
		}
	}
	return live, nil
}

func (tx *memoryTx) ResyncProducts(ctx context.Context, ids []int64) (int64, error) {
	var healed int64
	for _, id := range ids {
		p, ok := tx.repo.products[id]
		if !ok {
			continue
		}
		live, _ := tx.LiveStock(ctx, id)
		if p.quantity != live {
			p.quantity = live
			healed++
		}
	}
	return healed, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, nil, ServiceConfig{})
}

func TestRecordOutwardSnapshotsCost(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 10, quantity: 10, price: 25}
	svc := newTestService(repo)

	entry, err := svc.RecordOutward(context.Background(), OutwardInput{
		DepartmentID: 2,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 4}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.Number)
	require.Len(t, entry.Items, 1)
	require.InDelta(t, 25, entry.Items[0].CostAtTime, 1e-9)
	require.InDelta(t, 100, entry.Total, 1e-9)
	require.InDelta(t, 6, repo.products[1].quantity, 1e-9)

	// A later price bump must not rewrite the recorded cost.
	repo.products[1].price = 40
	got, err := repo.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.InDelta(t, 25, got.Items[0].CostAtTime, 1e-9)
}

func TestRecordOutwardRejectsUnknownProductWithExplicitCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil, ServiceConfig{AllowNegativeStock: true})
	cost := 30.0

	_, err := svc.RecordOutward(context.Background(), OutwardInput{
		DepartmentID: 2,
		Items:        []OutwardItemInput{{ProductID: 99, Quantity: 1, CostAtTime: &cost}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.outwards)
}

func TestRecordOutwardAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 10, quantity: 10, price: 5}
	repo.products[2] = &memProduct{initial: 1, quantity: 1, price: 5}
	svc := newTestService(repo)

	_, err := svc.RecordOutward(context.Background(), OutwardInput{
		DepartmentID: 2,
		Items: []OutwardItemInput{
			{ProductID: 1, Quantity: 4},
			{ProductID: 2, Quantity: 3},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Contains(t, err.Error(), "product 2")

	// The sufficient line must not have posted either.
	require.InDelta(t, 10, repo.products[1].quantity, 1e-9)
	require.Empty(t, repo.outwards)
}

func TestRecordOutwardAllowNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 1, quantity: 1, price: 5}
	svc := NewService(repo, nil, nil, nil, nil, ServiceConfig{AllowNegativeStock: true})

	_, err := svc.RecordOutward(context.Background(), OutwardInput{
		DepartmentID: 2,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)
	require.InDelta(t, -2, repo.products[1].quantity, 1e-9)
}

func TestRecordOutwardMarksPurchase(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 10, quantity: 10, price: 5}
	repo.purchases[7] = &memPurchase{}
	svc := newTestService(repo)

	purchaseID := int64(7)
	_, err := svc.RecordOutward(context.Background(), OutwardInput{
		DepartmentID: 2,
		PurchaseID:   &purchaseID,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, repo.purchases[7].outwarded)

	// A second outward against the same purchase is allowed; the flag
	// simply stays set.
	_, err = svc.RecordOutward(context.Background(), OutwardInput{
		DepartmentID: 2,
		PurchaseID:   &purchaseID,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, repo.purchases[7].outwarded)
}

func TestUpdateOutwardRevalidatesNetEffect(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 10, quantity: 10, price: 5}
	svc := newTestService(repo)
	ctx := context.Background()

	entry, err := svc.RecordOutward(ctx, OutwardInput{
		DepartmentID: 2,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 8}},
	})
	require.NoError(t, err)

	// Growing the issue beyond the remaining stock fails even though the
	// increment alone (4) is under the cached quantity (2 left + 8 back).
	_, err = svc.UpdateOutward(ctx, entry.ID, OutwardInput{
		DepartmentID: 2,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 12}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.InDelta(t, 2, repo.products[1].quantity, 1e-9)

	updated, err := svc.UpdateOutward(ctx, entry.ID, OutwardInput{
		DepartmentID: 3,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, updated.DepartmentID)
	require.InDelta(t, 5, repo.products[1].quantity, 1e-9)
}

func TestDeleteOutwardRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 10, quantity: 10, price: 5}
	svc := newTestService(repo)
	ctx := context.Background()

	entry, err := svc.RecordOutward(ctx, OutwardInput{
		DepartmentID: 2,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 6}},
	})
	require.NoError(t, err)
	require.InDelta(t, 4, repo.products[1].quantity, 1e-9)

	require.NoError(t, svc.DeleteOutward(ctx, entry.ID))
	require.InDelta(t, 10, repo.products[1].quantity, 1e-9)

	require.ErrorIs(t, svc.DeleteOutward(ctx, entry.ID), shared.ErrNotFound)
}

func TestRecordOutwardValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordOutward(ctx, OutwardInput{DepartmentID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordOutward(ctx, OutwardInput{
		Items: []OutwardItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	cost := -1.0
	_, err = svc.RecordOutward(ctx, OutwardInput{
		DepartmentID: 1,
		Items:        []OutwardItemInput{{ProductID: 1, Quantity: 1, CostAtTime: &cost}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
