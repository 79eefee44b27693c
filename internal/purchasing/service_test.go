package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/shared"
)

type memProduct struct {
	initial  float64
	quantity float64
	price    float64
	gstRate  float64
}

type memoryRepo struct {
	purchases    map[int64]PurchaseInvoice
	items        map[int64][]PurchaseItem
	payments     map[int64]VendorPayment
	products     map[int64]*memProduct
	vendors      map[int64]bool
	outwardQty   map[int64]float64
	outwardLinks map[int64]bool
	nextID       int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		purchases:    make(map[int64]PurchaseInvoice),
		items:        make(map[int64][]PurchaseItem),
		payments:     make(map[int64]VendorPayment),
		products:     make(map[int64]*memProduct),
		vendors:      map[int64]bool{1: true, 5: true},
		outwardQty:   make(map[int64]float64),
		outwardLinks: make(map[int64]bool),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters) ([]PurchaseInvoice, int, error) {
	var items []PurchaseInvoice
	for _, p := range r.purchases {
		items = append(items, p)
	}
	return items, len(items), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (PurchaseInvoice, error) {
	p, ok := r.purchases[id]
	if !ok {
		return PurchaseInvoice{}, shared.ErrNotFound
	}
	p.Items = append([]PurchaseItem(nil), r.items[id]...)
	return p, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, purchaseID int64) ([]VendorPayment, error) {
	var payments []VendorPayment
	for _, p := range r.payments {
		if p.PurchaseID == purchaseID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (tx *memoryTx) GetPurchase(ctx context.Context, id int64) (PurchaseInvoice, error) {
	p, ok := tx.repo.purchases[id]
	if !ok {
		return PurchaseInvoice{}, shared.ErrNotFound
	}
	return p, nil
}

func (tx *memoryTx) InsertPurchase(ctx context.Context, inv PurchaseInvoice) (int64, error) {
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	tx.repo.purchases[inv.ID] = inv
	return inv.ID, nil
}

func (tx *memoryTx) UpdatePurchase(ctx context.Context, inv PurchaseInvoice) error {
	existing, ok := tx.repo.purchases[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	inv.PaidAmount = existing.PaidAmount
	inv.IsOutwarded = existing.IsOutwarded
	tx.repo.purchases[inv.ID] = inv
	return nil
}

func (tx *memoryTx) DeletePurchase(ctx context.Context, id int64) error {
	if _, ok := tx.repo.purchases[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.purchases, id)
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item PurchaseItem) error {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.PurchaseID] = append(tx.repo.items[item.PurchaseID], item)
	return nil
}

func (tx *memoryTx) DeleteItems(ctx context.Context, purchaseID int64) error {
	delete(tx.repo.items, purchaseID)
	return nil
}

func (tx *memoryTx) ItemProductIDs(ctx context.Context, purchaseID int64) ([]int64, error) {
	seen := map[int64]struct{}{}
	var ids []int64
	for _, item := range tx.repo.items[purchaseID] {
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids, nil
}

func (tx *memoryTx) VendorExists(ctx context.Context, vendorID int64) (bool, error) {
	return tx.repo.vendors[vendorID], nil
}

func (tx *memoryTx) BumpProductPrice(ctx context.Context, productID int64, price float64) error {
	if p, ok := tx.repo.products[productID]; ok {
		p.price = price
	}
	return nil
}

func (tx *memoryTx) ProductGSTRate(ctx context.Context, productID int64) (float64, error) {
	p, ok := tx.repo.products[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return p.gstRate, nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, payment VendorPayment) (int64, error) {
	tx.repo.nextID++
	payment.ID = tx.repo.nextID
	payment.CreatedAt = time.Now()
	tx.repo.payments[payment.ID] = payment
	return payment.ID, nil
}

func (tx *memoryTx) GetPayment(ctx context.Context, id int64) (VendorPayment, error) {
	p, ok := tx.repo.payments[id]
	if !ok {
		return VendorPayment{}, shared.ErrNotFound
	}
	return p, nil
}

func (tx *memoryTx) DeletePayment(ctx context.Context, id int64) error {
	if _, ok := tx.repo.payments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.payments, id)
	return nil
}

func (tx *memoryTx) DeletePaymentsByPurchase(ctx context.Context, purchaseID int64) error {
	for id, p := range tx.repo.payments {
		if p.PurchaseID == purchaseID {
			delete(tx.repo.payments, id)
		}
	}
	return nil
}

func (tx *memoryTx) ResyncPayment(ctx context.Context, purchaseID int64) (float64, error) {
	inv, ok := tx.repo.purchases[purchaseID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	paid := 0.0
	for _, p := range tx.repo.payments {
		if p.PurchaseID == purchaseID {
			paid += p.Amount
		}
	}
	inv.PaidAmount = paid
	inv.PaymentStatus = DerivePaymentStatus(inv.Total, paid)
	tx.repo.purchases[purchaseID] = inv
	return paid, nil
}

func (tx *memoryTx) HasOutwards(ctx context.Context, purchaseID int64) (bool, error) {
	return tx.repo.outwardLinks[purchaseID], nil
}

func (tx *memoryTx) LiveStock(ctx context.Context, productID int64) (float64, error) {
	p, ok := tx.repo.products[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	live := p.initial - tx.repo.outwardQty[productID]
	for _, lines := range tx.repo.items {
		for _, item := range lines {
			if item.ProductID == productID {
				live += item.Quantity
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

type memoryIdem struct {
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, nil, ServiceConfig{})
}

func TestRecordPurchaseComputesGSTAndStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{initial: 10, quantity: 10, price: 80, gstRate: 18}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		GSTType:  GSTIntraState,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 2, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, inv.Number)
	require.InDelta(t, 200, inv.Subtotal, 1e-9)
	require.InDelta(t, 18, inv.CGST, 1e-9)
	require.InDelta(t, 18, inv.SGST, 1e-9)
	require.Zero(t, inv.IGST)
	require.InDelta(t, 236, inv.Total, 1e-9)
	require.Equal(t, PaymentStatusUnpaid, inv.PaymentStatus)
	require.Len(t, inv.Items, 1)
	require.InDelta(t, 236, inv.Items[0].LineTotal, 1e-9)

	require.InDelta(t, 12, repo.products[1].quantity, 1e-9)
	require.InDelta(t, 100, repo.products[1].price, 1e-9)
}

func TestRecordPurchaseInterStateGST(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 12}
	svc := newTestService(repo)

	inv, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		VendorID: 5,
		GSTType:  GSTInterState,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.Zero(t, inv.CGST)
	require.Zero(t, inv.SGST)
	require.InDelta(t, 12, inv.IGST, 1e-9)
	require.InDelta(t, 112, inv.Total, 1e-9)
}

func TestRecordPurchaseValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, PurchaseInput{VendorID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 1,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: -2, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPurchaseRejectsUnknownVendor(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 18}
	svc := newTestService(repo)

	_, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		VendorID: 424242,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 100}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.purchases)
}

func TestRecordPurchaseRejectsUnknownProductWithExplicitRate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	rate := 5.0

	_, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 99, Quantity: 1, UnitPrice: 100, GSTRate: &rate}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.purchases)
}

func TestRecordPaymentDenormalizesVendor(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 18}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	pay, err := svc.RecordPayment(ctx, PaymentInput{PurchaseID: inv.ID, Amount: 50})
	require.NoError(t, err)
	require.Equal(t, int64(5), pay.VendorID)
	require.Equal(t, int64(5), repo.payments[pay.ID].VendorID)
}

func TestPaymentLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 18}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 2, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.InDelta(t, 236, inv.Total, 1e-9)

	_, err = svc.RecordPayment(ctx, PaymentInput{PurchaseID: inv.ID, Amount: 100})
	require.NoError(t, err)
	got, _ := repo.Get(ctx, inv.ID)
	require.Equal(t, PaymentStatusPartial, got.PaymentStatus)
	require.InDelta(t, 100, got.PaidAmount, 1e-9)

	second, err := svc.RecordPayment(ctx, PaymentInput{PurchaseID: inv.ID, Amount: 136})
	require.NoError(t, err)
	got, _ = repo.Get(ctx, inv.ID)
	require.Equal(t, PaymentStatusPaid, got.PaymentStatus)

	_, err = svc.RecordPayment(ctx, PaymentInput{PurchaseID: inv.ID, Amount: 1})
	require.ErrorIs(t, err, shared.ErrOverpayment)

	require.NoError(t, svc.DeletePayment(ctx, second.ID))
	got, _ = repo.Get(ctx, inv.ID)
	require.Equal(t, PaymentStatusPartial, got.PaymentStatus)
	require.InDelta(t, 100, got.PaidAmount, 1e-9)
}

func TestUpdatePurchaseRecomputesStatus(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 0}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 10, UnitPrice: 20}},
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, PaymentInput{PurchaseID: inv.ID, Amount: 100})
	require.NoError(t, err)

	// Shrinking the invoice below what is already paid is rejected.
	_, err = svc.UpdatePurchase(ctx, inv.ID, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 2, UnitPrice: 20}},
	})
	require.ErrorIs(t, err, shared.ErrOverpayment)

	// Shrinking it to exactly the paid amount flips the status to paid.
	updated, err := svc.UpdatePurchase(ctx, inv.ID, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 5, UnitPrice: 20}},
	})
	require.NoError(t, err)
	require.InDelta(t, 100, updated.Total, 1e-9)
	require.Equal(t, PaymentStatusPaid, updated.PaymentStatus)
}

func TestUpdatePurchaseStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 0}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 10, UnitPrice: 20}},
	})
	require.NoError(t, err)

	// 8 units already issued; the purchase cannot shrink below that.
	repo.outwardQty[1] = 8

	_, err = svc.UpdatePurchase(ctx, inv.ID, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 5, UnitPrice: 20}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestDeletePurchaseCascadesAndGuards(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 0}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 10, UnitPrice: 20}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, PaymentInput{PurchaseID: inv.ID, Amount: 50})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePurchase(ctx, inv.ID))
	require.Empty(t, repo.payments)
	require.InDelta(t, 0, repo.products[1].quantity, 1e-9)

	require.ErrorIs(t, svc.DeletePurchase(ctx, inv.ID), shared.ErrNotFound)
}

func TestDeletePurchaseBlockedByOutwardLink(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 0}
	svc := newTestService(repo)
	ctx := context.Background()

	inv, err := svc.RecordPurchase(ctx, PurchaseInput{
		VendorID: 5,
		Items:    []PurchaseItemInput{{ProductID: 1, Quantity: 10, UnitPrice: 20}},
	})
	require.NoError(t, err)
	repo.outwardLinks[inv.ID] = true

	require.ErrorIs(t, svc.DeletePurchase(ctx, inv.ID), ErrOutwardedLocked)
}

func TestRecordPurchaseIdempotency(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = &memProduct{gstRate: 0}
	idem := &memoryIdem{}
	svc := NewService(repo, nil, nil, idem, nil, ServiceConfig{})
	ctx := context.Background()

	input := PurchaseInput{
		VendorID:       5,
		Items:          []PurchaseItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
		IdempotencyKey: "req-42",
	}
	_, err := svc.RecordPurchase(ctx, input)
	require.NoError(t, err)

	_, err = svc.RecordPurchase(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.purchases, 1)
}
