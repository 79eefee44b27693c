package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/ledger"
	"github.com/stockpilot/stockpilot/internal/shared"
)

type memoryRepo struct {
	baselines   map[int64]float64
	external    map[int64][]ledger.Movement
	adjustments map[int64]StockAdjustment
	quantities  map[int64]float64
	nextID      int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		baselines:   make(map[int64]float64),
		external:    make(map[int64][]ledger.Movement),
		adjustments: make(map[int64]StockAdjustment),
		quantities:  make(map[int64]float64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Baseline(ctx context.Context, productID int64) (float64, error) {
	baseline, ok := r.baselines[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return baseline, nil
}

func (r *memoryRepo) Movements(ctx context.Context, productID int64) ([]ledger.Movement, error) {
	movements := append([]ledger.Movement(nil), r.external[productID]...)
	for _, a := range r.adjustments {
		if a.ProductID == productID {
			movements = append(movements, ledger.Movement{Kind: ledger.MovementAdjustment, Qty: a.Delta, At: a.AdjustedAt})
		}
	}
	return movements, nil
}

func (r *memoryRepo) GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error) {
	a, ok := r.adjustments[id]
	if !ok {
		return StockAdjustment{}, shared.ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) ListAdjustments(ctx context.Context, productID int64, page, limit int) ([]StockAdjustment, int, error) {
	var items []StockAdjustment
	for _, a := range r.adjustments {
		if productID == 0 || a.ProductID == productID {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (tx *memoryTx) Baseline(ctx context.Context, productID int64) (float64, error) {
	return tx.repo.Baseline(ctx, productID)
}

func (tx *memoryTx) Movements(ctx context.Context, productID int64) ([]ledger.Movement, error) {
	return tx.repo.Movements(ctx, productID)
}

func (tx *memoryTx) GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error) {
	return tx.repo.GetAdjustment(ctx, id)
}

func (tx *memoryTx) InsertAdjustment(ctx context.Context, adj StockAdjustment) (int64, error) {
	tx.repo.nextID++
	adj.ID = tx.repo.nextID
	tx.repo.adjustments[adj.ID] = adj
	return adj.ID, nil
}

func (tx *memoryTx) UpdateAdjustment(ctx context.Context, adj StockAdjustment) error {
	if _, ok := tx.repo.adjustments[adj.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.adjustments[adj.ID] = adj
	return nil
}

func (tx *memoryTx) DeleteAdjustment(ctx context.Context, id int64) error {
	if _, ok := tx.repo.adjustments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.adjustments, id)
	return nil
}

func (tx *memoryTx) ResyncProducts(ctx context.Context, ids []int64) (int64, error) {
	var healed int64
	for _, id := range ids {
		if tx.resyncOne(ctx, id) {
			healed++
		}
	}
	return healed, nil
}

func (tx *memoryTx) ResyncAll(ctx context.Context) (int64, error) {
	var healed int64
	for id := range tx.repo.baselines {
		if tx.resyncOne(ctx, id) {
			healed++
		}
	}
	return healed, nil
}

func (tx *memoryTx) resyncOne(ctx context.Context, productID int64) bool {
	baseline := tx.repo.baselines[productID]
	movements, _ := tx.repo.Movements(ctx, productID)
	live := ledger.Live(baseline, movements)
	if tx.repo.quantities[productID] == live {
		return false
	}
	tx.repo.quantities[productID] = live
	return true
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

func TestCreateAdjustmentDelta(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 10
	repo.quantities[1] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	created, err := svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, Delta: ptr(-3), Reason: "damaged"})
	require.NoError(t, err)
	require.InDelta(t, -3, created.Delta, 1e-9)
	require.InDelta(t, 7, repo.quantities[1], 1e-9)
}

func TestCreateAdjustmentTargetReconciles(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 10
	repo.quantities[1] = 10
	repo.external[1] = []ledger.Movement{
		{Kind: ledger.MovementInward, Qty: 5, At: date(2025, time.May, 2)},
	}
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	created, err := svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, TargetQuantity: ptr(12), Reason: "stocktake"})
	require.NoError(t, err)
	require.InDelta(t, -3, created.Delta, 1e-9)
	require.InDelta(t, 12, repo.quantities[1], 1e-9)
}

func TestCreateAdjustmentRejectsZeroAndAmbiguous(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, TargetQuantity: ptr(10)})
	require.ErrorIs(t, err, ErrInvalidAdjustment)

	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1})
	require.ErrorIs(t, err, ErrInvalidAdjustment)

	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, Delta: ptr(1), TargetQuantity: ptr(2)})
	require.ErrorIs(t, err, ErrInvalidAdjustment)
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 2
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, Delta: ptr(-5), Reason: "shrink"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	relaxed := NewService(repo, nil, nil, nil, ServiceConfig{AllowNegativeStock: true})
	_, err = relaxed.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, Delta: ptr(-5), Reason: "shrink"})
	require.NoError(t, err)
	require.InDelta(t, -3, repo.quantities[1], 1e-9)
}

func TestBackdatedAdjustmentShiftsMonthOpening(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 100
	repo.quantities[1] = 100
	repo.external[1] = []ledger.Movement{
		{Kind: ledger.MovementInward, Qty: 40, At: date(2025, time.May, 10)},
		{Kind: ledger.MovementOutward, Qty: 10, At: date(2025, time.June, 5)},
	}
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	before, err := svc.ComputeStock(ctx, 1, date(2025, time.June, 1), date(2025, time.June, 30))
	require.NoError(t, err)
	require.InDelta(t, 140, before.MonthOpening, 1e-9)
	require.InDelta(t, 130, before.ClosingStock, 1e-9)

	// Correction dated in May lands before the June window.
	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{
		ProductID:  1,
		Delta:      ptr(-15),
		Reason:     "stocktake variance",
		AdjustedAt: date(2025, time.May, 20),
	})
	require.NoError(t, err)

	after, err := svc.ComputeStock(ctx, 1, date(2025, time.June, 1), date(2025, time.June, 30))
	require.NoError(t, err)
	require.InDelta(t, 125, after.MonthOpening, 1e-9)
	require.InDelta(t, 115, after.ClosingStock, 1e-9)
	require.InDelta(t, 115, after.LiveStock, 1e-9)
	require.InDelta(t, 115, repo.quantities[1], 1e-9)
}

func TestUpdateAdjustmentRevalidates(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 10
	repo.quantities[1] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	created, err := svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, Delta: ptr(-4), Reason: "damaged"})
	require.NoError(t, err)

	_, err = svc.UpdateAdjustment(ctx, created.ID, AdjustmentInput{Delta: ptr(-12)})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	updated, err := svc.UpdateAdjustment(ctx, created.ID, AdjustmentInput{TargetQuantity: ptr(8)})
	require.NoError(t, err)
	require.InDelta(t, -2, updated.Delta, 1e-9)
	require.InDelta(t, 8, repo.quantities[1], 1e-9)
}

func TestDeleteAdjustmentRestores(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 10
	repo.quantities[1] = 10
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	created, err := svc.CreateAdjustment(ctx, AdjustmentInput{ProductID: 1, Delta: ptr(-4), Reason: "damaged"})
	require.NoError(t, err)
	require.InDelta(t, 6, repo.quantities[1], 1e-9)

	require.NoError(t, svc.DeleteAdjustment(ctx, created.ID))
	require.InDelta(t, 10, repo.quantities[1], 1e-9)

	require.ErrorIs(t, svc.DeleteAdjustment(ctx, created.ID), shared.ErrNotFound)
}

func TestComputeStockUnknownProductIsZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	result, err := svc.ComputeStock(context.Background(), 999, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, ledger.ProductStock{}, result)
}

func TestResyncHealsDrift(t *testing.T) {
	repo := newMemoryRepo()
	repo.baselines[1] = 10
	repo.baselines[2] = 5
	repo.quantities[1] = 3 // drifted
	repo.quantities[2] = 5
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	healed, err := svc.Resync(context.Background(), nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, healed)
	require.InDelta(t, 10, repo.quantities[1], 1e-9)
}
