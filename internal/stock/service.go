package stock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/stockpilot/stockpilot/internal/ledger"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Baseline(ctx context.Context, productID int64) (float64, error)
	Movements(ctx context.Context, productID int64) ([]ledger.Movement, error)
	GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error)
	ListAdjustments(ctx context.Context, productID int64, page, limit int) ([]StockAdjustment, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates derived report data after mutations.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service coordinates stock queries and manual adjustments.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    CachePort
	metrics  *observability.Metrics
	allowNeg bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort, metrics *observability.Metrics, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, metrics: metrics, allowNeg: cfg.AllowNegativeStock}
}

// ComputeStock derives the windowed stock picture for a product from
// its full movement history. An unknown product yields a zero result
// rather than an error so callers can render empty rows.
func (s *Service) ComputeStock(ctx context.Context, productID int64, from, to time.Time) (ledger.ProductStock, error) {
	baseline, err := s.repo.Baseline(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ledger.ProductStock{}, nil
		}
		return ledger.ProductStock{}, err
	}
	movements, err := s.repo.Movements(ctx, productID)
	if err != nil {
		return ledger.ProductStock{}, err
	}
	start, end := ledger.DayWindow(from, to)
	return ledger.Compute(baseline, movements, start, end), nil
}

// Movements returns the product's stock card, oldest entry first.
func (s *Service) Movements(ctx context.Context, productID int64) ([]ledger.Movement, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("stock: invalid product id: %w", shared.ErrValidation)
	}
	return s.repo.Movements(ctx, productID)
}

func (s *Service) ListAdjustments(ctx context.Context, productID int64, page, limit int) ([]StockAdjustment, int, error) {
	return s.repo.ListAdjustments(ctx, productID, page, limit)
}

func (s *Service) GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error) {
	if id <= 0 {
		return StockAdjustment{}, fmt.Errorf("stock: invalid adjustment id: %w", shared.ErrValidation)
	}
	return s.repo.GetAdjustment(ctx, id)
}

// CreateAdjustment records a manual correction. Target quantities are
// reconciled against live stock inside the transaction so concurrent
// movements cannot skew the stored delta.
func (s *Service) CreateAdjustment(ctx context.Context, input AdjustmentInput) (StockAdjustment, error) {
	if input.ProductID <= 0 {
		return StockAdjustment{}, fmt.Errorf("stock: product required: %w", shared.ErrValidation)
	}
	if (input.Delta == nil) == (input.TargetQuantity == nil) {
		return StockAdjustment{}, fmt.Errorf("%w: set exactly one of delta or target_quantity", ErrInvalidAdjustment)
	}
	if input.AdjustedAt.IsZero() {
		input.AdjustedAt = time.Now()
	}

	var created StockAdjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		baseline, err := tx.Baseline(ctx, input.ProductID)
		if err != nil {
			return err
		}
		movements, err := tx.Movements(ctx, input.ProductID)
		if err != nil {
			return err
		}
		live := ledger.Live(baseline, movements)

		delta := 0.0
		if input.Delta != nil {
			delta = *input.Delta
		} else {
			delta = *input.TargetQuantity - live
		}
		if math.Abs(delta) < qtyEpsilon {
			return ErrInvalidAdjustment
		}
		if !s.allowNeg && live+delta < -qtyEpsilon {
			return shared.ErrInsufficientStock
		}

		created = StockAdjustment{
			ProductID:  input.ProductID,
			Delta:      delta,
			Reason:     input.Reason,
			AdjustedAt: input.AdjustedAt,
			CreatedAt:  time.Now(),
		}
		id, err := tx.InsertAdjustment(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		_, err = tx.ResyncProducts(ctx, []int64{input.ProductID})
		return err
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	s.afterMutation(ctx, "create", created)
	return created, nil
}

// UpdateAdjustment rewrites an existing correction, revalidating the
// resulting live stock with the old delta removed.
func (s *Service) UpdateAdjustment(ctx context.Context, id int64, input AdjustmentInput) (StockAdjustment, error) {
	if id <= 0 {
		return StockAdjustment{}, fmt.Errorf("stock: invalid adjustment id: %w", shared.ErrValidation)
	}
	if (input.Delta == nil) == (input.TargetQuantity == nil) {
		return StockAdjustment{}, fmt.Errorf("%w: set exactly one of delta or target_quantity", ErrInvalidAdjustment)
	}

	var updated StockAdjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetAdjustment(ctx, id)
		if err != nil {
			return err
		}
		baseline, err := tx.Baseline(ctx, existing.ProductID)
		if err != nil {
			return err
		}
		movements, err := tx.Movements(ctx, existing.ProductID)
		if err != nil {
			return err
		}
		// Live stock as it would be without this adjustment.
		base := ledger.Live(baseline, movements) - existing.Delta

		delta := 0.0
		if input.Delta != nil {
			delta = *input.Delta
		} else {
			delta = *input.TargetQuantity - base
		}
		if math.Abs(delta) < qtyEpsilon {
			return ErrInvalidAdjustment
		}
		if !s.allowNeg && base+delta < -qtyEpsilon {
			return shared.ErrInsufficientStock
		}

		updated = existing
		updated.Delta = delta
		if input.Reason != "" {
			updated.Reason = input.Reason
		}
		if !input.AdjustedAt.IsZero() {
			updated.AdjustedAt = input.AdjustedAt
		}
		if err := tx.UpdateAdjustment(ctx, updated); err != nil {
			return err
		}

		_, err = tx.ResyncProducts(ctx, []int64{existing.ProductID})
		return err
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	s.afterMutation(ctx, "update", updated)
	return updated, nil
}

// DeleteAdjustment removes a correction and rebuilds the cached
// quantity as if it had never been recorded.
func (s *Service) DeleteAdjustment(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("stock: invalid adjustment id: %w", shared.ErrValidation)
	}

	var removed StockAdjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetAdjustment(ctx, id)
		if err != nil {
			return err
		}
		baseline, err := tx.Baseline(ctx, existing.ProductID)
		if err != nil {
			return err
		}
		movements, err := tx.Movements(ctx, existing.ProductID)
		if err != nil {
			return err
		}
		if !s.allowNeg && ledger.Live(baseline, movements)-existing.Delta < -qtyEpsilon {
			return shared.ErrInsufficientStock
		}
		if err := tx.DeleteAdjustment(ctx, id); err != nil {
			return err
		}
		removed = existing
		_, err = tx.ResyncProducts(ctx, []int64{existing.ProductID})
		return err
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, "delete", removed)
	return nil
}

// Resync rebuilds cached quantities for the given products, or for
// every product when ids is empty. Returns how many rows were healed.
func (s *Service) Resync(ctx context.Context, ids []int64) (int64, error) {
	var healed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if len(ids) == 0 {
			healed, err = tx.ResyncAll(ctx)
		} else {
			healed, err = tx.ResyncProducts(ctx, ids)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.CountResyncDrift(healed)
	if healed > 0 && s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			return healed, err
		}
	}
	return healed, nil
}

func (s *Service) afterMutation(ctx context.Context, op string, adj StockAdjustment) {
	s.metrics.CountMutation("adjustment", op)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   op,
			Entity:   "stock_adjustment",
			EntityID: strconv.FormatInt(adj.ID, 10),
			Meta:     map[string]any{"product_id": adj.ProductID, "delta": adj.Delta, "reason": adj.Reason},
			At:       time.Now(),
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}
