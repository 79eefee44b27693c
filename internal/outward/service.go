package outward

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]OutwardEntry, int, error)
	Get(ctx context.Context, id int64) (OutwardEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates derived report data after mutations.
type CachePort interface {
	Bump(ctx context.Context) error
}

// IdempotencyPort guards against duplicate submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates outward (issue) operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	cache       CachePort
	idempotency IdempotencyPort
	metrics     *observability.Metrics
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort, idem IdempotencyPort, metrics *observability.Metrics, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, idempotency: idem, metrics: metrics, allowNeg: cfg.AllowNegativeStock}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]OutwardEntry, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (OutwardEntry, error) {
	if id <= 0 {
		return OutwardEntry{}, fmt.Errorf("outward: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// RecordOutward issues stock to a department. The entry posts all or
// nothing: if any line would drive its product negative the whole
// transaction rolls back and the error names the offending product.
func (s *Service) RecordOutward(ctx context.Context, input OutwardInput) (OutwardEntry, error) {
	if err := validateInput(input); err != nil {
		return OutwardEntry{}, err
	}
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "outward"); err != nil {
			return OutwardEntry{}, err
		}
	}

	var outwardID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, items, err := buildEntry(ctx, tx, input)
		if err != nil {
			return err
		}
		if entry.Number == "" {
			entry.Number = newNumber("OUT")
		}

		id, err := tx.InsertOutward(ctx, entry)
		if err != nil {
			return err
		}
		outwardID = id

		productIDs := make([]int64, 0, len(items))
		for _, item := range items {
			item.OutwardID = id
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			productIDs = append(productIDs, item.ProductID)
		}
		for _, p := range productIDs {
			if err := s.guardStock(ctx, tx, p); err != nil {
				return err
			}
		}
		if input.PurchaseID != nil {
			if err := tx.MarkPurchaseOutwarded(ctx, *input.PurchaseID); err != nil {
				return fmt.Errorf("purchase %d: %w", *input.PurchaseID, err)
			}
		}
		_, err = tx.ResyncProducts(ctx, productIDs)
		return err
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil && !errors.Is(err, shared.ErrIdempotencyConflict) {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return OutwardEntry{}, err
	}

	s.afterMutation(ctx, "create", outwardID, map[string]any{"department_id": input.DepartmentID})
	return s.repo.Get(ctx, outwardID)
}

// UpdateOutward replaces the entry content wholesale and revalidates
// the net stock effect. The consumed flag on a previously linked
// purchase stays set; linking a new purchase sets its flag too.
func (s *Service) UpdateOutward(ctx context.Context, id int64, input OutwardInput) (OutwardEntry, error) {
	if id <= 0 {
		return OutwardEntry{}, fmt.Errorf("outward: invalid id: %w", shared.ErrValidation)
	}
	if err := validateInput(input); err != nil {
		return OutwardEntry{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetOutward(ctx, id)
		if err != nil {
			return err
		}
		oldProducts, err := tx.ItemProductIDs(ctx, id)
		if err != nil {
			return err
		}

		entry, items, err := buildEntry(ctx, tx, input)
		if err != nil {
			return err
		}
		entry.ID = id
		entry.Number = existing.Number
		if input.Number != "" {
			entry.Number = input.Number
		}

		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		affected := map[int64]struct{}{}
		for _, p := range oldProducts {
			affected[p] = struct{}{}
		}
		for _, item := range items {
			item.OutwardID = id
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			affected[item.ProductID] = struct{}{}
		}
		if err := tx.UpdateOutward(ctx, entry); err != nil {
			return err
		}
		if input.PurchaseID != nil {
			if err := tx.MarkPurchaseOutwarded(ctx, *input.PurchaseID); err != nil {
				return fmt.Errorf("purchase %d: %w", *input.PurchaseID, err)
			}
		}

		ids := make([]int64, 0, len(affected))
		for p := range affected {
			if err := s.guardStock(ctx, tx, p); err != nil {
				return err
			}
			ids = append(ids, p)
		}
		_, err = tx.ResyncProducts(ctx, ids)
		return err
	})
	if err != nil {
		return OutwardEntry{}, err
	}

	s.afterMutation(ctx, "update", id, nil)
	return s.repo.Get(ctx, id)
}

// DeleteOutward reverses an issue. Stock can only grow here so no
// negative guard is needed.
func (s *Service) DeleteOutward(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("outward: invalid id: %w", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOutward(ctx, id); err != nil {
			return err
		}
		products, err := tx.ItemProductIDs(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteOutward(ctx, id); err != nil {
			return err
		}
		_, err = tx.ResyncProducts(ctx, products)
		return err
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, "delete", id, nil)
	return nil
}

func (s *Service) guardStock(ctx context.Context, tx TxRepository, productID int64) error {
	if s.allowNeg {
		return nil
	}
	live, err := tx.LiveStock(ctx, productID)
	if err != nil {
		return err
	}
	if live < -qtyEpsilon {
		return fmt.Errorf("product %d would hold %.3f: %w", productID, live, shared.ErrInsufficientStock)
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context, op string, id int64, meta map[string]any) {
	s.metrics.CountMutation("outward", op)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   op,
			Entity:   "outward",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
			At:       time.Now(),
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}

// buildEntry snapshots item costs and computes the entry total.
func buildEntry(ctx context.Context, tx TxRepository, input OutwardInput) (OutwardEntry, []OutwardItem, error) {
	entry := OutwardEntry{
		Number:       input.Number,
		DepartmentID: input.DepartmentID,
		PurchaseID:   input.PurchaseID,
		OutwardDate:  input.OutwardDate,
		Note:         input.Note,
	}
	if entry.OutwardDate.IsZero() {
		entry.OutwardDate = time.Now()
	}

	var items []OutwardItem
	for _, line := range input.Items {
		// The lookup doubles as the product existence check, so an
		// explicit cost still rejects unknown products.
		cost, err := tx.ProductPrice(ctx, line.ProductID)
		if err != nil {
			return OutwardEntry{}, nil, fmt.Errorf("product %d: %w", line.ProductID, err)
		}
		if line.CostAtTime != nil {
			cost = *line.CostAtTime
		}
		item := OutwardItem{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			CostAtTime: cost,
			LineTotal:  line.Quantity * cost,
		}
		items = append(items, item)
		entry.Total += item.LineTotal
	}
	return entry, items, nil
}

func validateInput(input OutwardInput) error {
	if input.DepartmentID <= 0 {
		return fmt.Errorf("outward: department required: %w", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("outward: at least one item is required: %w", shared.ErrValidation)
	}
	for _, line := range input.Items {
		if line.ProductID <= 0 {
			return fmt.Errorf("outward: item product required: %w", shared.ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("outward: item quantity must be positive: %w", shared.ErrValidation)
		}
		if line.CostAtTime != nil && *line.CostAtTime < 0 {
			return fmt.Errorf("outward: item cost must be >= 0: %w", shared.ErrValidation)
		}
	}
	return nil
}

func newNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
