package purchasing

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
	List(ctx context.Context, filters ListFilters) ([]PurchaseInvoice, int, error)
	Get(ctx context.Context, id int64) (PurchaseInvoice, error)
	ListPayments(ctx context.Context, purchaseID int64) ([]VendorPayment, error)
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

// Service coordinates purchase and payment operations.
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

func (s *Service) List(ctx context.Context, filters ListFilters) ([]PurchaseInvoice, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (PurchaseInvoice, error) {
	if id <= 0 {
		return PurchaseInvoice{}, fmt.Errorf("purchasing: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, purchaseID int64) ([]VendorPayment, error) {
	if purchaseID <= 0 {
		return nil, fmt.Errorf("purchasing: invalid purchase id: %w", shared.ErrValidation)
	}
	return s.repo.ListPayments(ctx, purchaseID)
}

// RecordPurchase posts a new purchase invoice. Each item becomes an
// inward ledger movement and the product's purchase price follows the
// latest recorded unit price.
func (s *Service) RecordPurchase(ctx context.Context, input PurchaseInput) (PurchaseInvoice, error) {
	if err := validateInput(input); err != nil {
		return PurchaseInvoice{}, err
	}
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "purchasing"); err != nil {
			return PurchaseInvoice{}, err
		}
	}

	var purchaseID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, items, err := buildInvoice(ctx, tx, input)
		if err != nil {
			return err
		}
		inv.PaymentStatus = PaymentStatusUnpaid
		if inv.Number == "" {
			inv.Number = newNumber("PI")
		}

		id, err := tx.InsertPurchase(ctx, inv)
		if err != nil {
			return err
		}
		purchaseID = id

		productIDs := make([]int64, 0, len(items))
		for _, item := range items {
			item.PurchaseID = id
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			if err := tx.BumpProductPrice(ctx, item.ProductID, item.UnitPrice); err != nil {
				return err
			}
			productIDs = append(productIDs, item.ProductID)
		}

		_, err = tx.ResyncProducts(ctx, productIDs)
		return err
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil && !errors.Is(err, shared.ErrIdempotencyConflict) {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return PurchaseInvoice{}, err
	}

	s.afterMutation(ctx, "purchase", "create", purchaseID, map[string]any{"vendor_id": input.VendorID})
	return s.repo.Get(ctx, purchaseID)
}

// UpdatePurchase replaces the invoice content wholesale. The payment
// status is recomputed against the amount already paid, and reducing
// quantities is rejected when linked outwards would take stock negative.
func (s *Service) UpdatePurchase(ctx context.Context, id int64, input PurchaseInput) (PurchaseInvoice, error) {
	if id <= 0 {
		return PurchaseInvoice{}, fmt.Errorf("purchasing: invalid id: %w", shared.ErrValidation)
	}
	if err := validateInput(input); err != nil {
		return PurchaseInvoice{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPurchase(ctx, id)
		if err != nil {
			return err
		}
		oldProducts, err := tx.ItemProductIDs(ctx, id)
		if err != nil {
			return err
		}

		inv, items, err := buildInvoice(ctx, tx, input)
		if err != nil {
			return err
		}
		if existing.PaidAmount > inv.Total+1e-6 {
			return fmt.Errorf("paid %.2f exceeds new total %.2f: %w", existing.PaidAmount, inv.Total, shared.ErrOverpayment)
		}

		inv.ID = id
		inv.Number = existing.Number
		if input.Number != "" {
			inv.Number = input.Number
		}
		inv.PaymentStatus = DerivePaymentStatus(inv.Total, existing.PaidAmount)

		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		affected := map[int64]struct{}{}
		for _, p := range oldProducts {
			affected[p] = struct{}{}
		}
		for _, item := range items {
			item.PurchaseID = id
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			if err := tx.BumpProductPrice(ctx, item.ProductID, item.UnitPrice); err != nil {
				return err
			}
			affected[item.ProductID] = struct{}{}
		}
		if err := tx.UpdatePurchase(ctx, inv); err != nil {
			return err
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
		return PurchaseInvoice{}, err
	}

	s.afterMutation(ctx, "purchase", "update", id, nil)
	return s.repo.Get(ctx, id)
}

// DeletePurchase removes the invoice, its items and its payments. A
// purchase already linked to outward entries cannot be removed.
func (s *Service) DeletePurchase(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("purchasing: invalid id: %w", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetPurchase(ctx, id); err != nil {
			return err
		}
		linked, err := tx.HasOutwards(ctx, id)
		if err != nil {
			return err
		}
		if linked {
			return ErrOutwardedLocked
		}
		products, err := tx.ItemProductIDs(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeletePaymentsByPurchase(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		if err := tx.DeletePurchase(ctx, id); err != nil {
			return err
		}
		for _, p := range products {
			if err := s.guardStock(ctx, tx, p); err != nil {
				return err
			}
		}
		_, err = tx.ResyncProducts(ctx, products)
		return err
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, "purchase", "delete", id, nil)
	return nil
}

// RecordPayment posts a vendor payment against one invoice. Payments
// beyond the invoice total are rejected.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (VendorPayment, error) {
	if input.PurchaseID <= 0 {
		return VendorPayment{}, fmt.Errorf("purchasing: purchase required: %w", shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return VendorPayment{}, fmt.Errorf("purchasing: amount must be positive: %w", shared.ErrValidation)
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = time.Now()
	}

	payment := VendorPayment{
		PurchaseID: input.PurchaseID,
		Amount:     input.Amount,
		PaidAt:     input.PaidAt,
		Method:     input.Method,
		Note:       input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetPurchase(ctx, input.PurchaseID)
		if err != nil {
			return err
		}
		if inv.PaidAmount+input.Amount > inv.Total+1e-6 {
			return fmt.Errorf("payment %.2f exceeds outstanding %.2f: %w",
				input.Amount, inv.Total-inv.PaidAmount, shared.ErrOverpayment)
		}
		payment.VendorID = inv.VendorID
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		_, err = tx.ResyncPayment(ctx, input.PurchaseID)
		return err
	})
	if err != nil {
		return VendorPayment{}, err
	}

	s.afterMutation(ctx, "payment", "create", payment.ID, map[string]any{"purchase_id": input.PurchaseID, "amount": input.Amount})
	return payment, nil
}

// DeletePayment reverses a recorded payment and re-derives the invoice
// status.
func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("purchasing: invalid payment id: %w", shared.ErrValidation)
	}

	var purchaseID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		purchaseID = payment.PurchaseID
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}
		_, err = tx.ResyncPayment(ctx, purchaseID)
		return err
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, "payment", "delete", id, map[string]any{"purchase_id": purchaseID})
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

func (s *Service) afterMutation(ctx context.Context, entity, op string, id int64, meta map[string]any) {
	s.metrics.CountMutation(entity, op)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   op,
			Entity:   entity,
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
			At:       time.Now(),
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}

// buildInvoice checks the vendor and product references, resolves item
// GST rates, and computes line totals and the tax split for the header.
func buildInvoice(ctx context.Context, tx TxRepository, input PurchaseInput) (PurchaseInvoice, []PurchaseItem, error) {
	ok, err := tx.VendorExists(ctx, input.VendorID)
	if err != nil {
		return PurchaseInvoice{}, nil, err
	}
	if !ok {
		return PurchaseInvoice{}, nil, fmt.Errorf("purchasing: vendor %d: %w", input.VendorID, shared.ErrNotFound)
	}

	inv := PurchaseInvoice{
		Number:      input.Number,
		VendorID:    input.VendorID,
		InvoiceDate: input.InvoiceDate,
		GSTType:     input.GSTType,
		Note:        input.Note,
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = time.Now()
	}
	if inv.GSTType == "" {
		inv.GSTType = GSTIntraState
	}

	var items []PurchaseItem
	var subtotal, gstAmount float64
	for _, line := range input.Items {
		// The lookup doubles as the product existence check, so an
		// explicit override still rejects unknown products.
		rate, err := tx.ProductGSTRate(ctx, line.ProductID)
		if err != nil {
			return PurchaseInvoice{}, nil, fmt.Errorf("product %d: %w", line.ProductID, err)
		}
		if line.GSTRate != nil {
			rate = *line.GSTRate
		}
		lineSubtotal := line.Quantity * line.UnitPrice
		lineGST := lineSubtotal * rate / 100
		items = append(items, PurchaseItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			GSTRate:   rate,
			LineTotal: lineSubtotal + lineGST,
		})
		subtotal += lineSubtotal
		gstAmount += lineGST
	}

	inv.Subtotal = subtotal
	if inv.GSTType == GSTInterState {
		inv.IGST = gstAmount
	} else {
		inv.CGST = gstAmount / 2
		inv.SGST = gstAmount / 2
	}
	inv.Total = subtotal + gstAmount
	return inv, items, nil
}

func validateInput(input PurchaseInput) error {
	if input.VendorID <= 0 {
		return fmt.Errorf("purchasing: vendor required: %w", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return ErrNoItems
	}
	if input.GSTType != "" && input.GSTType != GSTIntraState && input.GSTType != GSTInterState {
		return fmt.Errorf("purchasing: unknown gst type %q: %w", input.GSTType, shared.ErrValidation)
	}
	for _, line := range input.Items {
		if line.ProductID <= 0 {
			return fmt.Errorf("purchasing: item product required: %w", shared.ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("purchasing: item quantity must be positive: %w", shared.ErrValidation)
		}
		if line.UnitPrice < 0 {
			return fmt.Errorf("purchasing: item price must be >= 0: %w", shared.ErrValidation)
		}
		if line.GSTRate != nil && (*line.GSTRate < 0 || *line.GSTRate > 100) {
			return fmt.Errorf("purchasing: gst rate out of range: %w", shared.ErrValidation)
		}
	}
	return nil
}

func newNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
