package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockpilot/stockpilot/internal/ledger"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Products(ctx context.Context) ([]ReportProduct, error)
	AllMovements(ctx context.Context) (map[int64][]ledger.Movement, error)
	Consumption(ctx context.Context, from, to time.Time) ([]ConsumptionRow, error)
	VendorName(ctx context.Context, vendorID int64) (string, error)
	VendorHasActivity(ctx context.Context, vendorID int64) (bool, error)
	VendorEntries(ctx context.Context, vendorID int64) ([]VendorLedgerEntry, error)
	VendorBalances(ctx context.Context) ([]VendorBalanceRow, error)
	LowStock(ctx context.Context) ([]LowStockRow, error)
}

// Service derives reports from the ledgers, serving repeated requests
// from the versioned cache.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// StockSummary derives the windowed stock picture for every product.
func (s *Service) StockSummary(ctx context.Context, from, to time.Time) ([]StockSummaryRow, error) {
	key, err := s.cache.BuildKey(ctx, keyStockSummary(from, to))
	if err != nil {
		return nil, err
	}
	var rows []StockSummaryRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.buildStockSummary(ctx, from, to)
	})
	return rows, err
}

func (s *Service) buildStockSummary(ctx context.Context, from, to time.Time) ([]StockSummaryRow, error) {
	var (
		products  []ReportProduct
		movements map[int64][]ledger.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.repo.Products(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = s.repo.AllMovements(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start, end := ledger.DayWindow(from, to)
	rows := make([]StockSummaryRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, StockSummaryRow{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Unit:         p.Unit,
			CategoryName: p.CategoryName,
			ReorderLevel: p.ReorderLevel,
			ProductStock: ledger.Compute(p.Initial, movements[p.ID], start, end),
		})
	}
	return rows, nil
}

// Consumption aggregates issued stock per department for the window.
func (s *Service) Consumption(ctx context.Context, from, to time.Time) ([]ConsumptionRow, error) {
	key, err := s.cache.BuildKey(ctx, keyConsumption(from, to))
	if err != nil {
		return nil, err
	}
	var rows []ConsumptionRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.repo.Consumption(ctx, from, to)
	})
	return rows, err
}

// VendorLedger builds the dated statement for one vendor with running
// balances.
func (s *Service) VendorLedger(ctx context.Context, vendorID int64) (VendorLedger, error) {
	if vendorID <= 0 {
		return VendorLedger{}, fmt.Errorf("reports: invalid vendor id: %w", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, keyVendorLedger(vendorID))
	if err != nil {
		return VendorLedger{}, err
	}
	var result VendorLedger
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
		return s.buildVendorLedger(ctx, vendorID)
	})
	return result, err
}

func (s *Service) buildVendorLedger(ctx context.Context, vendorID int64) (VendorLedger, error) {
	known, err := s.repo.VendorHasActivity(ctx, vendorID)
	if err != nil {
		return VendorLedger{}, err
	}
	if !known {
		return VendorLedger{}, fmt.Errorf("vendor %d: %w", vendorID, shared.ErrNotFound)
	}

	result := VendorLedger{VendorID: vendorID}
	result.VendorName, err = s.repo.VendorName(ctx, vendorID)
	if err != nil {
		return VendorLedger{}, err
	}
	entries, err := s.repo.VendorEntries(ctx, vendorID)
	if err != nil {
		return VendorLedger{}, err
	}

	balance := 0.0
	for _, e := range entries {
		balance += e.Debit - e.Credit
		e.Balance = balance
		result.TotalInvoiced += e.Debit
		result.TotalPaid += e.Credit
		result.Entries = append(result.Entries, e)
	}
	result.Outstanding = balance
	return result, nil
}

// VendorBalances lists outstanding payables per vendor, highest first.
func (s *Service) VendorBalances(ctx context.Context) ([]VendorBalanceRow, error) {
	key, err := s.cache.BuildKey(ctx, keyVendorBalances())
	if err != nil {
		return nil, err
	}
	var rows []VendorBalanceRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.repo.VendorBalances(ctx)
	})
	return rows, err
}

// LowStock lists products at or under their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]LowStockRow, error) {
	key, err := s.cache.BuildKey(ctx, keyLowStock())
	if err != nil {
		return nil, err
	}
	var rows []LowStockRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.repo.LowStock(ctx)
	})
	return rows, err
}

// Warm fills the heaviest report caches, typically from a scheduled
// job right after the nightly reconciliation.
func (s *Service) Warm(ctx context.Context) error {
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if _, err := s.StockSummary(ctx, monthStart, now); err != nil {
		return err
	}
	if _, err := s.Consumption(ctx, monthStart, now); err != nil {
		return err
	}
	_, err := s.LowStock(ctx)
	return err
}
