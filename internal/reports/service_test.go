package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/stockpilot/stockpilot/internal/ledger"
)

type mockRepo struct {
	products      []ReportProduct
	movements     map[int64][]ledger.Movement
	consumption   []ConsumptionRow
	entries       []VendorLedgerEntry
	balances      []VendorBalanceRow
	lowStock      []LowStockRow
	vendorName    string
	summaryCalls  int
	consumpCalls  int
	ledgerCalls   int
	lowStockCalls int
}

func (m *mockRepo) Products(ctx context.Context) ([]ReportProduct, error) {
	m.summaryCalls++
	return m.products, nil
}

func (m *mockRepo) AllMovements(ctx context.Context) (map[int64][]ledger.Movement, error) {
	return m.movements, nil
}

func (m *mockRepo) Consumption(ctx context.Context, from, to time.Time) ([]ConsumptionRow, error) {
	m.consumpCalls++
	return m.consumption, nil
}

func (m *mockRepo) VendorName(ctx context.Context, vendorID int64) (string, error) {
	return m.vendorName, nil
}

func (m *mockRepo) VendorHasActivity(ctx context.Context, vendorID int64) (bool, error) {
	return true, nil
}

func (m *mockRepo) VendorEntries(ctx context.Context, vendorID int64) ([]VendorLedgerEntry, error) {
	m.ledgerCalls++
	return m.entries, nil
}

func (m *mockRepo) VendorBalances(ctx context.Context) ([]VendorBalanceRow, error) {
	return m.balances, nil
}

func (m *mockRepo) LowStock(ctx context.Context) ([]LowStockRow, error) {
	m.lowStockCalls++
	return m.lowStock, nil
}

func newTestService(t *testing.T, repo RepositoryPort) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStockSummaryCachesUntilBump(t *testing.T) {
	repo := &mockRepo{
		products: []ReportProduct{{ID: 1, Name: "Rice", Unit: "kg", Initial: 100}},
		movements: map[int64][]ledger.Movement{
			1: {
				{Kind: ledger.MovementInward, Qty: 40, At: date(2025, time.May, 10)},
				{Kind: ledger.MovementOutward, Qty: 25, At: date(2025, time.June, 5)},
			},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	from, to := date(2025, time.June, 1), date(2025, time.June, 30)
	rows, err := svc.StockSummary(ctx, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row got %d", len(rows))
	}
	if rows[0].MonthOpening != 140 {
		t.Fatalf("expected opening 140 got %.2f", rows[0].MonthOpening)
	}
	if rows[0].ClosingStock != 115 {
		t.Fatalf("expected closing 115 got %.2f", rows[0].ClosingStock)
	}
	if repo.summaryCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.summaryCalls)
	}

	// Second call should hit cache.
	if _, err := svc.StockSummary(ctx, from, to); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.summaryCalls != 1 {
		t.Fatalf("expected cached result, repo called %d times", repo.summaryCalls)
	}

	// Bumping the cache should trigger reload.
	if err := svc.cache.Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	if _, err := svc.StockSummary(ctx, from, to); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.summaryCalls != 2 {
		t.Fatalf("expected repo to refresh, calls %d", repo.summaryCalls)
	}
}

func TestVendorLedgerRunningBalance(t *testing.T) {
	repo := &mockRepo{
		vendorName: "Acme Traders",
		entries: []VendorLedgerEntry{
			{At: date(2025, time.May, 1), Kind: entryKindInvoice, Number: "PI-1", Debit: 500},
			{At: date(2025, time.May, 10), Kind: entryKindPayment, Number: "PI-1", Credit: 200},
			{At: date(2025, time.June, 1), Kind: entryKindInvoice, Number: "PI-2", Debit: 300},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	statement, err := svc.VendorLedger(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statement.VendorName != "Acme Traders" {
		t.Fatalf("unexpected vendor name %q", statement.VendorName)
	}
	balances := []float64{500, 300, 600}
	for i, want := range balances {
		if statement.Entries[i].Balance != want {
			t.Fatalf("entry %d balance %.2f want %.2f", i, statement.Entries[i].Balance, want)
		}
	}
	if statement.TotalInvoiced != 800 || statement.TotalPaid != 200 || statement.Outstanding != 600 {
		t.Fatalf("unexpected totals %#v", statement)
	}
}

func TestVendorBalances(t *testing.T) {
	repo := &mockRepo{
		balances: []VendorBalanceRow{
			{VendorID: 1, VendorName: "Acme Traders", TotalInvoiced: 800, TotalPaid: 200, Outstanding: 600},
			{VendorID: 2, VendorName: "(deleted vendor)", TotalInvoiced: 100, TotalPaid: 100},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	rows, err := svc.VendorBalances(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
	if rows[0].Outstanding != 600 {
		t.Fatalf("expected outstanding 600 got %.2f", rows[0].Outstanding)
	}
}

func TestVendorLedgerCSV(t *testing.T) {
	statement := VendorLedger{
		VendorName: "Acme Traders",
		Entries: []VendorLedgerEntry{
			{At: date(2025, time.May, 1), Kind: entryKindInvoice, Number: "PI-1", Debit: 12500.5, Balance: 12500.5},
		},
		TotalInvoiced: 12500.5,
		Outstanding:   12500.5,
	}
	var sb strings.Builder
	if err := WriteVendorLedgerCSV(&sb, statement); err != nil {
		t.Fatalf("csv error: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "2025-05-01,INVOICE,PI-1") {
		t.Fatalf("missing entry row in %q", out)
	}
	if !strings.Contains(out, `"12,500.50"`) {
		t.Fatalf("expected grouped money format in %q", out)
	}
}

func TestConsumptionAndLowStockCached(t *testing.T) {
	repo := &mockRepo{
		consumption: []ConsumptionRow{{DepartmentID: 1, DepartmentName: "Kitchen", Quantity: 12, Value: 480}},
		lowStock:    []LowStockRow{{ProductID: 1, ProductName: "Rice", Quantity: 2, ReorderLevel: 10}},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rows, err := svc.Consumption(ctx, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("consumption error: %v", err)
		}
		if len(rows) != 1 || rows[0].DepartmentName != "Kitchen" {
			t.Fatalf("unexpected consumption rows %#v", rows)
		}
	}
	if repo.consumpCalls != 1 {
		t.Fatalf("expected cached consumption, calls %d", repo.consumpCalls)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.LowStock(ctx); err != nil {
			t.Fatalf("low stock error: %v", err)
		}
	}
	if repo.lowStockCalls != 1 {
		t.Fatalf("expected cached low stock, calls %d", repo.lowStockCalls)
	}
}
