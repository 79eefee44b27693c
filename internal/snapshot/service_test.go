package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/ledger"
)

type memoryRepo struct {
	state    State
	restores int
}

func (m *memoryRepo) Dump(ctx context.Context) (State, error) {
	return m.state, nil
}

func (m *memoryRepo) Restore(ctx context.Context, state State) error {
	m.state = state
	m.restores++
	return nil
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func fixtureState() State {
	purchaseID := int64(1)
	return State{
		Categories:  []Category{{ID: 1, Name: "Grains"}},
		Vendors:     []Vendor{{ID: 1, Name: "Acme Traders", GSTIN: "29ABCDE1234F1Z5"}},
		Departments: []Department{{ID: 1, Name: "Kitchen"}},
		Products: []Product{{
			ID: 1, Name: "Rice", Unit: "kg", PurchasePrice: 50, GSTRate: 5,
			ReorderLevel: 20, InitialQuantity: 100, Quantity: 125,
		}},
		Purchases: []Purchase{{
			ID: 1, Number: "PI-1", VendorID: 1, InvoiceDate: date(2025, time.May, 10),
			GSTType: "INTRA", Subtotal: 2000, CGST: 50, SGST: 50, Total: 2100,
			PaymentStatus: "UNPAID",
			Items: []PurchaseItem{{
				ID: 1, ProductID: 1, Quantity: 40, UnitPrice: 50, GSTRate: 5, LineTotal: 2100,
			}},
		}},
		Payments: []Payment{{ID: 1, PurchaseID: 1, VendorID: 1, Amount: 500, PaidAt: date(2025, time.May, 12)}},
		Outwards: []Outward{{
			ID: 1, Number: "OUT-1", DepartmentID: 1, PurchaseID: &purchaseID,
			OutwardDate: date(2025, time.June, 5), Total: 1250,
			Items: []OutwardItem{{ID: 1, ProductID: 1, Quantity: 25, CostAtTime: 50, LineTotal: 1250}},
		}},
		Adjustments: []Adjustment{{
			ID: 1, ProductID: 1, Delta: 10, Reason: "count correction", AdjustedAt: date(2025, time.June, 20),
		}},
	}
}

func movementsFor(state State, productID int64) []ledger.Movement {
	var moves []ledger.Movement
	for _, p := range state.Purchases {
		for _, item := range p.Items {
			if item.ProductID == productID {
				moves = append(moves, ledger.Movement{Kind: ledger.MovementInward, Qty: item.Quantity, At: p.InvoiceDate})
			}
		}
	}
	for _, o := range state.Outwards {
		for _, item := range o.Items {
			if item.ProductID == productID {
				moves = append(moves, ledger.Movement{Kind: ledger.MovementOutward, Qty: item.Quantity, At: o.OutwardDate})
			}
		}
	}
	for _, a := range state.Adjustments {
		if a.ProductID == productID {
			moves = append(moves, ledger.Movement{Kind: ledger.MovementAdjustment, Qty: a.Delta, At: a.AdjustedAt})
		}
	}
	return moves
}

func TestExportImportRoundTrip(t *testing.T) {
	repo := &memoryRepo{state: fixtureState()}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	doc, err := svc.Export(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)
	require.NotEmpty(t, doc.Checksum)

	// Simulate the document travelling as a file.
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded Document
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.NoError(t, svc.Import(ctx, decoded))
	require.Equal(t, 1, repo.restores)
	require.Equal(t, fixtureState(), repo.state)
}

func TestRoundTripPreservesDerivedStock(t *testing.T) {
	original := fixtureState()
	repo := &memoryRepo{state: original}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	doc, err := svc.Export(ctx)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded Document
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, svc.Import(ctx, decoded))

	start, end := ledger.DayWindow(date(2025, time.June, 1), date(2025, time.June, 30))
	before := ledger.Compute(original.Products[0].InitialQuantity, movementsFor(original, 1), start, end)
	after := ledger.Compute(repo.state.Products[0].InitialQuantity, movementsFor(repo.state, 1), start, end)
	require.Equal(t, before, after)
	require.Equal(t, 125.0, after.LiveStock)
	require.Equal(t, 140.0, after.MonthOpening)
	require.Equal(t, 125.0, after.ClosingStock)
}

func TestImportRejectsTamperedDocument(t *testing.T) {
	repo := &memoryRepo{state: fixtureState()}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	doc, err := svc.Export(ctx)
	require.NoError(t, err)
	doc.State.Products[0].InitialQuantity = 9999

	err = svc.Import(ctx, doc)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Zero(t, repo.restores)
}
