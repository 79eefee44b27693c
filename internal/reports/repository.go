package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/ledger"
)

// Repository runs the read-only aggregate queries behind reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Products returns every product with its report attributes.
func (r *Repository) Products(ctx context.Context) ([]ReportProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.unit, COALESCE(c.name, ''), p.reorder_level, p.initial_quantity
		   FROM products p
		   LEFT JOIN categories c ON c.id = p.category_id
		  ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []ReportProduct
	for rows.Next() {
		var p ReportProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.CategoryName, &p.ReorderLevel, &p.Initial); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const allMovementsQuery = `
SELECT product_id, kind, qty, moved_at FROM (
	SELECT pi.product_id, 'INWARD' AS kind, pi.quantity AS qty, p.invoice_date AS moved_at
	  FROM purchase_items pi
	  JOIN purchases p ON p.id = pi.purchase_id
	UNION ALL
	SELECT oi.product_id, 'OUTWARD', oi.quantity, o.outward_date
	  FROM outward_items oi
	  JOIN outwards o ON o.id = oi.outward_id
	UNION ALL
	SELECT sa.product_id, 'ADJUSTMENT', sa.delta, sa.adjusted_at
	  FROM stock_adjustments sa
) m ORDER BY moved_at`

// AllMovements loads the full movement history grouped by product.
func (r *Repository) AllMovements(ctx context.Context) (map[int64][]ledger.Movement, error) {
	rows, err := r.pool.Query(ctx, allMovementsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make(map[int64][]ledger.Movement)
	for rows.Next() {
		var (
			productID int64
			kind      string
			qty       float64
			at        time.Time
		)
		if err := rows.Scan(&productID, &kind, &qty, &at); err != nil {
			return nil, err
		}
		movements[productID] = append(movements[productID], ledger.Movement{
			Kind: ledger.MovementKind(kind), Qty: qty, At: at,
		})
	}
	return movements, rows.Err()
}

// Consumption aggregates issued quantity and value per department for
// the window. Zero times leave the window unbounded on that side.
func (r *Repository) Consumption(ctx context.Context, from, to time.Time) ([]ConsumptionRow, error) {
	query := `
SELECT o.department_id, COALESCE(d.name, ''), SUM(oi.quantity), SUM(oi.line_total)
  FROM outward_items oi
  JOIN outwards o ON o.id = oi.outward_id
  LEFT JOIN departments d ON d.id = o.department_id
 WHERE ($1::timestamptz IS NULL OR o.outward_date >= $1)
   AND ($2::timestamptz IS NULL OR o.outward_date <= $2)
 GROUP BY o.department_id, d.name
 ORDER BY SUM(oi.line_total) DESC`

	rows, err := r.pool.Query(ctx, query, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConsumptionRow
	for rows.Next() {
		var row ConsumptionRow
		if err := rows.Scan(&row.DepartmentID, &row.DepartmentName, &row.Quantity, &row.Value); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// VendorName resolves a vendor's display name; deleted vendors fall
// back to a placeholder so old statements stay renderable.
func (r *Repository) VendorName(ctx context.Context, vendorID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM vendors WHERE id = $1`, vendorID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "(deleted vendor)", nil
	}
	return name, err
}

// VendorHasActivity reports whether the vendor has any purchases.
func (r *Repository) VendorHasActivity(ctx context.Context, vendorID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM purchases WHERE vendor_id = $1)
		     OR EXISTS(SELECT 1 FROM vendors WHERE id = $1)`, vendorID).Scan(&exists)
	return exists, err
}

// VendorEntries loads invoice and payment rows for one vendor, oldest
// first, without running balances.
func (r *Repository) VendorEntries(ctx context.Context, vendorID int64) ([]VendorLedgerEntry, error) {
	query := `
SELECT kind, number, at, debit, credit FROM (
	SELECT 'INVOICE' AS kind, p.number, p.invoice_date AS at, p.total AS debit, 0::float8 AS credit
	  FROM purchases p WHERE p.vendor_id = $1
	UNION ALL
	SELECT 'PAYMENT', p.number, vp.paid_at, 0, vp.amount
	  FROM vendor_payments vp
	  JOIN purchases p ON p.id = vp.purchase_id
	 WHERE vp.vendor_id = $1
) e ORDER BY at, kind`

	rows, err := r.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []VendorLedgerEntry
	for rows.Next() {
		var e VendorLedgerEntry
		if err := rows.Scan(&e.Kind, &e.Number, &e.At, &e.Debit, &e.Credit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VendorBalances aggregates invoiced and paid totals per vendor over
// the whole purchase ledger.
func (r *Repository) VendorBalances(ctx context.Context) ([]VendorBalanceRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.vendor_id, COALESCE(v.name, '(deleted vendor)'),
		        COALESCE(SUM(p.total), 0), COALESCE(SUM(p.paid_amount), 0)
		   FROM purchases p
		   LEFT JOIN vendors v ON v.id = p.vendor_id
		  GROUP BY p.vendor_id, v.name
		  ORDER BY COALESCE(SUM(p.total), 0) - COALESCE(SUM(p.paid_amount), 0) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []VendorBalanceRow
	for rows.Next() {
		var row VendorBalanceRow
		if err := rows.Scan(&row.VendorID, &row.VendorName, &row.TotalInvoiced, &row.TotalPaid); err != nil {
			return nil, err
		}
		row.Outstanding = row.TotalInvoiced - row.TotalPaid
		result = append(result, row)
	}
	return result, rows.Err()
}

// LowStock returns products whose cached quantity is at or below the
// reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, unit, quantity, reorder_level
		   FROM products
		  WHERE reorder_level > 0 AND quantity <= reorder_level
		  ORDER BY quantity / NULLIF(reorder_level, 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LowStockRow
	for rows.Next() {
		var row LowStockRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.Unit, &row.Quantity, &row.ReorderLevel); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
