package purchasing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Repository persists purchases, items and vendor payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetPurchase(ctx context.Context, id int64) (PurchaseInvoice, error)
	InsertPurchase(ctx context.Context, inv PurchaseInvoice) (int64, error)
	UpdatePurchase(ctx context.Context, inv PurchaseInvoice) error
	DeletePurchase(ctx context.Context, id int64) error
	InsertItem(ctx context.Context, item PurchaseItem) error
	DeleteItems(ctx context.Context, purchaseID int64) error
	ItemProductIDs(ctx context.Context, purchaseID int64) ([]int64, error)
	VendorExists(ctx context.Context, vendorID int64) (bool, error)
	BumpProductPrice(ctx context.Context, productID int64, price float64) error
	ProductGSTRate(ctx context.Context, productID int64) (float64, error)
	InsertPayment(ctx context.Context, payment VendorPayment) (int64, error)
	GetPayment(ctx context.Context, id int64) (VendorPayment, error)
	DeletePayment(ctx context.Context, id int64) error
	DeletePaymentsByPurchase(ctx context.Context, purchaseID int64) error
	ResyncPayment(ctx context.Context, purchaseID int64) (float64, error)
	HasOutwards(ctx context.Context, purchaseID int64) (bool, error)
	LiveStock(ctx context.Context, productID int64) (float64, error)
	ResyncProducts(ctx context.Context, ids []int64) (int64, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type queries struct {
	db querier
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &queries{db: tx})
	})
}

const purchaseColumns = `p.id, p.number, p.vendor_id, COALESCE(v.name, ''), p.invoice_date, p.gst_type,
	p.subtotal, p.cgst, p.sgst, p.igst, p.total, p.paid_amount, p.payment_status, p.is_outwarded,
	p.note, p.created_at, p.updated_at`

// List returns purchase headers newest invoice first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]PurchaseInvoice, int, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases p LEFT JOIN vendors v ON v.id = p.vendor_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM purchases p WHERE 1=1`
	args := []any{}

	addFilter := func(clause string, value any) {
		args = append(args, value)
		placeholder := `$` + strconv.Itoa(len(args))
		query += ` AND ` + clause + placeholder
		countQuery += ` AND ` + clause + placeholder
	}
	if filters.VendorID > 0 {
		addFilter(`p.vendor_id = `, filters.VendorID)
	}
	if filters.Status != "" {
		addFilter(`p.payment_status = `, string(filters.Status))
	}
	if !filters.From.IsZero() {
		addFilter(`p.invoice_date >= `, filters.From)
	}
	if !filters.To.IsZero() {
		addFilter(`p.invoice_date <= `, filters.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY p.invoice_date DESC, p.id DESC`
	if filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, filters.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []PurchaseInvoice
	for rows.Next() {
		inv, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

// Get loads one purchase with its items and payments.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseInvoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases p LEFT JOIN vendors v ON v.id = p.vendor_id WHERE p.id = $1`, id)
	inv, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseInvoice{}, shared.ErrNotFound
	}
	if err != nil {
		return PurchaseInvoice{}, err
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT pi.id, pi.purchase_id, pi.product_id, COALESCE(pr.name, ''), pi.quantity, pi.unit_price, pi.gst_rate, pi.line_total
		   FROM purchase_items pi
		   LEFT JOIN products pr ON pr.id = pi.product_id
		  WHERE pi.purchase_id = $1 ORDER BY pi.id`, id)
	if err != nil {
		return PurchaseInvoice{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item PurchaseItem
		if err := itemRows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.GSTRate, &item.LineTotal); err != nil {
			return PurchaseInvoice{}, err
		}
		inv.Items = append(inv.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return PurchaseInvoice{}, err
	}
	return inv, nil
}

// ListPayments returns payments for one purchase, oldest first.
func (r *Repository) ListPayments(ctx context.Context, purchaseID int64) ([]VendorPayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, purchase_id, vendor_id, amount, paid_at, method, note, created_at
		   FROM vendor_payments WHERE purchase_id = $1 ORDER BY paid_at, id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []VendorPayment
	for rows.Next() {
		var p VendorPayment
		if err := rows.Scan(&p.ID, &p.PurchaseID, &p.VendorID, &p.Amount, &p.PaidAt, &p.Method, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPurchase(row pgx.Row) (PurchaseInvoice, error) {
	var inv PurchaseInvoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.VendorID, &inv.VendorName, &inv.InvoiceDate, &inv.GSTType,
		&inv.Subtotal, &inv.CGST, &inv.SGST, &inv.IGST, &inv.Total, &inv.PaidAmount, &inv.PaymentStatus,
		&inv.IsOutwarded, &inv.Note, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (q *queries) GetPurchase(ctx context.Context, id int64) (PurchaseInvoice, error) {
	row := q.db.QueryRow(ctx,
		`SELECT p.id, p.number, p.vendor_id, '', p.invoice_date, p.gst_type, p.subtotal, p.cgst, p.sgst, p.igst,
		        p.total, p.paid_amount, p.payment_status, p.is_outwarded, p.note, p.created_at, p.updated_at
		   FROM purchases p WHERE p.id = $1`, id)
	inv, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseInvoice{}, shared.ErrNotFound
	}
	return inv, err
}

func (q *queries) InsertPurchase(ctx context.Context, inv PurchaseInvoice) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO purchases (number, vendor_id, invoice_date, gst_type, subtotal, cgst, sgst, igst, total,
		                        paid_amount, payment_status, is_outwarded, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, FALSE, $11, NOW(), NOW()) RETURNING id`,
		inv.Number, inv.VendorID, inv.InvoiceDate, inv.GSTType, inv.Subtotal, inv.CGST, inv.SGST, inv.IGST,
		inv.Total, inv.PaymentStatus, inv.Note).Scan(&id)
	return id, err
}

func (q *queries) UpdatePurchase(ctx context.Context, inv PurchaseInvoice) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE purchases SET number = $1, vendor_id = $2, invoice_date = $3, gst_type = $4, subtotal = $5,
		        cgst = $6, sgst = $7, igst = $8, total = $9, payment_status = $10, note = $11, updated_at = NOW()
		  WHERE id = $12`,
		inv.Number, inv.VendorID, inv.InvoiceDate, inv.GSTType, inv.Subtotal, inv.CGST, inv.SGST, inv.IGST,
		inv.Total, inv.PaymentStatus, inv.Note, inv.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (q *queries) DeletePurchase(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (q *queries) InsertItem(ctx context.Context, item PurchaseItem) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_price, gst_rate, line_total)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.PurchaseID, item.ProductID, item.Quantity, item.UnitPrice, item.GSTRate, item.LineTotal)
	return err
}

func (q *queries) DeleteItems(ctx context.Context, purchaseID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM purchase_items WHERE purchase_id = $1`, purchaseID)
	return err
}

func (q *queries) ItemProductIDs(ctx context.Context, purchaseID int64) ([]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT product_id FROM purchase_items WHERE purchase_id = $1`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *queries) BumpProductPrice(ctx context.Context, productID int64, price float64) error {
	_, err := q.db.Exec(ctx,
		`UPDATE products SET purchase_price = $1, updated_at = NOW() WHERE id = $2`, price, productID)
	return err
}

func (q *queries) VendorExists(ctx context.Context, vendorID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`, vendorID).Scan(&exists)
	return exists, err
}

func (q *queries) ProductGSTRate(ctx context.Context, productID int64) (float64, error) {
	var rate float64
	err := q.db.QueryRow(ctx, `SELECT gst_rate FROM products WHERE id = $1`, productID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return rate, err
}

func (q *queries) InsertPayment(ctx context.Context, payment VendorPayment) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO vendor_payments (purchase_id, vendor_id, amount, paid_at, method, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		payment.PurchaseID, payment.VendorID, payment.Amount, payment.PaidAt, payment.Method, payment.Note, time.Now()).Scan(&id)
	return id, err
}

func (q *queries) GetPayment(ctx context.Context, id int64) (VendorPayment, error) {
	var p VendorPayment
	err := q.db.QueryRow(ctx,
		`SELECT id, purchase_id, vendor_id, amount, paid_at, method, note, created_at FROM vendor_payments WHERE id = $1`, id).
		Scan(&p.ID, &p.PurchaseID, &p.VendorID, &p.Amount, &p.PaidAt, &p.Method, &p.Note, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorPayment{}, shared.ErrNotFound
	}
	return p, err
}

func (q *queries) DeletePayment(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM vendor_payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (q *queries) DeletePaymentsByPurchase(ctx context.Context, purchaseID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM vendor_payments WHERE purchase_id = $1`, purchaseID)
	return err
}

// ResyncPayment rebuilds the cached paid amount and derived status of
// one purchase from its payments ledger and returns the new paid sum.
func (q *queries) ResyncPayment(ctx context.Context, purchaseID int64) (float64, error) {
	var total, paid float64
	err := q.db.QueryRow(ctx,
		`SELECT p.total, COALESCE((SELECT SUM(vp.amount) FROM vendor_payments vp WHERE vp.purchase_id = p.id), 0)
		   FROM purchases p WHERE p.id = $1`, purchaseID).Scan(&total, &paid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	_, err = q.db.Exec(ctx,
		`UPDATE purchases SET paid_amount = $1, payment_status = $2, updated_at = NOW() WHERE id = $3`,
		paid, DerivePaymentStatus(total, paid), purchaseID)
	return paid, err
}

func (q *queries) HasOutwards(ctx context.Context, purchaseID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM outwards WHERE purchase_id = $1)`, purchaseID).Scan(&exists)
	return exists, err
}

const liveStockQuery = `
SELECT pr.initial_quantity
       + COALESCE((SELECT SUM(pi.quantity) FROM purchase_items pi WHERE pi.product_id = pr.id), 0)
       - COALESCE((SELECT SUM(oi.quantity) FROM outward_items oi WHERE oi.product_id = pr.id), 0)
       + COALESCE((SELECT SUM(sa.delta) FROM stock_adjustments sa WHERE sa.product_id = pr.id), 0)
  FROM products pr WHERE pr.id = $1`

func (q *queries) LiveStock(ctx context.Context, productID int64) (float64, error) {
	var live float64
	err := q.db.QueryRow(ctx, liveStockQuery, productID).Scan(&live)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return live, err
}

const resyncQuery = `
WITH computed AS (
	SELECT pr.id,
	       pr.initial_quantity
	       + COALESCE((SELECT SUM(pi.quantity) FROM purchase_items pi WHERE pi.product_id = pr.id), 0)
	       - COALESCE((SELECT SUM(oi.quantity) FROM outward_items oi WHERE oi.product_id = pr.id), 0)
	       + COALESCE((SELECT SUM(sa.delta) FROM stock_adjustments sa WHERE sa.product_id = pr.id), 0) AS qty
	  FROM products pr
	 WHERE pr.id = ANY($1)
)
UPDATE products pr
   SET quantity = c.qty, updated_at = NOW()
  FROM computed c
 WHERE c.id = pr.id AND pr.quantity IS DISTINCT FROM c.qty`

func (q *queries) ResyncProducts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.db.Exec(ctx, resyncQuery, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
