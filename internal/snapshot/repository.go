package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and writes the full persisted state. Restore
// replaces every collection inside one serializable transaction, so a
// failed import leaves the previous state untouched.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Dump reads every collection into a State.
func (r *Repository) Dump(ctx context.Context) (State, error) {
	var state State
	var err error

	if state.Categories, err = r.categories(ctx); err != nil {
		return State{}, err
	}
	if state.Vendors, err = r.vendors(ctx); err != nil {
		return State{}, err
	}
	if state.Departments, err = r.departments(ctx); err != nil {
		return State{}, err
	}
	if state.Products, err = r.products(ctx); err != nil {
		return State{}, err
	}
	if state.Purchases, err = r.purchases(ctx); err != nil {
		return State{}, err
	}
	if state.Payments, err = r.payments(ctx); err != nil {
		return State{}, err
	}
	if state.Outwards, err = r.outwards(ctx); err != nil {
		return State{}, err
	}
	if state.Adjustments, err = r.adjustments(ctx); err != nil {
		return State{}, err
	}
	return state, nil
}

func (r *Repository) categories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) vendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, COALESCE(phone, ''), COALESCE(address, ''), COALESCE(gstin, '') FROM vendors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Vendor{}
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Phone, &v.Address, &v.GSTIN); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) departments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM departments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Department{}
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) products(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, unit, category_id, vendor_id, warehouse_id, purchase_price, gst_rate,
		        reorder_level, initial_quantity, quantity
		   FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.CategoryID, &p.VendorID, &p.WarehouseID,
			&p.PurchasePrice, &p.GSTRate, &p.ReorderLevel, &p.InitialQuantity, &p.Quantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) purchases(ctx context.Context) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, vendor_id, invoice_date, gst_type, subtotal, cgst, sgst, igst, total,
		        paid_amount, payment_status, is_outwarded, COALESCE(note, '')
		   FROM purchases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Purchase{}
	index := map[int64]int{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.Number, &p.VendorID, &p.InvoiceDate, &p.GSTType, &p.Subtotal,
			&p.CGST, &p.SGST, &p.IGST, &p.Total, &p.PaidAmount, &p.PaymentStatus, &p.IsOutwarded, &p.Note); err != nil {
			return nil, err
		}
		p.Items = []PurchaseItem{}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT id, purchase_id, product_id, quantity, unit_price, gst_rate, line_total
		   FROM purchase_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item PurchaseItem
		var purchaseID int64
		if err := itemRows.Scan(&item.ID, &purchaseID, &item.ProductID, &item.Quantity,
			&item.UnitPrice, &item.GSTRate, &item.LineTotal); err != nil {
			return nil, err
		}
		if i, ok := index[purchaseID]; ok {
			out[i].Items = append(out[i].Items, item)
		}
	}
	return out, itemRows.Err()
}

func (r *Repository) payments(ctx context.Context) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, purchase_id, vendor_id, amount, paid_at, COALESCE(method, ''), COALESCE(note, '')
		   FROM vendor_payments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.PurchaseID, &p.VendorID, &p.Amount, &p.PaidAt, &p.Method, &p.Note); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) outwards(ctx context.Context) ([]Outward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, department_id, purchase_id, outward_date, total, COALESCE(note, '')
		   FROM outwards ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Outward{}
	index := map[int64]int{}
	for rows.Next() {
		var o Outward
		if err := rows.Scan(&o.ID, &o.Number, &o.DepartmentID, &o.PurchaseID, &o.OutwardDate, &o.Total, &o.Note); err != nil {
			return nil, err
		}
		o.Items = []OutwardItem{}
		index[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT id, outward_id, product_id, quantity, cost_at_time, line_total FROM outward_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OutwardItem
		var outwardID int64
		if err := itemRows.Scan(&item.ID, &outwardID, &item.ProductID, &item.Quantity, &item.CostAtTime, &item.LineTotal); err != nil {
			return nil, err
		}
		if i, ok := index[outwardID]; ok {
			out[i].Items = append(out[i].Items, item)
		}
	}
	return out, itemRows.Err()
}

func (r *Repository) adjustments(ctx context.Context) ([]Adjustment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, delta, COALESCE(reason, ''), adjusted_at FROM stock_adjustments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Adjustment{}
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Delta, &a.Reason, &a.AdjustedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Restore replaces all collections with the supplied state.
func (r *Repository) Restore(ctx context.Context, state State) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`TRUNCATE stock_adjustments, outward_items, outwards, vendor_payments, purchase_items, purchases,
		          products, departments, vendors, categories RESTART IDENTITY CASCADE`); err != nil {
		return err
	}

	for _, c := range state.Categories {
		if _, err := tx.Exec(ctx,
			`INSERT INTO categories (id, name, created_at) VALUES ($1, $2, NOW())`, c.ID, c.Name); err != nil {
			return err
		}
	}
	for _, v := range state.Vendors {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vendors (id, name, phone, address, gstin, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())`, v.ID, v.Name, v.Phone, v.Address, v.GSTIN); err != nil {
			return err
		}
	}
	for _, d := range state.Departments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO departments (id, name, created_at) VALUES ($1, $2, NOW())`, d.ID, d.Name); err != nil {
			return err
		}
	}
	for _, p := range state.Products {
		if _, err := tx.Exec(ctx,
			`INSERT INTO products (id, name, unit, category_id, vendor_id, warehouse_id, purchase_price,
			                       gst_rate, reorder_level, initial_quantity, quantity, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
			p.ID, p.Name, p.Unit, p.CategoryID, p.VendorID, p.WarehouseID, p.PurchasePrice,
			p.GSTRate, p.ReorderLevel, p.InitialQuantity, p.Quantity); err != nil {
			return err
		}
	}
	for _, p := range state.Purchases {
		if _, err := tx.Exec(ctx,
			`INSERT INTO purchases (id, number, vendor_id, invoice_date, gst_type, subtotal, cgst, sgst, igst,
			                        total, paid_amount, payment_status, is_outwarded, note, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())`,
			p.ID, p.Number, p.VendorID, p.InvoiceDate, p.GSTType, p.Subtotal, p.CGST, p.SGST, p.IGST,
			p.Total, p.PaidAmount, p.PaymentStatus, p.IsOutwarded, p.Note); err != nil {
			return err
		}
		for _, item := range p.Items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO purchase_items (id, purchase_id, product_id, quantity, unit_price, gst_rate, line_total)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				item.ID, p.ID, item.ProductID, item.Quantity, item.UnitPrice, item.GSTRate, item.LineTotal); err != nil {
				return err
			}
		}
	}
	for _, p := range state.Payments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vendor_payments (id, purchase_id, vendor_id, amount, paid_at, method, note, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
			p.ID, p.PurchaseID, p.VendorID, p.Amount, p.PaidAt, p.Method, p.Note); err != nil {
			return err
		}
	}
	for _, o := range state.Outwards {
		if _, err := tx.Exec(ctx,
			`INSERT INTO outwards (id, number, department_id, purchase_id, outward_date, total, note, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
			o.ID, o.Number, o.DepartmentID, o.PurchaseID, o.OutwardDate, o.Total, o.Note); err != nil {
			return err
		}
		for _, item := range o.Items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO outward_items (id, outward_id, product_id, quantity, cost_at_time, line_total)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				item.ID, o.ID, item.ProductID, item.Quantity, item.CostAtTime, item.LineTotal); err != nil {
				return err
			}
		}
	}
	for _, a := range state.Adjustments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO stock_adjustments (id, product_id, delta, reason, adjusted_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())`,
			a.ID, a.ProductID, a.Delta, a.Reason, a.AdjustedAt); err != nil {
			return err
		}
	}

	for _, table := range []string{
		"categories", "vendors", "departments", "products", "purchases",
		"purchase_items", "vendor_payments", "outwards", "outward_items", "stock_adjustments",
	} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))`,
			table, table)); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
