package outward

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Repository persists outward entries and their items.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetOutward(ctx context.Context, id int64) (OutwardEntry, error)
	InsertOutward(ctx context.Context, entry OutwardEntry) (int64, error)
	UpdateOutward(ctx context.Context, entry OutwardEntry) error
	DeleteOutward(ctx context.Context, id int64) error
	InsertItem(ctx context.Context, item OutwardItem) error
	DeleteItems(ctx context.Context, outwardID int64) error
	ItemProductIDs(ctx context.Context, outwardID int64) ([]int64, error)
	ProductPrice(ctx context.Context, productID int64) (float64, error)
	MarkPurchaseOutwarded(ctx context.Context, purchaseID int64) error
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

const outwardColumns = `o.id, o.number, o.department_id, COALESCE(d.name, ''), o.purchase_id, o.outward_date,
	o.total, o.note, o.created_at, o.updated_at`

// List returns outward headers newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]OutwardEntry, int, error) {
	query := `SELECT ` + outwardColumns + ` FROM outwards o LEFT JOIN departments d ON d.id = o.department_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM outwards o WHERE 1=1`
	args := []any{}

	addFilter := func(clause string, value any) {
		args = append(args, value)
		placeholder := `$` + strconv.Itoa(len(args))
		query += ` AND ` + clause + placeholder
		countQuery += ` AND ` + clause + placeholder
	}
	if filters.DepartmentID > 0 {
		addFilter(`o.department_id = `, filters.DepartmentID)
	}
	if !filters.From.IsZero() {
		addFilter(`o.outward_date >= `, filters.From)
	}
	if !filters.To.IsZero() {
		addFilter(`o.outward_date <= `, filters.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY o.outward_date DESC, o.id DESC`
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

	var items []OutwardEntry
	for rows.Next() {
		entry, err := scanOutward(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, entry)
	}
	return items, total, rows.Err()
}

// Get loads one outward with its items.
func (r *Repository) Get(ctx context.Context, id int64) (OutwardEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+outwardColumns+` FROM outwards o LEFT JOIN departments d ON d.id = o.department_id WHERE o.id = $1`, id)
	entry, err := scanOutward(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutwardEntry{}, shared.ErrNotFound
	}
	if err != nil {
		return OutwardEntry{}, err
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT oi.id, oi.outward_id, oi.product_id, COALESCE(pr.name, ''), oi.quantity, oi.cost_at_time, oi.line_total
		   FROM outward_items oi
		   LEFT JOIN products pr ON pr.id = oi.product_id
		  WHERE oi.outward_id = $1 ORDER BY oi.id`, id)
	if err != nil {
		return OutwardEntry{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item OutwardItem
		if err := itemRows.Scan(&item.ID, &item.OutwardID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.CostAtTime, &item.LineTotal); err != nil {
			return OutwardEntry{}, err
		}
		entry.Items = append(entry.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return OutwardEntry{}, err
	}
	return entry, nil
}

func scanOutward(row pgx.Row) (OutwardEntry, error) {
	var entry OutwardEntry
	err := row.Scan(&entry.ID, &entry.Number, &entry.DepartmentID, &entry.DepartmentName, &entry.PurchaseID,
		&entry.OutwardDate, &entry.Total, &entry.Note, &entry.CreatedAt, &entry.UpdatedAt)
	return entry, err
}

func (q *queries) GetOutward(ctx context.Context, id int64) (OutwardEntry, error) {
	row := q.db.QueryRow(ctx,
		`SELECT o.id, o.number, o.department_id, '', o.purchase_id, o.outward_date, o.total, o.note,
		        o.created_at, o.updated_at
		   FROM outwards o WHERE o.id = $1`, id)
	entry, err := scanOutward(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutwardEntry{}, shared.ErrNotFound
	}
	return entry, err
}

func (q *queries) InsertOutward(ctx context.Context, entry OutwardEntry) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO outwards (number, department_id, purchase_id, outward_date, total, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		entry.Number, entry.DepartmentID, entry.PurchaseID, entry.OutwardDate, entry.Total, entry.Note).Scan(&id)
	return id, err
}

func (q *queries) UpdateOutward(ctx context.Context, entry OutwardEntry) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE outwards SET number = $1, department_id = $2, purchase_id = $3, outward_date = $4, total = $5,
		        note = $6, updated_at = NOW()
		  WHERE id = $7`,
		entry.Number, entry.DepartmentID, entry.PurchaseID, entry.OutwardDate, entry.Total, entry.Note, entry.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteOutward(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM outwards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (q *queries) InsertItem(ctx context.Context, item OutwardItem) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO outward_items (outward_id, product_id, quantity, cost_at_time, line_total)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.OutwardID, item.ProductID, item.Quantity, item.CostAtTime, item.LineTotal)
	return err
}

func (q *queries) DeleteItems(ctx context.Context, outwardID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM outward_items WHERE outward_id = $1`, outwardID)
	return err
}

func (q *queries) ItemProductIDs(ctx context.Context, outwardID int64) ([]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT product_id FROM outward_items WHERE outward_id = $1`, outwardID)
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

func (q *queries) ProductPrice(ctx context.Context, productID int64) (float64, error) {
	var price float64
	err := q.db.QueryRow(ctx, `SELECT purchase_price FROM products WHERE id = $1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return price, err
}

// MarkPurchaseOutwarded sets the one-way consumed flag on a purchase.
func (q *queries) MarkPurchaseOutwarded(ctx context.Context, purchaseID int64) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE purchases SET is_outwarded = TRUE, updated_at = NOW() WHERE id = $1`, purchaseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
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
