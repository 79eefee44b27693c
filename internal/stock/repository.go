package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpilot/stockpilot/internal/ledger"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Repository persists stock adjustments and rebuilds cached product
// quantities from the movement ledgers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	Baseline(ctx context.Context, productID int64) (float64, error)
	Movements(ctx context.Context, productID int64) ([]ledger.Movement, error)
	GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error)
	InsertAdjustment(ctx context.Context, adj StockAdjustment) (int64, error)
	UpdateAdjustment(ctx context.Context, adj StockAdjustment) error
	DeleteAdjustment(ctx context.Context, id int64) error
	ResyncProducts(ctx context.Context, ids []int64) (int64, error)
	ResyncAll(ctx context.Context) (int64, error)
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

func (r *Repository) Baseline(ctx context.Context, productID int64) (float64, error) {
	return (&queries{db: r.pool}).Baseline(ctx, productID)
}

func (r *Repository) Movements(ctx context.Context, productID int64) ([]ledger.Movement, error) {
	return (&queries{db: r.pool}).Movements(ctx, productID)
}

func (r *Repository) GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error) {
	return (&queries{db: r.pool}).GetAdjustment(ctx, id)
}

// ListAdjustments returns adjustments newest first, optionally scoped
// to one product.
func (r *Repository) ListAdjustments(ctx context.Context, productID int64, page, limit int) ([]StockAdjustment, int, error) {
	query := `SELECT id, product_id, delta, reason, adjusted_at, created_at FROM stock_adjustments`
	countQuery := `SELECT COUNT(*) FROM stock_adjustments`
	args := []any{}
	if productID > 0 {
		query += ` WHERE product_id = $1`
		countQuery += ` WHERE product_id = $1`
		args = append(args, productID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY adjusted_at DESC, id DESC`
	if limit > 0 {
		offset := (page - 1) * limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
		if productID > 0 {
			query += ` LIMIT $2 OFFSET $3`
		} else {
			query += ` LIMIT $1 OFFSET $2`
		}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []StockAdjustment
	for rows.Next() {
		var a StockAdjustment
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Delta, &a.Reason, &a.AdjustedAt, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (q *queries) Baseline(ctx context.Context, productID int64) (float64, error) {
	var baseline float64
	err := q.db.QueryRow(ctx, `SELECT initial_quantity FROM products WHERE id = $1`, productID).Scan(&baseline)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return baseline, err
}

const movementsQuery = `
SELECT kind, qty, moved_at FROM (
	SELECT 'INWARD' AS kind, pi.quantity AS qty, p.invoice_date AS moved_at
	  FROM purchase_items pi
	  JOIN purchases p ON p.id = pi.purchase_id
	 WHERE pi.product_id = $1
	UNION ALL
	SELECT 'OUTWARD', oi.quantity, o.outward_date
	  FROM outward_items oi
	  JOIN outwards o ON o.id = oi.outward_id
	 WHERE oi.product_id = $1
	UNION ALL
	SELECT 'ADJUSTMENT', sa.delta, sa.adjusted_at
	  FROM stock_adjustments sa
	 WHERE sa.product_id = $1
) m ORDER BY moved_at, kind`

// Movements returns the full movement history of a product across all
// three ledgers, oldest first.
func (q *queries) Movements(ctx context.Context, productID int64) ([]ledger.Movement, error) {
	rows, err := q.db.Query(ctx, movementsQuery, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []ledger.Movement
	for rows.Next() {
		var (
			kind string
			qty  float64
			at   time.Time
		)
		if err := rows.Scan(&kind, &qty, &at); err != nil {
			return nil, err
		}
		movements = append(movements, ledger.Movement{Kind: ledger.MovementKind(kind), Qty: qty, At: at})
	}
	return movements, rows.Err()
}

func (q *queries) GetAdjustment(ctx context.Context, id int64) (StockAdjustment, error) {
	var a StockAdjustment
	err := q.db.QueryRow(ctx,
		`SELECT id, product_id, delta, reason, adjusted_at, created_at FROM stock_adjustments WHERE id = $1`, id).
		Scan(&a.ID, &a.ProductID, &a.Delta, &a.Reason, &a.AdjustedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockAdjustment{}, shared.ErrNotFound
	}
	return a, err
}

func (q *queries) InsertAdjustment(ctx context.Context, adj StockAdjustment) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx,
		`INSERT INTO stock_adjustments (product_id, delta, reason, adjusted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		adj.ProductID, adj.Delta, adj.Reason, adj.AdjustedAt, adj.CreatedAt).Scan(&id)
	return id, err
}

func (q *queries) UpdateAdjustment(ctx context.Context, adj StockAdjustment) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE stock_adjustments SET delta = $1, reason = $2, adjusted_at = $3 WHERE id = $4`,
		adj.Delta, adj.Reason, adj.AdjustedAt, adj.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteAdjustment(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM stock_adjustments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const resyncQuery = `
WITH computed AS (
	SELECT pr.id,
	       pr.initial_quantity
	       + COALESCE((SELECT SUM(pi.quantity) FROM purchase_items pi WHERE pi.product_id = pr.id), 0)
	       - COALESCE((SELECT SUM(oi.quantity) FROM outward_items oi WHERE oi.product_id = pr.id), 0)
	       + COALESCE((SELECT SUM(sa.delta) FROM stock_adjustments sa WHERE sa.product_id = pr.id), 0) AS qty
	  FROM products pr
	 %s
)
UPDATE products pr
   SET quantity = c.qty, updated_at = NOW()
  FROM computed c
 WHERE c.id = pr.id AND pr.quantity IS DISTINCT FROM c.qty`

var (
	resyncScoped   = fmt.Sprintf(resyncQuery, `WHERE pr.id = ANY($1)`)
	resyncUnscoped = fmt.Sprintf(resyncQuery, ``)
)

// ResyncProducts rebuilds the cached quantity of the given products
// from their ledgers and reports how many rows actually changed.
func (q *queries) ResyncProducts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.db.Exec(ctx, resyncScoped, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResyncAll rebuilds cached quantities for every product.
func (q *queries) ResyncAll(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, resyncUnscoped)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
