package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/stockpilot/stockpilot/internal/masterdata/shared"
	"github.com/stockpilot/stockpilot/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, unit, category_id, vendor_id, warehouse_id, purchase_price, gst_rate, reorder_level, initial_quantity, quantity, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	addFilter := func(clause string, value any) {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		query += ` AND ` + clause + placeholder
		countQuery += ` AND ` + clause + placeholder
		args = append(args, value)
	}

	if filters.CategoryID != nil {
		addFilter(`category_id = `, *filters.CategoryID)
	}
	if filters.VendorID != nil {
		addFilter(`vendor_id = `, *filters.VendorID)
	}
	if filters.Search != "" {
		addFilter(`name ILIKE `, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	// Live stock starts equal to the baseline; it has no movements yet.
	err := r.db.QueryRow(ctx,
		`INSERT INTO products (name, unit, category_id, vendor_id, warehouse_id, purchase_price, gst_rate, reorder_level, initial_quantity, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $10) RETURNING id`,
		product.Name, product.Unit, product.CategoryID, product.VendorID, product.WarehouseID,
		product.PurchasePrice, product.GSTRate, product.ReorderLevel, product.InitialQuantity, now,
	).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.Quantity = product.InitialQuantity
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

// Update writes master fields only. InitialQuantity and Quantity are never
// touched here: the baseline is immutable and the live quantity belongs to
// the stock resync.
func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET name = $1, unit = $2, category_id = $3, vendor_id = $4, warehouse_id = $5, purchase_price = $6, gst_rate = $7, reorder_level = $8, updated_at = $9 WHERE id = $10`,
		product.Name, product.Unit, product.CategoryID, product.VendorID, product.WarehouseID,
		product.PurchasePrice, product.GSTRate, product.ReorderLevel, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a product. Products already referenced by ledger rows
// cannot go away without corrupting derivation, so the FK violation maps
// to a conflict.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("products: product %d has movement history: %w", id, shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Unit, &p.CategoryID, &p.VendorID, &p.WarehouseID,
		&p.PurchasePrice, &p.GSTRate, &p.ReorderLevel, &p.InitialQuantity, &p.Quantity,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == mdshared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "quantity":
		return "quantity " + dir
	case "purchase_price":
		return "purchase_price " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
