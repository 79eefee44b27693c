package products

import (
	"time"
)

// Product represents a product master record. InitialQuantity is the
// immutable stock baseline fixed at creation; Quantity is the cached live
// stock derived from the movement ledgers and is only written by the stock
// resync, never by master-data edits.
type Product struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	CategoryID      int64     `json:"category_id"`
	VendorID        int64     `json:"vendor_id"`
	WarehouseID     int64     `json:"warehouse_id"`
	PurchasePrice   float64   `json:"purchase_price"`
	GSTRate         float64   `json:"gst_rate"`
	ReorderLevel    float64   `json:"reorder_level"`
	InitialQuantity float64   `json:"initial_quantity"`
	Quantity        float64   `json:"quantity"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
