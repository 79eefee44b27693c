package snapshot

import (
	"fmt"
	"time"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// Document is the portable envelope around a full state export. The
// checksum covers the canonical JSON encoding of State, so a document
// edited by hand fails import.
type Document struct {
	ID       string    `json:"id"`
	TakenAt  time.Time `json:"taken_at"`
	Checksum string    `json:"checksum"`
	State    State     `json:"state"`
}

// State holds every collection the ledgers are derived from. Dates
// travel as RFC 3339 via the standard time encoding.
type State struct {
	Categories  []Category   `json:"categories"`
	Vendors     []Vendor     `json:"vendors"`
	Departments []Department `json:"departments"`
	Products    []Product    `json:"products"`
	Purchases   []Purchase   `json:"purchases"`
	Payments    []Payment    `json:"payments"`
	Outwards    []Outward    `json:"outwards"`
	Adjustments []Adjustment `json:"adjustments"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Vendor struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	GSTIN   string `json:"gstin,omitempty"`
}

type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	CategoryID      int64   `json:"category_id"`
	VendorID        int64   `json:"vendor_id"`
	WarehouseID     int64   `json:"warehouse_id"`
	PurchasePrice   float64 `json:"purchase_price"`
	GSTRate         float64 `json:"gst_rate"`
	ReorderLevel    float64 `json:"reorder_level"`
	InitialQuantity float64 `json:"initial_quantity"`
	Quantity        float64 `json:"quantity"`
}

type Purchase struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	VendorID      int64          `json:"vendor_id"`
	InvoiceDate   time.Time      `json:"invoice_date"`
	GSTType       string         `json:"gst_type"`
	Subtotal      float64        `json:"subtotal"`
	CGST          float64        `json:"cgst"`
	SGST          float64        `json:"sgst"`
	IGST          float64        `json:"igst"`
	Total         float64        `json:"total"`
	PaidAmount    float64        `json:"paid_amount"`
	PaymentStatus string         `json:"payment_status"`
	IsOutwarded   bool           `json:"is_outwarded"`
	Note          string         `json:"note,omitempty"`
	Items         []PurchaseItem `json:"items"`
}

type PurchaseItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	GSTRate   float64 `json:"gst_rate"`
	LineTotal float64 `json:"line_total"`
}

type Payment struct {
	ID         int64     `json:"id"`
	PurchaseID int64     `json:"purchase_id"`
	VendorID   int64     `json:"vendor_id"`
	Amount     float64   `json:"amount"`
	PaidAt     time.Time `json:"paid_at"`
	Method     string    `json:"method,omitempty"`
	Note       string    `json:"note,omitempty"`
}

type Outward struct {
	ID           int64         `json:"id"`
	Number       string        `json:"number"`
	DepartmentID int64         `json:"department_id"`
	PurchaseID   *int64        `json:"purchase_id,omitempty"`
	OutwardDate  time.Time     `json:"outward_date"`
	Total        float64       `json:"total"`
	Note         string        `json:"note,omitempty"`
	Items        []OutwardItem `json:"items"`
}

type OutwardItem struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"product_id"`
	Quantity   float64 `json:"quantity"`
	CostAtTime float64 `json:"cost_at_time"`
	LineTotal  float64 `json:"line_total"`
}

type Adjustment struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Delta      float64   `json:"delta"`
	Reason     string    `json:"reason"`
	AdjustedAt time.Time `json:"adjusted_at"`
}

// ErrChecksumMismatch rejects a document whose state no longer matches
// its recorded checksum.
var ErrChecksumMismatch = fmt.Errorf("snapshot: checksum mismatch: %w", shared.ErrValidation)
