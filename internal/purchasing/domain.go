package purchasing

import (
	"fmt"
	"time"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// PaymentStatus is derived from the invoice total and the sum of its
// payments; it is never set directly.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// GSTType selects how GST is split on the invoice. Intra-state
// purchases split the tax into CGST and SGST halves; inter-state
// purchases carry the full amount as IGST.
type GSTType string

const (
	GSTIntraState GSTType = "INTRA"
	GSTInterState GSTType = "INTER"
)

// PurchaseInvoice is the header of a vendor purchase. Every item on it
// is an inward movement in the stock ledger.
type PurchaseInvoice struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	VendorID      int64          `json:"vendor_id"`
	VendorName    string         `json:"vendor_name,omitempty"`
	InvoiceDate   time.Time      `json:"invoice_date"`
	GSTType       GSTType        `json:"gst_type"`
	Subtotal      float64        `json:"subtotal"`
	CGST          float64        `json:"cgst"`
	SGST          float64        `json:"sgst"`
	IGST          float64        `json:"igst"`
	Total         float64        `json:"total"`
	PaidAmount    float64        `json:"paid_amount"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	IsOutwarded   bool           `json:"is_outwarded"`
	Note          string         `json:"note,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Items         []PurchaseItem `json:"items,omitempty"`
}

// PurchaseItem is one product line on a purchase invoice.
type PurchaseItem struct {
	ID          int64   `json:"id"`
	PurchaseID  int64   `json:"purchase_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	GSTRate     float64 `json:"gst_rate"`
	LineTotal   float64 `json:"line_total"`
}

// VendorPayment records money paid against one purchase invoice. The
// vendor id is copied from the invoice at posting time so vendor ledgers
// survive invoice edits.
type VendorPayment struct {
	ID         int64     `json:"id"`
	PurchaseID int64     `json:"purchase_id"`
	VendorID   int64     `json:"vendor_id"`
	Amount     float64   `json:"amount"`
	PaidAt     time.Time `json:"paid_at"`
	Method     string    `json:"method,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PurchaseInput describes a purchase to record or the replacement
// content for an update.
type PurchaseInput struct {
	Number         string
	VendorID       int64
	InvoiceDate    time.Time
	GSTType        GSTType
	Note           string
	Items          []PurchaseItemInput
	IdempotencyKey string
}

// PurchaseItemInput is one requested line. A nil GSTRate falls back to
// the product's configured rate.
type PurchaseItemInput struct {
	ProductID int64
	Quantity  float64
	UnitPrice float64
	GSTRate   *float64
}

// PaymentInput describes a vendor payment to record.
type PaymentInput struct {
	PurchaseID int64
	Amount     float64
	PaidAt     time.Time
	Method     string
	Note       string
}

// ListFilters narrows purchase listings.
type ListFilters struct {
	VendorID int64
	Status   PaymentStatus
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

var (
	// ErrNoItems indicates a purchase without lines.
	ErrNoItems = fmt.Errorf("purchasing: at least one item is required: %w", shared.ErrValidation)
	// ErrOutwardedLocked indicates the purchase has linked outwards and
	// cannot be removed.
	ErrOutwardedLocked = fmt.Errorf("purchasing: purchase has linked outward entries: %w", shared.ErrConflict)
)

const qtyEpsilon = 1e-9

// DerivePaymentStatus maps a total and paid amount onto the status
// enum. Totals are compared with a small epsilon so float rounding in
// GST math never flips a fully paid invoice back to partial.
func DerivePaymentStatus(total, paid float64) PaymentStatus {
	switch {
	case paid <= qtyEpsilon:
		return PaymentStatusUnpaid
	case paid >= total-1e-6:
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}
