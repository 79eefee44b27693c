package reports

import (
	"time"

	"github.com/stockpilot/stockpilot/internal/ledger"
)

// ReportProduct carries the product attributes reports need alongside
// the derived quantities.
type ReportProduct struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	CategoryName string  `json:"category_name"`
	ReorderLevel float64 `json:"reorder_level"`
	Initial      float64 `json:"initial"`
}

// StockSummaryRow is one product line of the windowed stock report.
type StockSummaryRow struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Unit         string  `json:"unit"`
	CategoryName string  `json:"category_name"`
	ReorderLevel float64 `json:"reorder_level"`
	ledger.ProductStock
}

// ConsumptionRow aggregates issued quantity and value per department.
type ConsumptionRow struct {
	DepartmentID   int64   `json:"department_id"`
	DepartmentName string  `json:"department_name"`
	Quantity       float64 `json:"quantity"`
	Value          float64 `json:"value"`
}

// VendorLedgerEntry is one dated row of a vendor statement. Invoices
// debit the account, payments credit it; Balance runs cumulatively.
type VendorLedgerEntry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Number  string    `json:"number"`
	Debit   float64   `json:"debit"`
	Credit  float64   `json:"credit"`
	Balance float64   `json:"balance"`
}

// VendorLedger is the full statement for one vendor.
type VendorLedger struct {
	VendorID      int64               `json:"vendor_id"`
	VendorName    string              `json:"vendor_name"`
	Entries       []VendorLedgerEntry `json:"entries"`
	TotalInvoiced float64             `json:"total_invoiced"`
	TotalPaid     float64             `json:"total_paid"`
	Outstanding   float64             `json:"outstanding"`
}

// VendorBalanceRow aggregates outstanding payables per vendor.
type VendorBalanceRow struct {
	VendorID      int64   `json:"vendor_id"`
	VendorName    string  `json:"vendor_name"`
	TotalInvoiced float64 `json:"total_invoiced"`
	TotalPaid     float64 `json:"total_paid"`
	Outstanding   float64 `json:"outstanding"`
}

// LowStockRow flags a product at or under its reorder level.
type LowStockRow struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	ReorderLevel float64 `json:"reorder_level"`
}

const (
	entryKindInvoice = "INVOICE"
	entryKindPayment = "PAYMENT"
)
