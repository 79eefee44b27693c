package outward

import "time"

// OutwardEntry records stock issued to a department. Every item on it
// is an outward movement in the stock ledger.
type OutwardEntry struct {
	ID             int64         `json:"id"`
	Number         string        `json:"number"`
	DepartmentID   int64         `json:"department_id"`
	DepartmentName string        `json:"department_name,omitempty"`
	PurchaseID     *int64        `json:"purchase_id,omitempty"`
	OutwardDate    time.Time     `json:"outward_date"`
	Total          float64       `json:"total"`
	Note           string        `json:"note,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Items          []OutwardItem `json:"items,omitempty"`
}

// OutwardItem is one issued product line. CostAtTime snapshots the
// product's purchase price when the entry was recorded so later price
// bumps do not rewrite past consumption values.
type OutwardItem struct {
	ID          int64   `json:"id"`
	OutwardID   int64   `json:"outward_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	CostAtTime  float64 `json:"cost_at_time"`
	LineTotal   float64 `json:"line_total"`
}

// OutwardInput describes an outward to record or replacement content
// for an update.
type OutwardInput struct {
	Number         string
	DepartmentID   int64
	PurchaseID     *int64
	OutwardDate    time.Time
	Note           string
	Items          []OutwardItemInput
	IdempotencyKey string
}

// OutwardItemInput is one requested line. A nil CostAtTime snapshots
// the product's current purchase price.
type OutwardItemInput struct {
	ProductID  int64
	Quantity   float64
	CostAtTime *float64
}

// ListFilters narrows outward listings.
type ListFilters struct {
	DepartmentID int64
	From         time.Time
	To           time.Time
	Page         int
	Limit        int
}

const qtyEpsilon = 1e-9
