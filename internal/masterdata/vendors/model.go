package vendors

import "time"

// Vendor represents a supplier referenced by purchase invoices.
type Vendor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	GSTIN     string    `json:"gstin"`
	CreatedAt time.Time `json:"created_at"`
}
