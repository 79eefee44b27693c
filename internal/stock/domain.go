package stock

import (
	"fmt"
	"time"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// StockAdjustment is a manual ledger correction stored as a signed
// quantity delta. Corrections never overwrite the cached product
// quantity directly; they become movements and the cache is rebuilt.
type StockAdjustment struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Delta      float64   `json:"delta"`
	Reason     string    `json:"reason"`
	AdjustedAt time.Time `json:"adjusted_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AdjustmentInput describes a requested correction. Exactly one of
// Delta or TargetQuantity must be set; a target is reconciled against
// live stock and stored as the resulting delta.
type AdjustmentInput struct {
	ProductID      int64
	Delta          *float64
	TargetQuantity *float64
	Reason         string
	AdjustedAt     time.Time
}

// ErrInvalidAdjustment indicates a zero or ambiguous adjustment amount.
var ErrInvalidAdjustment = fmt.Errorf("stock: adjustment must change quantity: %w", shared.ErrValidation)

const qtyEpsilon = 1e-9
