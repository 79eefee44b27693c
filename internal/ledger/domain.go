package ledger

import "time"

// MovementKind enumerates the ledger collections a movement originates from.
type MovementKind string

const (
	// MovementInward is a purchase receipt quantity.
	MovementInward MovementKind = "INWARD"
	// MovementOutward is an issued quantity.
	MovementOutward MovementKind = "OUTWARD"
	// MovementAdjustment is a signed manual correction delta.
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// Movement is one dated quantity delta for a product. Qty is always positive
// for inward/outward movements; adjustments carry their sign.
type Movement struct {
	Kind MovementKind
	Qty  float64
	At   time.Time
}

// ProductStock summarises a product's derived quantities for a window.
type ProductStock struct {
	InitialOpening float64 `json:"initial_opening"`
	MonthOpening   float64 `json:"month_opening"`
	Inward         float64 `json:"inward"`
	Outward        float64 `json:"outward"`
	Adjustment     float64 `json:"adjustment"`
	ClosingStock   float64 `json:"closing_stock"`
	LiveStock      float64 `json:"live_stock"`
}
