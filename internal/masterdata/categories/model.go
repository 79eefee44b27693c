package categories

// Category groups products for consumption and valuation rollups.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
