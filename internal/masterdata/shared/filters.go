package shared

// Paging defaults applied when the query string omits them.
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string

	// Entity specific filters
	CategoryID *int64
	VendorID   *int64
}
