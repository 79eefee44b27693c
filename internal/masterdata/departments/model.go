package departments

// Department is a cost center that outward entries are issued against.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
