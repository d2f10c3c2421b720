package types

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items []T
	Page  int
	Limit int
	Total int
}

// TotalPages returns the number of pages needed to hold Total items.
func (p Page[T]) TotalPages() int {
	if p.Limit < 1 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
