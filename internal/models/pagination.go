package models

// Listing bounds shared by repositories and services, so the LIMIT/OFFSET a
// query runs with always matches the envelope reported to the client.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalizePage clamps a requested page and size to the listing bounds.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}
