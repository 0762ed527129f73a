package models

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a validated page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage normalizes a page request: number below 1 becomes 1, a missing
// limit becomes DefaultPageLimit and anything above MaxPageLimit is clamped.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func NewPagination(total int, p Page) Pagination {
	pages := 0
	if total > 0 && p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Total: total, Page: p.Number, Limit: p.Limit, Pages: pages}
}
