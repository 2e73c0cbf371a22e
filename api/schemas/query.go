package schemas

// -- Query Filters --

// DefaultPerPage is used when a filter leaves PerPage unset.
const DefaultPerPage = 20

// Page selects a window of results. Page numbers start at 1.
type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Normalize fills in defaults for unset or out of range values.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// PageCount returns the number of pages needed for total rows.
func (p Page) PageCount(total int) int {
	n := p.Normalize()
	if total == 0 {
		return 0
	}
	return (total + n.PerPage - 1) / n.PerPage
}

// ReportFilter narrows a report listing.
type ReportFilter struct {
	Page
	// Search matches a substring of the site URL.
	Search string
}

// SearchFilter narrows a cross-report instance search.
type SearchFilter struct {
	Page
	// Query matches a substring of the instance URL, vulnerability title or
	// report site URL.
	Query    string
	Severity Severity
	Status   FixStatus
}

// LogFilter narrows an operation log listing.
type LogFilter struct {
	Page
	ActionType string
}

// Paged wraps one page of results with the totals needed for navigation.
type Paged[T any] struct {
	Items       []T `json:"items"`
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
}

// NewPaged assembles a Paged result for the given request page.
func NewPaged[T any](items []T, total int, p Page) Paged[T] {
	n := p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Paged[T]{
		Items:       items,
		Total:       total,
		Pages:       n.PageCount(total),
		CurrentPage: n.Page,
	}
}
