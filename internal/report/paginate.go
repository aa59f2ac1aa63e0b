package report

import "math"

const (
	DefaultPerPage = 20
	MaxPerPage     = 500
	// MaxPage keeps (page-1)*per_page inside int range.
	MaxPage = math.MaxInt32 / MaxPerPage
)

type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest applies defaults: page 1, per_page 20. Values below 1 fall
// back to the default, per_page is capped at MaxPerPage and page at MaxPage.
func NewPageRequest(page, perPage int) PageRequest {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

func (p PageRequest) normalized() PageRequest {
	return NewPageRequest(p.Page, p.PerPage)
}

func (p PageRequest) Offset() int {
	p = p.normalized()
	return (p.Page - 1) * p.PerPage
}

func (p PageRequest) Limit() int {
	return p.normalized().PerPage
}

// LastPage is ceil(total/per_page); an empty result still has page 1.
func (p PageRequest) LastPage(total int64) int {
	p = p.normalized()
	if total <= 0 {
		return 1
	}
	per := int64(p.PerPage)
	return int((total + per - 1) / per)
}

type Page[T any] struct {
	Data        []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

func NewPage[T any](data []T, req PageRequest, total int64) Page[T] {
	req = req.normalized()
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:        data,
		CurrentPage: req.Page,
		LastPage:    req.LastPage(total),
		PerPage:     req.PerPage,
		Total:       total,
	}
}

// Paginate returns rows [offset, offset+per_page) of the full set.
func Paginate[T any](rows []T, req PageRequest) []T {
	off := req.Offset()
	if off < 0 || off >= len(rows) {
		return []T{}
	}
	end := off + req.Limit()
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]T, end-off)
	copy(out, rows[off:end])
	return out
}

// MapPage converts the rows of a page, keeping its metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	data := make([]U, len(p.Data))
	for i, v := range p.Data {
		data[i] = fn(v)
	}
	return Page[U]{
		Data:        data,
		CurrentPage: p.CurrentPage,
		LastPage:    p.LastPage,
		PerPage:     p.PerPage,
		Total:       p.Total,
	}
}
