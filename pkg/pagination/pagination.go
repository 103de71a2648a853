package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	MaxPage        = 1_000_000
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page    int
	PerPage int
}

// FromContext reads page and per_page. Missing or invalid values fall back
// to page 1 and DefaultPerPage; page is capped at MaxPage and per_page at
// MaxPerPage so Offset cannot overflow.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return Params{Page: page, PerPage: perPage}
}

func (p Params) Limit() int { return p.PerPage }

func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// Meta is the pagination block returned with every paginated list.
type Meta struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

func NewMeta(p Params, total int) Meta {
	pages := 0
	if total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Meta{
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   total,
		Pages:   pages,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}

// Envelope builds {"<key>": items, "pagination": meta}.
func Envelope(key string, items interface{}, p Params, total int) map[string]interface{} {
	return map[string]interface{}{
		key:          items,
		"pagination": NewMeta(p, total),
	}
}
