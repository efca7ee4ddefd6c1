package pagination

import (
	"math"
	"strconv"
)

const DefaultPage = 1

// Params is a parsed, normalized page request. PageSize is fixed per list by
// the caller, never taken from the client.
type Params struct {
	Page     int
	PageSize int
}

func New(rawPage string, pageSize int) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	return Params{Page: page, PageSize: pageSize}
}

func (p Params) Limit() int  { return p.PageSize }
func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

// TotalPages is 1 even for an empty list, so the UI always has a valid
// current page to sit on.
func TotalPages(totalCount, pageSize int) int {
	if totalCount <= 0 {
		return 1
	}
	return int(math.Ceil(float64(totalCount) / float64(pageSize)))
}

// Clamp snaps page into the valid range for totalCount rows, so a view whose
// page fell off the end after a delete lands on the new last page. An empty
// list clamps to page 1.
func Clamp(page, totalCount, pageSize int) int {
	if page < 1 {
		return 1
	}
	if tp := TotalPages(totalCount, pageSize); page > tp {
		return tp
	}
	return page
}

// Meta is the pagination envelope returned alongside every page.
type Meta struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func BuildMeta(totalCount int, p Params) Meta {
	totalPages := TotalPages(totalCount, p.PageSize)
	return Meta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
		HasPrev:    p.Page > 1,
		HasNext:    p.Page < totalPages,
	}
}
