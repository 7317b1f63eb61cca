package core

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ExpenseFilter narrows an expense listing. Nil fields impose no constraint
// and present fields are combined with AND. Date bounds are inclusive.
type ExpenseFilter struct {
	UserID     *int64
	CategoryID *int64
	StartDate  *Date
	EndDate    *Date
}

// Matches reports whether e satisfies every present filter.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.CategoryID != nil && e.CategoryID != *f.CategoryID {
		return false
	}
	if f.StartDate != nil && e.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && e.Date.After(f.EndDate.Time) {
		return false
	}
	return true
}

// PageRequest is a normalized page/limit pair.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page to >= 1 and limit to [1, MaxLimit]. A zero
// page or limit means "use the default".
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// ParsePageRequest reads raw query values. Unparseable input falls back to
// the defaults, like an absent parameter.
func ParsePageRequest(rawPage, rawLimit string) PageRequest {
	page, _ := strconv.Atoi(strings.TrimSpace(rawPage))
	limit, _ := strconv.Atoi(strings.TrimSpace(rawLimit))
	return NewPageRequest(page, limit)
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func NewPagination(p PageRequest, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(p.Limit)))
	return Pagination{
		Page:        p.Page,
		Limit:       p.Limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: p.Page < totalPages,
		HasPrevPage: p.Page > 1,
	}
}

// ExpensePage is one page of a filtered listing.
type ExpensePage struct {
	Expenses   []Expense
	Pagination Pagination
}
