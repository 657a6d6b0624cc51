// Package dto holds the request and response shapes of the v1 API.
package dto

import (
	"procura/internal/domain"
)

// PageQuery is the paging part of list queries.
type PageQuery struct {
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
	Search  string `form:"search" binding:"max=200"`
	OrderBy string `form:"order_by"`
}

// ToListFilter converts the query to a domain filter.
func (q PageQuery) ToListFilter() domain.ListFilter {
	f := domain.ListFilter{
		Search:  q.Search,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	f.Normalize()
	return f
}

// IDResponse is returned by create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// CountResponse wraps a single count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// SuccessResponse acknowledges an operation without payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
