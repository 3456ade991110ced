// Package query holds pagination and sorting primitives shared by the
// domain services and repositories.
package query

import (
	"fmt"
	"strings"
)

const (
	// DefaultPageSize is used when a caller does not specify a size.
	DefaultPageSize = 20
	// MaxPageSize bounds query cost; larger requests are clamped, not rejected.
	MaxPageSize = 100
)

// SortField is a whitelisted conversation sort key.
type SortField string

const (
	SortFieldCreatedAt SortField = "createdAt"
	SortFieldUpdatedAt SortField = "updatedAt"
	SortFieldTitle     SortField = "title"
)

// SortDirection is the order of a sorted listing.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Sort pairs a whitelisted field with a direction.
type Sort struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSort orders by most recently updated first.
func DefaultSort() Sort {
	return Sort{Field: SortFieldUpdatedAt, Direction: SortDescending}
}

// ParseSort validates a field/direction pair against the whitelist. Empty
// inputs fall back to the defaults.
func ParseSort(field, direction string) (Sort, error) {
	s := DefaultSort()

	switch SortField(field) {
	case "":
	case SortFieldCreatedAt, SortFieldUpdatedAt, SortFieldTitle:
		s.Field = SortField(field)
	default:
		return Sort{}, fmt.Errorf("unsupported sort field %q", field)
	}

	switch SortDirection(strings.ToLower(direction)) {
	case "":
	case SortAscending, SortDescending:
		s.Direction = SortDirection(strings.ToLower(direction))
	default:
		return Sort{}, fmt.Errorf("unsupported sort direction %q", direction)
	}

	return s, nil
}

// Column maps the sort field to its storage column name.
func (s Sort) Column() string {
	switch s.Field {
	case SortFieldCreatedAt:
		return "created_at"
	case SortFieldTitle:
		return "title"
	default:
		return "updated_at"
	}
}

// OrderClause renders the sort as an ORDER BY expression, with the internal
// id as the deterministic tiebreak.
func (s Sort) OrderClause() string {
	dir := "ASC"
	if s.Direction == SortDescending {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, id %s", s.Column(), dir, dir)
}

// Pagination is zero-based page/size pagination with clamped bounds.
type Pagination struct {
	Page int
	Size int
}

// NewPagination normalises page and size: negative pages become 0, sizes are
// clamped into [1, MaxPageSize] with DefaultPageSize for non-positive input.
func NewPagination(page, size int) Pagination {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Pagination{Page: page, Size: size}
}

// Offset returns the row offset for the page.
func (p Pagination) Offset() int {
	return p.Page * p.Size
}

// Page is one page of a listing plus totals.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPage assembles a Page from the fetched items and the total row count.
func NewPage[T any](items []T, total int64, p Pagination) Page[T] {
	totalPages := 0
	if p.Size > 0 {
		totalPages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       p.Page,
		Size:       p.Size,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
