package shared

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the caller omits the size parameter.
	DefaultPageSize = 20
	// MaxPageSize caps how many records a single page may return.
	MaxPageSize = 100
)

// PageRequest describes one page of a listing. Page numbering is zero based.
// SortColumn is a real column name, resolved and whitelisted during parsing.
type PageRequest struct {
	Page       int
	Size       int
	SortColumn string
	SortDesc   bool
}

// Offset returns the row offset for this page.
func (p PageRequest) Offset() int { return p.Page * p.Size }

// Page is the outward pagination envelope.
type Page[T any] struct {
	Items         []T `json:"items"`
	Page          int `json:"page"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// NewPage assembles the envelope for one page of items.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.Size)))
	}
	return Page[T]{
		Items:         items,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

// ParsePageRequest reads page, size and sort query parameters. The sort value
// has the form "field,dir"; field must appear in the sortable map (request
// field name to column name) or the request is rejected as a validation error.
func ParsePageRequest(values url.Values, sortable map[string]string, defaultColumn string, defaultDesc bool) (PageRequest, error) {
	req := PageRequest{
		Page:       0,
		Size:       DefaultPageSize,
		SortColumn: defaultColumn,
		SortDesc:   defaultDesc,
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return PageRequest{}, NewValidationError("page", "page must be a non-negative integer")
		}
		req.Page = page
	}

	if raw := values.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return PageRequest{}, NewValidationError("size", "size must be a positive integer")
		}
		if size > MaxPageSize {
			return PageRequest{}, NewValidationError("size", fmt.Sprintf("size must not exceed %d", MaxPageSize))
		}
		req.Size = size
	}

	if raw := values.Get("sort"); raw != "" {
		field := raw
		dir := ""
		if idx := strings.IndexByte(raw, ','); idx >= 0 {
			field, dir = raw[:idx], strings.ToLower(strings.TrimSpace(raw[idx+1:]))
		}
		column, ok := sortable[strings.TrimSpace(field)]
		if !ok {
			return PageRequest{}, NewValidationError("sort", fmt.Sprintf("cannot sort by %q", field))
		}
		req.SortColumn = column
		switch dir {
		case "", "asc":
			req.SortDesc = false
		case "desc":
			req.SortDesc = true
		default:
			return PageRequest{}, NewValidationError("sort", fmt.Sprintf("unknown sort direction %q", dir))
		}
	}

	return req, nil
}
