// Package pagination normalizes page/pageSize parameters for list operations.
package pagination

import (
	"net/url"
	"strconv"

	dErrors "dossier/pkg/domain-errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params is a validated 1-based page request.
type Params struct {
	Page     int
	PageSize int
}

// Page is a slice of results plus the total number of matching rows.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// New validates page and size. Zero values select the defaults; sizes above
// MaxPageSize are clamped.
func New(page, size int) (Params, error) {
	if page < 0 {
		return Params{}, dErrors.New(dErrors.CodeValidation, "page must be >= 1")
	}
	if size < 0 {
		return Params{}, dErrors.New(dErrors.CodeValidation, "page_size must be >= 1")
	}
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Params{Page: page, PageSize: size}, nil
}

// FromQuery reads page and page_size from a query string. Absent values take
// the defaults.
func FromQuery(q url.Values) (Params, error) {
	page, err := queryInt(q, "page")
	if err != nil {
		return Params{}, err
	}
	size, err := queryInt(q, "page_size")
	if err != nil {
		return Params{}, err
	}
	if q.Get("page") != "" && page == 0 {
		return Params{}, dErrors.New(dErrors.CodeValidation, "page must be >= 1")
	}
	if q.Get("page_size") != "" && size == 0 {
		return Params{}, dErrors.New(dErrors.CodeValidation, "page_size must be >= 1")
	}
	return New(page, size)
}

func queryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, key+" must be an integer")
	}
	return n, nil
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Params) Limit() int {
	return p.PageSize
}

// Slice applies p to an already-filtered, already-ordered result set.
func Slice[T any](all []T, p Params) Page[T] {
	total := len(all)
	start := p.Offset()
	if start >= total {
		return Page[T]{Data: []T{}, Total: total}
	}
	end := start + p.Limit()
	if end > total {
		end = total
	}
	return Page[T]{Data: all[start:end], Total: total}
}
