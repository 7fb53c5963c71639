package core

import (
	"context"
	"strings"
)

// Transactor runs fn inside a single unit of work.
// Repositories called with the ctx handed to fn take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrdering drops the orderings on fields that are not in `allowed`.
// Orderings end up in raw SQL, so they must be restricted to known columns.
func CleanOrdering(ordering []DBOrdering, allowed ...string) []DBOrdering {
	cleaned := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if ContainsString(allowed, strings.ToLower(ord.Field)) {
			ord.Field = strings.ToLower(ord.Field)
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

// Pagination is a 1-based page window. A zero PageSize disables pagination.
type Pagination struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

const MaxPageSize = 200

func (p *Pagination) Clean() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 0 {
		p.PageSize = 0
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

func (p Pagination) Enabled() bool { return p.PageSize > 0 }

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Window returns the [start, end) bounds of the page within a list of n items.
func (p Pagination) Window(n int) (int, int) {
	if !p.Enabled() {
		return 0, n
	}
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.PageSize
	if end > n {
		end = n
	}
	return start, end
}
