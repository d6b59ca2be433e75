package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

const (
	DefaultSize = 10
	OrderAsc    = "asc"
	OrderDesc   = "desc"
	ParamStart  = "start"
	ParamSize   = "size"
	ParamSort   = "sort"
	ParamOrder  = "order"
)

// SortProperties maps a REST sort name onto the column it orders by.
type SortProperties map[string]string

type Page struct {
	Start int
	Size  int
	Sort  string
	Order string

	column string
}

// ParsePage reads start/size/sort/order. defaultSort must be a key of allowed.
func ParsePage(values url.Values, defaultSort string, allowed SortProperties) (Page, error) {
	p := Page{Size: DefaultSize, Sort: defaultSort, Order: OrderAsc}
	if v := strings.TrimSpace(values.Get(ParamStart)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, apperr.IllegalArgument("Value for param 'start' is not valid, '%s' is not a valid number", v)
		}
		p.Start = n
	}
	if v := strings.TrimSpace(values.Get(ParamSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, apperr.IllegalArgument("Value for param 'size' is not valid, '%s' is not a valid number", v)
		}
		p.Size = n
	}
	if v := strings.TrimSpace(values.Get(ParamSort)); v != "" {
		if _, ok := allowed[v]; !ok {
			return p, apperr.IllegalArgument("Value for param 'sort' is not valid, '%s' is not a valid property", v)
		}
		p.Sort = v
	}
	if v := strings.TrimSpace(values.Get(ParamOrder)); v != "" {
		switch strings.ToLower(v) {
		case OrderAsc, OrderDesc:
			p.Order = strings.ToLower(v)
		default:
			return p, apperr.IllegalArgument("Value for param 'order' is not valid : '%s', must be 'asc' or 'desc'", v)
		}
	}
	p.column = allowed[p.Sort]
	return p, nil
}

// Unpaged returns a page covering every row, ordered by column.
func Unpaged(column string) Page {
	return Page{Size: -1, Order: OrderAsc, column: column}
}

// Column is the allow-listed column of the sort property; empty when none applies.
func (p Page) Column() string { return p.column }

// OrderClause renders "column asc|desc" or "" without a sort column.
func (p Page) OrderClause() string {
	if p.column == "" {
		return ""
	}
	order := OrderAsc
	if p.Order == OrderDesc {
		order = OrderDesc
	}
	return p.column + " " + order
}

// Limit is the SQL limit; -1 disables it.
func (p Page) Limit() int {
	if p.Size < 0 {
		return -1
	}
	return p.Size
}
