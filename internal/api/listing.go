package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/grand-thief-cash/procflow/internal/query"
)

// lister serves one paginated collection, either from URL parameters (GET) or from a JSON
// query body (POST /query/...). Paging parameters in the URL win over the body.
type lister[Q any, T any, R any] struct {
	defaultSort string
	props       query.SortProperties
	fetch       func(ctx context.Context, q *Q, page query.Page) ([]T, int64, error)
	present     func(r *http.Request, q *Q, items []T) ([]R, error)
}

func (l lister[Q, T, R]) get(w http.ResponseWriter, r *http.Request) {
	l.serve(w, r, r.URL.Query(), flatten(r.URL.Query()))
}

func (l lister[Q, T, R]) post(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	values := r.URL.Query()
	for _, k := range []string{query.ParamStart, query.ParamSize, query.ParamSort, query.ParamOrder} {
		if values.Get(k) == "" && body[k] != nil {
			values.Set(k, fmt.Sprint(body[k]))
		}
		delete(body, k)
	}
	l.serve(w, r, values, body)
}

func (l lister[Q, T, R]) serve(w http.ResponseWriter, r *http.Request, values url.Values, raw map[string]any) {
	page, err := query.ParsePage(values, l.defaultSort, l.props)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	q := new(Q)
	if err := decodeQuery(raw, q); err != nil {
		writeErr(w, r, err)
		return
	}
	items, total, err := l.fetch(r.Context(), q, page)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out, err := l.present(r, q, items)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Paginate(page, total, out, func(v R) R { return v }))
}

// each adapts a per-item converter to the present signature.
func each[Q any, T any, R any](conv func(u urls, item T) R) func(r *http.Request, q *Q, items []T) ([]R, error) {
	return func(r *http.Request, _ *Q, items []T) ([]R, error) {
		u := urlsOf(r)
		out := make([]R, 0, len(items))
		for _, it := range items {
			out = append(out, conv(u, it))
		}
		return out, nil
	}
}
