package api

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

const maxMultipartMemory = 32 << 20

// varTarget binds the variable endpoints to one kind of owner: a process instance,
// an execution or a task.
type varTarget struct {
	resource     string
	scoped       bool
	defaultScope variable.Scope

	list   func(ctx context.Context, id string, scope variable.Scope) ([]engine.ScopedVariable, error)
	get    func(ctx context.Context, id, name string, scope variable.Scope) (*engine.ScopedVariable, error)
	set    func(ctx context.Context, id string, scope variable.Scope, vars []engine.NamedValue, createOnly bool) error
	del    func(ctx context.Context, id, name string, scope variable.Scope) error
	delAll func(ctx context.Context, id string) error
}

// mount registers the variable routes below the owner route holding {id}.
func (t varTarget) mount(r chi.Router) {
	r.Get("/variables", t.listVars)
	r.Post("/variables", func(w http.ResponseWriter, r *http.Request) { t.writeVars(w, r, true) })
	r.Put("/variables", func(w http.ResponseWriter, r *http.Request) { t.writeVars(w, r, false) })
	r.Delete("/variables", t.deleteVars)
	r.Get("/variables/{name}", t.getVar)
	r.Put("/variables/{name}", t.putVar)
	r.Delete("/variables/{name}", t.deleteVar)
	r.Get("/variables/{name}/data", t.varData)
}

func (t varTarget) dataURL(u urls, id, name string, scope variable.Scope) string {
	link := u.path(t.resource, id, "variables", name, "data")
	if t.scoped && scope != "" {
		link += "?scope=" + string(scope)
	}
	return link
}

func (t varTarget) render(u urls, id string, vars []engine.ScopedVariable) []variable.RestVariable {
	return scopedVariables(vars, func(v engine.ScopedVariable) string { return t.dataURL(u, id, v.Name, v.Scope) })
}

// readScope parses the scope query parameter; unscoped owners ignore it.
func (t varTarget) readScope(r *http.Request, def variable.Scope) (variable.Scope, error) {
	if !t.scoped {
		return def, nil
	}
	return variable.ParseScope(r.URL.Query().Get("scope"), def)
}

func (t varTarget) listVars(w http.ResponseWriter, r *http.Request) {
	scope, err := t.readScope(r, "")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := param(r, "id")
	vars, err := t.list(r.Context(), id, scope)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.render(urlsOf(r), id, vars))
}

func (t varTarget) getVar(w http.ResponseWriter, r *http.Request) {
	scope, err := t.readScope(r, "")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := param(r, "id")
	v, err := t.get(r.Context(), id, param(r, "name"), scope)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.render(urlsOf(r), id, []engine.ScopedVariable{*v})[0])
}

func (t varTarget) varData(w http.ResponseWriter, r *http.Request) {
	scope, err := t.readScope(r, "")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	v, err := t.get(r.Context(), param(r, "id"), param(r, "name"), scope)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !v.IsBinary() {
		writeErr(w, r, apperr.NotFound("The variable does not have a binary data stream."))
		return
	}
	writeBytes(w, v.ContentType(), v.Bytes)
}

func (t varTarget) deleteVar(w http.ResponseWriter, r *http.Request) {
	scope, err := t.readScope(r, t.defaultScope)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := t.del(r.Context(), param(r, "id"), param(r, "name"), scope); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (t varTarget) deleteVars(w http.ResponseWriter, r *http.Request) {
	if err := t.delAll(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

// pending is a decoded variable waiting to be written in its scope.
type pending struct {
	scope variable.Scope
	value engine.NamedValue
}

func (t varTarget) writeVars(w http.ResponseWriter, r *http.Request, createOnly bool) {
	fallback, err := t.readScope(r, t.defaultScope)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var items []pending
	if isMultipart(r) {
		p, err := t.readBinary(r, fallback)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		items = []pending{p}
	} else {
		var body []variable.RestVariable
		if err := readJSON(r, &body); err != nil {
			writeErr(w, r, err)
			return
		}
		if len(body) == 0 {
			writeErr(w, r, apperr.IllegalArgument("Request didn't contain a list of variables to create."))
			return
		}
		if items, err = t.decode(body, fallback); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	id := param(r, "id")
	if err := t.store(r.Context(), id, items, createOnly); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.echo(urlsOf(r), id, items))
}

func (t varTarget) putVar(w http.ResponseWriter, r *http.Request) {
	fallback, err := t.readScope(r, t.defaultScope)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var item pending
	if isMultipart(r) {
		if item, err = t.readBinary(r, fallback); err != nil {
			writeErr(w, r, err)
			return
		}
	} else {
		var body variable.RestVariable
		if err := readJSON(r, &body); err != nil {
			writeErr(w, r, err)
			return
		}
		items, err := t.decode([]variable.RestVariable{body}, fallback)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		item = items[0]
	}
	id, name := param(r, "id"), param(r, "name")
	if item.value.Name != name {
		writeErr(w, r, apperr.IllegalArgument("Variable name in the body should be equal to the name used in the requested URL."))
		return
	}
	if _, err := t.get(r.Context(), id, name, item.scope); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := t.store(r.Context(), id, []pending{item}, false); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.echo(urlsOf(r), id, []pending{item})[0])
}

func (t varTarget) decode(body []variable.RestVariable, fallback variable.Scope) ([]pending, error) {
	out := make([]pending, 0, len(body))
	seen := make(map[string]bool, len(body))
	for _, rv := range body {
		val, err := rv.Encode()
		if err != nil {
			return nil, err
		}
		scope := fallback
		if t.scoped {
			if scope, err = variable.ParseScope(rv.Scope, fallback); err != nil {
				return nil, err
			}
		}
		key := string(scope) + "/" + rv.Name
		if seen[key] {
			return nil, apperr.IllegalArgument("Variable '%s' is defined more than once.", rv.Name)
		}
		seen[key] = true
		out = append(out, pending{scope: scope, value: engine.NamedValue{Name: rv.Name, Value: val}})
	}
	return out, nil
}

// store writes the variables grouped by scope, keeping the request order within a scope.
func (t varTarget) store(ctx context.Context, id string, items []pending, createOnly bool) error {
	var order []variable.Scope
	groups := map[variable.Scope][]engine.NamedValue{}
	for _, it := range items {
		if _, ok := groups[it.scope]; !ok {
			order = append(order, it.scope)
		}
		groups[it.scope] = append(groups[it.scope], it.value)
	}
	for _, scope := range order {
		if err := t.set(ctx, id, scope, groups[scope], createOnly); err != nil {
			return err
		}
	}
	return nil
}

func (t varTarget) echo(u urls, id string, items []pending) []variable.RestVariable {
	out := make([]variable.RestVariable, 0, len(items))
	for _, it := range items {
		scope := it.scope
		if !t.scoped {
			scope = ""
		}
		link := t.dataURL(u, id, it.value.Name, scope)
		out = append(out, variable.ToRest(it.value.Name, it.value.Value, scope, link))
	}
	return out
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readBinary reads a variable from a multipart body: form fields name, type and scope
// plus one file part holding the data.
func (t varTarget) readBinary(r *http.Request, fallback variable.Scope) (pending, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return pending{}, apperr.IllegalArgument("Invalid multipart body: %v", err)
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		return pending{}, apperr.IllegalArgument("No variable name was found in request body.")
	}
	typ := variable.TypeBinary
	if v := strings.TrimSpace(r.FormValue("type")); v != "" {
		parsed, err := variable.ParseType(v)
		if err != nil {
			return pending{}, err
		}
		if parsed != variable.TypeBinary && parsed != variable.TypeSerializable {
			return pending{}, apperr.IllegalArgument("Only 'binary' and 'serializable' are supported as variable type.")
		}
		typ = parsed
	}
	scope := fallback
	if t.scoped {
		var err error
		if scope, err = variable.ParseScope(r.FormValue("scope"), fallback); err != nil {
			return pending{}, err
		}
	}
	data, err := firstFile(r)
	if err != nil {
		return pending{}, err
	}
	val, err := variable.EncodeAs(typ, data)
	if err != nil {
		return pending{}, err
	}
	return pending{scope: scope, value: engine.NamedValue{Name: name, Value: val}}, nil
}

func firstFile(r *http.Request) ([]byte, error) {
	if r.MultipartForm != nil {
		for _, files := range r.MultipartForm.File {
			if len(files) == 0 {
				continue
			}
			f, err := files[0].Open()
			if err != nil {
				return nil, apperr.IllegalArgument("Could not read multipart file: %v", err)
			}
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				return nil, apperr.IllegalArgument("Could not read multipart file: %v", err)
			}
			return data, nil
		}
	}
	return nil, apperr.IllegalArgument("No file content was found in request body.")
}
