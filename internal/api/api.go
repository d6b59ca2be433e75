// Package api exposes the engine over the Activiti-compatible REST interface. Every
// resource group is a controller component; routes are mounted on the http_server router.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/http_server"
	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

// Routable is a controller that mounts its own routes.
type Routable interface {
	Routes(r chi.Router)
}

var controllerNames = []string{
	bizConsts.COMP_CTRL_REPOSITORY,
	bizConsts.COMP_CTRL_RUNTIME,
	bizConsts.COMP_CTRL_TASK,
	bizConsts.COMP_CTRL_HISTORY,
	bizConsts.COMP_CTRL_MANAGEMENT,
	bizConsts.COMP_CTRL_IDENTITY,
}

func init() {
	http_server.RegisterRoutes(func(r chi.Router, c *core.Container) error {
		ctrls := make([]Routable, 0, len(controllerNames))
		for _, name := range controllerNames {
			comp, err := c.Resolve(name)
			if err != nil {
				return err
			}
			ctrl, ok := comp.(Routable)
			if !ok {
				return fmt.Errorf("%s type assertion failed", name)
			}
			ctrls = append(ctrls, ctrl)
		}
		Mount(r, ctrls...)
		return nil
	})
}

func Mount(r chi.Router, ctrls ...Routable) {
	for _, c := range ctrls {
		c.Routes(r)
	}
}

type errorBody struct {
	Message   string `json:"message"`
	Exception string `json:"exception"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Message: http.StatusText(status), Exception: err.Error()})
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func noContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// readJSON decodes the body into out. Numbers stay json.Number so variable values keep
// their integral or floating shape.
func readJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return apperr.IllegalArgument("A request body is required")
		}
		return apperr.IllegalArgument("Invalid request body: %v", err)
	}
	return nil
}

// readRaw returns the body bytes for handlers that inspect field presence with gjson.
func readRaw(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apperr.IllegalArgument("Could not read request body: %v", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.IllegalArgument("A request body is required")
	}
	if !json.Valid(raw) {
		return nil, apperr.IllegalArgument("Invalid request body: malformed JSON")
	}
	return raw, nil
}

func decodeRaw(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return apperr.IllegalArgument("Invalid request body: %v", err)
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func dateHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	return variable.ParseDate(data.(string))
}

// decodeQuery maps a parameter tree (URL values or a JSON body) onto a query struct
// through its mapstructure tags.
func decodeQuery(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			dateHook,
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return apperr.IllegalArgument("Invalid query: %v", err)
	}
	return nil
}

func flatten(values url.Values) map[string]any {
	raw := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			raw[k] = vs[0]
		} else {
			raw[k] = vs
		}
	}
	return raw
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.IllegalArgument("Value for param '%s' is not a valid boolean: '%s'", name, v)
	}
	return b, nil
}

// action is the body of the POST/PUT action endpoints.
type action struct {
	Action                  string                  `json:"action"`
	Assignee                *string                 `json:"assignee"`
	IncludeProcessInstances bool                    `json:"includeProcessInstances"`
	Variables               []variable.RestVariable `json:"variables"`
}

func invalidAction(a string) error {
	return apperr.IllegalArgument("Invalid action: '%s'.", a)
}

// urls builds resource urls from the request scheme and host.
type urls string

func urlsOf(r *http.Request) urls {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return urls(scheme + "://" + r.Host)
}

func (u urls) path(segments ...string) string {
	var b strings.Builder
	b.WriteString(string(u))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// ref renders an optional link: empty ids give an empty url.
func (u urls) ref(id string, segments ...string) string {
	if id == "" {
		return ""
	}
	return u.path(append(segments, id)...)
}

func param(r *http.Request, name string) string { return chi.URLParam(r, name) }

// userHeader names the caller for start user ids and comment authors. Authentication
// happens in front of the engine.
const userHeader = "X-User-Id"

func currentUser(r *http.Request) string { return strings.TrimSpace(r.Header.Get(userHeader)) }
