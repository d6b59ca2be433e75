package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

// RuntimeController serves process instances and executions.
type RuntimeController struct {
	*core.BaseComponent
	Engine *engine.Engine `infra:"dep:process_engine"`
}

func NewRuntimeController() *RuntimeController {
	return &RuntimeController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_RUNTIME)}
}

func (c *RuntimeController) Routes(r chi.Router) {
	instances := lister[model.ProcessInstanceQuery, *model.Execution, processInstanceResponse]{
		defaultSort: "id",
		props: query.SortProperties{
			"id":                  "id",
			"processDefinitionId": "process_definition_id",
			"tenantId":            "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.ProcessInstanceQuery, page query.Page) ([]*model.Execution, int64, error) {
			return c.Engine.ProcessInstances(ctx, q, page)
		},
		present: c.presentInstances,
	}
	executions := lister[model.ExecutionQuery, *model.Execution, executionResponse]{
		defaultSort: "processInstanceId",
		props: query.SortProperties{
			"processInstanceId":   "process_instance_id",
			"processDefinitionId": "process_definition_id",
			"tenantId":            "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.ExecutionQuery, page query.Page) ([]*model.Execution, int64, error) {
			return c.Engine.Executions(ctx, q, page)
		},
		present: each[model.ExecutionQuery](toExecution),
	}
	instanceVars := varTarget{
		resource:     "runtime/process-instances",
		defaultScope: variable.ScopeGlobal,
		list: func(ctx context.Context, id string, _ variable.Scope) ([]engine.ScopedVariable, error) {
			return c.Engine.ProcessInstanceVariables(ctx, id)
		},
		get: func(ctx context.Context, id, name string, _ variable.Scope) (*engine.ScopedVariable, error) {
			return c.Engine.ProcessInstanceVariable(ctx, id, name)
		},
		set: func(ctx context.Context, id string, _ variable.Scope, vars []engine.NamedValue, createOnly bool) error {
			return c.Engine.SetProcessInstanceVariables(ctx, id, vars, createOnly)
		},
		del: func(ctx context.Context, id, name string, _ variable.Scope) error {
			return c.Engine.DeleteProcessInstanceVariable(ctx, id, name)
		},
		delAll: c.Engine.DeleteProcessInstanceVariables,
	}
	executionVars := varTarget{
		resource:     "runtime/executions",
		scoped:       true,
		defaultScope: variable.ScopeLocal,
		list:         c.Engine.ExecutionVariables,
		get:          c.Engine.ExecutionVariable,
		set:          c.Engine.SetExecutionVariables,
		del:          c.Engine.DeleteExecutionVariable,
		delAll:       c.Engine.DeleteExecutionLocalVariables,
	}

	r.Post("/query/process-instances", instances.post)
	r.Post("/query/executions", executions.post)
	r.Route("/runtime/process-instances", func(r chi.Router) {
		r.Get("/", instances.get)
		r.Post("/", c.startInstance)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.getInstance)
			r.Put("/", c.instanceAction)
			r.Delete("/", c.deleteInstance)
			r.Get("/identitylinks", c.listInstanceLinks)
			r.Post("/identitylinks", c.addInstanceLink)
			r.Get("/identitylinks/users/{userId}/{type}", c.getInstanceLink)
			r.Delete("/identitylinks/users/{userId}/{type}", c.deleteInstanceLink)
			instanceVars.mount(r)
		})
	})
	r.Route("/runtime/executions", func(r chi.Router) {
		r.Get("/", executions.get)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.getExecution)
			r.Put("/", c.executionAction)
			r.Get("/activities", c.activities)
			executionVars.mount(r)
		})
	})
}

// namedValues converts request variables; the first invalid one fails the request.
func namedValues(in []variable.RestVariable) ([]engine.NamedValue, error) {
	out := make([]engine.NamedValue, 0, len(in))
	for _, rv := range in {
		val, err := rv.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, engine.NamedValue{Name: rv.Name, Value: val})
	}
	return out, nil
}

func (c *RuntimeController) presentInstances(r *http.Request, q *model.ProcessInstanceQuery, items []*model.Execution) ([]processInstanceResponse, error) {
	u := urlsOf(r)
	out := make([]processInstanceResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toProcessInstance(u, e))
	}
	if !q.IncludeProcessVariables || len(items) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(items))
	for _, e := range items {
		ids = append(ids, e.ID)
	}
	vars, err := c.Engine.VariablesOfExecutions(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		id := out[i].ID
		out[i].Variables = restVariables(vars[id], variable.ScopeLocal, func(name string) string {
			return u.path("runtime", "process-instances", id, "variables", name, "data")
		})
	}
	return out, nil
}

type startBody struct {
	ProcessDefinitionID  string                  `json:"processDefinitionId"`
	ProcessDefinitionKey string                  `json:"processDefinitionKey"`
	Message              string                  `json:"message"`
	BusinessKey          string                  `json:"businessKey"`
	TenantID             string                  `json:"tenantId"`
	Variables            []variable.RestVariable `json:"variables"`
}

func (c *RuntimeController) startInstance(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	set := 0
	for _, s := range []string{body.ProcessDefinitionID, body.ProcessDefinitionKey, body.Message} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		writeErr(w, r, apperr.IllegalArgument("Either processDefinitionId, processDefinitionKey or message is required."))
		return
	}
	if body.Message != "" {
		writeErr(w, r, apperr.IllegalArgument("Starting a process instance by message is not supported."))
		return
	}
	vars, err := namedValues(body.Variables)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	started, err := c.Engine.StartProcessInstance(r.Context(), engine.StartRequest{
		ProcessDefinitionID:  body.ProcessDefinitionID,
		ProcessDefinitionKey: body.ProcessDefinitionKey,
		TenantID:             body.TenantID,
		BusinessKey:          body.BusinessKey,
		StartUserID:          currentUser(r),
		Variables:            vars,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	resp := toProcessInstance(urlsOf(r), started.Execution)
	resp.Ended = started.Ended
	resp.Completed = started.Ended
	writeJSON(w, http.StatusCreated, resp)
}

func (c *RuntimeController) getInstance(w http.ResponseWriter, r *http.Request) {
	pi, err := c.Engine.ProcessInstance(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstance(urlsOf(r), pi))
}

func (c *RuntimeController) instanceAction(w http.ResponseWriter, r *http.Request) {
	var a action
	if err := readJSON(r, &a); err != nil {
		writeErr(w, r, err)
		return
	}
	var (
		pi  *model.Execution
		err error
	)
	switch a.Action {
	case "suspend":
		pi, err = c.Engine.SuspendProcessInstance(r.Context(), param(r, "id"))
	case "activate":
		pi, err = c.Engine.ActivateProcessInstance(r.Context(), param(r, "id"))
	default:
		err = invalidAction(a.Action)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstance(urlsOf(r), pi))
}

func (c *RuntimeController) deleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteProcessInstance(r.Context(), param(r, "id"), r.URL.Query().Get("deleteReason")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *RuntimeController) listInstanceLinks(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	links, err := c.Engine.ProcessInstanceIdentityLinks(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u := urlsOf(r)
	out := make([]identityLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, toProcessInstanceLink(u, id, l))
	}
	writeJSON(w, http.StatusOK, out)
}

type linkBody struct {
	User  string `json:"user"`
	Group string `json:"group"`
	Type  string `json:"type"`
}

func (c *RuntimeController) addInstanceLink(w http.ResponseWriter, r *http.Request) {
	var body linkBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	if body.Group != "" {
		writeErr(w, r, apperr.IllegalArgument("Only user identity links are supported on a process instance."))
		return
	}
	if body.User == "" {
		writeErr(w, r, apperr.IllegalArgument("The user is required."))
		return
	}
	if body.Type == "" {
		writeErr(w, r, apperr.IllegalArgument("The identity link type is required."))
		return
	}
	id := param(r, "id")
	link, err := c.Engine.AddProcessInstanceIdentityLink(r.Context(), id, body.User, body.Type)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProcessInstanceLink(urlsOf(r), id, link))
}

func (c *RuntimeController) getInstanceLink(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	link, err := c.Engine.ProcessInstanceIdentityLink(r.Context(), id, param(r, "userId"), param(r, "type"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessInstanceLink(urlsOf(r), id, link))
}

func (c *RuntimeController) deleteInstanceLink(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteProcessInstanceIdentityLink(r.Context(), param(r, "id"), param(r, "userId"), param(r, "type")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *RuntimeController) getExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := c.Engine.Execution(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecution(urlsOf(r), exec))
}

// executionAction signals a waiting execution. When the signal ends the execution the
// response has no body.
func (c *RuntimeController) executionAction(w http.ResponseWriter, r *http.Request) {
	var a action
	if err := readJSON(r, &a); err != nil {
		writeErr(w, r, err)
		return
	}
	if a.Action != "signal" {
		writeErr(w, r, invalidAction(a.Action))
		return
	}
	vars, err := namedValues(a.Variables)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := param(r, "id")
	if err := c.Engine.Signal(r.Context(), id, vars); err != nil {
		writeErr(w, r, err)
		return
	}
	exec, err := c.Engine.Execution(r.Context(), id)
	if apperr.IsNotFound(err) {
		noContent(w)
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecution(urlsOf(r), exec))
}

func (c *RuntimeController) activities(w http.ResponseWriter, r *http.Request) {
	ids, err := c.Engine.ActiveActivities(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}
