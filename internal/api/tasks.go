package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

type TaskController struct {
	*core.BaseComponent
	Engine *engine.Engine `infra:"dep:process_engine"`
}

func NewTaskController() *TaskController {
	return &TaskController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_TASK)}
}

func (c *TaskController) Routes(r chi.Router) {
	tasks := lister[model.TaskQuery, *model.Task, taskResponse]{
		defaultSort: "id",
		props: query.SortProperties{
			"id":                "id",
			"name":              "name_",
			"description":       "description",
			"dueDate":           "due_date",
			"createTime":        "create_time",
			"priority":          "priority",
			"executionId":       "execution_id",
			"processInstanceId": "process_instance_id",
			"tenantId":          "tenant_id",
			"assignee":          "assignee",
			"owner":             "owner",
		},
		fetch: func(ctx context.Context, q *model.TaskQuery, page query.Page) ([]*model.Task, int64, error) {
			return c.Engine.Tasks(ctx, q, page)
		},
		present: c.presentTasks,
	}
	taskVars := varTarget{
		resource:     "runtime/tasks",
		scoped:       true,
		defaultScope: variable.ScopeLocal,
		list:         c.Engine.TaskVariables,
		get:          c.Engine.TaskVariable,
		set:          c.Engine.SetTaskVariables,
		del:          c.Engine.DeleteTaskVariable,
		delAll:       c.Engine.DeleteTaskLocalVariables,
	}

	r.Post("/query/tasks", tasks.post)
	r.Route("/runtime/tasks", func(r chi.Router) {
		r.Get("/", tasks.get)
		r.Post("/", c.createTask)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.getTask)
			r.Put("/", c.updateTask)
			r.Post("/", c.taskAction)
			r.Delete("/", c.deleteTask)
			r.Get("/subtasks", c.subTasks)
			r.Get("/identitylinks", c.listLinks(""))
			r.Post("/identitylinks", c.addLink)
			r.Get("/identitylinks/users", c.listLinks("users"))
			r.Get("/identitylinks/groups", c.listLinks("groups"))
			r.Get("/identitylinks/{family}/{identityId}/{type}", c.getLink)
			r.Delete("/identitylinks/{family}/{identityId}/{type}", c.deleteLink)
			r.Get("/comments", c.listComments)
			r.Post("/comments", c.addComment)
			r.Get("/comments/{commentId}", c.getComment)
			r.Delete("/comments/{commentId}", c.deleteComment)
			taskVars.mount(r)
		})
	})
}

func (c *TaskController) presentTasks(r *http.Request, q *model.TaskQuery, items []*model.Task) ([]taskResponse, error) {
	u := urlsOf(r)
	out := make([]taskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toTask(u, t))
	}
	if len(items) == 0 || (!q.IncludeTaskLocalVariables && !q.IncludeProcessVariables) {
		return out, nil
	}
	if q.IncludeTaskLocalVariables {
		ids := make([]string, 0, len(items))
		for _, t := range items {
			ids = append(ids, t.ID)
		}
		locals, err := c.Engine.VariablesOfTasks(r.Context(), ids)
		if err != nil {
			return nil, err
		}
		for i := range out {
			id := out[i].ID
			out[i].Variables = append(out[i].Variables, restVariables(locals[id], variable.ScopeLocal, func(name string) string {
				return u.path("runtime", "tasks", id, "variables", name, "data") + "?scope=local"
			})...)
		}
	}
	if q.IncludeProcessVariables {
		var ids []string
		for _, t := range items {
			if t.ProcessInstanceID != "" {
				ids = append(ids, t.ProcessInstanceID)
			}
		}
		if len(ids) > 0 {
			globals, err := c.Engine.VariablesOfExecutions(r.Context(), ids)
			if err != nil {
				return nil, err
			}
			for i := range out {
				id, pi := out[i].ID, out[i].ProcessInstanceID
				out[i].Variables = append(out[i].Variables, restVariables(globals[pi], variable.ScopeGlobal, func(name string) string {
					return u.path("runtime", "tasks", id, "variables", name, "data") + "?scope=global"
				})...)
			}
		}
	}
	return out, nil
}

// readPatch maps the fields present in a task body onto a patch. A JSON null clears
// the field.
func readPatch(raw []byte) (engine.TaskPatch, error) {
	var p engine.TaskPatch
	str := func(key string) *string {
		res := gjson.GetBytes(raw, key)
		if !res.Exists() {
			return nil
		}
		s := ""
		if res.Type != gjson.Null {
			s = res.String()
		}
		return &s
	}
	p.Name = str("name")
	p.Description = str("description")
	p.Owner = str("owner")
	p.Assignee = str("assignee")
	p.DelegationState = str("delegationState")
	p.Category = str("category")
	p.FormKey = str("formKey")
	p.ParentTaskID = str("parentTaskId")
	p.TenantID = str("tenantId")

	if res := gjson.GetBytes(raw, "priority"); res.Exists() && res.Type != gjson.Null {
		if res.Type != gjson.Number {
			return p, apperr.IllegalArgument("Priority must be a number: '%s'", res.Raw)
		}
		n := int(res.Int())
		p.Priority = &n
	}
	if res := gjson.GetBytes(raw, "dueDate"); res.Exists() {
		p.DueDateSet = true
		if res.Type != gjson.Null {
			due, err := variable.ParseDate(res.String())
			if err != nil {
				return p, apperr.IllegalArgument("Invalid dueDate: '%s'", res.String())
			}
			p.DueDate = &due
		}
	}
	return p, nil
}

func (c *TaskController) createTask(w http.ResponseWriter, r *http.Request) {
	raw, err := readRaw(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := readPatch(raw)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	t, err := c.Engine.CreateTask(r.Context(), p)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTask(urlsOf(r), t))
}

func (c *TaskController) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := c.Engine.Task(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTask(urlsOf(r), t))
}

func (c *TaskController) updateTask(w http.ResponseWriter, r *http.Request) {
	raw, err := readRaw(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := readPatch(raw)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	t, err := c.Engine.UpdateTask(r.Context(), param(r, "id"), p)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTask(urlsOf(r), t))
}

func (c *TaskController) deleteTask(w http.ResponseWriter, r *http.Request) {
	cascade, err := boolParam(r, "cascadeHistory")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := c.Engine.DeleteTask(r.Context(), param(r, "id"), cascade, r.URL.Query().Get("deleteReason")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

// taskAction runs complete, claim, delegate or resolve. A claim with a null assignee
// releases the task.
func (c *TaskController) taskAction(w http.ResponseWriter, r *http.Request) {
	var a action
	if err := readJSON(r, &a); err != nil {
		writeErr(w, r, err)
		return
	}
	ctx, id := r.Context(), param(r, "id")
	var err error
	switch a.Action {
	case "complete":
		var vars []engine.NamedValue
		if vars, err = namedValues(a.Variables); err == nil {
			err = c.Engine.CompleteTask(ctx, id, vars)
		}
	case "claim":
		user := ""
		if a.Assignee != nil {
			user = *a.Assignee
		}
		_, err = c.Engine.Claim(ctx, id, user)
	case "delegate":
		if a.Assignee == nil || *a.Assignee == "" {
			err = apperr.IllegalArgument("An assignee is required when delegating a task.")
			break
		}
		_, err = c.Engine.Delegate(ctx, id, *a.Assignee)
	case "resolve":
		_, err = c.Engine.Resolve(ctx, id)
	default:
		err = invalidAction(a.Action)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *TaskController) subTasks(w http.ResponseWriter, r *http.Request) {
	subs, err := c.Engine.SubTasks(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u := urlsOf(r)
	out := make([]taskResponse, 0, len(subs))
	for _, t := range subs {
		out = append(out, toTask(u, t))
	}
	writeJSON(w, http.StatusOK, out)
}

// listLinks lists all links of the task, or only the user or group links.
func (c *TaskController) listLinks(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := param(r, "id")
		links, err := c.Engine.TaskIdentityLinks(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		u := urlsOf(r)
		out := make([]identityLinkResponse, 0, len(links))
		for _, l := range links {
			if (family == "users" && l.UserID == "") || (family == "groups" && l.GroupID == "") {
				continue
			}
			out = append(out, toTaskLink(u, id, l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (c *TaskController) addLink(w http.ResponseWriter, r *http.Request) {
	var body linkBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	id := param(r, "id")
	link, err := c.Engine.AddTaskIdentityLink(r.Context(), id, body.User, body.Group, body.Type)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskLink(urlsOf(r), id, link))
}

// linkTarget splits {family}/{identityId} into a user or a group id.
func linkTarget(r *http.Request) (userID, groupID string, err error) {
	switch family := param(r, "family"); family {
	case "users":
		return param(r, "identityId"), "", nil
	case "groups":
		return "", param(r, "identityId"), nil
	default:
		return "", "", apperr.IllegalArgument("Identity link family must be 'users' or 'groups', was '%s'", family)
	}
}

func (c *TaskController) getLink(w http.ResponseWriter, r *http.Request) {
	userID, groupID, err := linkTarget(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := param(r, "id")
	link, err := c.Engine.TaskIdentityLink(r.Context(), id, userID, groupID, param(r, "type"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskLink(urlsOf(r), id, link))
}

func (c *TaskController) deleteLink(w http.ResponseWriter, r *http.Request) {
	userID, groupID, err := linkTarget(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := c.Engine.DeleteTaskIdentityLink(r.Context(), param(r, "id"), userID, groupID, param(r, "type")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

// commentBody is the body of a new comment. Comments on process tasks are always linked
// to their process instance as well.
type commentBody struct {
	Message string `json:"message"`
}

func (c *TaskController) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := c.Engine.TaskComments(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u := urlsOf(r)
	out := make([]commentResponse, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toComment(u, cm))
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *TaskController) addComment(w http.ResponseWriter, r *http.Request) {
	var body commentBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	cm, err := c.Engine.AddTaskComment(r.Context(), param(r, "id"), currentUser(r), body.Message)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toComment(urlsOf(r), cm))
}

func (c *TaskController) getComment(w http.ResponseWriter, r *http.Request) {
	cm, err := c.Engine.TaskComment(r.Context(), param(r, "id"), param(r, "commentId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toComment(urlsOf(r), cm))
}

func (c *TaskController) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteTaskComment(r.Context(), param(r, "id"), param(r, "commentId")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}
