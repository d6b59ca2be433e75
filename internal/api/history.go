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

type HistoryController struct {
	*core.BaseComponent
	Engine *engine.Engine `infra:"dep:process_engine"`
}

func NewHistoryController() *HistoryController {
	return &HistoryController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_HISTORY)}
}

func (c *HistoryController) Routes(r chi.Router) {
	processes := lister[model.HistoricProcessInstanceQuery, *model.HistoricProcessInstance, historicProcessInstanceResponse]{
		defaultSort: "processInstanceId",
		props: query.SortProperties{
			"processInstanceId":   "proc_inst_id",
			"processDefinitionId": "proc_def_id",
			"businessKey":         "business_key",
			"startTime":           "start_time",
			"endTime":             "end_time",
			"duration":            "duration",
			"tenantId":            "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.HistoricProcessInstanceQuery, page query.Page) ([]*model.HistoricProcessInstance, int64, error) {
			return c.Engine.HistoricProcessInstances(ctx, q, page)
		},
		present: c.presentProcesses,
	}
	tasks := lister[model.HistoricTaskInstanceQuery, *model.HistoricTaskInstance, historicTaskInstanceResponse]{
		defaultSort: "taskInstanceId",
		props: query.SortProperties{
			"taskInstanceId":      "id",
			"processDefinitionId": "proc_def_id",
			"processInstanceId":   "proc_inst_id",
			"executionId":         "execution_id",
			"taskDefinitionKey":   "task_def_key",
			"name":                "name_",
			"description":         "description",
			"assignee":            "assignee",
			"owner":               "owner",
			"priority":            "priority",
			"startTime":           "start_time",
			"endTime":             "end_time",
			"duration":            "duration",
			"dueDate":             "due_date",
			"deleteReason":        "delete_reason",
			"tenantId":            "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.HistoricTaskInstanceQuery, page query.Page) ([]*model.HistoricTaskInstance, int64, error) {
			return c.Engine.HistoricTaskInstances(ctx, q, page)
		},
		present: c.presentTasks,
	}
	activities := lister[model.HistoricActivityInstanceQuery, *model.HistoricActivityInstance, historicActivityInstanceResponse]{
		defaultSort: "activityInstanceId",
		props: query.SortProperties{
			"activityInstanceId":  "id",
			"activityId":          "act_id",
			"activityName":        "act_name",
			"activityType":        "act_type",
			"processDefinitionId": "proc_def_id",
			"processInstanceId":   "proc_inst_id",
			"executionId":         "execution_id",
			"assignee":            "assignee",
			"startTime":           "start_time",
			"endTime":             "end_time",
			"duration":            "duration",
			"tenantId":            "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.HistoricActivityInstanceQuery, page query.Page) ([]*model.HistoricActivityInstance, int64, error) {
			return c.Engine.HistoricActivityInstances(ctx, q, page)
		},
		present: each[model.HistoricActivityInstanceQuery](toHistoricActivityInstance),
	}
	variables := lister[model.HistoricVariableInstanceQuery, *model.HistoricVariableInstance, historicVariableInstanceResponse]{
		defaultSort: "variableName",
		props: query.SortProperties{
			"variableName":      "name_",
			"processInstanceId": "proc_inst_id",
		},
		fetch: func(ctx context.Context, q *model.HistoricVariableInstanceQuery, page query.Page) ([]*model.HistoricVariableInstance, int64, error) {
			return c.Engine.HistoricVariableInstances(ctx, q, page)
		},
		present: each[model.HistoricVariableInstanceQuery](toHistoricVariableInstance),
	}
	details := lister[model.HistoricDetailQuery, *model.HistoricDetail, historicDetailResponse]{
		defaultSort: "processInstanceId",
		props: query.SortProperties{
			"processInstanceId": "proc_inst_id",
			"time":              "time_",
			"name":              "name_",
			"revision":          "rev",
		},
		fetch: func(ctx context.Context, q *model.HistoricDetailQuery, page query.Page) ([]*model.HistoricDetail, int64, error) {
			return c.Engine.HistoricDetails(ctx, q, page)
		},
		present: each[model.HistoricDetailQuery](toHistoricDetail),
	}

	r.Post("/query/historic-process-instances", processes.post)
	r.Post("/query/historic-task-instances", tasks.post)
	r.Post("/query/historic-activity-instances", activities.post)
	r.Post("/query/historic-variable-instances", variables.post)
	r.Post("/query/historic-detail", details.post)

	r.Route("/history", func(r chi.Router) {
		r.Get("/historic-process-instances", processes.get)
		r.Route("/historic-process-instances/{id}", func(r chi.Router) {
			r.Get("/", c.getProcess)
			r.Delete("/", c.deleteProcess)
			r.Get("/identitylinks", c.processLinks)
			r.Get("/variables/{name}/data", c.processVariableData)
			r.Get("/comments", c.listComments)
			r.Post("/comments", c.addComment)
		})
		r.Get("/historic-task-instances", tasks.get)
		r.Route("/historic-task-instances/{id}", func(r chi.Router) {
			r.Get("/", c.getTask)
			r.Delete("/", c.deleteTask)
			r.Get("/identitylinks", c.taskLinks)
			r.Get("/variables/{name}/data", c.taskVariableData)
		})
		r.Get("/historic-activity-instances", activities.get)
		r.Get("/historic-variable-instances", variables.get)
		r.Get("/historic-variable-instances/{id}/data", c.variableData)
		r.Get("/historic-detail", details.get)
		r.Get("/historic-detail/{id}/data", c.detailData)
	})
}

func (c *HistoryController) presentProcesses(r *http.Request, q *model.HistoricProcessInstanceQuery, items []*model.HistoricProcessInstance) ([]historicProcessInstanceResponse, error) {
	u := urlsOf(r)
	out := make([]historicProcessInstanceResponse, 0, len(items))
	for _, h := range items {
		out = append(out, toHistoricProcessInstance(u, h))
	}
	if !q.IncludeProcessVariables || len(items) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(items))
	for _, h := range items {
		ids = append(ids, h.ID)
	}
	vars, err := c.Engine.HistoricVariablesOfProcessInstances(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Variables = historicVariables(vars[out[i].ID], u)
	}
	return out, nil
}

func (c *HistoryController) presentTasks(r *http.Request, q *model.HistoricTaskInstanceQuery, items []*model.HistoricTaskInstance) ([]historicTaskInstanceResponse, error) {
	u := urlsOf(r)
	out := make([]historicTaskInstanceResponse, 0, len(items))
	for _, h := range items {
		out = append(out, toHistoricTaskInstance(u, h))
	}
	if len(items) == 0 {
		return out, nil
	}
	if q.IncludeTaskLocalVariables {
		ids := make([]string, 0, len(items))
		for _, h := range items {
			ids = append(ids, h.ID)
		}
		vars, err := c.Engine.HistoricVariablesOfTasks(r.Context(), ids)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Variables = append(out[i].Variables, historicVariables(vars[out[i].ID], u)...)
		}
	}
	if q.IncludeProcessVariables {
		var ids []string
		for _, h := range items {
			if h.ProcessInstanceID != "" {
				ids = append(ids, h.ProcessInstanceID)
			}
		}
		if len(ids) > 0 {
			vars, err := c.Engine.HistoricVariablesOfProcessInstances(r.Context(), ids)
			if err != nil {
				return nil, err
			}
			for i := range out {
				out[i].Variables = append(out[i].Variables, historicVariables(vars[out[i].ProcessInstanceID], u)...)
			}
		}
	}
	return out, nil
}

func (c *HistoryController) getProcess(w http.ResponseWriter, r *http.Request) {
	h, err := c.Engine.HistoricProcessInstance(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoricProcessInstance(urlsOf(r), h))
}

func (c *HistoryController) deleteProcess(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteHistoricProcessInstance(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *HistoryController) processLinks(w http.ResponseWriter, r *http.Request) {
	links, err := c.Engine.HistoricProcessInstanceIdentityLinks(r.Context(), param(r, "id"))
	writeHistoricLinks(w, r, links, err)
}

func (c *HistoryController) getTask(w http.ResponseWriter, r *http.Request) {
	h, err := c.Engine.HistoricTaskInstance(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoricTaskInstance(urlsOf(r), h))
}

func (c *HistoryController) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteHistoricTaskInstance(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *HistoryController) taskLinks(w http.ResponseWriter, r *http.Request) {
	links, err := c.Engine.HistoricTaskInstanceIdentityLinks(r.Context(), param(r, "id"))
	writeHistoricLinks(w, r, links, err)
}

func writeHistoricLinks(w http.ResponseWriter, r *http.Request, links []*model.HistoricIdentityLink, err error) {
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u := urlsOf(r)
	out := make([]historicIdentityLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, toHistoricIdentityLink(u, l))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeValueData streams the bytes of a binary historic value.
func writeValueData(w http.ResponseWriter, r *http.Request, v variable.Value) {
	if !v.IsBinary() {
		writeErr(w, r, apperr.NotFound("The variable does not have a binary data stream."))
		return
	}
	writeBytes(w, v.ContentType(), v.Bytes)
}

func (c *HistoryController) processVariableData(w http.ResponseWriter, r *http.Request) {
	h, err := c.Engine.HistoricProcessInstanceVariable(r.Context(), param(r, "id"), param(r, "name"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeValueData(w, r, h.Value)
}

func (c *HistoryController) taskVariableData(w http.ResponseWriter, r *http.Request) {
	h, err := c.Engine.HistoricTaskInstanceVariable(r.Context(), param(r, "id"), param(r, "name"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeValueData(w, r, h.Value)
}

func (c *HistoryController) variableData(w http.ResponseWriter, r *http.Request) {
	h, err := c.Engine.HistoricVariableInstance(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeValueData(w, r, h.Value)
}

func (c *HistoryController) detailData(w http.ResponseWriter, r *http.Request) {
	h, err := c.Engine.HistoricDetail(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeValueData(w, r, h.Value)
}

func (c *HistoryController) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := c.Engine.ProcessInstanceComments(r.Context(), param(r, "id"))
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

func (c *HistoryController) addComment(w http.ResponseWriter, r *http.Request) {
	var body commentBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	cm, err := c.Engine.AddProcessInstanceComment(r.Context(), param(r, "id"), currentUser(r), body.Message)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toComment(urlsOf(r), cm))
}
