package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

// ManagementController serves jobs and engine information.
type ManagementController struct {
	*core.BaseComponent
	Engine *engine.Engine `infra:"dep:process_engine"`
}

func NewManagementController() *ManagementController {
	return &ManagementController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_MANAGEMENT)}
}

func (c *ManagementController) Routes(r chi.Router) {
	jobs := lister[model.JobQuery, *model.Job, jobResponse]{
		defaultSort: "id",
		props: query.SortProperties{
			"id":                "id",
			"dueDate":           "due_date",
			"executionId":       "execution_id",
			"processInstanceId": "process_instance_id",
			"retries":           "retries",
			"tenantId":          "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.JobQuery, page query.Page) ([]*model.Job, int64, error) {
			return c.Engine.Jobs(ctx, q, page)
		},
		present: each[model.JobQuery](toJob),
	}

	r.Get("/management/engine", c.engineInfo)
	r.Route("/management/jobs", func(r chi.Router) {
		r.Get("/", jobs.get)
		r.Get("/{id}", c.getJob)
		r.Delete("/{id}", c.deleteJob)
		r.Post("/{id}", c.jobAction)
		r.Get("/{id}/exception-stacktrace", c.stacktrace)
	})
}

func (c *ManagementController) engineInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toEngineInfo(c.Engine.EngineInfo()))
}

func (c *ManagementController) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := c.Engine.Job(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJob(urlsOf(r), j))
}

func (c *ManagementController) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteJob(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

// jobAction executes the job right away, regardless of its due date. A failing job
// answers 500 and keeps the failure on the job.
func (c *ManagementController) jobAction(w http.ResponseWriter, r *http.Request) {
	var a action
	if err := readJSON(r, &a); err != nil {
		writeErr(w, r, err)
		return
	}
	if a.Action != "execute" {
		writeErr(w, r, invalidAction(a.Action))
		return
	}
	if err := c.Engine.ExecuteJob(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *ManagementController) stacktrace(w http.ResponseWriter, r *http.Request) {
	trace, err := c.Engine.JobExceptionStacktrace(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeBytes(w, "text/plain", []byte(trace))
}
