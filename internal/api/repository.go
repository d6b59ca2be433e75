package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

var deployableSuffixes = []string{".bpmn20.xml", ".bpmn", ".bar", ".zip"}

type RepositoryController struct {
	*core.BaseComponent
	Engine *engine.Engine `infra:"dep:process_engine"`
}

func NewRepositoryController() *RepositoryController {
	return &RepositoryController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_REPOSITORY)}
}

func (c *RepositoryController) Routes(r chi.Router) {
	deployments := lister[model.DeploymentQuery, *model.Deployment, deploymentResponse]{
		defaultSort: "id",
		props: query.SortProperties{
			"id":         "id",
			"name":       "name_",
			"deployTime": "deploy_time",
			"tenantId":   "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.DeploymentQuery, page query.Page) ([]*model.Deployment, int64, error) {
			return c.Engine.Deployments(ctx, q, page)
		},
		present: each[model.DeploymentQuery](toDeployment),
	}
	definitions := lister[model.ProcessDefinitionQuery, *model.ProcessDefinition, processDefinitionResponse]{
		defaultSort: "name",
		props: query.SortProperties{
			"id":           "id",
			"key":          "key_",
			"category":     "category",
			"name":         "name_",
			"version":      "version",
			"deploymentId": "deployment_id",
			"tenantId":     "tenant_id",
		},
		fetch: func(ctx context.Context, q *model.ProcessDefinitionQuery, page query.Page) ([]*model.ProcessDefinition, int64, error) {
			return c.Engine.ProcessDefinitions(ctx, q, page)
		},
		present: each[model.ProcessDefinitionQuery](toProcessDefinition),
	}

	r.Route("/repository/deployments", func(r chi.Router) {
		r.Get("/", deployments.get)
		r.Post("/", c.deploy)
		r.Get("/{id}", c.getDeployment)
		r.Delete("/{id}", c.deleteDeployment)
		r.Get("/{id}/resources", c.listResources)
		r.Get("/{id}/resources/*", c.getResource)
		r.Get("/{id}/resourcedata/*", c.resourceData)
	})
	r.Route("/repository/process-definitions", func(r chi.Router) {
		r.Get("/", definitions.get)
		r.Get("/{id}", c.getDefinition)
		r.Put("/{id}", c.updateDefinition)
		r.Get("/{id}/resourcedata", c.definitionData)
	})
}

// deploy accepts a multipart body; every file part becomes a deployment resource.
func (c *RepositoryController) deploy(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeErr(w, r, apperr.UnsupportedMediaType("Deployment requires multipart/form-data content"))
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeErr(w, r, apperr.IllegalArgument("Invalid multipart body: %v", err))
		return
	}
	req := engine.DeployRequest{
		Name:      r.FormValue("deploymentName"),
		TenantID:  r.FormValue("tenantId"),
		Category:  r.FormValue("category"),
		Resources: map[string][]byte{},
	}
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			if !deployable(fh.Filename) {
				writeErr(w, r, apperr.IllegalArgument("File must be of type .bpmn20.xml, .bpmn, .bar or .zip"))
				return
			}
			f, err := fh.Open()
			if err != nil {
				writeErr(w, r, apperr.IllegalArgument("Could not read file '%s': %v", fh.Filename, err))
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeErr(w, r, apperr.IllegalArgument("Could not read file '%s': %v", fh.Filename, err))
				return
			}
			req.Resources[fh.Filename] = data
			if req.Name == "" {
				req.Name = fh.Filename
			}
		}
	}
	if len(req.Resources) == 0 {
		writeErr(w, r, apperr.IllegalArgument("No file content was found in request body."))
		return
	}
	dep, err := c.Engine.Deploy(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeployment(urlsOf(r), dep))
}

func deployable(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range deployableSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

func (c *RepositoryController) getDeployment(w http.ResponseWriter, r *http.Request) {
	dep, err := c.Engine.Deployment(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeployment(urlsOf(r), dep))
}

func (c *RepositoryController) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	cascade, err := boolParam(r, "cascade")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := c.Engine.DeleteDeployment(r.Context(), param(r, "id"), cascade); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *RepositoryController) listResources(w http.ResponseWriter, r *http.Request) {
	list, err := c.Engine.DeploymentResources(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u := urlsOf(r)
	out := make([]resourceResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toResource(u, res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *RepositoryController) getResource(w http.ResponseWriter, r *http.Request) {
	res, err := c.Engine.DeploymentResource(r.Context(), param(r, "id"), param(r, "*"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResource(urlsOf(r), res))
}

func (c *RepositoryController) resourceData(w http.ResponseWriter, r *http.Request) {
	name := param(r, "*")
	data, err := c.Engine.DeploymentResourceData(r.Context(), param(r, "id"), name)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeBytes(w, mediaType(name), data)
}

func (c *RepositoryController) getDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := c.Engine.ProcessDefinition(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessDefinition(urlsOf(r), def))
}

// updateDefinition either changes the category (a body with "category") or runs the
// suspend/activate action.
func (c *RepositoryController) updateDefinition(w http.ResponseWriter, r *http.Request) {
	raw, err := readRaw(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := param(r, "id")
	var def *model.ProcessDefinition
	if cat := gjson.GetBytes(raw, "category"); cat.Exists() {
		def, err = c.Engine.SetProcessDefinitionCategory(r.Context(), id, cat.String())
	} else {
		var a action
		if err = decodeRaw(raw, &a); err != nil {
			writeErr(w, r, err)
			return
		}
		switch a.Action {
		case "suspend":
			def, err = c.Engine.SuspendProcessDefinition(r.Context(), id, a.IncludeProcessInstances)
		case "activate":
			def, err = c.Engine.ActivateProcessDefinition(r.Context(), id, a.IncludeProcessInstances)
		default:
			err = invalidAction(a.Action)
		}
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessDefinition(urlsOf(r), def))
}

func (c *RepositoryController) definitionData(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	def, err := c.Engine.ProcessDefinition(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	data, err := c.Engine.ProcessDefinitionResourceData(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeBytes(w, mediaType(def.ResourceName), data)
}
