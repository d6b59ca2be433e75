package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/bpmn"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

var (
	processSuffixes = []string{".bpmn20.xml", ".bpmn"}
	archiveSuffixes = []string{".zip", ".bar"}
	diagramSuffixes = []string{".png", ".jpg", ".gif", ".svg"}
)

type DeployRequest struct {
	Name     string
	TenantID string
	Category string
	// Resources maps a file name to its content. Zip archives are expanded.
	Resources map[string][]byte
}

func hasSuffix(name string, suffixes []string) (string, bool) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return s, true
		}
	}
	return "", false
}

func expandResources(in map[string][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(in))
	for name, data := range in {
		if _, ok := hasSuffix(name, archiveSuffixes); !ok {
			out[name] = data
			continue
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, apperr.IllegalArgument("Resource '%s' is not a valid zip archive: %v", name, err)
		}
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			content, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return nil, err
			}
			out[f.Name] = content
		}
	}
	return out, nil
}

// diagramFor finds the image deployed next to a process resource: "<base>.<key>.<ext>"
// first, then "<base>.<ext>".
func diagramFor(resourceName, key string, resources map[string][]byte) string {
	suffix, _ := hasSuffix(resourceName, processSuffixes)
	base := resourceName[:len(resourceName)-len(suffix)]
	for _, candidate := range []string{base + "." + key, base} {
		for _, ext := range diagramSuffixes {
			if _, ok := resources[candidate+ext]; ok {
				return candidate + ext
			}
		}
	}
	return ""
}

func blobKey(deploymentID, name string) string {
	return path.Join("deployments", deploymentID, name)
}

// Deploy stores the resources and registers a new version of every executable process
// they contain. Resource bytes are written to the blob store before the rows commit and
// removed again when the transaction fails.
func (e *Engine) Deploy(ctx context.Context, req DeployRequest) (*model.Deployment, error) {
	ctx, span := e.span(ctx, "engine.Deploy", attribute.String("deployment.name", req.Name))
	defer span.End()

	files, err := expandResources(req.Resources)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperr.IllegalArgument("No resources found in deployment")
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	parsed := make(map[string]*bpmn.Definitions)
	for _, name := range names {
		if _, ok := hasSuffix(name, processSuffixes); !ok {
			continue
		}
		defs, err := bpmn.Parse(files[name])
		if err != nil {
			return nil, fmt.Errorf("resource '%s': %w", name, err)
		}
		parsed[name] = defs
	}

	dep := &model.Deployment{
		ID:             newID(),
		Name:           req.Name,
		Category:       req.Category,
		TenantID:       req.TenantID,
		DeploymentTime: e.now(),
	}
	var written []string
	if e.Blobs != nil {
		for _, name := range names {
			key := blobKey(dep.ID, name)
			if err := e.Blobs.Put(ctx, key, files[name], ""); err != nil {
				e.dropBlobs(ctx, written)
				return nil, fmt.Errorf("store resource %s: %w", name, err)
			}
			written = append(written, key)
		}
	}

	var definitions []*model.ProcessDefinition
	err = e.tx(ctx, func(ctx context.Context) error {
		if err := e.daos.Repository.CreateDeployment(ctx, dep); err != nil {
			return err
		}
		for _, name := range names {
			res := &model.Resource{ID: newID(), DeploymentID: dep.ID, Name: name}
			if e.Blobs != nil {
				res.BlobKey = blobKey(dep.ID, name)
			} else {
				res.Bytes = files[name]
			}
			if err := e.daos.Repository.CreateResource(ctx, res); err != nil {
				return err
			}
		}
		for _, name := range names {
			defs, ok := parsed[name]
			if !ok {
				continue
			}
			for _, p := range defs.Processes {
				latest, err := e.daos.Repository.MaxVersion(ctx, p.ID, dep.TenantID)
				if err != nil {
					return err
				}
				version := latest + 1
				def := &model.ProcessDefinition{
					ID:                       fmt.Sprintf("%s:%d:%s", p.ID, version, newID()),
					Key:                      p.ID,
					Name:                     p.Name,
					Category:                 defs.TargetNamespace,
					Description:              p.Documentation,
					Version:                  version,
					DeploymentID:             dep.ID,
					ResourceName:             name,
					DiagramResourceName:      diagramFor(name, p.ID, files),
					GraphicalNotationDefined: defs.GraphicalNotation,
					SuspensionState:          bizConsts.SuspensionActive,
					TenantID:                 dep.TenantID,
				}
				if err := e.daos.Repository.CreateDefinition(ctx, def); err != nil {
					return err
				}
				definitions = append(definitions, def)
			}
		}
		return nil
	})
	if err != nil {
		e.dropBlobs(ctx, written)
		return nil, err
	}
	for _, def := range definitions {
		logging.Info(ctx, "process definition deployed",
			zap.String("deployment_id", dep.ID),
			zap.String("process_definition_id", def.ID),
			zap.Int("version", def.Version))
	}
	return dep, nil
}

func (e *Engine) dropBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := e.Blobs.Delete(ctx, key); err != nil {
			logging.Warn(ctx, "remove orphaned resource failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (e *Engine) resourceBytes(ctx context.Context, res *model.Resource) ([]byte, error) {
	if res.BlobKey == "" {
		return res.Bytes, nil
	}
	if e.Blobs == nil {
		return nil, fmt.Errorf("resource %s is kept in the blob store but no blob store is configured", res.Name)
	}
	return e.Blobs.Get(ctx, res.BlobKey)
}

func (e *Engine) Deployments(ctx context.Context, q *model.DeploymentQuery, page query.Page) ([]*model.Deployment, int64, error) {
	total, err := e.daos.Repository.CountDeployments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Repository.ListDeployments(ctx, q, page)
	return list, total, err
}

func (e *Engine) Deployment(ctx context.Context, id string) (*model.Deployment, error) {
	dep, err := e.daos.Repository.GetDeployment(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a deployment with id '%s'.", id)
	}
	return dep, nil
}

// DeleteDeployment removes a deployment with its definitions and resources. With cascade
// the process instances of its definitions go too, runtime and history alike.
func (e *Engine) DeleteDeployment(ctx context.Context, id string, cascade bool) error {
	ctx, span := e.span(ctx, "engine.DeleteDeployment", attribute.String("deployment.id", id))
	defer span.End()

	if _, err := e.Deployment(ctx, id); err != nil {
		return err
	}
	resources, err := e.daos.Repository.ListResources(ctx, id)
	if err != nil {
		return err
	}
	var defIDs []string
	err = e.tx(ctx, func(ctx context.Context) error {
		defs, err := e.daos.Repository.ListDefinitionsByDeployment(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range defs {
			defIDs = append(defIDs, d.ID)
		}
		running, err := e.daos.Execution.ListProcessInstanceIDsByDefinitions(ctx, defIDs)
		if err != nil {
			return err
		}
		if len(running) > 0 && !cascade {
			return apperr.Conflict("Deployment '%s' still has %d running process instances", id, len(running))
		}
		for _, piID := range running {
			root, err := e.daos.Execution.Get(ctx, piID)
			if err != nil {
				return err
			}
			if err := e.purgeProcessInstance(ctx, root, "", "deleted deployment"); err != nil {
				return err
			}
		}
		if cascade {
			for _, defID := range defIDs {
				finished, err := e.daos.History.ListProcessInstances(ctx,
					&model.HistoricProcessInstanceQuery{ProcessDefinitionID: defID}, query.Unpaged("id"))
				if err != nil {
					return err
				}
				for _, h := range finished {
					if err := e.daos.History.DeleteProcessInstance(ctx, h.ID); err != nil {
						return err
					}
				}
			}
		}
		return e.daos.Repository.DeleteDeployment(ctx, id)
	})
	if err != nil {
		return err
	}
	for _, defID := range defIDs {
		e.models.Delete(defID)
	}
	if e.Blobs != nil {
		var keys []string
		for _, r := range resources {
			if r.BlobKey != "" {
				keys = append(keys, r.BlobKey)
			}
		}
		e.dropBlobs(ctx, keys)
	}
	logging.Info(ctx, "deployment deleted", zap.String("deployment_id", id), zap.Bool("cascade", cascade))
	return nil
}

func (e *Engine) DeploymentResources(ctx context.Context, deploymentID string) ([]*model.Resource, error) {
	if _, err := e.Deployment(ctx, deploymentID); err != nil {
		return nil, err
	}
	return e.daos.Repository.ListResources(ctx, deploymentID)
}

func (e *Engine) DeploymentResource(ctx context.Context, deploymentID, name string) (*model.Resource, error) {
	if _, err := e.Deployment(ctx, deploymentID); err != nil {
		return nil, err
	}
	res, err := e.daos.Repository.GetResource(ctx, deploymentID, name)
	if err != nil {
		return nil, notFound(err, "Could not find a resource with id '%s' in deployment '%s'.", name, deploymentID)
	}
	return res, nil
}

func (e *Engine) DeploymentResourceData(ctx context.Context, deploymentID, name string) ([]byte, error) {
	res, err := e.DeploymentResource(ctx, deploymentID, name)
	if err != nil {
		return nil, err
	}
	return e.resourceBytes(ctx, res)
}

func (e *Engine) ProcessDefinitions(ctx context.Context, q *model.ProcessDefinitionQuery, page query.Page) ([]*model.ProcessDefinition, int64, error) {
	total, err := e.daos.Repository.CountDefinitions(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Repository.ListDefinitions(ctx, q, page)
	return list, total, err
}

func (e *Engine) ProcessDefinition(ctx context.Context, id string) (*model.ProcessDefinition, error) {
	def, err := e.daos.Repository.GetDefinition(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a process definition with id '%s'.", id)
	}
	return def, nil
}

func (e *Engine) ProcessDefinitionResourceData(ctx context.Context, id string) ([]byte, error) {
	def, err := e.ProcessDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.DeploymentResourceData(ctx, def.DeploymentID, def.ResourceName)
}

// SuspendProcessDefinition blocks new instances of the definition; with includeInstances
// its running instances are suspended as well.
func (e *Engine) SuspendProcessDefinition(ctx context.Context, id string, includeInstances bool) (*model.ProcessDefinition, error) {
	return e.setDefinitionState(ctx, id, bizConsts.SuspensionSuspended, includeInstances)
}

func (e *Engine) ActivateProcessDefinition(ctx context.Context, id string, includeInstances bool) (*model.ProcessDefinition, error) {
	return e.setDefinitionState(ctx, id, bizConsts.SuspensionActive, includeInstances)
}

func (e *Engine) setDefinitionState(ctx context.Context, id string, state int, includeInstances bool) (*model.ProcessDefinition, error) {
	def, err := e.ProcessDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.SuspensionState == state {
		if state == bizConsts.SuspensionSuspended {
			return nil, apperr.Conflict("Cannot suspend process definition '%s': already suspended", id)
		}
		return nil, apperr.Conflict("Cannot activate process definition '%s': already active", id)
	}
	err = e.tx(ctx, func(ctx context.Context) error {
		if err := e.daos.Repository.UpdateDefinitionSuspension(ctx, id, state); err != nil {
			return err
		}
		if !includeInstances {
			return nil
		}
		ids, err := e.daos.Execution.ListProcessInstanceIDsByDefinitions(ctx, []string{id})
		if err != nil {
			return err
		}
		for _, piID := range ids {
			if err := e.setInstanceState(ctx, piID, state); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	def.SuspensionState = state
	e.models.Delete(id)
	return def, nil
}

func (e *Engine) SetProcessDefinitionCategory(ctx context.Context, id, category string) (*model.ProcessDefinition, error) {
	def, err := e.ProcessDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.daos.Repository.UpdateDefinitionCategory(ctx, id, category); err != nil {
		return nil, err
	}
	def.Category = category
	return def, nil
}
