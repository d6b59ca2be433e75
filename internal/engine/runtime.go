package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/bpmn"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

const DeleteReasonDeleted = "deleted"

type StartRequest struct {
	ProcessDefinitionID  string
	ProcessDefinitionKey string
	// TenantID narrows the key lookup.
	TenantID    string
	BusinessKey string
	StartUserID string
	Variables   []NamedValue
}

// StartedInstance is the root execution of a new process instance. Ended is set when the
// instance already completed while starting.
type StartedInstance struct {
	*model.Execution
	Ended bool
}

func (e *Engine) startDefinition(ctx context.Context, req StartRequest) (*model.ProcessDefinition, error) {
	switch {
	case req.ProcessDefinitionID != "" && req.ProcessDefinitionKey != "":
		return nil, apperr.IllegalArgument("Only one of processDefinitionId or processDefinitionKey should be set.")
	case req.ProcessDefinitionID != "":
		return e.ProcessDefinition(ctx, req.ProcessDefinitionID)
	case req.ProcessDefinitionKey != "":
		def, err := e.daos.Repository.LatestDefinition(ctx, req.ProcessDefinitionKey, req.TenantID)
		if err != nil {
			return nil, notFound(err, "No process definition found with key '%s'", req.ProcessDefinitionKey)
		}
		return def, nil
	}
	return nil, apperr.IllegalArgument("Either processDefinitionId or processDefinitionKey is required.")
}

func (e *Engine) StartProcessInstance(ctx context.Context, req StartRequest) (*StartedInstance, error) {
	def, err := e.startDefinition(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx, span := e.span(ctx, "engine.StartProcessInstance",
		attribute.String("process_definition.id", def.ID),
		attribute.String("business_key", req.BusinessKey))
	defer span.End()

	if def.Suspended() {
		return nil, apperr.Conflict("Cannot start process instance. Process definition %s (id = %s) is suspended", def.Name, def.ID)
	}
	proc, err := e.processModel(ctx, def)
	if err != nil {
		return nil, err
	}
	scope := &flowScope{def: def, proc: proc}

	var root *model.Execution
	err = e.tx(ctx, func(ctx context.Context) error {
		a := e.newAgenda()
		var err error
		root, err = a.startInstance(ctx, scope, startParams{
			businessKey: req.BusinessKey,
			startUserID: req.StartUserID,
			vars:        req.Variables,
		})
		if err != nil {
			return err
		}
		return a.run(ctx)
	})
	if err != nil {
		return nil, err
	}
	started := &StartedInstance{Execution: root}
	if _, err := e.daos.Execution.Get(ctx, root.ID); err != nil {
		if !isMissing(err) {
			return nil, err
		}
		started.Ended = true
	}
	logging.Info(ctx, "process instance started",
		zap.String("process_instance_id", root.ID),
		zap.String("process_definition_id", def.ID),
		zap.Bool("ended", started.Ended))
	return started, nil
}

func (e *Engine) ProcessInstances(ctx context.Context, q *model.ProcessInstanceQuery, page query.Page) ([]*model.Execution, int64, error) {
	filters, err := variable.CompileAll(q.Variables)
	if err != nil {
		return nil, 0, err
	}
	q.VariableFilters = filters
	total, err := e.daos.Execution.CountProcessInstances(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Execution.ListProcessInstances(ctx, q, page)
	return list, total, err
}

func (e *Engine) ProcessInstance(ctx context.Context, id string) (*model.Execution, error) {
	return e.getProcessInstance(ctx, id)
}

func (e *Engine) Executions(ctx context.Context, q *model.ExecutionQuery, page query.Page) ([]*model.Execution, int64, error) {
	var err error
	if q.VariableFilters, err = variable.CompileAll(q.Variables); err != nil {
		return nil, 0, err
	}
	if q.ProcessInstanceVariableFilters, err = variable.CompileAll(q.ProcessInstanceVariables); err != nil {
		return nil, 0, err
	}
	total, err := e.daos.Execution.CountExecutions(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Execution.ListExecutions(ctx, q, page)
	return list, total, err
}

func (e *Engine) Execution(ctx context.Context, id string) (*model.Execution, error) {
	return e.getExecution(ctx, id)
}

// DeleteProcessInstance removes the runtime state of the instance. Its history is kept
// and carries the delete reason.
func (e *Engine) DeleteProcessInstance(ctx context.Context, id, reason string) error {
	ctx, span := e.span(ctx, "engine.DeleteProcessInstance", attribute.String("process_instance.id", id))
	defer span.End()
	if reason == "" {
		reason = DeleteReasonDeleted
	}
	return e.tx(ctx, func(ctx context.Context) error {
		root, err := e.getProcessInstance(ctx, id)
		if err != nil {
			return err
		}
		return e.purgeProcessInstance(ctx, root, "", reason)
	})
}

func (e *Engine) SuspendProcessInstance(ctx context.Context, id string) (*model.Execution, error) {
	return e.changeInstanceState(ctx, id, bizConsts.SuspensionSuspended)
}

func (e *Engine) ActivateProcessInstance(ctx context.Context, id string) (*model.Execution, error) {
	return e.changeInstanceState(ctx, id, bizConsts.SuspensionActive)
}

func (e *Engine) changeInstanceState(ctx context.Context, id string, state int) (*model.Execution, error) {
	root, err := e.getProcessInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if root.SuspensionState == state {
		if state == bizConsts.SuspensionSuspended {
			return nil, apperr.Conflict("Process instance with id '%s' is already suspended.", id)
		}
		return nil, apperr.Conflict("Process instance with id '%s' is already active.", id)
	}
	if err := e.tx(ctx, func(ctx context.Context) error { return e.setInstanceState(ctx, id, state) }); err != nil {
		return nil, err
	}
	return e.getProcessInstance(ctx, id)
}

// setInstanceState moves the executions and tasks of a process instance. Jobs of a
// suspended instance are skipped by acquisition.
func (e *Engine) setInstanceState(ctx context.Context, processInstanceID string, state int) error {
	if err := e.daos.Execution.UpdateSuspensionByProcessInstance(ctx, processInstanceID, state); err != nil {
		return err
	}
	return e.daos.Task.UpdateSuspensionByProcessInstance(ctx, processInstanceID, state)
}

func signalable(el *bpmn.Element) bool {
	return el.Type == bpmn.ReceiveTask || (el.Type == bpmn.IntermediateCatchEvent && el.Timer == nil)
}

// Signal continues an execution waiting in a receive task or a catch event. The variables
// are set before it leaves.
func (e *Engine) Signal(ctx context.Context, executionID string, vars []NamedValue) error {
	ctx, span := e.span(ctx, "engine.Signal", attribute.String("execution.id", executionID))
	defer span.End()
	return e.tx(ctx, func(ctx context.Context) error {
		exec, err := e.getExecution(ctx, executionID)
		if err != nil {
			return err
		}
		if exec.Suspended() {
			return apperr.Conflict("Cannot signal execution '%s': it is suspended", executionID)
		}
		scope, err := e.scopeOf(ctx, exec.ProcessDefinitionID)
		if err != nil {
			return err
		}
		el, ok := scope.proc.Element(exec.ActivityID)
		if !ok || !exec.IsActive || !signalable(el) {
			return apperr.IllegalArgument("Execution '%s' is not waiting in a receive task or catch event", executionID)
		}
		for _, nv := range vars {
			if err := e.setVariable(ctx, exec, nv.Name, nv.Value); err != nil {
				return err
			}
		}
		a := e.newAgenda()
		a.planLeave(scope, exec, el)
		return a.run(ctx)
	})
}

// ActiveActivities lists the activities the execution and its children are waiting in.
func (e *Engine) ActiveActivities(ctx context.Context, executionID string) ([]string, error) {
	exec, err := e.getExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	out := []string{}
	pending := []*model.Execution{exec}
	for len(pending) > 0 {
		x := pending[0]
		pending = pending[1:]
		if x.IsActive && x.ActivityID != "" {
			out = append(out, x.ActivityID)
		}
		children, err := e.daos.Execution.ListChildren(ctx, x.ID)
		if err != nil {
			return nil, err
		}
		pending = append(pending, children...)
	}
	return out, nil
}

// involveUser adds a participant link to the process instance unless the user already has one.
func (e *Engine) involveUser(ctx context.Context, processInstanceID, userID string) error {
	if processInstanceID == "" {
		return nil
	}
	_, err := e.daos.IdentityLink.Find(ctx, "", processInstanceID, userID, "", bizConsts.LinkParticipant)
	if err == nil {
		return nil
	}
	if !isMissing(err) {
		return err
	}
	link := &model.IdentityLink{
		ID:                newID(),
		Type:              bizConsts.LinkParticipant,
		UserID:            userID,
		ProcessInstanceID: processInstanceID,
	}
	if err := e.daos.IdentityLink.Create(ctx, link); err != nil {
		return err
	}
	return e.recordLinkAdded(ctx, link)
}

func (e *Engine) ProcessInstanceIdentityLinks(ctx context.Context, processInstanceID string) ([]*model.IdentityLink, error) {
	if _, err := e.getProcessInstance(ctx, processInstanceID); err != nil {
		return nil, err
	}
	return e.daos.IdentityLink.ListByProcessInstance(ctx, processInstanceID)
}

func (e *Engine) ProcessInstanceIdentityLink(ctx context.Context, processInstanceID, userID, linkType string) (*model.IdentityLink, error) {
	if _, err := e.getProcessInstance(ctx, processInstanceID); err != nil {
		return nil, err
	}
	link, err := e.daos.IdentityLink.Find(ctx, "", processInstanceID, userID, "", linkType)
	if err != nil {
		return nil, notFound(err, "Could not find the requested identity link.")
	}
	return link, nil
}

func (e *Engine) AddProcessInstanceIdentityLink(ctx context.Context, processInstanceID, userID, linkType string) (*model.IdentityLink, error) {
	if userID == "" {
		return nil, apperr.IllegalArgument("The user is required.")
	}
	if linkType == "" {
		return nil, apperr.IllegalArgument("The identity link type is required.")
	}
	var link *model.IdentityLink
	err := e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.getProcessInstance(ctx, processInstanceID); err != nil {
			return err
		}
		existing, err := e.daos.IdentityLink.Find(ctx, "", processInstanceID, userID, "", linkType)
		if err == nil {
			link = existing
			return nil
		}
		if !isMissing(err) {
			return err
		}
		link = &model.IdentityLink{ID: newID(), Type: linkType, UserID: userID, ProcessInstanceID: processInstanceID}
		if err := e.daos.IdentityLink.Create(ctx, link); err != nil {
			return err
		}
		return e.recordLinkAdded(ctx, link)
	})
	return link, err
}

func (e *Engine) DeleteProcessInstanceIdentityLink(ctx context.Context, processInstanceID, userID, linkType string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		link, err := e.ProcessInstanceIdentityLink(ctx, processInstanceID, userID, linkType)
		if err != nil {
			return err
		}
		if err := e.daos.IdentityLink.Delete(ctx, link.ID); err != nil {
			return err
		}
		return e.recordLinkRemoved(ctx, link)
	})
}
