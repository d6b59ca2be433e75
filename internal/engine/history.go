package engine

import (
	"context"

	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

func (e *Engine) HistoricProcessInstances(ctx context.Context, q *model.HistoricProcessInstanceQuery, page query.Page) ([]*model.HistoricProcessInstance, int64, error) {
	var err error
	if q.VariableFilters, err = variable.CompileAll(q.Variables); err != nil {
		return nil, 0, err
	}
	total, err := e.daos.History.CountProcessInstances(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.History.ListProcessInstances(ctx, q, page)
	return list, total, err
}

func (e *Engine) HistoricProcessInstance(ctx context.Context, id string) (*model.HistoricProcessInstance, error) {
	h, err := e.daos.History.GetProcessInstance(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a process instance with id '%s'.", id)
	}
	return h, nil
}

// DeleteHistoricProcessInstance removes a finished instance and every history row it owns.
func (e *Engine) DeleteHistoricProcessInstance(ctx context.Context, id string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.HistoricProcessInstance(ctx, id); err != nil {
			return err
		}
		_, err := e.daos.Execution.Get(ctx, id)
		if err == nil {
			return apperr.Conflict("Process instance %s is still running, cannot delete historic process instance", id)
		}
		if !isMissing(err) {
			return err
		}
		return e.daos.History.DeleteProcessInstance(ctx, id)
	})
}

func (e *Engine) HistoricProcessInstanceIdentityLinks(ctx context.Context, id string) ([]*model.HistoricIdentityLink, error) {
	if _, err := e.HistoricProcessInstance(ctx, id); err != nil {
		return nil, err
	}
	return e.daos.History.ListIdentityLinksByProcessInstance(ctx, id)
}

func (e *Engine) HistoricProcessInstanceVariable(ctx context.Context, id, name string) (*model.HistoricVariableInstance, error) {
	if _, err := e.HistoricProcessInstance(ctx, id); err != nil {
		return nil, err
	}
	list, err := e.daos.History.ListVariables(ctx, &model.HistoricVariableInstanceQuery{
		ProcessInstanceID:    id,
		VariableName:         name,
		ExcludeTaskVariables: true,
	}, query.Unpaged("id"))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("Historic process instance '%s' doesn't have a variable with name: '%s'.", id, name)
	}
	return list[0], nil
}

func (e *Engine) HistoricTaskInstances(ctx context.Context, q *model.HistoricTaskInstanceQuery, page query.Page) ([]*model.HistoricTaskInstance, int64, error) {
	var err error
	if q.TaskVariableFilters, err = variable.CompileAll(q.TaskVariables); err != nil {
		return nil, 0, err
	}
	if q.ProcessVariableFilters, err = variable.CompileAll(q.ProcessVariables); err != nil {
		return nil, 0, err
	}
	total, err := e.daos.History.CountTasks(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.History.ListTasks(ctx, q, page)
	return list, total, err
}

func (e *Engine) HistoricTaskInstance(ctx context.Context, id string) (*model.HistoricTaskInstance, error) {
	h, err := e.daos.History.GetTask(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a task instance with id '%s'.", id)
	}
	return h, nil
}

func (e *Engine) DeleteHistoricTaskInstance(ctx context.Context, id string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.HistoricTaskInstance(ctx, id); err != nil {
			return err
		}
		return e.daos.History.DeleteTask(ctx, id)
	})
}

func (e *Engine) HistoricTaskInstanceIdentityLinks(ctx context.Context, id string) ([]*model.HistoricIdentityLink, error) {
	if _, err := e.HistoricTaskInstance(ctx, id); err != nil {
		return nil, err
	}
	return e.daos.History.ListIdentityLinksByTask(ctx, id)
}

func (e *Engine) HistoricTaskInstanceVariable(ctx context.Context, id, name string) (*model.HistoricVariableInstance, error) {
	if _, err := e.HistoricTaskInstance(ctx, id); err != nil {
		return nil, err
	}
	list, err := e.daos.History.ListVariables(ctx, &model.HistoricVariableInstanceQuery{TaskID: id, VariableName: name}, query.Unpaged("id"))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("Historic task instance '%s' doesn't have a variable with name: '%s'.", id, name)
	}
	return list[0], nil
}

func (e *Engine) HistoricActivityInstances(ctx context.Context, q *model.HistoricActivityInstanceQuery, page query.Page) ([]*model.HistoricActivityInstance, int64, error) {
	total, err := e.daos.History.CountActivities(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.History.ListActivities(ctx, q, page)
	return list, total, err
}

func (e *Engine) HistoricVariableInstances(ctx context.Context, q *model.HistoricVariableInstanceQuery, page query.Page) ([]*model.HistoricVariableInstance, int64, error) {
	var err error
	if q.VariableFilters, err = variable.CompileAll(q.Variables); err != nil {
		return nil, 0, err
	}
	total, err := e.daos.History.CountVariables(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.History.ListVariables(ctx, q, page)
	return list, total, err
}

func (e *Engine) HistoricVariableInstance(ctx context.Context, id string) (*model.HistoricVariableInstance, error) {
	h, err := e.daos.History.GetVariable(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a historic variable instance with id '%s'.", id)
	}
	return h, nil
}

func (e *Engine) HistoricDetails(ctx context.Context, q *model.HistoricDetailQuery, page query.Page) ([]*model.HistoricDetail, int64, error) {
	total, err := e.daos.History.CountDetails(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.History.ListDetails(ctx, q, page)
	return list, total, err
}

func (e *Engine) HistoricDetail(ctx context.Context, id string) (*model.HistoricDetail, error) {
	d, err := e.daos.History.GetDetail(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a historic detail with id '%s'.", id)
	}
	return d, nil
}

// HistoricVariablesOfProcessInstances groups process-level historic variables by instance.
func (e *Engine) HistoricVariablesOfProcessInstances(ctx context.Context, ids []string) (map[string][]*model.HistoricVariableInstance, error) {
	list, err := e.daos.History.ListVariablesByProcessInstances(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*model.HistoricVariableInstance, len(ids))
	for _, v := range list {
		out[v.ProcessInstanceID] = append(out[v.ProcessInstanceID], v)
	}
	return out, nil
}

func (e *Engine) HistoricVariablesOfTasks(ctx context.Context, ids []string) (map[string][]*model.HistoricVariableInstance, error) {
	list, err := e.daos.History.ListVariablesByTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*model.HistoricVariableInstance, len(ids))
	for _, v := range list {
		out[v.TaskID] = append(out[v.TaskID], v)
	}
	return out, nil
}
