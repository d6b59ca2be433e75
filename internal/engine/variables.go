package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/script"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

// NamedValue is one variable to write.
type NamedValue struct {
	Name  string
	Value variable.Value
}

// ScopedVariable is a runtime variable together with the scope it was resolved in.
type ScopedVariable struct {
	*model.Variable
	Scope variable.Scope
}

// ancestry returns exec followed by its parents up to the process instance.
func (e *Engine) ancestry(ctx context.Context, exec *model.Execution) ([]*model.Execution, error) {
	chain := []*model.Execution{exec}
	for cur := exec; cur.ParentID != ""; {
		parent, err := e.daos.Execution.Get(ctx, cur.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

// visibleVariables merges the variables of exec and its parents; the nearest scope wins.
func (e *Engine) visibleVariables(ctx context.Context, exec *model.Execution) (map[string]*model.Variable, error) {
	chain, err := e.ancestry(ctx, exec)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chain))
	depth := make(map[string]int, len(chain))
	for i, x := range chain {
		ids[i] = x.ID
		depth[x.ID] = i
	}
	vars, err := e.daos.Variable.ListByExecutions(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Variable, len(vars))
	for _, v := range vars {
		if cur, ok := out[v.Name]; ok && depth[cur.ExecutionID] <= depth[v.ExecutionID] {
			continue
		}
		out[v.Name] = v
	}
	return out, nil
}

func (e *Engine) bindings(ctx context.Context, exec *model.Execution) (script.Bindings, error) {
	vars, err := e.visibleVariables(ctx, exec)
	if err != nil {
		return script.Bindings{}, err
	}
	b := script.Bindings{
		Variables: make(map[string]any, len(vars)),
		Execution: map[string]any{
			"id":                  exec.ID,
			"processInstanceId":   exec.ProcessInstanceID,
			"processDefinitionId": exec.ProcessDefinitionID,
			"activityId":          exec.ActivityID,
			"businessKey":         exec.BusinessKey,
		},
	}
	for name, v := range vars {
		b.Variables[name] = v.Decode()
	}
	return b, nil
}

// setVariable updates the nearest scope owning name, or creates it on the process instance.
func (e *Engine) setVariable(ctx context.Context, exec *model.Execution, name string, val variable.Value) error {
	chain, err := e.ancestry(ctx, exec)
	if err != nil {
		return err
	}
	for _, x := range chain {
		v, err := e.daos.Variable.FindOnExecution(ctx, x.ID, name)
		if err == nil {
			return e.updateVariable(ctx, v, val)
		}
		if !isMissing(err) {
			return err
		}
	}
	root := chain[len(chain)-1]
	return e.createVariable(ctx, &model.Variable{
		Name:              name,
		ExecutionID:       root.ID,
		ProcessInstanceID: root.ProcessInstanceID,
		Value:             val,
	})
}

func (e *Engine) setVariableLocal(ctx context.Context, exec *model.Execution, name string, val variable.Value) error {
	v, err := e.daos.Variable.FindOnExecution(ctx, exec.ID, name)
	if err == nil {
		return e.updateVariable(ctx, v, val)
	}
	if !isMissing(err) {
		return err
	}
	return e.createVariable(ctx, &model.Variable{
		Name:              name,
		ExecutionID:       exec.ID,
		ProcessInstanceID: exec.ProcessInstanceID,
		Value:             val,
	})
}

func (e *Engine) setTaskVariableLocal(ctx context.Context, task *model.Task, name string, val variable.Value) error {
	v, err := e.daos.Variable.FindOnTask(ctx, task.ID, name)
	if err == nil {
		return e.updateVariable(ctx, v, val)
	}
	if !isMissing(err) {
		return err
	}
	return e.createVariable(ctx, &model.Variable{
		Name:              name,
		ExecutionID:       task.ExecutionID,
		ProcessInstanceID: task.ProcessInstanceID,
		TaskID:            task.ID,
		Value:             val,
	})
}

func (e *Engine) applyUpdates(ctx context.Context, exec *model.Execution, u script.Updates) error {
	for _, name := range u.Names {
		val, err := variable.Encode(u.Values[name])
		if err != nil {
			return err
		}
		if err := e.setVariable(ctx, exec, name, val); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) createVariable(ctx context.Context, v *model.Variable) error {
	v.ID = newID()
	if err := e.daos.Variable.Create(ctx, v); err != nil {
		return err
	}
	return e.recordVariable(ctx, v, true)
}

func (e *Engine) updateVariable(ctx context.Context, v *model.Variable, val variable.Value) error {
	v.Value = val
	if err := e.daos.Variable.Update(ctx, v); err != nil {
		return err
	}
	return e.recordVariable(ctx, v, false)
}

func (e *Engine) removeVariable(ctx context.Context, v *model.Variable) error {
	if err := e.daos.Variable.Delete(ctx, v.ID); err != nil {
		return err
	}
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	return e.daos.History.DeleteVariable(ctx, v.ID)
}

func (e *Engine) recordVariable(ctx context.Context, v *model.Variable, created bool) error {
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	now := e.now()
	h := &model.HistoricVariableInstance{
		ID:                v.ID,
		ProcessInstanceID: v.ProcessInstanceID,
		ExecutionID:       v.ExecutionID,
		TaskID:            v.TaskID,
		Name:              v.Name,
		Revision:          v.Revision,
		CreateTime:        now,
		LastUpdatedTime:   now,
		Value:             v.Value,
	}
	if !created {
		old, err := e.daos.History.GetVariable(ctx, v.ID)
		switch {
		case err == nil:
			h.CreateTime = old.CreateTime
		case !isMissing(err):
			return err
		}
	}
	if err := e.daos.History.SaveVariable(ctx, h); err != nil {
		return err
	}
	if !e.history(bizConsts.HistoryFull) {
		return nil
	}
	return e.daos.History.CreateDetail(ctx, &model.HistoricDetail{
		ID:                 newID(),
		Type:               bizConsts.DetailVariableUpdate,
		ProcessInstanceID:  v.ProcessInstanceID,
		ExecutionID:        v.ExecutionID,
		TaskID:             v.TaskID,
		VariableInstanceID: v.ID,
		Name:               v.Name,
		Revision:           v.Revision,
		Time:               now,
		Value:              v.Value,
	})
}

func sortScoped(vars []ScopedVariable) {
	sort.SliceStable(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
}

// executionVariables lists the local variables of exec and, for an empty or global scope,
// the variables inherited from its parents that a local one does not shadow.
func (e *Engine) executionVariables(ctx context.Context, exec *model.Execution, scope variable.Scope) ([]ScopedVariable, error) {
	var out []ScopedVariable
	seen := make(map[string]bool)
	if scope == "" || scope == variable.ScopeLocal {
		locals, err := e.daos.Variable.ListByExecution(ctx, exec.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range locals {
			out = append(out, ScopedVariable{Variable: v, Scope: variable.ScopeLocal})
			seen[v.Name] = true
		}
	}
	if (scope == "" || scope == variable.ScopeGlobal) && exec.ParentID != "" {
		parent, err := e.daos.Execution.Get(ctx, exec.ParentID)
		if err != nil {
			return nil, err
		}
		globals, err := e.visibleVariables(ctx, parent)
		if err != nil {
			return nil, err
		}
		for name, v := range globals {
			if !seen[name] {
				out = append(out, ScopedVariable{Variable: v, Scope: variable.ScopeGlobal})
			}
		}
	}
	sortScoped(out)
	return out, nil
}

// findExecutionVariable resolves name in scope. Global lookups start at the parent, or at
// exec itself for a process instance.
func (e *Engine) findExecutionVariable(ctx context.Context, exec *model.Execution, name string, scope variable.Scope) (*ScopedVariable, error) {
	if scope == "" || scope == variable.ScopeLocal {
		v, err := e.daos.Variable.FindOnExecution(ctx, exec.ID, name)
		if err == nil {
			return &ScopedVariable{Variable: v, Scope: variable.ScopeLocal}, nil
		}
		if !isMissing(err) || scope == variable.ScopeLocal {
			return nil, err
		}
	}
	start := exec
	if exec.ParentID != "" {
		parent, err := e.daos.Execution.Get(ctx, exec.ParentID)
		if err != nil {
			return nil, err
		}
		start = parent
	}
	vars, err := e.visibleVariables(ctx, start)
	if err != nil {
		return nil, err
	}
	if v, ok := vars[name]; ok {
		return &ScopedVariable{Variable: v, Scope: variable.ScopeGlobal}, nil
	}
	return nil, errNoVariable
}

var errNoVariable = errors.New("no such variable")

func (e *Engine) writeExecutionVariables(ctx context.Context, exec *model.Execution, label string, scope variable.Scope, vars []NamedValue, createOnly bool) error {
	for _, nv := range vars {
		if createOnly {
			_, err := e.findExecutionVariable(ctx, exec, nv.Name, scope)
			switch {
			case err == nil:
				return apperr.Conflict("Variable '%s' is already present on %s '%s'.", nv.Name, label, exec.ID)
			case !isMissing(err) && !errors.Is(err, errNoVariable):
				return err
			}
		}
		var err error
		if scope == variable.ScopeGlobal && exec.ParentID != "" {
			err = e.setVariable(ctx, exec, nv.Name, nv.Value)
		} else {
			err = e.setVariableLocal(ctx, exec, nv.Name, nv.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) getExecution(ctx context.Context, id string) (*model.Execution, error) {
	exec, err := e.daos.Execution.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find an execution with id '%s'.", id)
	}
	return exec, nil
}

func (e *Engine) getProcessInstance(ctx context.Context, id string) (*model.Execution, error) {
	exec, err := e.daos.Execution.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a process instance with id '%s'.", id)
	}
	if !exec.IsProcessInstance() {
		return nil, apperr.NotFound("Could not find a process instance with id '%s'.", id)
	}
	return exec, nil
}

func missingVariable(err error, label, id, name string) error {
	if isMissing(err) || errors.Is(err, errNoVariable) {
		return apperr.NotFound("%s '%s' doesn't have a variable with name: '%s'.", label, id, name)
	}
	return err
}

func (e *Engine) ExecutionVariables(ctx context.Context, executionID string, scope variable.Scope) ([]ScopedVariable, error) {
	exec, err := e.getExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return e.executionVariables(ctx, exec, scope)
}

func (e *Engine) ExecutionVariable(ctx context.Context, executionID, name string, scope variable.Scope) (*ScopedVariable, error) {
	exec, err := e.getExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	v, err := e.findExecutionVariable(ctx, exec, name, scope)
	if err != nil {
		return nil, missingVariable(err, "Execution", executionID, name)
	}
	return v, nil
}

func (e *Engine) SetExecutionVariables(ctx context.Context, executionID string, scope variable.Scope, vars []NamedValue, createOnly bool) error {
	return e.tx(ctx, func(ctx context.Context) error {
		exec, err := e.getExecution(ctx, executionID)
		if err != nil {
			return err
		}
		return e.writeExecutionVariables(ctx, exec, "execution", scope, vars, createOnly)
	})
}

func (e *Engine) DeleteExecutionVariable(ctx context.Context, executionID, name string, scope variable.Scope) error {
	return e.tx(ctx, func(ctx context.Context) error {
		exec, err := e.getExecution(ctx, executionID)
		if err != nil {
			return err
		}
		if scope == "" {
			scope = variable.ScopeLocal
		}
		v, err := e.findExecutionVariable(ctx, exec, name, scope)
		if err != nil {
			return missingVariable(err, "Execution", executionID, name)
		}
		return e.removeVariable(ctx, v.Variable)
	})
}

// DeleteExecutionLocalVariables removes every local variable of the execution.
func (e *Engine) DeleteExecutionLocalVariables(ctx context.Context, executionID string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		exec, err := e.getExecution(ctx, executionID)
		if err != nil {
			return err
		}
		return e.removeLocals(ctx, exec)
	})
}

func (e *Engine) removeLocals(ctx context.Context, exec *model.Execution) error {
	locals, err := e.daos.Variable.ListByExecution(ctx, exec.ID)
	if err != nil {
		return err
	}
	for _, v := range locals {
		if err := e.removeVariable(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ProcessInstanceVariables(ctx context.Context, id string) ([]ScopedVariable, error) {
	pi, err := e.getProcessInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.executionVariables(ctx, pi, variable.ScopeLocal)
}

func (e *Engine) ProcessInstanceVariable(ctx context.Context, id, name string) (*ScopedVariable, error) {
	pi, err := e.getProcessInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := e.findExecutionVariable(ctx, pi, name, variable.ScopeLocal)
	if err != nil {
		return nil, missingVariable(err, "Process instance", id, name)
	}
	return v, nil
}

func (e *Engine) SetProcessInstanceVariables(ctx context.Context, id string, vars []NamedValue, createOnly bool) error {
	return e.tx(ctx, func(ctx context.Context) error {
		pi, err := e.getProcessInstance(ctx, id)
		if err != nil {
			return err
		}
		return e.writeExecutionVariables(ctx, pi, "process instance", variable.ScopeLocal, vars, createOnly)
	})
}

func (e *Engine) DeleteProcessInstanceVariable(ctx context.Context, id, name string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		pi, err := e.getProcessInstance(ctx, id)
		if err != nil {
			return err
		}
		v, err := e.findExecutionVariable(ctx, pi, name, variable.ScopeLocal)
		if err != nil {
			return missingVariable(err, "Process instance", id, name)
		}
		return e.removeVariable(ctx, v.Variable)
	})
}

func (e *Engine) DeleteProcessInstanceVariables(ctx context.Context, id string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		pi, err := e.getProcessInstance(ctx, id)
		if err != nil {
			return err
		}
		return e.removeLocals(ctx, pi)
	})
}

// TaskVariables lists task-local variables and, unless scope is local, the process variables
// visible from the task's execution.
func (e *Engine) TaskVariables(ctx context.Context, taskID string, scope variable.Scope) ([]ScopedVariable, error) {
	task, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var out []ScopedVariable
	seen := make(map[string]bool)
	if scope == "" || scope == variable.ScopeLocal {
		locals, err := e.daos.Variable.ListByTask(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range locals {
			out = append(out, ScopedVariable{Variable: v, Scope: variable.ScopeLocal})
			seen[v.Name] = true
		}
	}
	if (scope == "" || scope == variable.ScopeGlobal) && !task.Standalone() {
		exec, err := e.daos.Execution.Get(ctx, task.ExecutionID)
		if err != nil {
			return nil, err
		}
		globals, err := e.visibleVariables(ctx, exec)
		if err != nil {
			return nil, err
		}
		for name, v := range globals {
			if !seen[name] {
				out = append(out, ScopedVariable{Variable: v, Scope: variable.ScopeGlobal})
			}
		}
	}
	sortScoped(out)
	return out, nil
}

func (e *Engine) findTaskVariable(ctx context.Context, task *model.Task, name string, scope variable.Scope) (*ScopedVariable, error) {
	if scope == "" || scope == variable.ScopeLocal {
		v, err := e.daos.Variable.FindOnTask(ctx, task.ID, name)
		if err == nil {
			return &ScopedVariable{Variable: v, Scope: variable.ScopeLocal}, nil
		}
		if !isMissing(err) || scope == variable.ScopeLocal {
			return nil, err
		}
	}
	if task.Standalone() {
		return nil, errNoVariable
	}
	exec, err := e.daos.Execution.Get(ctx, task.ExecutionID)
	if err != nil {
		return nil, err
	}
	vars, err := e.visibleVariables(ctx, exec)
	if err != nil {
		return nil, err
	}
	if v, ok := vars[name]; ok {
		return &ScopedVariable{Variable: v, Scope: variable.ScopeGlobal}, nil
	}
	return nil, errNoVariable
}

func (e *Engine) TaskVariable(ctx context.Context, taskID, name string, scope variable.Scope) (*ScopedVariable, error) {
	task, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	v, err := e.findTaskVariable(ctx, task, name, scope)
	if err != nil {
		return nil, missingVariable(err, "Task", taskID, name)
	}
	return v, nil
}

// SetTaskVariables writes task-local variables, or process variables through the task's
// execution for the global scope.
func (e *Engine) SetTaskVariables(ctx context.Context, taskID string, scope variable.Scope, vars []NamedValue, createOnly bool) error {
	if scope == "" {
		scope = variable.ScopeLocal
	}
	return e.tx(ctx, func(ctx context.Context) error {
		task, err := e.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		return e.writeTaskVariables(ctx, task, scope, vars, createOnly)
	})
}

func (e *Engine) writeTaskVariables(ctx context.Context, task *model.Task, scope variable.Scope, vars []NamedValue, createOnly bool) error {
	if scope == variable.ScopeGlobal && task.Standalone() {
		return apperr.IllegalArgument("Cannot set global variables on task '%s', task is not part of process.", task.ID)
	}
	var exec *model.Execution
	if scope == variable.ScopeGlobal {
		var err error
		if exec, err = e.daos.Execution.Get(ctx, task.ExecutionID); err != nil {
			return err
		}
	}
	for _, nv := range vars {
		if createOnly {
			_, err := e.findTaskVariable(ctx, task, nv.Name, scope)
			switch {
			case err == nil:
				return apperr.Conflict("Variable '%s' is already present on task '%s'.", nv.Name, task.ID)
			case !isMissing(err) && !errors.Is(err, errNoVariable):
				return err
			}
		}
		var err error
		if exec != nil {
			err = e.setVariable(ctx, exec, nv.Name, nv.Value)
		} else {
			err = e.setTaskVariableLocal(ctx, task, nv.Name, nv.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) DeleteTaskVariable(ctx context.Context, taskID, name string, scope variable.Scope) error {
	if scope == "" {
		scope = variable.ScopeLocal
	}
	return e.tx(ctx, func(ctx context.Context) error {
		task, err := e.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		v, err := e.findTaskVariable(ctx, task, name, scope)
		if err != nil {
			return missingVariable(err, "Task", taskID, name)
		}
		return e.removeVariable(ctx, v.Variable)
	})
}

func (e *Engine) DeleteTaskLocalVariables(ctx context.Context, taskID string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		task, err := e.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		locals, err := e.daos.Variable.ListByTask(ctx, task.ID)
		if err != nil {
			return err
		}
		for _, v := range locals {
			if err := e.removeVariable(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// VariablesOfExecutions groups the execution-scoped variables of ids by execution id.
func (e *Engine) VariablesOfExecutions(ctx context.Context, ids []string) (map[string][]*model.Variable, error) {
	out := make(map[string][]*model.Variable, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vars, err := e.daos.Variable.ListByExecutions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		out[v.ExecutionID] = append(out[v.ExecutionID], v)
	}
	return out, nil
}

// VariablesOfTasks groups task-local variables by task id.
func (e *Engine) VariablesOfTasks(ctx context.Context, ids []string) (map[string][]*model.Variable, error) {
	out := make(map[string][]*model.Variable, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vars, err := e.daos.Variable.ListByTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		out[v.TaskID] = append(out[v.TaskID], v)
	}
	return out, nil
}
