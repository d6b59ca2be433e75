package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	goerrors "github.com/go-errors/errors"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/bpmn"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/script"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

const DefaultTaskPriority = 50

type opKind int

const (
	opExecute opKind = iota
	opLeave
)

type operation struct {
	kind  opKind
	scope *flowScope
	exec  *model.Execution
	el    *bpmn.Element
	// resumed continues el past its async boundary.
	resumed bool
}

// agenda is the operation queue of one engine command. Behaviours plan follow-up
// operations instead of calling each other, so a long flow never grows the stack.
type agenda struct {
	e     *Engine
	ops   []operation
	steps int
	// ended is set once a process instance ends inside this command; operations
	// queued for its executions are dropped from then on.
	ended bool
}

func (e *Engine) newAgenda() *agenda { return &agenda{e: e} }

func (a *agenda) planExecute(scope *flowScope, exec *model.Execution, el *bpmn.Element) {
	a.ops = append(a.ops, operation{kind: opExecute, scope: scope, exec: exec, el: el})
}

func (a *agenda) planResume(scope *flowScope, exec *model.Execution, el *bpmn.Element) {
	a.ops = append(a.ops, operation{kind: opExecute, scope: scope, exec: exec, el: el, resumed: true})
}

func (a *agenda) planLeave(scope *flowScope, exec *model.Execution, el *bpmn.Element) {
	a.ops = append(a.ops, operation{kind: opLeave, scope: scope, exec: exec, el: el})
}

func (a *agenda) run(ctx context.Context) error {
	for len(a.ops) > 0 {
		op := a.ops[0]
		a.ops = a.ops[1:]
		a.steps++
		if a.steps > a.e.cfg.MaxLoopSteps {
			return fmt.Errorf("agenda exceeded %d steps in process instance %s", a.e.cfg.MaxLoopSteps, op.exec.ProcessInstanceID)
		}
		if a.ended {
			gone, err := a.purged(ctx, op.exec)
			if err != nil {
				return err
			}
			if gone {
				continue
			}
		}
		var err error
		switch op.kind {
		case opExecute:
			err = a.doExecute(ctx, op)
		case opLeave:
			err = a.doLeave(ctx, op.scope, op.exec, op.el)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// purged reports whether exec was deleted by an instance ending earlier in the command,
// as the sibling paths of a terminate end event are.
func (a *agenda) purged(ctx context.Context, exec *model.Execution) (bool, error) {
	_, err := a.e.daos.Execution.Get(ctx, exec.ID)
	if err == nil {
		return false, nil
	}
	if isMissing(err) {
		return true, nil
	}
	return false, err
}

func (a *agenda) doExecute(ctx context.Context, op operation) error {
	e, exec, el := a.e, op.exec, op.el
	exec.ActivityID = el.ID
	exec.IsActive = true
	if err := e.daos.Execution.Update(ctx, exec); err != nil {
		return err
	}
	if !op.resumed {
		if err := e.recordActivityStart(ctx, exec, el); err != nil {
			return err
		}
		if el.Async {
			return e.createJob(ctx, exec, bizConsts.JobTypeMessage, bizConsts.JobHandlerAsyncContinuation, el.ID, nil)
		}
	}

	switch el.Type {
	case bpmn.StartEvent, bpmn.ManualTask, bpmn.Task, bpmn.IntermediateThrowEvent, bpmn.ExclusiveGateway:
		return a.doLeave(ctx, op.scope, exec, el)
	case bpmn.EndEvent:
		if err := e.recordActivityEnd(ctx, exec.ID, el.ID); err != nil {
			return err
		}
		return a.endExecution(ctx, exec, el)
	case bpmn.UserTask:
		return e.createUserTask(ctx, exec, el)
	case bpmn.ReceiveTask:
		return nil
	case bpmn.IntermediateCatchEvent:
		if el.Timer == nil {
			return nil
		}
		due, err := e.timerDue(ctx, exec, el.Timer)
		if err != nil {
			return err
		}
		return e.createJob(ctx, exec, bizConsts.JobTypeTimer, bizConsts.JobHandlerTimerTransition, el.ID, &due)
	case bpmn.ServiceTask:
		if err := e.runServiceTask(ctx, exec, el); err != nil {
			return err
		}
		return a.doLeave(ctx, op.scope, exec, el)
	case bpmn.ScriptTask:
		if err := e.runScriptTask(ctx, exec, el); err != nil {
			return err
		}
		return a.doLeave(ctx, op.scope, exec, el)
	case bpmn.ParallelGateway:
		return a.join(ctx, op.scope, exec, el)
	case bpmn.CallActivity:
		return a.callActivity(ctx, exec, el)
	}
	return fmt.Errorf("element '%s' has unsupported type %s", el.ID, el.Type)
}

func (a *agenda) doLeave(ctx context.Context, scope *flowScope, exec *model.Execution, el *bpmn.Element) error {
	if err := a.e.recordActivityEnd(ctx, exec.ID, el.ID); err != nil {
		return err
	}
	flows, err := a.e.selectFlows(ctx, exec, el)
	if err != nil {
		return err
	}
	return a.takeFlows(ctx, scope, exec, el, flows)
}

// selectFlows picks the outgoing flows to take. An exclusive gateway takes the first flow
// whose condition holds; other elements take every such flow. The default flow is taken
// only when nothing else matched.
func (e *Engine) selectFlows(ctx context.Context, exec *model.Execution, el *bpmn.Element) ([]*bpmn.SequenceFlow, error) {
	if el.Type == bpmn.ParallelGateway {
		return el.Outgoing, nil
	}
	var (
		b        *script.Bindings
		selected []*bpmn.SequenceFlow
		fallback *bpmn.SequenceFlow
	)
	for _, f := range el.Outgoing {
		if f.ID == el.DefaultFlow {
			fallback = f
			continue
		}
		ok := true
		if f.Condition != "" {
			if b == nil {
				bb, err := e.bindings(ctx, exec)
				if err != nil {
					return nil, err
				}
				b = &bb
			}
			var err error
			if ok, err = e.scripts.EvalCondition(*b, f.Condition); err != nil {
				return nil, fmt.Errorf("condition of sequence flow '%s': %w", f.ID, err)
			}
		}
		if ok {
			selected = append(selected, f)
			if el.Type == bpmn.ExclusiveGateway {
				break
			}
		}
	}
	if len(selected) == 0 && fallback != nil {
		selected = append(selected, fallback)
	}
	if len(selected) == 0 && el.Type == bpmn.ExclusiveGateway {
		return nil, apperr.IllegalArgument("No outgoing sequence flow of the exclusive gateway '%s' could be selected for continuing the process", el.ID)
	}
	return selected, nil
}

func (a *agenda) takeFlows(ctx context.Context, scope *flowScope, exec *model.Execution, el *bpmn.Element, flows []*bpmn.SequenceFlow) error {
	switch len(flows) {
	case 0:
		return a.endExecution(ctx, exec, el)
	case 1:
		a.planExecute(scope, exec, flows[0].Target)
		return nil
	}
	return a.fork(ctx, scope, exec, el, flows)
}

// fork continues on every flow with its own concurrent execution. A concurrent execution
// keeps the first flow and gets siblings for the rest; a scope execution goes inactive and
// becomes the parent of the new paths.
func (a *agenda) fork(ctx context.Context, scope *flowScope, exec *model.Execution, el *bpmn.Element, flows []*bpmn.SequenceFlow) error {
	e := a.e
	paths := make([]*model.Execution, 0, len(flows))
	parentID := exec.ID
	if exec.IsConcurrent {
		parentID = exec.ParentID
		paths = append(paths, exec)
	} else {
		exec.IsActive = false
		if err := e.daos.Execution.Update(ctx, exec); err != nil {
			return err
		}
	}
	for len(paths) < len(flows) {
		child := &model.Execution{
			ID:                  newID(),
			ProcessInstanceID:   exec.ProcessInstanceID,
			ParentID:            parentID,
			ProcessDefinitionID: exec.ProcessDefinitionID,
			ActivityID:          el.ID,
			IsActive:            true,
			IsConcurrent:        true,
			SuspensionState:     exec.SuspensionState,
			TenantID:            exec.TenantID,
			StartTime:           e.now(),
		}
		if err := e.daos.Execution.Create(ctx, child); err != nil {
			return err
		}
		paths = append(paths, child)
	}
	for i, f := range flows {
		a.planExecute(scope, paths[i], f.Target)
	}
	return nil
}

// join parks the arriving execution at the gateway until every incoming flow has
// delivered one. The joined paths then merge: into the parent when no other path is
// alive, otherwise into the execution that arrived last.
func (a *agenda) join(ctx context.Context, scope *flowScope, exec *model.Execution, el *bpmn.Element) error {
	e := a.e
	if len(el.Incoming) <= 1 {
		return a.doLeave(ctx, scope, exec, el)
	}
	exec.IsActive = false
	if err := e.daos.Execution.Update(ctx, exec); err != nil {
		return err
	}
	if !exec.IsConcurrent {
		return nil
	}
	siblings, err := e.daos.Execution.ListChildren(ctx, exec.ParentID)
	if err != nil {
		return err
	}
	var joined []*model.Execution
	alive := 0
	for _, s := range siblings {
		if !s.IsActive && s.ActivityID == el.ID {
			joined = append(joined, s)
		} else {
			alive++
		}
	}
	if len(joined) < len(el.Incoming) {
		logging.Debug(ctx, "parallel gateway waiting",
			zap.String("activity_id", el.ID),
			zap.Int("joined", len(joined)),
			zap.Int("incoming", len(el.Incoming)))
		return nil
	}
	for _, j := range joined {
		if err := e.recordActivityEnd(ctx, j.ID, el.ID); err != nil {
			return err
		}
		if alive > 0 && j.ID == exec.ID {
			continue
		}
		if err := e.deleteExecution(ctx, j); err != nil {
			return err
		}
	}
	next := exec
	if alive == 0 {
		parent, err := e.daos.Execution.Get(ctx, exec.ParentID)
		if err != nil {
			return err
		}
		next = parent
	}
	next.IsActive = true
	next.ActivityID = el.ID
	if err := e.daos.Execution.Update(ctx, next); err != nil {
		return err
	}
	return a.takeFlows(ctx, scope, next, el, el.Outgoing)
}

func (e *Engine) deleteExecution(ctx context.Context, exec *model.Execution) error {
	if err := e.daos.Variable.DeleteByExecution(ctx, exec.ID); err != nil {
		return err
	}
	if err := e.daos.Job.DeleteByExecution(ctx, exec.ID); err != nil {
		return err
	}
	return e.daos.Execution.Delete(ctx, exec.ID)
}

// endExecution ends one path. The process instance ends with its last path, or at once
// on a terminate end event.
func (a *agenda) endExecution(ctx context.Context, exec *model.Execution, el *bpmn.Element) error {
	e := a.e
	if el.Terminate && !exec.IsProcessInstance() {
		root, err := e.daos.Execution.Get(ctx, exec.ProcessInstanceID)
		if err != nil {
			return err
		}
		return a.endProcessInstance(ctx, root, el.ID, "")
	}
	if !exec.IsConcurrent {
		return a.endProcessInstance(ctx, exec, el.ID, "")
	}
	if err := e.deleteExecution(ctx, exec); err != nil {
		return err
	}
	siblings, err := e.daos.Execution.ListChildren(ctx, exec.ParentID)
	if err != nil {
		return err
	}
	if len(siblings) > 0 {
		return nil
	}
	parent, err := e.daos.Execution.Get(ctx, exec.ParentID)
	if err != nil {
		return err
	}
	return a.endProcessInstance(ctx, parent, el.ID, "")
}

// endProcessInstance removes the runtime state of root. A sub process instance that
// completes normally hands its out parameters to the calling execution, which then
// leaves the call activity.
func (a *agenda) endProcessInstance(ctx context.Context, root *model.Execution, endActivityID, deleteReason string) error {
	e := a.e
	var (
		superExec  *model.Execution
		superScope *flowScope
		superEl    *bpmn.Element
		outputs    []NamedValue
	)
	if root.SuperExecutionID != "" && deleteReason == "" {
		var err error
		if superExec, err = e.daos.Execution.Get(ctx, root.SuperExecutionID); err != nil {
			return err
		}
		if superScope, err = e.scopeOf(ctx, superExec.ProcessDefinitionID); err != nil {
			return err
		}
		if superEl, err = superScope.element(superExec.ActivityID); err != nil {
			return err
		}
		if superEl.Call != nil {
			if outputs, err = e.callParameters(ctx, root, superEl.Call.Out); err != nil {
				return err
			}
		}
	}
	if err := e.purgeProcessInstance(ctx, root, endActivityID, deleteReason); err != nil {
		return err
	}
	a.ended = true
	if superExec == nil {
		return nil
	}
	for _, nv := range outputs {
		if err := e.setVariable(ctx, superExec, nv.Name, nv.Value); err != nil {
			return err
		}
	}
	a.planLeave(superScope, superExec, superEl)
	return nil
}

// purgeProcessInstance deletes the runtime rows of a process instance and its sub process
// instances and closes their history.
func (e *Engine) purgeProcessInstance(ctx context.Context, root *model.Execution, endActivityID, deleteReason string) error {
	piID := root.ID
	execs, err := e.daos.Execution.ListByProcessInstance(ctx, piID)
	if err != nil {
		return err
	}
	subReason := deleteReason
	if subReason == "" {
		subReason = "terminated by super process instance " + piID
	}
	for _, x := range execs {
		sub, err := e.daos.Execution.FindSubProcessInstance(ctx, x.ID)
		if err != nil {
			if isMissing(err) {
				continue
			}
			return err
		}
		if err := e.purgeProcessInstance(ctx, sub, "", subReason); err != nil {
			return err
		}
	}

	tasks, err := e.daos.Task.ListByProcessInstance(ctx, piID)
	if err != nil {
		return err
	}
	taskReason := deleteReason
	if taskReason == "" {
		taskReason = "terminated"
	}
	for _, t := range tasks {
		if err := e.removeTask(ctx, t, taskReason); err != nil {
			return err
		}
	}
	if err := e.closeOpenActivities(ctx, piID); err != nil {
		return err
	}
	if err := e.daos.Job.DeleteByProcessInstance(ctx, piID); err != nil {
		return err
	}
	if err := e.daos.IdentityLink.DeleteByProcessInstance(ctx, piID); err != nil {
		return err
	}
	if err := e.daos.Variable.DeleteByProcessInstance(ctx, piID); err != nil {
		return err
	}
	if err := e.daos.Execution.DeleteByProcessInstance(ctx, piID); err != nil {
		return err
	}
	if err := e.recordProcessEnd(ctx, piID, endActivityID, deleteReason); err != nil {
		return err
	}
	onCommit(ctx, e.Metrics.ProcessEnded)
	logging.Info(ctx, "process instance ended",
		zap.String("process_instance_id", piID),
		zap.String("end_activity_id", endActivityID),
		zap.String("delete_reason", deleteReason))
	return nil
}

type startParams struct {
	businessKey string
	startUserID string
	superExec   *model.Execution
	vars        []NamedValue
}

// startInstance creates the process instance, sets its variables and plans the initial
// element. Nothing runs until the agenda does.
func (a *agenda) startInstance(ctx context.Context, scope *flowScope, p startParams) (*model.Execution, error) {
	e := a.e
	initial := scope.proc.Initial
	if initial == nil {
		return nil, apperr.IllegalArgument("Process '%s' has no start event", scope.proc.ID)
	}
	id := newID()
	root := &model.Execution{
		ID:                  id,
		ProcessInstanceID:   id,
		BusinessKey:         p.businessKey,
		ProcessDefinitionID: scope.def.ID,
		ActivityID:          initial.ID,
		IsActive:            true,
		IsScope:             true,
		SuspensionState:     bizConsts.SuspensionActive,
		TenantID:            scope.def.TenantID,
		StartUserID:         p.startUserID,
		StartTime:           e.now(),
	}
	superPI := ""
	if p.superExec != nil {
		root.SuperExecutionID = p.superExec.ID
		superPI = p.superExec.ProcessInstanceID
	}
	if err := e.daos.Execution.Create(ctx, root); err != nil {
		return nil, err
	}
	if err := e.recordProcessStart(ctx, root, initial.ID, superPI); err != nil {
		return nil, err
	}
	if p.startUserID != "" {
		if err := e.involveUser(ctx, id, p.startUserID); err != nil {
			return nil, err
		}
	}
	for _, nv := range p.vars {
		if err := e.setVariableLocal(ctx, root, nv.Name, nv.Value); err != nil {
			return nil, err
		}
	}
	a.planExecute(scope, root, initial)
	key := scope.def.Key
	onCommit(ctx, func() { e.Metrics.ProcessStarted(key) })
	return root, nil
}

func (a *agenda) callActivity(ctx context.Context, exec *model.Execution, el *bpmn.Element) error {
	e := a.e
	def, err := e.daos.Repository.LatestDefinition(ctx, el.Call.CalledElement, exec.TenantID)
	if err != nil {
		return notFound(err, "No process definition found with key '%s'", el.Call.CalledElement)
	}
	if def.Suspended() {
		return apperr.Conflict("Cannot start process instance. Process definition %s (id = %s) is suspended", def.Name, def.ID)
	}
	proc, err := e.processModel(ctx, def)
	if err != nil {
		return err
	}
	inputs, err := e.callParameters(ctx, exec, el.Call.In)
	if err != nil {
		return err
	}
	sub, err := a.startInstance(ctx, &flowScope{def: def, proc: proc}, startParams{
		businessKey: exec.BusinessKey,
		superExec:   exec,
		vars:        inputs,
	})
	if err != nil {
		return err
	}
	return e.amendActivity(ctx, exec.ID, el.ID, func(h *model.HistoricActivityInstance) {
		h.CalledProcessInstanceID = sub.ID
	})
}

// callParameters reads call activity in/out parameters from the variables visible at exec.
func (e *Engine) callParameters(ctx context.Context, exec *model.Execution, params []bpmn.IOParameter) ([]NamedValue, error) {
	if len(params) == 0 {
		return nil, nil
	}
	b, err := e.bindings(ctx, exec)
	if err != nil {
		return nil, err
	}
	out := make([]NamedValue, 0, len(params))
	for _, p := range params {
		var raw any
		if p.SourceExpression != "" {
			if raw, _, err = e.scripts.EvalExpression(b, p.SourceExpression); err != nil {
				return nil, err
			}
		} else {
			raw = b.Variables[p.Source]
		}
		val, err := variable.Encode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedValue{Name: p.Target, Value: val})
	}
	return out, nil
}

func (e *Engine) createJob(ctx context.Context, exec *model.Execution, jobType, handler, handlerCfg string, due *time.Time) error {
	return e.daos.Job.Create(ctx, &model.Job{
		ID:                  newID(),
		Type:                jobType,
		Exclusive:           true,
		ExecutionID:         exec.ID,
		ProcessInstanceID:   exec.ProcessInstanceID,
		ProcessDefinitionID: exec.ProcessDefinitionID,
		Retries:             bizConsts.DefaultJobRetries,
		DueDate:             due,
		HandlerType:         handler,
		HandlerCfg:          handlerCfg,
		TenantID:            exec.TenantID,
		CreateTime:          e.now(),
	})
}

func (e *Engine) timerDue(ctx context.Context, exec *model.Execution, t *bpmn.TimerDef) (time.Time, error) {
	raw := t.Duration
	if raw == "" {
		raw = t.Date
	}
	text, err := e.evalText(ctx, exec, raw)
	if err != nil {
		return time.Time{}, err
	}
	if t.Duration != "" {
		d, err := bpmn.ParseDuration(text)
		if err != nil {
			return time.Time{}, err
		}
		return e.now().Add(d), nil
	}
	at, err := variable.ParseDate(text)
	if err != nil {
		return time.Time{}, apperr.IllegalArgument("Timer date '%s' is not a valid ISO-8601 date", text)
	}
	return at.UTC(), nil
}

func (e *Engine) evalText(ctx context.Context, exec *model.Execution, s string) (string, error) {
	if !script.IsExpression(s) {
		return s, nil
	}
	b, err := e.bindings(ctx, exec)
	if err != nil {
		return "", err
	}
	return e.evalWith(b, s)
}

func (e *Engine) evalWith(b script.Bindings, s string) (string, error) {
	if !script.IsExpression(s) {
		return s, nil
	}
	v, _, err := e.scripts.EvalExpression(b, s)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

// evalList evaluates a candidate list. An expression may yield a comma separated string
// or a list.
func (e *Engine) evalList(b script.Bindings, items []string) ([]string, error) {
	var out []string
	for _, item := range items {
		if !script.IsExpression(item) {
			out = append(out, item)
			continue
		}
		v, _, err := e.scripts.EvalExpression(b, item)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case nil:
		case []any:
			for _, s := range x {
				out = append(out, stringify(s))
			}
		default:
			for _, s := range strings.Split(stringify(x), ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return variable.FormatDate(x)
	}
	return fmt.Sprint(v)
}

// beanName extracts name from "${name}", the usual shape of a delegate expression.
func beanName(expr string) (string, bool) {
	s := strings.TrimSpace(expr)
	if !(strings.HasPrefix(s, "${") || strings.HasPrefix(s, "#{")) || !strings.HasSuffix(s, "}") {
		return "", false
	}
	inner := strings.TrimSpace(s[2 : len(s)-1])
	if inner == "" {
		return "", false
	}
	for i, r := range inner {
		if !(r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))) {
			return "", false
		}
	}
	return inner, true
}

func (e *Engine) runServiceTask(ctx context.Context, exec *model.Execution, el *bpmn.Element) error {
	svc := el.Service
	b, err := e.bindings(ctx, exec)
	if err != nil {
		return err
	}
	if svc.Expression != "" {
		result, updates, err := e.scripts.EvalExpression(b, svc.Expression)
		if err != nil {
			return fmt.Errorf("service task '%s': %w", el.ID, err)
		}
		if err := e.applyUpdates(ctx, exec, updates); err != nil {
			return err
		}
		return e.setResult(ctx, exec, svc.ResultVariable, result)
	}

	name := svc.Class
	if svc.DelegateExpression != "" {
		if n, ok := beanName(svc.DelegateExpression); ok {
			name = n
		} else if name, err = e.evalWith(b, svc.DelegateExpression); err != nil {
			return fmt.Errorf("service task '%s': %w", el.ID, err)
		}
	}
	delegate, ok := e.delegates.Get(name)
	if !ok {
		return apperr.IllegalArgument("No delegate registered under '%s' for service task '%s'", name, el.ID)
	}
	de := &delegateExecution{
		exec: exec,
		vars: b.Variables,
		set: func(n string, v variable.Value) error {
			return e.setVariable(ctx, exec, n, v)
		},
	}
	if err := delegate.Execute(ctx, de); err != nil {
		// the trace starts here; a failing job stores it
		return goerrors.WrapPrefix(err, fmt.Sprintf("service task '%s'", el.ID), 0)
	}
	return nil
}

func (e *Engine) runScriptTask(ctx context.Context, exec *model.Execution, el *bpmn.Element) error {
	b, err := e.bindings(ctx, exec)
	if err != nil {
		return err
	}
	result, updates, err := e.scripts.RunScript(b, el.Script.Script)
	if err != nil {
		return fmt.Errorf("script task '%s': %w", el.ID, err)
	}
	if err := e.applyUpdates(ctx, exec, updates); err != nil {
		return err
	}
	return e.setResult(ctx, exec, el.Script.ResultVariable, result)
}

func (e *Engine) setResult(ctx context.Context, exec *model.Execution, name string, result any) error {
	if name == "" {
		return nil
	}
	val, err := variable.Encode(result)
	if err != nil {
		return err
	}
	return e.setVariable(ctx, exec, name, val)
}

func (e *Engine) createUserTask(ctx context.Context, exec *model.Execution, el *bpmn.Element) error {
	def := el.UserTask
	if def == nil {
		def = &bpmn.UserTaskDef{}
	}
	b, err := e.bindings(ctx, exec)
	if err != nil {
		return err
	}
	texts := []string{el.Name, def.Assignee, def.Owner, def.Priority, def.DueDate, def.FormKey, def.Category}
	for i, s := range texts {
		if texts[i], err = e.evalWith(b, s); err != nil {
			return fmt.Errorf("user task '%s': %w", el.ID, err)
		}
	}
	name, assignee, owner, priorityText, dueText, formKey, category := texts[0], texts[1], texts[2], texts[3], texts[4], texts[5], texts[6]

	priority := DefaultTaskPriority
	if strings.TrimSpace(priorityText) != "" {
		if priority, err = strconv.Atoi(strings.TrimSpace(priorityText)); err != nil {
			return apperr.IllegalArgument("Priority '%s' of user task '%s' is not a number", priorityText, el.ID)
		}
	}
	var due *time.Time
	if dueText != "" {
		at, err := variable.ParseDate(dueText)
		if err != nil {
			return apperr.IllegalArgument("Due date '%s' of user task '%s' is not a valid date", dueText, el.ID)
		}
		at = at.UTC()
		due = &at
	}

	task := &model.Task{
		ID:                  newID(),
		ExecutionID:         exec.ID,
		ProcessInstanceID:   exec.ProcessInstanceID,
		ProcessDefinitionID: exec.ProcessDefinitionID,
		Name:                name,
		Description:         el.Documentation,
		TaskDefinitionKey:   el.ID,
		Owner:               owner,
		Assignee:            assignee,
		Priority:            priority,
		CreateTime:          e.now(),
		DueDate:             due,
		Category:            category,
		FormKey:             formKey,
		SuspensionState:     bizConsts.SuspensionActive,
		TenantID:            exec.TenantID,
	}
	if err := e.daos.Task.Create(ctx, task); err != nil {
		return err
	}
	if err := e.recordTaskCreated(ctx, task); err != nil {
		return err
	}
	users, err := e.evalList(b, def.CandidateUsers)
	if err != nil {
		return err
	}
	groups, err := e.evalList(b, def.CandidateGroups)
	if err != nil {
		return err
	}
	for _, u := range users {
		if _, err := e.addTaskLink(ctx, task, u, "", bizConsts.LinkCandidate); err != nil {
			return err
		}
	}
	for _, g := range groups {
		if _, err := e.addTaskLink(ctx, task, "", g, bizConsts.LinkCandidate); err != nil {
			return err
		}
	}
	for _, u := range []string{assignee, owner} {
		if u == "" {
			continue
		}
		if err := e.involveUser(ctx, task.ProcessInstanceID, u); err != nil {
			return err
		}
	}
	if err := e.amendActivity(ctx, exec.ID, el.ID, func(h *model.HistoricActivityInstance) {
		h.TaskID = task.ID
		h.Assignee = task.Assignee
	}); err != nil {
		return err
	}
	onCommit(ctx, e.Metrics.TaskCreated)
	return nil
}
