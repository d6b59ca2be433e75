package engine

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

// TaskPatch carries the fields present in a create or update request. A nil field is
// left alone; a pointer to "" clears it.
type TaskPatch struct {
	Name            *string
	Description     *string
	Owner           *string
	Assignee        *string
	DelegationState *string
	Priority        *int
	Category        *string
	FormKey         *string
	ParentTaskID    *string
	TenantID        *string
	// DueDateSet marks a dueDate in the request; a nil DueDate then clears it.
	DueDateSet bool
	DueDate    *time.Time
}

func (p TaskPatch) validate() error {
	if p.DelegationState != nil {
		switch *p.DelegationState {
		case "", bizConsts.DelegationPending, bizConsts.DelegationResolved:
		default:
			return apperr.IllegalArgument("Illegal value for delegationState: %s", *p.DelegationState)
		}
	}
	return nil
}

func (p TaskPatch) apply(t *model.Task) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&t.Name, p.Name)
	set(&t.Description, p.Description)
	set(&t.Owner, p.Owner)
	set(&t.Assignee, p.Assignee)
	set(&t.DelegationState, p.DelegationState)
	set(&t.Category, p.Category)
	set(&t.FormKey, p.FormKey)
	set(&t.ParentTaskID, p.ParentTaskID)
	set(&t.TenantID, p.TenantID)
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDateSet {
		if p.DueDate == nil {
			t.DueDate = nil
		} else {
			due := p.DueDate.UTC()
			t.DueDate = &due
		}
	}
}

func (e *Engine) getTask(ctx context.Context, id string) (*model.Task, error) {
	t, err := e.daos.Task.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a task with id '%s'.", id)
	}
	return t, nil
}

func (e *Engine) Tasks(ctx context.Context, q *model.TaskQuery, page query.Page) ([]*model.Task, int64, error) {
	var err error
	if q.TaskVariableFilters, err = variable.CompileAll(q.TaskVariables); err != nil {
		return nil, 0, err
	}
	if q.ProcessInstanceVariableFilters, err = variable.CompileAll(q.ProcessInstanceVariables); err != nil {
		return nil, 0, err
	}
	user := q.CandidateUser
	if user == "" {
		user = q.CandidateOrAssigned
	}
	if user != "" {
		if q.CandidateUserGroups, err = e.daos.Identity.GroupIDsOfUser(ctx, user); err != nil {
			return nil, 0, err
		}
	}
	total, err := e.daos.Task.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Task.List(ctx, q, page)
	return list, total, err
}

func (e *Engine) Task(ctx context.Context, id string) (*model.Task, error) {
	return e.getTask(ctx, id)
}

// CreateTask creates a standalone task, optionally as a sub task of ParentTaskID.
func (e *Engine) CreateTask(ctx context.Context, p TaskPatch) (*model.Task, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	t := &model.Task{
		ID:              newID(),
		Priority:        DefaultTaskPriority,
		CreateTime:      e.now(),
		SuspensionState: bizConsts.SuspensionActive,
	}
	p.apply(t)
	err := e.tx(ctx, func(ctx context.Context) error {
		if t.ParentTaskID != "" {
			if _, err := e.daos.Task.Get(ctx, t.ParentTaskID); err != nil {
				return notFound(err, "Could not find a parent task with id '%s'.", t.ParentTaskID)
			}
		}
		if err := e.daos.Task.Create(ctx, t); err != nil {
			return err
		}
		return e.recordTaskCreated(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	e.Metrics.TaskCreated()
	return t, nil
}

// modifyTask loads, changes and stores a task in one transaction, keeping its history,
// participant links and activity instance in step with assignee and owner changes.
func (e *Engine) modifyTask(ctx context.Context, id string, fn func(t *model.Task) error) (*model.Task, error) {
	var task *model.Task
	err := e.tx(ctx, func(ctx context.Context) error {
		t, err := e.getTask(ctx, id)
		if err != nil {
			return err
		}
		assignee, owner := t.Assignee, t.Owner
		if err := fn(t); err != nil {
			return err
		}
		if err := e.daos.Task.Update(ctx, t); err != nil {
			return err
		}
		claimed := t.Assignee != assignee
		if err := e.recordTaskUpdated(ctx, t, claimed); err != nil {
			return err
		}
		if claimed && t.Assignee != "" {
			if err := e.involveUser(ctx, t.ProcessInstanceID, t.Assignee); err != nil {
				return err
			}
		}
		if t.Owner != owner && t.Owner != "" {
			if err := e.involveUser(ctx, t.ProcessInstanceID, t.Owner); err != nil {
				return err
			}
		}
		if claimed && !t.Standalone() {
			if err := e.amendActivity(ctx, t.ExecutionID, t.TaskDefinitionKey, func(h *model.HistoricActivityInstance) {
				h.Assignee = t.Assignee
			}); err != nil {
				return err
			}
		}
		task = t
		return nil
	})
	return task, err
}

func (e *Engine) UpdateTask(ctx context.Context, id string, p TaskPatch) (*model.Task, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return e.modifyTask(ctx, id, func(t *model.Task) error {
		p.apply(t)
		return nil
	})
}

// removeTask deletes a task with its local variables and links and closes its history.
func (e *Engine) removeTask(ctx context.Context, t *model.Task, deleteReason string) error {
	if err := e.daos.Variable.DeleteByTask(ctx, t.ID); err != nil {
		return err
	}
	if err := e.daos.IdentityLink.DeleteByTask(ctx, t.ID); err != nil {
		return err
	}
	if err := e.daos.Task.Delete(ctx, t.ID); err != nil {
		return err
	}
	return e.recordTaskEnded(ctx, t, deleteReason)
}

// DeleteTask deletes a standalone task and its sub tasks. With cascadeHistory their
// historic rows go as well.
func (e *Engine) DeleteTask(ctx context.Context, id string, cascadeHistory bool, reason string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		t, err := e.getTask(ctx, id)
		if err != nil {
			return err
		}
		if !t.Standalone() {
			return apperr.Forbidden("Cannot delete a task that is part of a process-instance.")
		}
		return e.deleteTaskTree(ctx, t, cascadeHistory, reason)
	})
}

func (e *Engine) deleteTaskTree(ctx context.Context, t *model.Task, cascadeHistory bool, reason string) error {
	subs, err := e.daos.Task.ListSubTasks(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := e.deleteTaskTree(ctx, sub, cascadeHistory, reason); err != nil {
			return err
		}
	}
	if err := e.removeTask(ctx, t, reason); err != nil {
		return err
	}
	if cascadeHistory {
		return e.daos.History.DeleteTask(ctx, t.ID)
	}
	return nil
}

// CompleteTask sets vars and completes the task. A process task lets its execution leave
// the user task.
func (e *Engine) CompleteTask(ctx context.Context, id string, vars []NamedValue) error {
	ctx, span := e.span(ctx, "engine.CompleteTask", attribute.String("task.id", id))
	defer span.End()
	err := e.tx(ctx, func(ctx context.Context) error {
		t, err := e.getTask(ctx, id)
		if err != nil {
			return err
		}
		if t.Suspended() {
			return apperr.Conflict("Cannot complete task '%s': it is suspended", id)
		}
		if t.DelegationState == bizConsts.DelegationPending {
			return apperr.IllegalArgument("A delegated task cannot be completed, but should be resolved instead.")
		}
		scope := variable.ScopeGlobal
		if t.Standalone() {
			scope = variable.ScopeLocal
		}
		if err := e.writeTaskVariables(ctx, t, scope, vars, false); err != nil {
			return err
		}
		if err := e.removeTask(ctx, t, bizConsts.DeleteReasonCompleted); err != nil {
			return err
		}
		if t.Standalone() {
			return nil
		}
		exec, err := e.daos.Execution.Get(ctx, t.ExecutionID)
		if err != nil {
			return err
		}
		fs, err := e.scopeOf(ctx, exec.ProcessDefinitionID)
		if err != nil {
			return err
		}
		el, err := fs.element(t.TaskDefinitionKey)
		if err != nil {
			return err
		}
		a := e.newAgenda()
		a.planLeave(fs, exec, el)
		return a.run(ctx)
	})
	if err != nil {
		return err
	}
	e.Metrics.TaskCompleted()
	logging.Info(ctx, "task completed", zap.String("task_id", id))
	return nil
}

// Claim assigns the task to userID. An empty userID unclaims it.
func (e *Engine) Claim(ctx context.Context, id, userID string) (*model.Task, error) {
	return e.modifyTask(ctx, id, func(t *model.Task) error {
		if userID != "" && t.Assignee != "" && t.Assignee != userID {
			return apperr.Conflict("Task '%s' is already claimed by someone else.", id)
		}
		t.Assignee = userID
		return nil
	})
}

// Delegate hands the task to userID; the current assignee becomes the owner unless one is set.
func (e *Engine) Delegate(ctx context.Context, id, userID string) (*model.Task, error) {
	if userID == "" {
		return nil, apperr.IllegalArgument("An assignee is required when delegating.")
	}
	return e.modifyTask(ctx, id, func(t *model.Task) error {
		if t.Owner == "" {
			t.Owner = t.Assignee
		}
		t.Assignee = userID
		t.DelegationState = bizConsts.DelegationPending
		return nil
	})
}

// Resolve returns a delegated task to its owner.
func (e *Engine) Resolve(ctx context.Context, id string) (*model.Task, error) {
	return e.modifyTask(ctx, id, func(t *model.Task) error {
		t.DelegationState = bizConsts.DelegationResolved
		t.Assignee = t.Owner
		return nil
	})
}

func (e *Engine) SubTasks(ctx context.Context, id string) ([]*model.Task, error) {
	if _, err := e.getTask(ctx, id); err != nil {
		return nil, err
	}
	return e.daos.Task.ListSubTasks(ctx, id)
}

func (e *Engine) addTaskLink(ctx context.Context, t *model.Task, userID, groupID, linkType string) (*model.IdentityLink, error) {
	link := &model.IdentityLink{
		ID:                  newID(),
		Type:                linkType,
		UserID:              userID,
		GroupID:             groupID,
		TaskID:              t.ID,
		ProcessDefinitionID: t.ProcessDefinitionID,
	}
	if err := e.daos.IdentityLink.Create(ctx, link); err != nil {
		return nil, err
	}
	if err := e.recordLinkAdded(ctx, link); err != nil {
		return nil, err
	}
	if userID != "" {
		if err := e.involveUser(ctx, t.ProcessInstanceID, userID); err != nil {
			return nil, err
		}
	}
	return link, nil
}

// assignmentLinks exposes assignee and owner as identity links; they are task fields,
// not link rows.
func assignmentLinks(t *model.Task) []*model.IdentityLink {
	var out []*model.IdentityLink
	if t.Assignee != "" {
		out = append(out, &model.IdentityLink{Type: bizConsts.LinkAssignee, UserID: t.Assignee, TaskID: t.ID})
	}
	if t.Owner != "" {
		out = append(out, &model.IdentityLink{Type: bizConsts.LinkOwner, UserID: t.Owner, TaskID: t.ID})
	}
	return out
}

func isAssignment(linkType string) bool {
	return linkType == bizConsts.LinkAssignee || linkType == bizConsts.LinkOwner
}

func (e *Engine) TaskIdentityLinks(ctx context.Context, taskID string) ([]*model.IdentityLink, error) {
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	links, err := e.daos.IdentityLink.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return append(assignmentLinks(t), links...), nil
}

func (e *Engine) TaskIdentityLink(ctx context.Context, taskID, userID, groupID, linkType string) (*model.IdentityLink, error) {
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if isAssignment(linkType) {
		for _, l := range assignmentLinks(t) {
			if l.Type == linkType && l.UserID == userID && groupID == "" {
				return l, nil
			}
		}
		return nil, apperr.NotFound("Could not find the requested identity link.")
	}
	link, err := e.daos.IdentityLink.Find(ctx, taskID, "", userID, groupID, linkType)
	if err != nil {
		return nil, notFound(err, "Could not find the requested identity link.")
	}
	return link, nil
}

func checkLinkTarget(userID, groupID, linkType string) error {
	switch {
	case userID != "" && groupID != "":
		return apperr.IllegalArgument("Only one of user or group can be used to create an identity link.")
	case userID == "" && groupID == "":
		return apperr.IllegalArgument("A group or a user is required to create an identity link.")
	case strings.TrimSpace(linkType) == "":
		return apperr.IllegalArgument("The identity link type is required.")
	case isAssignment(linkType) && groupID != "":
		return apperr.IllegalArgument("Identity links of type '%s' can only refer to a user.", linkType)
	}
	return nil
}

// AddTaskIdentityLink adds a user or group link. Assignee and owner links set the
// corresponding task field.
func (e *Engine) AddTaskIdentityLink(ctx context.Context, taskID, userID, groupID, linkType string) (*model.IdentityLink, error) {
	if err := checkLinkTarget(userID, groupID, linkType); err != nil {
		return nil, err
	}
	if isAssignment(linkType) {
		_, err := e.modifyTask(ctx, taskID, func(t *model.Task) error {
			if linkType == bizConsts.LinkAssignee {
				t.Assignee = userID
			} else {
				t.Owner = userID
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &model.IdentityLink{Type: linkType, UserID: userID, TaskID: taskID}, nil
	}
	var link *model.IdentityLink
	err := e.tx(ctx, func(ctx context.Context) error {
		t, err := e.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		existing, err := e.daos.IdentityLink.Find(ctx, taskID, "", userID, groupID, linkType)
		if err == nil {
			link = existing
			return nil
		}
		if !isMissing(err) {
			return err
		}
		link, err = e.addTaskLink(ctx, t, userID, groupID, linkType)
		return err
	})
	return link, err
}

func (e *Engine) DeleteTaskIdentityLink(ctx context.Context, taskID, userID, groupID, linkType string) error {
	link, err := e.TaskIdentityLink(ctx, taskID, userID, groupID, linkType)
	if err != nil {
		return err
	}
	if isAssignment(linkType) {
		_, err := e.modifyTask(ctx, taskID, func(t *model.Task) error {
			if linkType == bizConsts.LinkAssignee {
				t.Assignee = ""
			} else {
				t.Owner = ""
			}
			return nil
		})
		return err
	}
	return e.tx(ctx, func(ctx context.Context) error {
		if err := e.daos.IdentityLink.Delete(ctx, link.ID); err != nil {
			return err
		}
		return e.recordLinkRemoved(ctx, link)
	})
}

func (e *Engine) TaskComments(ctx context.Context, taskID string) ([]*model.Comment, error) {
	if _, err := e.getTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.daos.Comment.ListByTask(ctx, taskID)
}

func (e *Engine) newComment(userID, taskID, processInstanceID, message string) (*model.Comment, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperr.IllegalArgument("Comment text is required.")
	}
	return &model.Comment{
		ID:                newID(),
		Type:              bizConsts.CommentTypeComment,
		Time:              e.now(),
		UserID:            userID,
		TaskID:            taskID,
		ProcessInstanceID: processInstanceID,
		Action:            "AddComment",
		Message:           message,
		FullMessage:       message,
	}, nil
}

func (e *Engine) AddTaskComment(ctx context.Context, taskID, userID, message string) (*model.Comment, error) {
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c, err := e.newComment(userID, t.ID, t.ProcessInstanceID, message)
	if err != nil {
		return nil, err
	}
	return c, e.daos.Comment.Create(ctx, c)
}

func (e *Engine) TaskComment(ctx context.Context, taskID, commentID string) (*model.Comment, error) {
	if _, err := e.getTask(ctx, taskID); err != nil {
		return nil, err
	}
	c, err := e.daos.Comment.Get(ctx, commentID)
	if err != nil && !isMissing(err) {
		return nil, err
	}
	if c == nil || c.TaskID != taskID {
		return nil, apperr.NotFound("Task '%s' doesn't have a comment with id '%s'.", taskID, commentID)
	}
	return c, nil
}

func (e *Engine) DeleteTaskComment(ctx context.Context, taskID, commentID string) error {
	c, err := e.TaskComment(ctx, taskID, commentID)
	if err != nil {
		return err
	}
	return e.daos.Comment.Delete(ctx, c.ID)
}

// commentTarget checks that the process instance is known, running or in history.
func (e *Engine) commentTarget(ctx context.Context, processInstanceID string) error {
	_, err := e.daos.History.GetProcessInstance(ctx, processInstanceID)
	if err == nil {
		return nil
	}
	if !isMissing(err) {
		return err
	}
	_, err = e.getProcessInstance(ctx, processInstanceID)
	return err
}

func (e *Engine) ProcessInstanceComments(ctx context.Context, processInstanceID string) ([]*model.Comment, error) {
	if err := e.commentTarget(ctx, processInstanceID); err != nil {
		return nil, err
	}
	return e.daos.Comment.ListByProcessInstance(ctx, processInstanceID)
}

func (e *Engine) AddProcessInstanceComment(ctx context.Context, processInstanceID, userID, message string) (*model.Comment, error) {
	if err := e.commentTarget(ctx, processInstanceID); err != nil {
		return nil, err
	}
	c, err := e.newComment(userID, "", processInstanceID, message)
	if err != nil {
		return nil, err
	}
	return c, e.daos.Comment.Create(ctx, c)
}
