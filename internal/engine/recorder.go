package engine

import (
	"context"
	"time"

	"github.com/grand-thief-cash/procflow/internal/bpmn"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
)

// History writes, gated by the configured history level.

func durationMillis(start, end time.Time) *int64 {
	d := end.Sub(start).Milliseconds()
	return &d
}

func (e *Engine) recordProcessStart(ctx context.Context, root *model.Execution, startActivityID, superProcessInstanceID string) error {
	if !e.history(bizConsts.HistoryActivity) {
		return nil
	}
	return e.daos.History.CreateProcessInstance(ctx, &model.HistoricProcessInstance{
		ID:                     root.ID,
		ProcessInstanceID:      root.ID,
		BusinessKey:            root.BusinessKey,
		ProcessDefinitionID:    root.ProcessDefinitionID,
		StartTime:              root.StartTime,
		StartUserID:            root.StartUserID,
		StartActivityID:        startActivityID,
		SuperProcessInstanceID: superProcessInstanceID,
		TenantID:               root.TenantID,
		Name:                   root.Name,
	})
}

func (e *Engine) recordProcessEnd(ctx context.Context, processInstanceID, endActivityID, deleteReason string) error {
	if !e.history(bizConsts.HistoryActivity) {
		return nil
	}
	h, err := e.daos.History.GetProcessInstance(ctx, processInstanceID)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	now := e.now()
	h.EndTime = &now
	h.DurationInMillis = durationMillis(h.StartTime, now)
	h.EndActivityID = endActivityID
	h.DeleteReason = deleteReason
	return e.daos.History.UpdateProcessInstance(ctx, h)
}

func (e *Engine) recordActivityStart(ctx context.Context, exec *model.Execution, el *bpmn.Element) error {
	if !e.history(bizConsts.HistoryActivity) {
		return nil
	}
	return e.daos.History.CreateActivity(ctx, &model.HistoricActivityInstance{
		ID:                  newID(),
		ProcessDefinitionID: exec.ProcessDefinitionID,
		ProcessInstanceID:   exec.ProcessInstanceID,
		ExecutionID:         exec.ID,
		ActivityID:          el.ID,
		ActivityName:        el.Name,
		ActivityType:        string(el.Type),
		StartTime:           e.now(),
		TenantID:            exec.TenantID,
	})
}

// amendActivity applies fn to the open activity instance of exec at activityID, if any.
func (e *Engine) amendActivity(ctx context.Context, executionID, activityID string, fn func(a *model.HistoricActivityInstance)) error {
	if !e.history(bizConsts.HistoryActivity) {
		return nil
	}
	a, err := e.daos.History.FindOpenActivity(ctx, executionID, activityID)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	fn(a)
	return e.daos.History.UpdateActivity(ctx, a)
}

func (e *Engine) recordActivityEnd(ctx context.Context, executionID, activityID string) error {
	now := e.now()
	return e.amendActivity(ctx, executionID, activityID, func(a *model.HistoricActivityInstance) {
		a.EndTime = &now
		a.DurationInMillis = durationMillis(a.StartTime, now)
	})
}

func (e *Engine) closeOpenActivities(ctx context.Context, processInstanceID string) error {
	if !e.history(bizConsts.HistoryActivity) {
		return nil
	}
	open, err := e.daos.History.ListOpenActivities(ctx, processInstanceID)
	if err != nil {
		return err
	}
	now := e.now()
	for _, a := range open {
		a.EndTime = &now
		a.DurationInMillis = durationMillis(a.StartTime, now)
		if err := e.daos.History.UpdateActivity(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recordTaskCreated(ctx context.Context, t *model.Task) error {
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	h := &model.HistoricTaskInstance{ID: t.ID, StartTime: t.CreateTime}
	copyTaskToHistory(h, t)
	if t.Assignee != "" {
		claimed := t.CreateTime
		h.ClaimTime = &claimed
	}
	return e.daos.History.CreateTask(ctx, h)
}

func copyTaskToHistory(h *model.HistoricTaskInstance, t *model.Task) {
	h.ProcessDefinitionID = t.ProcessDefinitionID
	h.TaskDefinitionKey = t.TaskDefinitionKey
	h.ProcessInstanceID = t.ProcessInstanceID
	h.ExecutionID = t.ExecutionID
	h.ParentTaskID = t.ParentTaskID
	h.Name = t.Name
	h.Description = t.Description
	h.Owner = t.Owner
	h.Assignee = t.Assignee
	h.Priority = t.Priority
	h.DueDate = t.DueDate
	h.FormKey = t.FormKey
	h.Category = t.Category
	h.TenantID = t.TenantID
}

// recordTaskUpdated mirrors the task onto its historic row; claimed marks a new assignee.
func (e *Engine) recordTaskUpdated(ctx context.Context, t *model.Task, claimed bool) error {
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	h, err := e.daos.History.GetTask(ctx, t.ID)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	copyTaskToHistory(h, t)
	if claimed {
		if t.Assignee == "" {
			h.ClaimTime = nil
		} else {
			now := e.now()
			h.ClaimTime = &now
		}
	}
	return e.daos.History.UpdateTask(ctx, h)
}

func (e *Engine) recordTaskEnded(ctx context.Context, t *model.Task, deleteReason string) error {
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	h, err := e.daos.History.GetTask(ctx, t.ID)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	copyTaskToHistory(h, t)
	now := e.now()
	h.EndTime = &now
	h.DurationInMillis = durationMillis(h.StartTime, now)
	h.DeleteReason = deleteReason
	return e.daos.History.UpdateTask(ctx, h)
}

func (e *Engine) recordLinkAdded(ctx context.Context, l *model.IdentityLink) error {
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	return e.daos.History.CreateIdentityLink(ctx, &model.HistoricIdentityLink{
		ID:                l.ID,
		Type:              l.Type,
		UserID:            l.UserID,
		GroupID:           l.GroupID,
		TaskID:            l.TaskID,
		ProcessInstanceID: l.ProcessInstanceID,
	})
}

func (e *Engine) recordLinkRemoved(ctx context.Context, l *model.IdentityLink) error {
	if !e.history(bizConsts.HistoryAudit) {
		return nil
	}
	return e.daos.History.DeleteIdentityLink(ctx, &model.HistoricIdentityLink{
		Type:              l.Type,
		UserID:            l.UserID,
		GroupID:           l.GroupID,
		TaskID:            l.TaskID,
		ProcessInstanceID: l.ProcessInstanceID,
	})
}
