package api

import (
	"path"
	"strings"

	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

type deploymentResponse struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Name           string `json:"name"`
	DeploymentTime string `json:"deploymentTime"`
	Category       string `json:"category"`
	TenantID       string `json:"tenantId"`
}

func toDeployment(u urls, d *model.Deployment) deploymentResponse {
	return deploymentResponse{
		ID:             d.ID,
		URL:            u.path("repository", "deployments", d.ID),
		Name:           d.Name,
		DeploymentTime: variable.FormatDate(d.DeploymentTime),
		Category:       d.Category,
		TenantID:       d.TenantID,
	}
}

type resourceResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ContentURL string `json:"contentUrl"`
	MediaType  string `json:"mediaType"`
	Type       string `json:"type"`
}

func mediaType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".bpmn":
		return "text/xml"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	}
	return variable.ContentTypeBinary
}

func resourceType(name string) string {
	switch {
	case strings.HasSuffix(name, ".bpmn20.xml"), strings.HasSuffix(name, ".bpmn"):
		return "processDefinition"
	case strings.HasSuffix(name, ".png"), strings.HasSuffix(name, ".svg"):
		return "processImage"
	}
	return "resource"
}

func toResource(u urls, res *model.Resource) resourceResponse {
	base := string(u.path("repository", "deployments", res.DeploymentID))
	return resourceResponse{
		ID:         res.Name,
		URL:        base + "/resources/" + res.Name,
		ContentURL: base + "/resourcedata/" + res.Name,
		MediaType:  mediaType(res.Name),
		Type:       resourceType(res.Name),
	}
}

type processDefinitionResponse struct {
	ID                       string `json:"id"`
	URL                      string `json:"url"`
	Key                      string `json:"key"`
	Version                  int    `json:"version"`
	Name                     string `json:"name"`
	Description              string `json:"description"`
	TenantID                 string `json:"tenantId"`
	DeploymentID             string `json:"deploymentId"`
	DeploymentURL            string `json:"deploymentUrl"`
	Resource                 string `json:"resource"`
	DiagramResource          string `json:"diagramResource"`
	Category                 string `json:"category"`
	GraphicalNotationDefined bool   `json:"graphicalNotationDefined"`
	Suspended                bool   `json:"suspended"`
	StartFormDefined         bool   `json:"startFormDefined"`
}

func toProcessDefinition(u urls, d *model.ProcessDefinition) processDefinitionResponse {
	resp := processDefinitionResponse{
		ID:                       d.ID,
		URL:                      u.path("repository", "process-definitions", d.ID),
		Key:                      d.Key,
		Version:                  d.Version,
		Name:                     d.Name,
		Description:              d.Description,
		TenantID:                 d.TenantID,
		DeploymentID:             d.DeploymentID,
		DeploymentURL:            u.path("repository", "deployments", d.DeploymentID),
		Resource:                 u.path("repository", "deployments", d.DeploymentID) + "/resources/" + d.ResourceName,
		Category:                 d.Category,
		GraphicalNotationDefined: d.GraphicalNotationDefined,
		Suspended:                d.Suspended(),
		StartFormDefined:         d.HasStartForm,
	}
	if d.DiagramResourceName != "" {
		resp.DiagramResource = u.path("repository", "deployments", d.DeploymentID) + "/resources/" + d.DiagramResourceName
	}
	return resp
}

type processInstanceResponse struct {
	ID                   string                  `json:"id"`
	URL                  string                  `json:"url"`
	BusinessKey          string                  `json:"businessKey"`
	Suspended            bool                    `json:"suspended"`
	Ended                bool                    `json:"ended"`
	ProcessDefinitionID  string                  `json:"processDefinitionId"`
	ProcessDefinitionURL string                  `json:"processDefinitionUrl"`
	ActivityID           string                  `json:"activityId"`
	Variables            []variable.RestVariable `json:"variables"`
	TenantID             string                  `json:"tenantId"`
	Completed            bool                    `json:"completed"`
}

func toProcessInstance(u urls, e *model.Execution) processInstanceResponse {
	return processInstanceResponse{
		ID:                   e.ID,
		URL:                  u.path("runtime", "process-instances", e.ID),
		BusinessKey:          e.BusinessKey,
		Suspended:            e.Suspended(),
		ProcessDefinitionID:  e.ProcessDefinitionID,
		ProcessDefinitionURL: u.path("repository", "process-definitions", e.ProcessDefinitionID),
		ActivityID:           e.ActivityID,
		Variables:            []variable.RestVariable{},
		TenantID:             e.TenantID,
	}
}

type executionResponse struct {
	ID                 string `json:"id"`
	URL                string `json:"url"`
	ParentID           string `json:"parentId"`
	ParentURL          string `json:"parentUrl"`
	SuperExecutionID   string `json:"superExecutionId"`
	SuperExecutionURL  string `json:"superExecutionUrl"`
	ProcessInstanceID  string `json:"processInstanceId"`
	ProcessInstanceURL string `json:"processInstanceUrl"`
	Suspended          bool   `json:"suspended"`
	ActivityID         string `json:"activityId"`
	TenantID           string `json:"tenantId"`
}

func toExecution(u urls, e *model.Execution) executionResponse {
	return executionResponse{
		ID:                 e.ID,
		URL:                u.path("runtime", "executions", e.ID),
		ParentID:           e.ParentID,
		ParentURL:          u.ref(e.ParentID, "runtime", "executions"),
		SuperExecutionID:   e.SuperExecutionID,
		SuperExecutionURL:  u.ref(e.SuperExecutionID, "runtime", "executions"),
		ProcessInstanceID:  e.ProcessInstanceID,
		ProcessInstanceURL: u.path("runtime", "process-instances", e.ProcessInstanceID),
		Suspended:          e.Suspended(),
		ActivityID:         e.ActivityID,
		TenantID:           e.TenantID,
	}
}

type taskResponse struct {
	ID                   string                  `json:"id"`
	URL                  string                  `json:"url"`
	Owner                string                  `json:"owner"`
	Assignee             string                  `json:"assignee"`
	DelegationState      string                  `json:"delegationState"`
	Name                 string                  `json:"name"`
	Description          string                  `json:"description"`
	CreateTime           string                  `json:"createTime"`
	DueDate              *string                 `json:"dueDate"`
	Priority             int                     `json:"priority"`
	Suspended            bool                    `json:"suspended"`
	TaskDefinitionKey    string                  `json:"taskDefinitionKey"`
	TenantID             string                  `json:"tenantId"`
	Category             string                  `json:"category"`
	FormKey              string                  `json:"formKey"`
	ParentTaskID         string                  `json:"parentTaskId"`
	ParentTaskURL        string                  `json:"parentTaskUrl"`
	ExecutionID          string                  `json:"executionId"`
	ExecutionURL         string                  `json:"executionUrl"`
	ProcessInstanceID    string                  `json:"processInstanceId"`
	ProcessInstanceURL   string                  `json:"processInstanceUrl"`
	ProcessDefinitionID  string                  `json:"processDefinitionId"`
	ProcessDefinitionURL string                  `json:"processDefinitionUrl"`
	Variables            []variable.RestVariable `json:"variables"`
}

func toTask(u urls, t *model.Task) taskResponse {
	return taskResponse{
		ID:                   t.ID,
		URL:                  u.path("runtime", "tasks", t.ID),
		Owner:                t.Owner,
		Assignee:             t.Assignee,
		DelegationState:      t.DelegationState,
		Name:                 t.Name,
		Description:          t.Description,
		CreateTime:           variable.FormatDate(t.CreateTime),
		DueDate:              variable.FormatDatePtr(t.DueDate),
		Priority:             t.Priority,
		Suspended:            t.Suspended(),
		TaskDefinitionKey:    t.TaskDefinitionKey,
		TenantID:             t.TenantID,
		Category:             t.Category,
		FormKey:              t.FormKey,
		ParentTaskID:         t.ParentTaskID,
		ParentTaskURL:        u.ref(t.ParentTaskID, "runtime", "tasks"),
		ExecutionID:          t.ExecutionID,
		ExecutionURL:         u.ref(t.ExecutionID, "runtime", "executions"),
		ProcessInstanceID:    t.ProcessInstanceID,
		ProcessInstanceURL:   u.ref(t.ProcessInstanceID, "runtime", "process-instances"),
		ProcessDefinitionID:  t.ProcessDefinitionID,
		ProcessDefinitionURL: u.ref(t.ProcessDefinitionID, "repository", "process-definitions"),
		Variables:            []variable.RestVariable{},
	}
}

type identityLinkResponse struct {
	URL   string `json:"url"`
	User  string `json:"user,omitempty"`
	Group string `json:"group,omitempty"`
	Type  string `json:"type"`
}

func toTaskLink(u urls, taskID string, l *model.IdentityLink) identityLinkResponse {
	family, identity := "users", l.UserID
	if l.GroupID != "" {
		family, identity = "groups", l.GroupID
	}
	return identityLinkResponse{
		URL:   u.path("runtime", "tasks", taskID, "identitylinks", family, identity, l.Type),
		User:  l.UserID,
		Group: l.GroupID,
		Type:  l.Type,
	}
}

func toProcessInstanceLink(u urls, processInstanceID string, l *model.IdentityLink) identityLinkResponse {
	return identityLinkResponse{
		URL:  u.path("runtime", "process-instances", processInstanceID, "identitylinks", "users", l.UserID, l.Type),
		User: l.UserID,
		Type: l.Type,
	}
}

type commentResponse struct {
	ID                 string `json:"id"`
	URL                string `json:"url"`
	Author             string `json:"author"`
	Message            string `json:"message"`
	Time               string `json:"time"`
	TaskID             string `json:"taskId"`
	TaskURL            string `json:"taskUrl"`
	ProcessInstanceID  string `json:"processInstanceId"`
	ProcessInstanceURL string `json:"processInstanceUrl"`
}

func toComment(u urls, c *model.Comment) commentResponse {
	resp := commentResponse{
		ID:                 c.ID,
		Author:             c.UserID,
		Message:            c.FullMessage,
		Time:               variable.FormatDate(c.Time),
		TaskID:             c.TaskID,
		TaskURL:            u.ref(c.TaskID, "runtime", "tasks"),
		ProcessInstanceID:  c.ProcessInstanceID,
		ProcessInstanceURL: u.ref(c.ProcessInstanceID, "history", "historic-process-instances"),
	}
	if resp.Message == "" {
		resp.Message = c.Message
	}
	if c.TaskID != "" {
		resp.URL = u.path("runtime", "tasks", c.TaskID, "comments", c.ID)
	} else {
		resp.URL = u.path("history", "historic-process-instances", c.ProcessInstanceID, "comments", c.ID)
	}
	return resp
}

type historicProcessInstanceResponse struct {
	ID                     string                  `json:"id"`
	URL                    string                  `json:"url"`
	BusinessKey            string                  `json:"businessKey"`
	ProcessDefinitionID    string                  `json:"processDefinitionId"`
	ProcessDefinitionURL   string                  `json:"processDefinitionUrl"`
	StartTime              string                  `json:"startTime"`
	EndTime                *string                 `json:"endTime"`
	DurationInMillis       *int64                  `json:"durationInMillis"`
	StartUserID            string                  `json:"startUserId"`
	StartActivityID        string                  `json:"startActivityId"`
	EndActivityID          string                  `json:"endActivityId"`
	DeleteReason           string                  `json:"deleteReason"`
	SuperProcessInstanceID string                  `json:"superProcessInstanceId"`
	Variables              []variable.RestVariable `json:"variables"`
	TenantID               string                  `json:"tenantId"`
}

func toHistoricProcessInstance(u urls, h *model.HistoricProcessInstance) historicProcessInstanceResponse {
	return historicProcessInstanceResponse{
		ID:                     h.ID,
		URL:                    u.path("history", "historic-process-instances", h.ID),
		BusinessKey:            h.BusinessKey,
		ProcessDefinitionID:    h.ProcessDefinitionID,
		ProcessDefinitionURL:   u.path("repository", "process-definitions", h.ProcessDefinitionID),
		StartTime:              variable.FormatDate(h.StartTime),
		EndTime:                variable.FormatDatePtr(h.EndTime),
		DurationInMillis:       h.DurationInMillis,
		StartUserID:            h.StartUserID,
		StartActivityID:        h.StartActivityID,
		EndActivityID:          h.EndActivityID,
		DeleteReason:           h.DeleteReason,
		SuperProcessInstanceID: h.SuperProcessInstanceID,
		Variables:              []variable.RestVariable{},
		TenantID:               h.TenantID,
	}
}

type historicTaskInstanceResponse struct {
	ID                   string                  `json:"id"`
	URL                  string                  `json:"url"`
	ProcessDefinitionID  string                  `json:"processDefinitionId"`
	ProcessDefinitionURL string                  `json:"processDefinitionUrl"`
	ProcessInstanceID    string                  `json:"processInstanceId"`
	ProcessInstanceURL   string                  `json:"processInstanceUrl"`
	ExecutionID          string                  `json:"executionId"`
	Name                 string                  `json:"name"`
	Description          string                  `json:"description"`
	DeleteReason         string                  `json:"deleteReason"`
	Owner                string                  `json:"owner"`
	Assignee             string                  `json:"assignee"`
	StartTime            string                  `json:"startTime"`
	EndTime              *string                 `json:"endTime"`
	DurationInMillis     *int64                  `json:"durationInMillis"`
	WorkTimeInMillis     *int64                  `json:"workTimeInMillis"`
	ClaimTime            *string                 `json:"claimTime"`
	TaskDefinitionKey    string                  `json:"taskDefinitionKey"`
	FormKey              string                  `json:"formKey"`
	Priority             int                     `json:"priority"`
	DueDate              *string                 `json:"dueDate"`
	ParentTaskID         string                  `json:"parentTaskId"`
	Variables            []variable.RestVariable `json:"variables"`
	TenantID             string                  `json:"tenantId"`
	Category             string                  `json:"category"`
}

func toHistoricTaskInstance(u urls, h *model.HistoricTaskInstance) historicTaskInstanceResponse {
	resp := historicTaskInstanceResponse{
		ID:                   h.ID,
		URL:                  u.path("history", "historic-task-instances", h.ID),
		ProcessDefinitionID:  h.ProcessDefinitionID,
		ProcessDefinitionURL: u.ref(h.ProcessDefinitionID, "repository", "process-definitions"),
		ProcessInstanceID:    h.ProcessInstanceID,
		ProcessInstanceURL:   u.ref(h.ProcessInstanceID, "history", "historic-process-instances"),
		ExecutionID:          h.ExecutionID,
		Name:                 h.Name,
		Description:          h.Description,
		DeleteReason:         h.DeleteReason,
		Owner:                h.Owner,
		Assignee:             h.Assignee,
		StartTime:            variable.FormatDate(h.StartTime),
		EndTime:              variable.FormatDatePtr(h.EndTime),
		DurationInMillis:     h.DurationInMillis,
		ClaimTime:            variable.FormatDatePtr(h.ClaimTime),
		TaskDefinitionKey:    h.TaskDefinitionKey,
		FormKey:              h.FormKey,
		Priority:             h.Priority,
		DueDate:              variable.FormatDatePtr(h.DueDate),
		ParentTaskID:         h.ParentTaskID,
		Variables:            []variable.RestVariable{},
		TenantID:             h.TenantID,
		Category:             h.Category,
	}
	if h.EndTime != nil {
		from := h.StartTime
		if h.ClaimTime != nil {
			from = *h.ClaimTime
		}
		work := h.EndTime.Sub(from).Milliseconds()
		resp.WorkTimeInMillis = &work
	}
	return resp
}

type historicActivityInstanceResponse struct {
	ID                      string  `json:"id"`
	ActivityID              string  `json:"activityId"`
	ActivityName            string  `json:"activityName"`
	ActivityType            string  `json:"activityType"`
	ProcessDefinitionID     string  `json:"processDefinitionId"`
	ProcessDefinitionURL    string  `json:"processDefinitionUrl"`
	ProcessInstanceID       string  `json:"processInstanceId"`
	ProcessInstanceURL      string  `json:"processInstanceUrl"`
	ExecutionID             string  `json:"executionId"`
	TaskID                  string  `json:"taskId"`
	CalledProcessInstanceID string  `json:"calledProcessInstanceId"`
	Assignee                string  `json:"assignee"`
	StartTime               string  `json:"startTime"`
	EndTime                 *string `json:"endTime"`
	DurationInMillis        *int64  `json:"durationInMillis"`
	TenantID                string  `json:"tenantId"`
}

func toHistoricActivityInstance(u urls, h *model.HistoricActivityInstance) historicActivityInstanceResponse {
	return historicActivityInstanceResponse{
		ID:                      h.ID,
		ActivityID:              h.ActivityID,
		ActivityName:            h.ActivityName,
		ActivityType:            h.ActivityType,
		ProcessDefinitionID:     h.ProcessDefinitionID,
		ProcessDefinitionURL:    u.ref(h.ProcessDefinitionID, "repository", "process-definitions"),
		ProcessInstanceID:       h.ProcessInstanceID,
		ProcessInstanceURL:      u.ref(h.ProcessInstanceID, "history", "historic-process-instances"),
		ExecutionID:             h.ExecutionID,
		TaskID:                  h.TaskID,
		CalledProcessInstanceID: h.CalledProcessInstanceID,
		Assignee:                h.Assignee,
		StartTime:               variable.FormatDate(h.StartTime),
		EndTime:                 variable.FormatDatePtr(h.EndTime),
		DurationInMillis:        h.DurationInMillis,
		TenantID:                h.TenantID,
	}
}

type historicVariableInstanceResponse struct {
	ID                 string                `json:"id"`
	ProcessInstanceID  string                `json:"processInstanceId"`
	ProcessInstanceURL string                `json:"processInstanceUrl"`
	TaskID             string                `json:"taskId"`
	Variable           variable.RestVariable `json:"variable"`
}

func toHistoricVariableInstance(u urls, h *model.HistoricVariableInstance) historicVariableInstanceResponse {
	scope := variable.ScopeGlobal
	if h.TaskID != "" {
		scope = variable.ScopeLocal
	}
	return historicVariableInstanceResponse{
		ID:                 h.ID,
		ProcessInstanceID:  h.ProcessInstanceID,
		ProcessInstanceURL: u.ref(h.ProcessInstanceID, "history", "historic-process-instances"),
		TaskID:             h.TaskID,
		Variable:           variable.ToRest(h.Name, h.Value, scope, u.path("history", "historic-variable-instances", h.ID, "data")),
	}
}

type historicDetailResponse struct {
	ID                 string                `json:"id"`
	ProcessInstanceID  string                `json:"processInstanceId"`
	ProcessInstanceURL string                `json:"processInstanceUrl"`
	ExecutionID        string                `json:"executionId"`
	ActivityInstanceID string                `json:"activityInstanceId"`
	TaskID             string                `json:"taskId"`
	TaskURL            string                `json:"taskUrl"`
	Time               string                `json:"time"`
	DetailType         string                `json:"detailType"`
	Revision           int                   `json:"revision"`
	Variable           variable.RestVariable `json:"variable"`
}

func toHistoricDetail(u urls, h *model.HistoricDetail) historicDetailResponse {
	return historicDetailResponse{
		ID:                 h.ID,
		ProcessInstanceID:  h.ProcessInstanceID,
		ProcessInstanceURL: u.ref(h.ProcessInstanceID, "history", "historic-process-instances"),
		ExecutionID:        h.ExecutionID,
		ActivityInstanceID: h.ActivityInstanceID,
		TaskID:             h.TaskID,
		TaskURL:            u.ref(h.TaskID, "history", "historic-task-instances"),
		Time:               variable.FormatDate(h.Time),
		DetailType:         h.Type,
		Revision:           h.Revision,
		Variable:           variable.ToRest(h.Name, h.Value, "", u.path("history", "historic-detail", h.ID, "data")),
	}
}

type historicIdentityLinkResponse struct {
	Type               string `json:"type"`
	UserID             string `json:"userId"`
	GroupID            string `json:"groupId"`
	TaskID             string `json:"taskId"`
	TaskURL            string `json:"taskUrl"`
	ProcessInstanceID  string `json:"processInstanceId"`
	ProcessInstanceURL string `json:"processInstanceUrl"`
}

func toHistoricIdentityLink(u urls, l *model.HistoricIdentityLink) historicIdentityLinkResponse {
	return historicIdentityLinkResponse{
		Type:               l.Type,
		UserID:             l.UserID,
		GroupID:            l.GroupID,
		TaskID:             l.TaskID,
		TaskURL:            u.ref(l.TaskID, "history", "historic-task-instances"),
		ProcessInstanceID:  l.ProcessInstanceID,
		ProcessInstanceURL: u.ref(l.ProcessInstanceID, "history", "historic-process-instances"),
	}
}

type jobResponse struct {
	ID                   string  `json:"id"`
	URL                  string  `json:"url"`
	ProcessInstanceID    string  `json:"processInstanceId"`
	ProcessInstanceURL   string  `json:"processInstanceUrl"`
	ProcessDefinitionID  string  `json:"processDefinitionId"`
	ProcessDefinitionURL string  `json:"processDefinitionUrl"`
	ExecutionID          string  `json:"executionId"`
	ExecutionURL         string  `json:"executionUrl"`
	Retries              int     `json:"retries"`
	ExceptionMessage     string  `json:"exceptionMessage"`
	DueDate              *string `json:"dueDate"`
	TenantID             string  `json:"tenantId"`
}

func toJob(u urls, j *model.Job) jobResponse {
	return jobResponse{
		ID:                   j.ID,
		URL:                  u.path("management", "jobs", j.ID),
		ProcessInstanceID:    j.ProcessInstanceID,
		ProcessInstanceURL:   u.ref(j.ProcessInstanceID, "runtime", "process-instances"),
		ProcessDefinitionID:  j.ProcessDefinitionID,
		ProcessDefinitionURL: u.ref(j.ProcessDefinitionID, "repository", "process-definitions"),
		ExecutionID:          j.ExecutionID,
		ExecutionURL:         u.ref(j.ExecutionID, "runtime", "executions"),
		Retries:              j.Retries,
		ExceptionMessage:     j.ExceptionMessage,
		DueDate:              variable.FormatDatePtr(j.DueDate),
		TenantID:             j.TenantID,
	}
}

type engineInfoResponse struct {
	Name        string `json:"name"`
	ResourceURL string `json:"resourceUrl"`
	Exception   string `json:"exception"`
	Version     string `json:"version"`
}

func toEngineInfo(info engine.EngineInfo) engineInfoResponse {
	return engineInfoResponse{Name: info.Name, ResourceURL: info.ResourceURL, Exception: info.Exception, Version: info.Version}
}

type userResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func toUser(u urls, usr *model.User) userResponse {
	return userResponse{
		ID:        usr.ID,
		URL:       u.path("identity", "users", usr.ID),
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
		Email:     usr.Email,
	}
}

type groupResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func toGroup(u urls, g *model.Group) groupResponse {
	return groupResponse{ID: g.ID, URL: u.path("identity", "groups", g.ID), Name: g.Name, Type: g.Type}
}

type membershipResponse struct {
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	URL     string `json:"url"`
}

func toMembership(u urls, m *model.Membership) membershipResponse {
	return membershipResponse{
		UserID:  m.UserID,
		GroupID: m.GroupID,
		URL:     u.path("identity", "groups", m.GroupID, "members", m.UserID),
	}
}

// restVariables renders stored runtime variables; binary values link to dataURL(name).
func restVariables(vars []*model.Variable, scope variable.Scope, dataURL func(name string) string) []variable.RestVariable {
	out := make([]variable.RestVariable, 0, len(vars))
	for _, v := range vars {
		out = append(out, variable.ToRest(v.Name, v.Value, scope, dataURL(v.Name)))
	}
	return out
}

func scopedVariables(vars []engine.ScopedVariable, dataURL func(v engine.ScopedVariable) string) []variable.RestVariable {
	out := make([]variable.RestVariable, 0, len(vars))
	for _, v := range vars {
		out = append(out, variable.ToRest(v.Name, v.Value, v.Scope, dataURL(v)))
	}
	return out
}

func historicVariables(vars []*model.HistoricVariableInstance, u urls) []variable.RestVariable {
	out := make([]variable.RestVariable, 0, len(vars))
	for _, v := range vars {
		scope := variable.ScopeGlobal
		if v.TaskID != "" {
			scope = variable.ScopeLocal
		}
		out = append(out, variable.ToRest(v.Name, v.Value, scope, u.path("history", "historic-variable-instances", v.ID, "data")))
	}
	return out
}
