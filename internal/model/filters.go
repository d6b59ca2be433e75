package model

import (
	"time"

	"github.com/grand-thief-cash/procflow/internal/variable"
)

// Query filters. Zero values and nil pointers mean "not applied". Field tags carry the
// REST parameter names so URL parameters and JSON bodies decode into the same struct.
// Like filters are passed through as given; callers supply the % wildcards.

type TenantFilter struct {
	TenantID        string `mapstructure:"tenantId"`
	TenantIDLike    string `mapstructure:"tenantIdLike"`
	WithoutTenantID bool   `mapstructure:"withoutTenantId"`
}

type DeploymentQuery struct {
	Name              string `mapstructure:"name"`
	NameLike          string `mapstructure:"nameLike"`
	Category          string `mapstructure:"category"`
	CategoryNotEquals string `mapstructure:"categoryNotEquals"`
	TenantFilter      `mapstructure:",squash"`
}

type ProcessDefinitionQuery struct {
	Version           *int   `mapstructure:"version"`
	Name              string `mapstructure:"name"`
	NameLike          string `mapstructure:"nameLike"`
	Key               string `mapstructure:"key"`
	KeyLike           string `mapstructure:"keyLike"`
	ResourceName      string `mapstructure:"resourceName"`
	ResourceNameLike  string `mapstructure:"resourceNameLike"`
	Category          string `mapstructure:"category"`
	CategoryLike      string `mapstructure:"categoryLike"`
	CategoryNotEquals string `mapstructure:"categoryNotEquals"`
	DeploymentID      string `mapstructure:"deploymentId"`
	Latest            bool   `mapstructure:"latest"`
	Suspended         *bool  `mapstructure:"suspended"`
	TenantFilter      `mapstructure:",squash"`
}

type ProcessInstanceQuery struct {
	ID                      string                   `mapstructure:"id"`
	IDs                     []string                 `mapstructure:"processInstanceIds"`
	ProcessDefinitionKey    string                   `mapstructure:"processDefinitionKey"`
	ProcessDefinitionID     string                   `mapstructure:"processDefinitionId"`
	BusinessKey             string                   `mapstructure:"businessKey"`
	InvolvedUser            string                   `mapstructure:"involvedUser"`
	Suspended               *bool                    `mapstructure:"suspended"`
	SuperProcessInstanceID  string                   `mapstructure:"superProcessInstanceId"`
	SubProcessInstanceID    string                   `mapstructure:"subProcessInstanceId"`
	ExcludeSubprocesses     bool                     `mapstructure:"excludeSubprocesses"`
	IncludeProcessVariables bool                     `mapstructure:"includeProcessVariables"`
	Variables               []variable.QueryVariable `mapstructure:"variables"`
	TenantFilter            `mapstructure:",squash"`

	VariableFilters []variable.Filter `mapstructure:"-"`
}

type ExecutionQuery struct {
	ID                       string                   `mapstructure:"id"`
	ActivityID               string                   `mapstructure:"activityId"`
	ParentID                 string                   `mapstructure:"parentId"`
	ProcessDefinitionKey     string                   `mapstructure:"processDefinitionKey"`
	ProcessDefinitionID      string                   `mapstructure:"processDefinitionId"`
	ProcessInstanceID        string                   `mapstructure:"processInstanceId"`
	ProcessBusinessKey       string                   `mapstructure:"processBusinessKey"`
	Variables                []variable.QueryVariable `mapstructure:"variables"`
	ProcessInstanceVariables []variable.QueryVariable `mapstructure:"processInstanceVariables"`
	TenantFilter             `mapstructure:",squash"`

	VariableFilters                []variable.Filter `mapstructure:"-"`
	ProcessInstanceVariableFilters []variable.Filter `mapstructure:"-"`
}

type TaskQuery struct {
	Name                           string                   `mapstructure:"name"`
	NameLike                       string                   `mapstructure:"nameLike"`
	Description                    string                   `mapstructure:"description"`
	DescriptionLike                string                   `mapstructure:"descriptionLike"`
	Priority                       *int                     `mapstructure:"priority"`
	MinimumPriority                *int                     `mapstructure:"minimumPriority"`
	MaximumPriority                *int                     `mapstructure:"maximumPriority"`
	Assignee                       string                   `mapstructure:"assignee"`
	AssigneeLike                   string                   `mapstructure:"assigneeLike"`
	Owner                          string                   `mapstructure:"owner"`
	OwnerLike                      string                   `mapstructure:"ownerLike"`
	Unassigned                     bool                     `mapstructure:"unassigned"`
	DelegationState                string                   `mapstructure:"delegationState"`
	CandidateUser                  string                   `mapstructure:"candidateUser"`
	CandidateGroup                 string                   `mapstructure:"candidateGroup"`
	CandidateGroups                []string                 `mapstructure:"candidateGroups"`
	CandidateOrAssigned            string                   `mapstructure:"candidateOrAssigned"`
	InvolvedUser                   string                   `mapstructure:"involvedUser"`
	TaskDefinitionKey              string                   `mapstructure:"taskDefinitionKey"`
	TaskDefinitionKeyLike          string                   `mapstructure:"taskDefinitionKeyLike"`
	ProcessInstanceID              string                   `mapstructure:"processInstanceId"`
	ProcessInstanceBusinessKey     string                   `mapstructure:"processInstanceBusinessKey"`
	ProcessInstanceBusinessKeyLike string                   `mapstructure:"processInstanceBusinessKeyLike"`
	ProcessDefinitionID            string                   `mapstructure:"processDefinitionId"`
	ProcessDefinitionKey           string                   `mapstructure:"processDefinitionKey"`
	ProcessDefinitionKeyLike       string                   `mapstructure:"processDefinitionKeyLike"`
	ProcessDefinitionName          string                   `mapstructure:"processDefinitionName"`
	ProcessDefinitionNameLike      string                   `mapstructure:"processDefinitionNameLike"`
	ExecutionID                    string                   `mapstructure:"executionId"`
	CreatedOn                      *time.Time               `mapstructure:"createdOn"`
	CreatedBefore                  *time.Time               `mapstructure:"createdBefore"`
	CreatedAfter                   *time.Time               `mapstructure:"createdAfter"`
	DueOn                          *time.Time               `mapstructure:"dueOn"`
	DueBefore                      *time.Time               `mapstructure:"dueBefore"`
	DueAfter                       *time.Time               `mapstructure:"dueAfter"`
	WithoutDueDate                 bool                     `mapstructure:"withoutDueDate"`
	ExcludeSubTasks                bool                     `mapstructure:"excludeSubTasks"`
	ParentTaskID                   string                   `mapstructure:"parentTaskId"`
	Active                         *bool                    `mapstructure:"active"`
	Category                       string                   `mapstructure:"category"`
	IncludeTaskLocalVariables      bool                     `mapstructure:"includeTaskLocalVariables"`
	IncludeProcessVariables        bool                     `mapstructure:"includeProcessVariables"`
	TaskVariables                  []variable.QueryVariable `mapstructure:"taskVariables"`
	ProcessInstanceVariables       []variable.QueryVariable `mapstructure:"processInstanceVariables"`
	TenantFilter                   `mapstructure:",squash"`

	TaskVariableFilters            []variable.Filter `mapstructure:"-"`
	ProcessInstanceVariableFilters []variable.Filter `mapstructure:"-"`
	// CandidateUserGroups are the groups of CandidateUser / CandidateOrAssigned, resolved
	// by the engine before the query runs.
	CandidateUserGroups []string `mapstructure:"-"`
}

type HistoricProcessInstanceQuery struct {
	ProcessInstanceID       string                   `mapstructure:"processInstanceId"`
	ProcessInstanceIDs      []string                 `mapstructure:"processInstanceIds"`
	ProcessDefinitionKey    string                   `mapstructure:"processDefinitionKey"`
	ProcessDefinitionID     string                   `mapstructure:"processDefinitionId"`
	BusinessKey             string                   `mapstructure:"businessKey"`
	InvolvedUser            string                   `mapstructure:"involvedUser"`
	Finished                *bool                    `mapstructure:"finished"`
	SuperProcessInstanceID  string                   `mapstructure:"superProcessInstanceId"`
	ExcludeSubprocesses     bool                     `mapstructure:"excludeSubprocesses"`
	FinishedAfter           *time.Time               `mapstructure:"finishedAfter"`
	FinishedBefore          *time.Time               `mapstructure:"finishedBefore"`
	StartedAfter            *time.Time               `mapstructure:"startedAfter"`
	StartedBefore           *time.Time               `mapstructure:"startedBefore"`
	StartedBy               string                   `mapstructure:"startedBy"`
	IncludeProcessVariables bool                     `mapstructure:"includeProcessVariables"`
	Variables               []variable.QueryVariable `mapstructure:"variables"`
	TenantFilter            `mapstructure:",squash"`

	VariableFilters []variable.Filter `mapstructure:"-"`
}

type HistoricTaskInstanceQuery struct {
	TaskID                    string                   `mapstructure:"taskId"`
	ProcessInstanceID         string                   `mapstructure:"processInstanceId"`
	ProcessBusinessKey        string                   `mapstructure:"processBusinessKey"`
	ProcessBusinessKeyLike    string                   `mapstructure:"processBusinessKeyLike"`
	ProcessDefinitionID       string                   `mapstructure:"processDefinitionId"`
	ProcessDefinitionKey      string                   `mapstructure:"processDefinitionKey"`
	ProcessDefinitionKeyLike  string                   `mapstructure:"processDefinitionKeyLike"`
	ProcessDefinitionName     string                   `mapstructure:"processDefinitionName"`
	ProcessDefinitionNameLike string                   `mapstructure:"processDefinitionNameLike"`
	ExecutionID               string                   `mapstructure:"executionId"`
	TaskName                  string                   `mapstructure:"taskName"`
	TaskNameLike              string                   `mapstructure:"taskNameLike"`
	TaskDescription           string                   `mapstructure:"taskDescription"`
	TaskDescriptionLike       string                   `mapstructure:"taskDescriptionLike"`
	TaskDefinitionKey         string                   `mapstructure:"taskDefinitionKey"`
	TaskDefinitionKeyLike     string                   `mapstructure:"taskDefinitionKeyLike"`
	TaskDeleteReason          string                   `mapstructure:"taskDeleteReason"`
	TaskDeleteReasonLike      string                   `mapstructure:"taskDeleteReasonLike"`
	TaskAssignee              string                   `mapstructure:"taskAssignee"`
	TaskAssigneeLike          string                   `mapstructure:"taskAssigneeLike"`
	TaskOwner                 string                   `mapstructure:"taskOwner"`
	TaskOwnerLike             string                   `mapstructure:"taskOwnerLike"`
	TaskInvolvedUser          string                   `mapstructure:"taskInvolvedUser"`
	TaskPriority              *int                     `mapstructure:"taskPriority"`
	Finished                  *bool                    `mapstructure:"finished"`
	ProcessFinished           *bool                    `mapstructure:"processFinished"`
	ParentTaskID              string                   `mapstructure:"parentTaskId"`
	DueDate                   *time.Time               `mapstructure:"dueDate"`
	DueDateAfter              *time.Time               `mapstructure:"dueDateAfter"`
	DueDateBefore             *time.Time               `mapstructure:"dueDateBefore"`
	WithoutDueDate            bool                     `mapstructure:"withoutDueDate"`
	TaskCompletedOn           *time.Time               `mapstructure:"taskCompletedOn"`
	TaskCompletedAfter        *time.Time               `mapstructure:"taskCompletedAfter"`
	TaskCompletedBefore       *time.Time               `mapstructure:"taskCompletedBefore"`
	TaskCreatedOn             *time.Time               `mapstructure:"taskCreatedOn"`
	TaskCreatedBefore         *time.Time               `mapstructure:"taskCreatedBefore"`
	TaskCreatedAfter          *time.Time               `mapstructure:"taskCreatedAfter"`
	IncludeTaskLocalVariables bool                     `mapstructure:"includeTaskLocalVariables"`
	IncludeProcessVariables   bool                     `mapstructure:"includeProcessVariables"`
	TaskVariables             []variable.QueryVariable `mapstructure:"taskVariables"`
	ProcessVariables          []variable.QueryVariable `mapstructure:"processVariables"`
	TenantFilter              `mapstructure:",squash"`

	TaskVariableFilters    []variable.Filter `mapstructure:"-"`
	ProcessVariableFilters []variable.Filter `mapstructure:"-"`
}

type HistoricActivityInstanceQuery struct {
	ActivityID          string `mapstructure:"activityId"`
	ActivityInstanceID  string `mapstructure:"activityInstanceId"`
	ActivityName        string `mapstructure:"activityName"`
	ActivityType        string `mapstructure:"activityType"`
	ExecutionID         string `mapstructure:"executionId"`
	Finished            *bool  `mapstructure:"finished"`
	TaskAssignee        string `mapstructure:"taskAssignee"`
	ProcessInstanceID   string `mapstructure:"processInstanceId"`
	ProcessDefinitionID string `mapstructure:"processDefinitionId"`
	TenantFilter        `mapstructure:",squash"`
}

type HistoricVariableInstanceQuery struct {
	ProcessInstanceID    string                   `mapstructure:"processInstanceId"`
	TaskID               string                   `mapstructure:"taskId"`
	ExcludeTaskVariables bool                     `mapstructure:"excludeTaskVariables"`
	VariableName         string                   `mapstructure:"variableName"`
	VariableNameLike     string                   `mapstructure:"variableNameLike"`
	Variables            []variable.QueryVariable `mapstructure:"variables"`

	VariableFilters []variable.Filter `mapstructure:"-"`
}

type HistoricDetailQuery struct {
	ID                        string `mapstructure:"id"`
	ProcessInstanceID         string `mapstructure:"processInstanceId"`
	ExecutionID               string `mapstructure:"executionId"`
	ActivityInstanceID        string `mapstructure:"activityInstanceId"`
	TaskID                    string `mapstructure:"taskId"`
	SelectOnlyFormProperties  bool   `mapstructure:"selectOnlyFormProperties"`
	SelectOnlyVariableUpdates bool   `mapstructure:"selectOnlyVariableUpdates"`
}

type JobQuery struct {
	ID                  string     `mapstructure:"id"`
	ProcessInstanceID   string     `mapstructure:"processInstanceId"`
	ExecutionID         string     `mapstructure:"executionId"`
	ProcessDefinitionID string     `mapstructure:"processDefinitionId"`
	WithRetriesLeft     bool       `mapstructure:"withRetriesLeft"`
	Executable          bool       `mapstructure:"executable"`
	TimersOnly          bool       `mapstructure:"timersOnly"`
	MessagesOnly        bool       `mapstructure:"messagesOnly"`
	WithException       bool       `mapstructure:"withException"`
	DueBefore           *time.Time `mapstructure:"dueBefore"`
	DueAfter            *time.Time `mapstructure:"dueAfter"`
	ExceptionMessage    string     `mapstructure:"exceptionMessage"`
	TenantFilter        `mapstructure:",squash"`

	// Now is the reference time of Executable; set by the engine.
	Now time.Time `mapstructure:"-"`
}

type UserQuery struct {
	ID            string `mapstructure:"id"`
	FirstName     string `mapstructure:"firstName"`
	LastName      string `mapstructure:"lastName"`
	Email         string `mapstructure:"email"`
	FirstNameLike string `mapstructure:"firstNameLike"`
	LastNameLike  string `mapstructure:"lastNameLike"`
	EmailLike     string `mapstructure:"emailLike"`
	MemberOfGroup string `mapstructure:"memberOfGroup"`
}

type GroupQuery struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	NameLike string `mapstructure:"nameLike"`
	Type     string `mapstructure:"type"`
	Member   string `mapstructure:"member"`
}
