package model

import (
	"time"

	"github.com/grand-thief-cash/procflow/internal/variable"
)

// Execution is a path of control through a process instance. The process instance is the
// root execution: ID == ProcessInstanceID and ParentID is empty.
type Execution struct {
	ID                  string    `gorm:"column:id;primaryKey;size:64"`
	Revision            int       `gorm:"column:rev"`
	ProcessInstanceID   string    `gorm:"column:process_instance_id;size:64;index"`
	BusinessKey         string    `gorm:"column:business_key;size:255"`
	ParentID            string    `gorm:"column:parent_id;size:64;index"`
	ProcessDefinitionID string    `gorm:"column:process_definition_id;size:64;index"`
	SuperExecutionID    string    `gorm:"column:super_execution_id;size:64;index"`
	ActivityID          string    `gorm:"column:activity_id;size:255"`
	IsActive            bool      `gorm:"column:is_active"`
	IsConcurrent        bool      `gorm:"column:is_concurrent"`
	IsScope             bool      `gorm:"column:is_scope"`
	SuspensionState     int       `gorm:"column:suspension_state"`
	TenantID            string    `gorm:"column:tenant_id;size:255"`
	Name                string    `gorm:"column:name_;size:255"`
	StartUserID         string    `gorm:"column:start_user_id;size:255"`
	StartTime           time.Time `gorm:"column:start_time"`
}

func (Execution) TableName() string { return "act_ru_execution" }

func (e *Execution) IsProcessInstance() bool { return e.ParentID == "" && e.ID == e.ProcessInstanceID }

func (e *Execution) Suspended() bool { return e.SuspensionState == 2 }

type Task struct {
	ID                  string     `gorm:"column:id;primaryKey;size:64"`
	Revision            int        `gorm:"column:rev"`
	ExecutionID         string     `gorm:"column:execution_id;size:64;index"`
	ProcessInstanceID   string     `gorm:"column:process_instance_id;size:64;index"`
	ProcessDefinitionID string     `gorm:"column:process_definition_id;size:64"`
	Name                string     `gorm:"column:name_;size:255"`
	ParentTaskID        string     `gorm:"column:parent_task_id;size:64;index"`
	Description         string     `gorm:"column:description;size:4000"`
	TaskDefinitionKey   string     `gorm:"column:task_def_key;size:255"`
	Owner               string     `gorm:"column:owner;size:255"`
	Assignee            string     `gorm:"column:assignee;size:255;index"`
	DelegationState     string     `gorm:"column:delegation;size:64"`
	Priority            int        `gorm:"column:priority"`
	CreateTime          time.Time  `gorm:"column:create_time"`
	DueDate             *time.Time `gorm:"column:due_date"`
	Category            string     `gorm:"column:category;size:255"`
	FormKey             string     `gorm:"column:form_key;size:255"`
	SuspensionState     int        `gorm:"column:suspension_state"`
	TenantID            string     `gorm:"column:tenant_id;size:255"`
}

func (Task) TableName() string { return "act_ru_task" }

func (t *Task) Suspended() bool { return t.SuspensionState == 2 }

// Standalone tasks are not part of a process instance.
func (t *Task) Standalone() bool { return t.ExecutionID == "" }

type IdentityLink struct {
	ID                  string `gorm:"column:id;primaryKey;size:64"`
	Type                string `gorm:"column:type_;size:255"`
	UserID              string `gorm:"column:user_id;size:255;index"`
	GroupID             string `gorm:"column:group_id;size:255;index"`
	TaskID              string `gorm:"column:task_id;size:64;index"`
	ProcessInstanceID   string `gorm:"column:process_instance_id;size:64;index"`
	ProcessDefinitionID string `gorm:"column:process_definition_id;size:64"`
}

func (IdentityLink) TableName() string { return "act_ru_identitylink" }

// Variable is a runtime variable. Task-local variables carry TaskID; execution variables
// have an empty TaskID.
type Variable struct {
	ID                string `gorm:"column:id;primaryKey;size:64"`
	Revision          int    `gorm:"column:rev"`
	Name              string `gorm:"column:name_;size:255;index"`
	ExecutionID       string `gorm:"column:execution_id;size:64;index"`
	ProcessInstanceID string `gorm:"column:process_instance_id;size:64;index"`
	TaskID            string `gorm:"column:task_id;size:64;index"`
	variable.Value
}

func (Variable) TableName() string { return "act_ru_variable" }

type Job struct {
	ID                  string     `gorm:"column:id;primaryKey;size:64"`
	Revision            int        `gorm:"column:rev"`
	Type                string     `gorm:"column:type_;size:32"`
	LockOwner           string     `gorm:"column:lock_owner;size:255"`
	LockExpirationTime  *time.Time `gorm:"column:lock_exp_time"`
	Exclusive           bool       `gorm:"column:exclusive"`
	ExecutionID         string     `gorm:"column:execution_id;size:64;index"`
	ProcessInstanceID   string     `gorm:"column:process_instance_id;size:64;index"`
	ProcessDefinitionID string     `gorm:"column:process_definition_id;size:64"`
	Retries             int        `gorm:"column:retries"`
	ExceptionMessage    string     `gorm:"column:exception_msg;size:4000"`
	ExceptionStacktrace string     `gorm:"column:exception_stack;type:text"`
	DueDate             *time.Time `gorm:"column:due_date;index"`
	HandlerType         string     `gorm:"column:handler_type;size:64"`
	HandlerCfg          string     `gorm:"column:handler_cfg;size:4000"`
	TenantID            string     `gorm:"column:tenant_id;size:255"`
	CreateTime          time.Time  `gorm:"column:create_time"`
}

func (Job) TableName() string { return "act_ru_job" }
