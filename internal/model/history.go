package model

import (
	"time"

	"github.com/grand-thief-cash/procflow/internal/variable"
)

type HistoricProcessInstance struct {
	ID                     string     `gorm:"column:id;primaryKey;size:64"`
	ProcessInstanceID      string     `gorm:"column:proc_inst_id;size:64;index"`
	BusinessKey            string     `gorm:"column:business_key;size:255"`
	ProcessDefinitionID    string     `gorm:"column:proc_def_id;size:64;index"`
	StartTime              time.Time  `gorm:"column:start_time"`
	EndTime                *time.Time `gorm:"column:end_time"`
	DurationInMillis       *int64     `gorm:"column:duration"`
	StartUserID            string     `gorm:"column:start_user_id;size:255"`
	StartActivityID        string     `gorm:"column:start_act_id;size:255"`
	EndActivityID          string     `gorm:"column:end_act_id;size:255"`
	SuperProcessInstanceID string     `gorm:"column:super_process_instance_id;size:64"`
	DeleteReason           string     `gorm:"column:delete_reason;size:4000"`
	TenantID               string     `gorm:"column:tenant_id;size:255"`
	Name                   string     `gorm:"column:name_;size:255"`
}

func (HistoricProcessInstance) TableName() string { return "act_hi_procinst" }

type HistoricActivityInstance struct {
	ID                      string     `gorm:"column:id;primaryKey;size:64"`
	ProcessDefinitionID     string     `gorm:"column:proc_def_id;size:64"`
	ProcessInstanceID       string     `gorm:"column:proc_inst_id;size:64;index"`
	ExecutionID             string     `gorm:"column:execution_id;size:64;index"`
	ActivityID              string     `gorm:"column:act_id;size:255"`
	TaskID                  string     `gorm:"column:task_id;size:64"`
	CalledProcessInstanceID string     `gorm:"column:call_proc_inst_id;size:64"`
	ActivityName            string     `gorm:"column:act_name;size:255"`
	ActivityType            string     `gorm:"column:act_type;size:255"`
	Assignee                string     `gorm:"column:assignee;size:255"`
	StartTime               time.Time  `gorm:"column:start_time"`
	EndTime                 *time.Time `gorm:"column:end_time"`
	DurationInMillis        *int64     `gorm:"column:duration"`
	TenantID                string     `gorm:"column:tenant_id;size:255"`
}

func (HistoricActivityInstance) TableName() string { return "act_hi_actinst" }

type HistoricTaskInstance struct {
	ID                  string     `gorm:"column:id;primaryKey;size:64"`
	ProcessDefinitionID string     `gorm:"column:proc_def_id;size:64"`
	TaskDefinitionKey   string     `gorm:"column:task_def_key;size:255"`
	ProcessInstanceID   string     `gorm:"column:proc_inst_id;size:64;index"`
	ExecutionID         string     `gorm:"column:execution_id;size:64"`
	ParentTaskID        string     `gorm:"column:parent_task_id;size:64"`
	Name                string     `gorm:"column:name_;size:255"`
	Description         string     `gorm:"column:description;size:4000"`
	Owner               string     `gorm:"column:owner;size:255"`
	Assignee            string     `gorm:"column:assignee;size:255"`
	StartTime           time.Time  `gorm:"column:start_time"`
	ClaimTime           *time.Time `gorm:"column:claim_time"`
	EndTime             *time.Time `gorm:"column:end_time"`
	DurationInMillis    *int64     `gorm:"column:duration"`
	DeleteReason        string     `gorm:"column:delete_reason;size:4000"`
	Priority            int        `gorm:"column:priority"`
	DueDate             *time.Time `gorm:"column:due_date"`
	FormKey             string     `gorm:"column:form_key;size:255"`
	Category            string     `gorm:"column:category;size:255"`
	TenantID            string     `gorm:"column:tenant_id;size:255"`
}

func (HistoricTaskInstance) TableName() string { return "act_hi_taskinst" }

// HistoricVariableInstance mirrors the latest value of a runtime variable. It survives the
// runtime row.
type HistoricVariableInstance struct {
	ID                string    `gorm:"column:id;primaryKey;size:64"`
	ProcessInstanceID string    `gorm:"column:proc_inst_id;size:64;index"`
	ExecutionID       string    `gorm:"column:execution_id;size:64"`
	TaskID            string    `gorm:"column:task_id;size:64;index"`
	Name              string    `gorm:"column:name_;size:255"`
	Revision          int       `gorm:"column:rev"`
	CreateTime        time.Time `gorm:"column:create_time"`
	LastUpdatedTime   time.Time `gorm:"column:last_updated_time"`
	variable.Value
}

func (HistoricVariableInstance) TableName() string { return "act_hi_varinst" }

type HistoricDetail struct {
	ID                 string    `gorm:"column:id;primaryKey;size:64"`
	Type               string    `gorm:"column:type_;size:255"`
	ProcessInstanceID  string    `gorm:"column:proc_inst_id;size:64;index"`
	ExecutionID        string    `gorm:"column:execution_id;size:64"`
	TaskID             string    `gorm:"column:task_id;size:64"`
	ActivityInstanceID string    `gorm:"column:act_inst_id;size:64"`
	VariableInstanceID string    `gorm:"column:var_inst_id;size:64"`
	Name               string    `gorm:"column:name_;size:255"`
	Revision           int       `gorm:"column:rev"`
	Time               time.Time `gorm:"column:time_"`
	variable.Value
}

func (HistoricDetail) TableName() string { return "act_hi_detail" }

type HistoricIdentityLink struct {
	ID                string `gorm:"column:id;primaryKey;size:64"`
	Type              string `gorm:"column:type_;size:255"`
	UserID            string `gorm:"column:user_id;size:255"`
	GroupID           string `gorm:"column:group_id;size:255"`
	TaskID            string `gorm:"column:task_id;size:64;index"`
	ProcessInstanceID string `gorm:"column:proc_inst_id;size:64;index"`
}

func (HistoricIdentityLink) TableName() string { return "act_hi_identitylink" }

type Comment struct {
	ID                string    `gorm:"column:id;primaryKey;size:64"`
	Type              string    `gorm:"column:type_;size:255"`
	Time              time.Time `gorm:"column:time_"`
	UserID            string    `gorm:"column:user_id;size:255"`
	TaskID            string    `gorm:"column:task_id;size:64;index"`
	ProcessInstanceID string    `gorm:"column:proc_inst_id;size:64;index"`
	Action            string    `gorm:"column:action;size:255"`
	Message           string    `gorm:"column:message;size:4000"`
	FullMessage       string    `gorm:"column:full_msg;type:text"`
}

func (Comment) TableName() string { return "act_hi_comment" }
