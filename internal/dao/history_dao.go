package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

const (
	hiProcVarCorrelation     = "v.proc_inst_id = act_hi_procinst.proc_inst_id AND v.task_id = ''"
	hiTaskVarCorrelation     = "v.task_id = act_hi_taskinst.id"
	hiTaskProcVarCorrelation = "v.proc_inst_id = act_hi_taskinst.proc_inst_id AND v.task_id = ''"
)

type HistoryDao interface {
	core.Component

	CreateProcessInstance(ctx context.Context, h *model.HistoricProcessInstance) error
	GetProcessInstance(ctx context.Context, id string) (*model.HistoricProcessInstance, error)
	UpdateProcessInstance(ctx context.Context, h *model.HistoricProcessInstance) error
	// DeleteProcessInstance removes the instance together with every history row it owns.
	DeleteProcessInstance(ctx context.Context, id string) error
	CountProcessInstances(ctx context.Context, q *model.HistoricProcessInstanceQuery) (int64, error)
	ListProcessInstances(ctx context.Context, q *model.HistoricProcessInstanceQuery, page query.Page) ([]*model.HistoricProcessInstance, error)

	CreateActivity(ctx context.Context, a *model.HistoricActivityInstance) error
	UpdateActivity(ctx context.Context, a *model.HistoricActivityInstance) error
	FindOpenActivity(ctx context.Context, executionID, activityID string) (*model.HistoricActivityInstance, error)
	ListOpenActivities(ctx context.Context, processInstanceID string) ([]*model.HistoricActivityInstance, error)
	CountActivities(ctx context.Context, q *model.HistoricActivityInstanceQuery) (int64, error)
	ListActivities(ctx context.Context, q *model.HistoricActivityInstanceQuery, page query.Page) ([]*model.HistoricActivityInstance, error)

	CreateTask(ctx context.Context, t *model.HistoricTaskInstance) error
	GetTask(ctx context.Context, id string) (*model.HistoricTaskInstance, error)
	UpdateTask(ctx context.Context, t *model.HistoricTaskInstance) error
	DeleteTask(ctx context.Context, id string) error
	CountTasks(ctx context.Context, q *model.HistoricTaskInstanceQuery) (int64, error)
	ListTasks(ctx context.Context, q *model.HistoricTaskInstanceQuery, page query.Page) ([]*model.HistoricTaskInstance, error)

	// SaveVariable inserts or overwrites the historic copy of a runtime variable.
	SaveVariable(ctx context.Context, v *model.HistoricVariableInstance) error
	GetVariable(ctx context.Context, id string) (*model.HistoricVariableInstance, error)
	DeleteVariable(ctx context.Context, id string) error
	ListVariablesByProcessInstances(ctx context.Context, processInstanceIDs []string) ([]*model.HistoricVariableInstance, error)
	ListVariablesByTasks(ctx context.Context, taskIDs []string) ([]*model.HistoricVariableInstance, error)
	CountVariables(ctx context.Context, q *model.HistoricVariableInstanceQuery) (int64, error)
	ListVariables(ctx context.Context, q *model.HistoricVariableInstanceQuery, page query.Page) ([]*model.HistoricVariableInstance, error)

	CreateDetail(ctx context.Context, d *model.HistoricDetail) error
	GetDetail(ctx context.Context, id string) (*model.HistoricDetail, error)
	CountDetails(ctx context.Context, q *model.HistoricDetailQuery) (int64, error)
	ListDetails(ctx context.Context, q *model.HistoricDetailQuery, page query.Page) ([]*model.HistoricDetail, error)

	CreateIdentityLink(ctx context.Context, l *model.HistoricIdentityLink) error
	DeleteIdentityLink(ctx context.Context, l *model.HistoricIdentityLink) error
	ListIdentityLinksByTask(ctx context.Context, taskID string) ([]*model.HistoricIdentityLink, error)
	ListIdentityLinksByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.HistoricIdentityLink, error)
}

type historyDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewHistoryDao(dsName string) HistoryDao {
	return &historyDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_HISTORY),
		session:       session{dsName: dsName},
	}
}

func (d *historyDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

// process instances

func (d *historyDaoImpl) CreateProcessInstance(ctx context.Context, h *model.HistoricProcessInstance) error {
	return d.conn(ctx).Create(h).Error
}

func (d *historyDaoImpl) GetProcessInstance(ctx context.Context, id string) (*model.HistoricProcessInstance, error) {
	var h model.HistoricProcessInstance
	if err := d.conn(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

func (d *historyDaoImpl) UpdateProcessInstance(ctx context.Context, h *model.HistoricProcessInstance) error {
	return d.conn(ctx).Save(h).Error
}

func (d *historyDaoImpl) DeleteProcessInstance(ctx context.Context, id string) error {
	db := d.conn(ctx)
	for _, m := range []any{
		&model.HistoricActivityInstance{}, &model.HistoricTaskInstance{}, &model.HistoricVariableInstance{},
		&model.HistoricDetail{}, &model.HistoricIdentityLink{}, &model.Comment{},
	} {
		if err := db.Where("proc_inst_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}
	return db.Where("id = ?", id).Delete(&model.HistoricProcessInstance{}).Error
}

func (d *historyDaoImpl) processInstanceScope(ctx context.Context, q *model.HistoricProcessInstanceQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.HistoricProcessInstance{})
	db = eq(db, "proc_inst_id", q.ProcessInstanceID)
	if len(q.ProcessInstanceIDs) > 0 {
		db = db.Where("proc_inst_id IN ?", q.ProcessInstanceIDs)
	}
	if q.ProcessDefinitionKey != "" {
		db = db.Where("proc_def_id IN (SELECT pd.id FROM act_re_procdef pd WHERE pd.key_ = ?)", q.ProcessDefinitionKey)
	}
	db = eq(db, "proc_def_id", q.ProcessDefinitionID)
	db = eq(db, "business_key", q.BusinessKey)
	if q.InvolvedUser != "" {
		db = db.Where("(start_user_id = ? OR EXISTS (SELECT 1 FROM act_hi_identitylink l WHERE l.proc_inst_id = act_hi_procinst.proc_inst_id AND l.user_id = ?))",
			q.InvolvedUser, q.InvolvedUser)
	}
	db = finished(db, "end_time", q.Finished)
	db = eq(db, "super_process_instance_id", q.SuperProcessInstanceID)
	if q.ExcludeSubprocesses {
		db = db.Where("super_process_instance_id = ''")
	}
	if q.FinishedAfter != nil {
		db = db.Where("end_time > ?", q.FinishedAfter.UTC())
	}
	if q.FinishedBefore != nil {
		db = db.Where("end_time < ?", q.FinishedBefore.UTC())
	}
	if q.StartedAfter != nil {
		db = db.Where("start_time > ?", q.StartedAfter.UTC())
	}
	if q.StartedBefore != nil {
		db = db.Where("start_time < ?", q.StartedBefore.UTC())
	}
	db = eq(db, "start_user_id", q.StartedBy)
	db = variableExists(db, "act_hi_varinst", hiProcVarCorrelation, q.VariableFilters)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *historyDaoImpl) CountProcessInstances(ctx context.Context, q *model.HistoricProcessInstanceQuery) (int64, error) {
	var n int64
	err := d.processInstanceScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *historyDaoImpl) ListProcessInstances(ctx context.Context, q *model.HistoricProcessInstanceQuery, page query.Page) ([]*model.HistoricProcessInstance, error) {
	var list []*model.HistoricProcessInstance
	err := paginate(d.processInstanceScope(ctx, q), page).Find(&list).Error
	return list, err
}

// activities

func (d *historyDaoImpl) CreateActivity(ctx context.Context, a *model.HistoricActivityInstance) error {
	return d.conn(ctx).Create(a).Error
}

func (d *historyDaoImpl) UpdateActivity(ctx context.Context, a *model.HistoricActivityInstance) error {
	return d.conn(ctx).Save(a).Error
}

func (d *historyDaoImpl) FindOpenActivity(ctx context.Context, executionID, activityID string) (*model.HistoricActivityInstance, error) {
	var a model.HistoricActivityInstance
	err := d.conn(ctx).
		Where("execution_id = ? AND act_id = ? AND end_time IS NULL", executionID, activityID).
		Order("start_time desc").First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (d *historyDaoImpl) ListOpenActivities(ctx context.Context, processInstanceID string) ([]*model.HistoricActivityInstance, error) {
	var list []*model.HistoricActivityInstance
	err := d.conn(ctx).Where("proc_inst_id = ? AND end_time IS NULL", processInstanceID).Find(&list).Error
	return list, err
}

func (d *historyDaoImpl) activityScope(ctx context.Context, q *model.HistoricActivityInstanceQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.HistoricActivityInstance{})
	db = eq(db, "act_id", q.ActivityID)
	db = eq(db, "id", q.ActivityInstanceID)
	db = eq(db, "act_name", q.ActivityName)
	db = eq(db, "act_type", q.ActivityType)
	db = eq(db, "execution_id", q.ExecutionID)
	db = finished(db, "end_time", q.Finished)
	db = eq(db, "assignee", q.TaskAssignee)
	db = eq(db, "proc_inst_id", q.ProcessInstanceID)
	db = eq(db, "proc_def_id", q.ProcessDefinitionID)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *historyDaoImpl) CountActivities(ctx context.Context, q *model.HistoricActivityInstanceQuery) (int64, error) {
	var n int64
	err := d.activityScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *historyDaoImpl) ListActivities(ctx context.Context, q *model.HistoricActivityInstanceQuery, page query.Page) ([]*model.HistoricActivityInstance, error) {
	var list []*model.HistoricActivityInstance
	err := paginate(d.activityScope(ctx, q), page).Find(&list).Error
	return list, err
}

// tasks

func (d *historyDaoImpl) CreateTask(ctx context.Context, t *model.HistoricTaskInstance) error {
	return d.conn(ctx).Create(t).Error
}

func (d *historyDaoImpl) GetTask(ctx context.Context, id string) (*model.HistoricTaskInstance, error) {
	var t model.HistoricTaskInstance
	if err := d.conn(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *historyDaoImpl) UpdateTask(ctx context.Context, t *model.HistoricTaskInstance) error {
	return d.conn(ctx).Save(t).Error
}

func (d *historyDaoImpl) DeleteTask(ctx context.Context, id string) error {
	db := d.conn(ctx)
	for _, m := range []any{&model.HistoricVariableInstance{}, &model.HistoricDetail{}, &model.HistoricIdentityLink{}} {
		if err := db.Where("task_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}
	return db.Where("id = ?", id).Delete(&model.HistoricTaskInstance{}).Error
}

func (d *historyDaoImpl) taskScope(ctx context.Context, q *model.HistoricTaskInstanceQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.HistoricTaskInstance{})
	db = eq(db, "id", q.TaskID)
	db = eq(db, "proc_inst_id", q.ProcessInstanceID)
	if q.ProcessBusinessKey != "" {
		db = db.Where("proc_inst_id IN (SELECT p.proc_inst_id FROM act_hi_procinst p WHERE p.business_key = ?)", q.ProcessBusinessKey)
	}
	if q.ProcessBusinessKeyLike != "" {
		db = db.Where("proc_inst_id IN (SELECT p.proc_inst_id FROM act_hi_procinst p WHERE p.business_key LIKE ?)", q.ProcessBusinessKeyLike)
	}
	db = eq(db, "proc_def_id", q.ProcessDefinitionID)
	for col, v := range map[string]string{
		"pd.key_ = ?":     q.ProcessDefinitionKey,
		"pd.key_ LIKE ?":  q.ProcessDefinitionKeyLike,
		"pd.name_ = ?":    q.ProcessDefinitionName,
		"pd.name_ LIKE ?": q.ProcessDefinitionNameLike,
	} {
		if v != "" {
			db = db.Where("proc_def_id IN (SELECT pd.id FROM act_re_procdef pd WHERE "+col+")", v)
		}
	}
	db = eq(db, "execution_id", q.ExecutionID)
	db = eq(db, "name_", q.TaskName)
	db = like(db, "name_", q.TaskNameLike)
	db = eq(db, "description", q.TaskDescription)
	db = like(db, "description", q.TaskDescriptionLike)
	db = eq(db, "task_def_key", q.TaskDefinitionKey)
	db = like(db, "task_def_key", q.TaskDefinitionKeyLike)
	db = eq(db, "delete_reason", q.TaskDeleteReason)
	db = like(db, "delete_reason", q.TaskDeleteReasonLike)
	db = eq(db, "assignee", q.TaskAssignee)
	db = like(db, "assignee", q.TaskAssigneeLike)
	db = eq(db, "owner", q.TaskOwner)
	db = like(db, "owner", q.TaskOwnerLike)
	if q.TaskInvolvedUser != "" {
		db = db.Where("(assignee = ? OR owner = ? OR EXISTS (SELECT 1 FROM act_hi_identitylink l WHERE l.task_id = act_hi_taskinst.id AND l.user_id = ?))",
			q.TaskInvolvedUser, q.TaskInvolvedUser, q.TaskInvolvedUser)
	}
	if q.TaskPriority != nil {
		db = db.Where("priority = ?", *q.TaskPriority)
	}
	db = finished(db, "end_time", q.Finished)
	if q.ProcessFinished != nil {
		cond := "proc_inst_id IN (SELECT p.proc_inst_id FROM act_hi_procinst p WHERE p.end_time IS NULL)"
		if *q.ProcessFinished {
			cond = "proc_inst_id IN (SELECT p.proc_inst_id FROM act_hi_procinst p WHERE p.end_time IS NOT NULL)"
		}
		db = db.Where(cond)
	}
	db = eq(db, "parent_task_id", q.ParentTaskID)
	if q.DueDate != nil {
		db = db.Where("due_date = ?", q.DueDate.UTC())
	}
	if q.DueDateAfter != nil {
		db = db.Where("due_date > ?", q.DueDateAfter.UTC())
	}
	if q.DueDateBefore != nil {
		db = db.Where("due_date < ?", q.DueDateBefore.UTC())
	}
	if q.WithoutDueDate {
		db = db.Where("due_date IS NULL")
	}
	if q.TaskCompletedOn != nil {
		db = db.Where("end_time = ?", q.TaskCompletedOn.UTC())
	}
	if q.TaskCompletedAfter != nil {
		db = db.Where("end_time > ?", q.TaskCompletedAfter.UTC())
	}
	if q.TaskCompletedBefore != nil {
		db = db.Where("end_time < ?", q.TaskCompletedBefore.UTC())
	}
	if q.TaskCreatedOn != nil {
		db = db.Where("start_time = ?", q.TaskCreatedOn.UTC())
	}
	if q.TaskCreatedBefore != nil {
		db = db.Where("start_time < ?", q.TaskCreatedBefore.UTC())
	}
	if q.TaskCreatedAfter != nil {
		db = db.Where("start_time > ?", q.TaskCreatedAfter.UTC())
	}
	db = variableExists(db, "act_hi_varinst", hiTaskVarCorrelation, q.TaskVariableFilters)
	db = variableExists(db, "act_hi_varinst", hiTaskProcVarCorrelation, q.ProcessVariableFilters)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *historyDaoImpl) CountTasks(ctx context.Context, q *model.HistoricTaskInstanceQuery) (int64, error) {
	var n int64
	err := d.taskScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *historyDaoImpl) ListTasks(ctx context.Context, q *model.HistoricTaskInstanceQuery, page query.Page) ([]*model.HistoricTaskInstance, error) {
	var list []*model.HistoricTaskInstance
	err := paginate(d.taskScope(ctx, q), page).Find(&list).Error
	return list, err
}

// variables

func (d *historyDaoImpl) SaveVariable(ctx context.Context, v *model.HistoricVariableInstance) error {
	return d.conn(ctx).Save(v).Error
}

func (d *historyDaoImpl) GetVariable(ctx context.Context, id string) (*model.HistoricVariableInstance, error) {
	var v model.HistoricVariableInstance
	if err := d.conn(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *historyDaoImpl) DeleteVariable(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.HistoricVariableInstance{}).Error
}

func (d *historyDaoImpl) ListVariablesByProcessInstances(ctx context.Context, processInstanceIDs []string) ([]*model.HistoricVariableInstance, error) {
	if len(processInstanceIDs) == 0 {
		return nil, nil
	}
	var list []*model.HistoricVariableInstance
	err := d.conn(ctx).Where("proc_inst_id IN ? AND task_id = ''", processInstanceIDs).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *historyDaoImpl) ListVariablesByTasks(ctx context.Context, taskIDs []string) ([]*model.HistoricVariableInstance, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var list []*model.HistoricVariableInstance
	err := d.conn(ctx).Where("task_id IN ?", taskIDs).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *historyDaoImpl) variableScope(ctx context.Context, q *model.HistoricVariableInstanceQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.HistoricVariableInstance{})
	db = eq(db, "proc_inst_id", q.ProcessInstanceID)
	db = eq(db, "task_id", q.TaskID)
	if q.ExcludeTaskVariables {
		db = db.Where("task_id = ''")
	}
	db = eq(db, "name_", q.VariableName)
	db = like(db, "name_", q.VariableNameLike)
	for _, f := range q.VariableFilters {
		cond, args := valueCondition("act_hi_varinst", f)
		db = db.Where(cond, args...)
	}
	return db
}

func (d *historyDaoImpl) CountVariables(ctx context.Context, q *model.HistoricVariableInstanceQuery) (int64, error) {
	var n int64
	err := d.variableScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *historyDaoImpl) ListVariables(ctx context.Context, q *model.HistoricVariableInstanceQuery, page query.Page) ([]*model.HistoricVariableInstance, error) {
	var list []*model.HistoricVariableInstance
	err := paginate(d.variableScope(ctx, q), page).Find(&list).Error
	return list, err
}

// details

func (d *historyDaoImpl) CreateDetail(ctx context.Context, det *model.HistoricDetail) error {
	return d.conn(ctx).Create(det).Error
}

func (d *historyDaoImpl) GetDetail(ctx context.Context, id string) (*model.HistoricDetail, error) {
	var det model.HistoricDetail
	if err := d.conn(ctx).Where("id = ?", id).First(&det).Error; err != nil {
		return nil, err
	}
	return &det, nil
}

func (d *historyDaoImpl) detailScope(ctx context.Context, q *model.HistoricDetailQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.HistoricDetail{})
	db = eq(db, "id", q.ID)
	db = eq(db, "proc_inst_id", q.ProcessInstanceID)
	db = eq(db, "execution_id", q.ExecutionID)
	db = eq(db, "act_inst_id", q.ActivityInstanceID)
	db = eq(db, "task_id", q.TaskID)
	if q.SelectOnlyFormProperties {
		db = db.Where("type_ = ?", bizConsts.DetailFormProperty)
	}
	if q.SelectOnlyVariableUpdates {
		db = db.Where("type_ = ?", bizConsts.DetailVariableUpdate)
	}
	return db
}

func (d *historyDaoImpl) CountDetails(ctx context.Context, q *model.HistoricDetailQuery) (int64, error) {
	var n int64
	err := d.detailScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *historyDaoImpl) ListDetails(ctx context.Context, q *model.HistoricDetailQuery, page query.Page) ([]*model.HistoricDetail, error) {
	var list []*model.HistoricDetail
	err := paginate(d.detailScope(ctx, q), page).Find(&list).Error
	return list, err
}

// identity links

func (d *historyDaoImpl) CreateIdentityLink(ctx context.Context, l *model.HistoricIdentityLink) error {
	return d.conn(ctx).Create(l).Error
}

func (d *historyDaoImpl) DeleteIdentityLink(ctx context.Context, l *model.HistoricIdentityLink) error {
	return d.conn(ctx).
		Where("task_id = ? AND proc_inst_id = ? AND user_id = ? AND group_id = ? AND type_ = ?",
			l.TaskID, l.ProcessInstanceID, l.UserID, l.GroupID, l.Type).
		Delete(&model.HistoricIdentityLink{}).Error
}

func (d *historyDaoImpl) ListIdentityLinksByTask(ctx context.Context, taskID string) ([]*model.HistoricIdentityLink, error) {
	var list []*model.HistoricIdentityLink
	err := d.conn(ctx).Where("task_id = ?", taskID).Order("id asc").Find(&list).Error
	return list, err
}

func (d *historyDaoImpl) ListIdentityLinksByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.HistoricIdentityLink, error) {
	var list []*model.HistoricIdentityLink
	err := d.conn(ctx).Where("proc_inst_id = ? AND task_id = ''", processInstanceID).Order("id asc").Find(&list).Error
	return list, err
}

func finished(db *gorm.DB, column string, v *bool) *gorm.DB {
	if v == nil {
		return db
	}
	if *v {
		return db.Where(column + " IS NOT NULL")
	}
	return db.Where(column + " IS NULL")
}
