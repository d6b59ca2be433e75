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
	taskVarCorrelation     = "v.task_id = act_ru_task.id"
	taskProcVarCorrelation = "v.execution_id = act_ru_task.process_instance_id AND v.task_id = ''"
)

type TaskDao interface {
	core.Component
	Create(ctx context.Context, t *model.Task) error
	Get(ctx context.Context, id string) (*model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id string) error
	ListByExecution(ctx context.Context, executionID string) ([]*model.Task, error)
	ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.Task, error)
	ListSubTasks(ctx context.Context, parentTaskID string) ([]*model.Task, error)
	UpdateSuspensionByProcessInstance(ctx context.Context, processInstanceID string, state int) error
	DeleteByProcessInstance(ctx context.Context, processInstanceID string) error
	Count(ctx context.Context, q *model.TaskQuery) (int64, error)
	List(ctx context.Context, q *model.TaskQuery, page query.Page) ([]*model.Task, error)
}

type taskDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewTaskDao(dsName string) TaskDao {
	return &taskDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_TASK),
		session:       session{dsName: dsName},
	}
}

func (d *taskDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *taskDaoImpl) Create(ctx context.Context, t *model.Task) error {
	if t.Revision == 0 {
		t.Revision = 1
	}
	return d.conn(ctx).Create(t).Error
}

func (d *taskDaoImpl) Get(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := d.conn(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *taskDaoImpl) Update(ctx context.Context, t *model.Task) error {
	rev := t.Revision
	t.Revision = rev + 1
	res := d.conn(ctx).Model(&model.Task{}).
		Where("id = ? AND rev = ?", t.ID, rev).
		Select("*").Omit("id").Updates(t)
	if res.Error != nil {
		t.Revision = rev
		return res.Error
	}
	if res.RowsAffected == 0 {
		t.Revision = rev
		return staleRevision("Task", t.ID)
	}
	return nil
}

func (d *taskDaoImpl) Delete(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.Task{}).Error
}

func (d *taskDaoImpl) ListByExecution(ctx context.Context, executionID string) ([]*model.Task, error) {
	var list []*model.Task
	err := d.conn(ctx).Where("execution_id = ?", executionID).Order("create_time asc").Find(&list).Error
	return list, err
}

func (d *taskDaoImpl) ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.Task, error) {
	var list []*model.Task
	err := d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Order("create_time asc").Find(&list).Error
	return list, err
}

func (d *taskDaoImpl) ListSubTasks(ctx context.Context, parentTaskID string) ([]*model.Task, error) {
	var list []*model.Task
	err := d.conn(ctx).Where("parent_task_id = ?", parentTaskID).Order("create_time asc").Find(&list).Error
	return list, err
}

func (d *taskDaoImpl) UpdateSuspensionByProcessInstance(ctx context.Context, processInstanceID string, state int) error {
	return d.conn(ctx).Model(&model.Task{}).
		Where("process_instance_id = ?", processInstanceID).
		Updates(map[string]any{"suspension_state": state, "rev": gorm.Expr("rev + 1")}).Error
}

func (d *taskDaoImpl) DeleteByProcessInstance(ctx context.Context, processInstanceID string) error {
	return d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Delete(&model.Task{}).Error
}

// candidateCondition matches unassigned tasks offered to the user directly or to one of groups.
func candidateCondition(user string, groups []string) (string, []any) {
	if user != "" && len(groups) > 0 {
		return "(act_ru_task.assignee = '' AND EXISTS (SELECT 1 FROM act_ru_identitylink l WHERE l.task_id = act_ru_task.id AND l.type_ = ? AND (l.user_id = ? OR l.group_id IN ?)))",
			[]any{bizConsts.LinkCandidate, user, groups}
	}
	if user != "" {
		return "(act_ru_task.assignee = '' AND EXISTS (SELECT 1 FROM act_ru_identitylink l WHERE l.task_id = act_ru_task.id AND l.type_ = ? AND l.user_id = ?))",
			[]any{bizConsts.LinkCandidate, user}
	}
	return "(act_ru_task.assignee = '' AND EXISTS (SELECT 1 FROM act_ru_identitylink l WHERE l.task_id = act_ru_task.id AND l.type_ = ? AND l.group_id IN ?))",
		[]any{bizConsts.LinkCandidate, groups}
}

func (d *taskDaoImpl) scope(ctx context.Context, q *model.TaskQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.Task{})
	db = eq(db, "name_", q.Name)
	db = like(db, "name_", q.NameLike)
	db = eq(db, "description", q.Description)
	db = like(db, "description", q.DescriptionLike)
	if q.Priority != nil {
		db = db.Where("priority = ?", *q.Priority)
	}
	if q.MinimumPriority != nil {
		db = db.Where("priority >= ?", *q.MinimumPriority)
	}
	if q.MaximumPriority != nil {
		db = db.Where("priority <= ?", *q.MaximumPriority)
	}
	db = eq(db, "assignee", q.Assignee)
	db = like(db, "assignee", q.AssigneeLike)
	db = eq(db, "owner", q.Owner)
	db = like(db, "owner", q.OwnerLike)
	if q.Unassigned {
		db = db.Where("assignee = ''")
	}
	db = eq(db, "delegation", q.DelegationState)

	if q.CandidateUser != "" {
		cond, args := candidateCondition(q.CandidateUser, q.CandidateUserGroups)
		db = db.Where(cond, args...)
	}
	if q.CandidateGroup != "" {
		cond, args := candidateCondition("", []string{q.CandidateGroup})
		db = db.Where(cond, args...)
	}
	if len(q.CandidateGroups) > 0 {
		cond, args := candidateCondition("", q.CandidateGroups)
		db = db.Where(cond, args...)
	}
	if q.CandidateOrAssigned != "" {
		cond, args := candidateCondition(q.CandidateOrAssigned, q.CandidateUserGroups)
		db = db.Where("(act_ru_task.assignee = ? OR "+cond+")", append([]any{q.CandidateOrAssigned}, args...)...)
	}
	if q.InvolvedUser != "" {
		db = db.Where("(assignee = ? OR owner = ? OR EXISTS (SELECT 1 FROM act_ru_identitylink l WHERE l.task_id = act_ru_task.id AND l.user_id = ?))",
			q.InvolvedUser, q.InvolvedUser, q.InvolvedUser)
	}

	db = eq(db, "task_def_key", q.TaskDefinitionKey)
	db = like(db, "task_def_key", q.TaskDefinitionKeyLike)
	db = eq(db, "process_instance_id", q.ProcessInstanceID)
	if q.ProcessInstanceBusinessKey != "" {
		db = db.Where("process_instance_id IN (SELECT p.id FROM act_ru_execution p WHERE p.parent_id = '' AND p.business_key = ?)", q.ProcessInstanceBusinessKey)
	}
	if q.ProcessInstanceBusinessKeyLike != "" {
		db = db.Where("process_instance_id IN (SELECT p.id FROM act_ru_execution p WHERE p.parent_id = '' AND p.business_key LIKE ?)", q.ProcessInstanceBusinessKeyLike)
	}
	db = eq(db, "process_definition_id", q.ProcessDefinitionID)
	for col, v := range map[string]string{
		"pd.key_ = ?":     q.ProcessDefinitionKey,
		"pd.key_ LIKE ?":  q.ProcessDefinitionKeyLike,
		"pd.name_ = ?":    q.ProcessDefinitionName,
		"pd.name_ LIKE ?": q.ProcessDefinitionNameLike,
	} {
		if v != "" {
			db = db.Where("process_definition_id IN (SELECT pd.id FROM act_re_procdef pd WHERE "+col+")", v)
		}
	}
	db = eq(db, "execution_id", q.ExecutionID)
	if q.CreatedOn != nil {
		db = db.Where("create_time = ?", q.CreatedOn.UTC())
	}
	if q.CreatedBefore != nil {
		db = db.Where("create_time < ?", q.CreatedBefore.UTC())
	}
	if q.CreatedAfter != nil {
		db = db.Where("create_time > ?", q.CreatedAfter.UTC())
	}
	if q.DueOn != nil {
		db = db.Where("due_date = ?", q.DueOn.UTC())
	}
	if q.DueBefore != nil {
		db = db.Where("due_date < ?", q.DueBefore.UTC())
	}
	if q.DueAfter != nil {
		db = db.Where("due_date > ?", q.DueAfter.UTC())
	}
	if q.WithoutDueDate {
		db = db.Where("due_date IS NULL")
	}
	if q.ExcludeSubTasks {
		db = db.Where("parent_task_id = ''")
	}
	db = eq(db, "parent_task_id", q.ParentTaskID)
	if q.Active != nil {
		db = db.Where("suspension_state = ?", suspensionState(!*q.Active))
	}
	db = eq(db, "category", q.Category)
	db = variableExists(db, "act_ru_variable", taskVarCorrelation, q.TaskVariableFilters)
	db = variableExists(db, "act_ru_variable", taskProcVarCorrelation, q.ProcessInstanceVariableFilters)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *taskDaoImpl) Count(ctx context.Context, q *model.TaskQuery) (int64, error) {
	var n int64
	err := d.scope(ctx, q).Count(&n).Error
	return n, err
}

func (d *taskDaoImpl) List(ctx context.Context, q *model.TaskQuery, page query.Page) ([]*model.Task, error) {
	var list []*model.Task
	err := paginate(d.scope(ctx, q), page).Find(&list).Error
	return list, err
}
