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
	execVarCorrelation     = "v.execution_id = act_ru_execution.id AND v.task_id = ''"
	execProcVarCorrelation = "v.execution_id = act_ru_execution.process_instance_id AND v.task_id = ''"
)

type ExecutionDao interface {
	core.Component
	Create(ctx context.Context, e *model.Execution) error
	Get(ctx context.Context, id string) (*model.Execution, error)
	// Update writes every column when the stored revision still matches e.Revision.
	Update(ctx context.Context, e *model.Execution) error
	Delete(ctx context.Context, id string) error
	ListChildren(ctx context.Context, parentID string) ([]*model.Execution, error)
	ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.Execution, error)
	// FindSubProcessInstance returns the process instance started by a call activity execution.
	FindSubProcessInstance(ctx context.Context, superExecutionID string) (*model.Execution, error)
	UpdateSuspensionByProcessInstance(ctx context.Context, processInstanceID string, state int) error
	DeleteByProcessInstance(ctx context.Context, processInstanceID string) error
	CountByDefinitions(ctx context.Context, definitionIDs []string) (int64, error)
	ListProcessInstanceIDsByDefinitions(ctx context.Context, definitionIDs []string) ([]string, error)

	CountProcessInstances(ctx context.Context, q *model.ProcessInstanceQuery) (int64, error)
	ListProcessInstances(ctx context.Context, q *model.ProcessInstanceQuery, page query.Page) ([]*model.Execution, error)
	CountExecutions(ctx context.Context, q *model.ExecutionQuery) (int64, error)
	ListExecutions(ctx context.Context, q *model.ExecutionQuery, page query.Page) ([]*model.Execution, error)
}

type executionDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewExecutionDao(dsName string) ExecutionDao {
	return &executionDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_EXECUTION),
		session:       session{dsName: dsName},
	}
}

func (d *executionDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *executionDaoImpl) Create(ctx context.Context, e *model.Execution) error {
	if e.Revision == 0 {
		e.Revision = 1
	}
	return d.conn(ctx).Create(e).Error
}

func (d *executionDaoImpl) Get(ctx context.Context, id string) (*model.Execution, error) {
	var e model.Execution
	if err := d.conn(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *executionDaoImpl) Update(ctx context.Context, e *model.Execution) error {
	rev := e.Revision
	e.Revision = rev + 1
	res := d.conn(ctx).Model(&model.Execution{}).
		Where("id = ? AND rev = ?", e.ID, rev).
		Select("*").Omit("id").Updates(e)
	if res.Error != nil {
		e.Revision = rev
		return res.Error
	}
	if res.RowsAffected == 0 {
		e.Revision = rev
		return staleRevision("Execution", e.ID)
	}
	return nil
}

func (d *executionDaoImpl) Delete(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.Execution{}).Error
}

func (d *executionDaoImpl) ListChildren(ctx context.Context, parentID string) ([]*model.Execution, error) {
	var list []*model.Execution
	err := d.conn(ctx).Where("parent_id = ?", parentID).Order("start_time asc, id asc").Find(&list).Error
	return list, err
}

func (d *executionDaoImpl) ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.Execution, error) {
	var list []*model.Execution
	err := d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Order("start_time asc, id asc").Find(&list).Error
	return list, err
}

func (d *executionDaoImpl) FindSubProcessInstance(ctx context.Context, superExecutionID string) (*model.Execution, error) {
	var e model.Execution
	err := d.conn(ctx).Where("super_execution_id = ? AND parent_id = ''", superExecutionID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *executionDaoImpl) UpdateSuspensionByProcessInstance(ctx context.Context, processInstanceID string, state int) error {
	return d.conn(ctx).Model(&model.Execution{}).
		Where("process_instance_id = ?", processInstanceID).
		Updates(map[string]any{"suspension_state": state, "rev": gorm.Expr("rev + 1")}).Error
}

func (d *executionDaoImpl) DeleteByProcessInstance(ctx context.Context, processInstanceID string) error {
	return d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Delete(&model.Execution{}).Error
}

func (d *executionDaoImpl) CountByDefinitions(ctx context.Context, definitionIDs []string) (int64, error) {
	if len(definitionIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := d.conn(ctx).Model(&model.Execution{}).
		Where("parent_id = '' AND process_definition_id IN ?", definitionIDs).Count(&n).Error
	return n, err
}

func (d *executionDaoImpl) ListProcessInstanceIDsByDefinitions(ctx context.Context, definitionIDs []string) ([]string, error) {
	if len(definitionIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := d.conn(ctx).Model(&model.Execution{}).
		Where("parent_id = '' AND process_definition_id IN ?", definitionIDs).Pluck("id", &ids).Error
	return ids, err
}

func (d *executionDaoImpl) processInstanceScope(ctx context.Context, q *model.ProcessInstanceQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.Execution{}).Where("parent_id = ''")
	db = eq(db, "id", q.ID)
	if len(q.IDs) > 0 {
		db = db.Where("id IN ?", q.IDs)
	}
	if q.ProcessDefinitionKey != "" {
		db = db.Where("process_definition_id IN (SELECT pd.id FROM act_re_procdef pd WHERE pd.key_ = ?)", q.ProcessDefinitionKey)
	}
	db = eq(db, "process_definition_id", q.ProcessDefinitionID)
	db = eq(db, "business_key", q.BusinessKey)
	if q.InvolvedUser != "" {
		db = db.Where("EXISTS (SELECT 1 FROM act_ru_identitylink l WHERE l.process_instance_id = act_ru_execution.id AND l.user_id = ?)", q.InvolvedUser)
	}
	if q.Suspended != nil {
		db = db.Where("suspension_state = ?", suspensionState(*q.Suspended))
	}
	if q.SuperProcessInstanceID != "" {
		db = db.Where("super_execution_id IN (SELECT s.id FROM act_ru_execution s WHERE s.process_instance_id = ?)", q.SuperProcessInstanceID)
	}
	if q.SubProcessInstanceID != "" {
		db = db.Where("id IN (SELECT s.process_instance_id FROM act_ru_execution s WHERE s.id IN (SELECT sub.super_execution_id FROM act_ru_execution sub WHERE sub.id = ?))", q.SubProcessInstanceID)
	}
	if q.ExcludeSubprocesses {
		db = db.Where("super_execution_id = ''")
	}
	db = variableExists(db, "act_ru_variable", execVarCorrelation, q.VariableFilters)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *executionDaoImpl) CountProcessInstances(ctx context.Context, q *model.ProcessInstanceQuery) (int64, error) {
	var n int64
	err := d.processInstanceScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *executionDaoImpl) ListProcessInstances(ctx context.Context, q *model.ProcessInstanceQuery, page query.Page) ([]*model.Execution, error) {
	var list []*model.Execution
	err := paginate(d.processInstanceScope(ctx, q), page).Find(&list).Error
	return list, err
}

func (d *executionDaoImpl) executionScope(ctx context.Context, q *model.ExecutionQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.Execution{})
	db = eq(db, "id", q.ID)
	db = eq(db, "activity_id", q.ActivityID)
	db = eq(db, "parent_id", q.ParentID)
	if q.ProcessDefinitionKey != "" {
		db = db.Where("process_definition_id IN (SELECT pd.id FROM act_re_procdef pd WHERE pd.key_ = ?)", q.ProcessDefinitionKey)
	}
	db = eq(db, "process_definition_id", q.ProcessDefinitionID)
	db = eq(db, "process_instance_id", q.ProcessInstanceID)
	if q.ProcessBusinessKey != "" {
		db = db.Where("process_instance_id IN (SELECT p.id FROM act_ru_execution p WHERE p.business_key = ?)", q.ProcessBusinessKey)
	}
	db = variableExists(db, "act_ru_variable", execVarCorrelation, q.VariableFilters)
	db = variableExists(db, "act_ru_variable", execProcVarCorrelation, q.ProcessInstanceVariableFilters)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *executionDaoImpl) CountExecutions(ctx context.Context, q *model.ExecutionQuery) (int64, error) {
	var n int64
	err := d.executionScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *executionDaoImpl) ListExecutions(ctx context.Context, q *model.ExecutionQuery, page query.Page) ([]*model.Execution, error) {
	var list []*model.Execution
	err := paginate(d.executionScope(ctx, q), page).Find(&list).Error
	return list, err
}

func suspensionState(suspended bool) int {
	if suspended {
		return bizConsts.SuspensionSuspended
	}
	return bizConsts.SuspensionActive
}
