package dao

import (
	"context"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
)

type VariableDao interface {
	core.Component
	Create(ctx context.Context, v *model.Variable) error
	Update(ctx context.Context, v *model.Variable) error
	Delete(ctx context.Context, id string) error
	// FindOnExecution returns the execution-scoped variable (not task-local) of that name.
	FindOnExecution(ctx context.Context, executionID, name string) (*model.Variable, error)
	FindOnTask(ctx context.Context, taskID, name string) (*model.Variable, error)
	ListByExecution(ctx context.Context, executionID string) ([]*model.Variable, error)
	ListByExecutions(ctx context.Context, executionIDs []string) ([]*model.Variable, error)
	ListByTask(ctx context.Context, taskID string) ([]*model.Variable, error)
	ListByTasks(ctx context.Context, taskIDs []string) ([]*model.Variable, error)
	DeleteByExecution(ctx context.Context, executionID string) error
	DeleteByTask(ctx context.Context, taskID string) error
	DeleteByProcessInstance(ctx context.Context, processInstanceID string) error
}

type variableDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewVariableDao(dsName string) VariableDao {
	return &variableDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_VARIABLE),
		session:       session{dsName: dsName},
	}
}

func (d *variableDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *variableDaoImpl) Create(ctx context.Context, v *model.Variable) error {
	if v.Revision == 0 {
		v.Revision = 1
	}
	return d.conn(ctx).Create(v).Error
}

func (d *variableDaoImpl) Update(ctx context.Context, v *model.Variable) error {
	rev := v.Revision
	v.Revision = rev + 1
	res := d.conn(ctx).Model(&model.Variable{}).
		Where("id = ? AND rev = ?", v.ID, rev).
		Select("*").Omit("id").Updates(v)
	if res.Error != nil {
		v.Revision = rev
		return res.Error
	}
	if res.RowsAffected == 0 {
		v.Revision = rev
		return staleRevision("Variable", v.ID)
	}
	return nil
}

func (d *variableDaoImpl) Delete(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.Variable{}).Error
}

func (d *variableDaoImpl) FindOnExecution(ctx context.Context, executionID, name string) (*model.Variable, error) {
	var v model.Variable
	err := d.conn(ctx).Where("execution_id = ? AND task_id = '' AND name_ = ?", executionID, name).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *variableDaoImpl) FindOnTask(ctx context.Context, taskID, name string) (*model.Variable, error) {
	var v model.Variable
	if err := d.conn(ctx).Where("task_id = ? AND name_ = ?", taskID, name).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *variableDaoImpl) ListByExecution(ctx context.Context, executionID string) ([]*model.Variable, error) {
	var list []*model.Variable
	err := d.conn(ctx).Where("execution_id = ? AND task_id = ''", executionID).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *variableDaoImpl) ListByExecutions(ctx context.Context, executionIDs []string) ([]*model.Variable, error) {
	if len(executionIDs) == 0 {
		return nil, nil
	}
	var list []*model.Variable
	err := d.conn(ctx).Where("execution_id IN ? AND task_id = ''", executionIDs).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *variableDaoImpl) ListByTask(ctx context.Context, taskID string) ([]*model.Variable, error) {
	var list []*model.Variable
	err := d.conn(ctx).Where("task_id = ?", taskID).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *variableDaoImpl) ListByTasks(ctx context.Context, taskIDs []string) ([]*model.Variable, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var list []*model.Variable
	err := d.conn(ctx).Where("task_id IN ?", taskIDs).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *variableDaoImpl) DeleteByExecution(ctx context.Context, executionID string) error {
	return d.conn(ctx).Where("execution_id = ? AND task_id = ''", executionID).Delete(&model.Variable{}).Error
}

func (d *variableDaoImpl) DeleteByTask(ctx context.Context, taskID string) error {
	return d.conn(ctx).Where("task_id = ?", taskID).Delete(&model.Variable{}).Error
}

func (d *variableDaoImpl) DeleteByProcessInstance(ctx context.Context, processInstanceID string) error {
	return d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Delete(&model.Variable{}).Error
}
