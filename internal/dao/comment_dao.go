package dao

import (
	"context"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
)

type CommentDao interface {
	core.Component
	Create(ctx context.Context, c *model.Comment) error
	Get(ctx context.Context, id string) (*model.Comment, error)
	ListByTask(ctx context.Context, taskID string) ([]*model.Comment, error)
	ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.Comment, error)
	Delete(ctx context.Context, id string) error
}

type commentDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewCommentDao(dsName string) CommentDao {
	return &commentDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_COMMENT),
		session:       session{dsName: dsName},
	}
}

func (d *commentDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *commentDaoImpl) Create(ctx context.Context, c *model.Comment) error {
	return d.conn(ctx).Create(c).Error
}

func (d *commentDaoImpl) Get(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := d.conn(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *commentDaoImpl) ListByTask(ctx context.Context, taskID string) ([]*model.Comment, error) {
	var list []*model.Comment
	err := d.conn(ctx).Where("task_id = ? AND type_ = ?", taskID, bizConsts.CommentTypeComment).Order("time_ desc").Find(&list).Error
	return list, err
}

func (d *commentDaoImpl) ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.Comment, error) {
	var list []*model.Comment
	err := d.conn(ctx).Where("proc_inst_id = ? AND type_ = ?", processInstanceID, bizConsts.CommentTypeComment).Order("time_ desc").Find(&list).Error
	return list, err
}

func (d *commentDaoImpl) Delete(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.Comment{}).Error
}
