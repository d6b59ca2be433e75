package dao

import (
	"context"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
)

type IdentityLinkDao interface {
	core.Component
	Create(ctx context.Context, l *model.IdentityLink) error
	ListByTask(ctx context.Context, taskID string) ([]*model.IdentityLink, error)
	ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.IdentityLink, error)
	// Find matches a link by its owner and identity. Exactly one of userID and groupID is set.
	Find(ctx context.Context, taskID, processInstanceID, userID, groupID, linkType string) (*model.IdentityLink, error)
	Delete(ctx context.Context, id string) error
	DeleteByTask(ctx context.Context, taskID string) error
	DeleteByProcessInstance(ctx context.Context, processInstanceID string) error
}

type identityLinkDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewIdentityLinkDao(dsName string) IdentityLinkDao {
	return &identityLinkDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_IDENTITY_LINK),
		session:       session{dsName: dsName},
	}
}

func (d *identityLinkDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *identityLinkDaoImpl) Create(ctx context.Context, l *model.IdentityLink) error {
	return d.conn(ctx).Create(l).Error
}

func (d *identityLinkDaoImpl) ListByTask(ctx context.Context, taskID string) ([]*model.IdentityLink, error) {
	var list []*model.IdentityLink
	err := d.conn(ctx).Where("task_id = ?", taskID).Order("id asc").Find(&list).Error
	return list, err
}

func (d *identityLinkDaoImpl) ListByProcessInstance(ctx context.Context, processInstanceID string) ([]*model.IdentityLink, error) {
	var list []*model.IdentityLink
	err := d.conn(ctx).Where("process_instance_id = ? AND task_id = ''", processInstanceID).Order("id asc").Find(&list).Error
	return list, err
}

func (d *identityLinkDaoImpl) Find(ctx context.Context, taskID, processInstanceID, userID, groupID, linkType string) (*model.IdentityLink, error) {
	var l model.IdentityLink
	db := d.conn(ctx).Where("task_id = ? AND user_id = ? AND group_id = ? AND type_ = ?", taskID, userID, groupID, linkType)
	if err := eq(db, "process_instance_id", processInstanceID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (d *identityLinkDaoImpl) Delete(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.IdentityLink{}).Error
}

func (d *identityLinkDaoImpl) DeleteByTask(ctx context.Context, taskID string) error {
	return d.conn(ctx).Where("task_id = ?", taskID).Delete(&model.IdentityLink{}).Error
}

func (d *identityLinkDaoImpl) DeleteByProcessInstance(ctx context.Context, processInstanceID string) error {
	return d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Delete(&model.IdentityLink{}).Error
}
