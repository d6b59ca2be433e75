package dao

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

// RepositoryDao covers deployments, their resources and the process definitions they hold.
type RepositoryDao interface {
	core.Component
	CreateDeployment(ctx context.Context, d *model.Deployment) error
	GetDeployment(ctx context.Context, id string) (*model.Deployment, error)
	CountDeployments(ctx context.Context, q *model.DeploymentQuery) (int64, error)
	ListDeployments(ctx context.Context, q *model.DeploymentQuery, page query.Page) ([]*model.Deployment, error)
	// DeleteDeployment removes the deployment row, its resources and its definitions.
	DeleteDeployment(ctx context.Context, id string) error

	CreateResource(ctx context.Context, r *model.Resource) error
	ListResources(ctx context.Context, deploymentID string) ([]*model.Resource, error)
	GetResource(ctx context.Context, deploymentID, name string) (*model.Resource, error)

	CreateDefinition(ctx context.Context, p *model.ProcessDefinition) error
	GetDefinition(ctx context.Context, id string) (*model.ProcessDefinition, error)
	LatestDefinition(ctx context.Context, key, tenantID string) (*model.ProcessDefinition, error)
	MaxVersion(ctx context.Context, key, tenantID string) (int, error)
	CountDefinitions(ctx context.Context, q *model.ProcessDefinitionQuery) (int64, error)
	ListDefinitions(ctx context.Context, q *model.ProcessDefinitionQuery, page query.Page) ([]*model.ProcessDefinition, error)
	ListDefinitionsByDeployment(ctx context.Context, deploymentID string) ([]*model.ProcessDefinition, error)
	UpdateDefinitionSuspension(ctx context.Context, id string, state int) error
	UpdateDefinitionCategory(ctx context.Context, id, category string) error
}

type repositoryDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewRepositoryDao(dsName string) RepositoryDao {
	return &repositoryDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_REPOSITORY),
		session:       session{dsName: dsName},
	}
}

func (d *repositoryDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *repositoryDaoImpl) CreateDeployment(ctx context.Context, dep *model.Deployment) error {
	return d.conn(ctx).Create(dep).Error
}

func (d *repositoryDaoImpl) GetDeployment(ctx context.Context, id string) (*model.Deployment, error) {
	var dep model.Deployment
	if err := d.conn(ctx).Where("id = ?", id).First(&dep).Error; err != nil {
		return nil, err
	}
	return &dep, nil
}

func (d *repositoryDaoImpl) deploymentScope(ctx context.Context, q *model.DeploymentQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.Deployment{})
	db = eq(db, "name_", q.Name)
	db = like(db, "name_", q.NameLike)
	db = eq(db, "category", q.Category)
	if q.CategoryNotEquals != "" {
		db = db.Where("category <> ?", q.CategoryNotEquals)
	}
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *repositoryDaoImpl) CountDeployments(ctx context.Context, q *model.DeploymentQuery) (int64, error) {
	var n int64
	err := d.deploymentScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *repositoryDaoImpl) ListDeployments(ctx context.Context, q *model.DeploymentQuery, page query.Page) ([]*model.Deployment, error) {
	var list []*model.Deployment
	err := paginate(d.deploymentScope(ctx, q), page).Find(&list).Error
	return list, err
}

func (d *repositoryDaoImpl) DeleteDeployment(ctx context.Context, id string) error {
	db := d.conn(ctx)
	if err := db.Where("deployment_id = ?", id).Delete(&model.ProcessDefinition{}).Error; err != nil {
		return err
	}
	if err := db.Where("deployment_id = ?", id).Delete(&model.Resource{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Deployment{}).Error
}

func (d *repositoryDaoImpl) CreateResource(ctx context.Context, r *model.Resource) error {
	return d.conn(ctx).Create(r).Error
}

func (d *repositoryDaoImpl) ListResources(ctx context.Context, deploymentID string) ([]*model.Resource, error) {
	var list []*model.Resource
	err := d.conn(ctx).Where("deployment_id = ?", deploymentID).Order("name_ asc").Find(&list).Error
	return list, err
}

func (d *repositoryDaoImpl) GetResource(ctx context.Context, deploymentID, name string) (*model.Resource, error) {
	var r model.Resource
	if err := d.conn(ctx).Where("deployment_id = ? AND name_ = ?", deploymentID, name).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *repositoryDaoImpl) CreateDefinition(ctx context.Context, p *model.ProcessDefinition) error {
	return d.conn(ctx).Create(p).Error
}

func (d *repositoryDaoImpl) GetDefinition(ctx context.Context, id string) (*model.ProcessDefinition, error) {
	var p model.ProcessDefinition
	if err := d.conn(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *repositoryDaoImpl) LatestDefinition(ctx context.Context, key, tenantID string) (*model.ProcessDefinition, error) {
	var p model.ProcessDefinition
	err := d.conn(ctx).Where("key_ = ? AND tenant_id = ?", key, tenantID).Order("version desc").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *repositoryDaoImpl) MaxVersion(ctx context.Context, key, tenantID string) (int, error) {
	var v sql.NullInt64
	err := d.conn(ctx).Model(&model.ProcessDefinition{}).
		Where("key_ = ? AND tenant_id = ?", key, tenantID).
		Select("MAX(version)").Row().Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func (d *repositoryDaoImpl) definitionScope(ctx context.Context, q *model.ProcessDefinitionQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.ProcessDefinition{})
	if q.Version != nil {
		db = db.Where("version = ?", *q.Version)
	}
	db = eq(db, "name_", q.Name)
	db = like(db, "name_", q.NameLike)
	db = eq(db, "key_", q.Key)
	db = like(db, "key_", q.KeyLike)
	db = eq(db, "resource_name", q.ResourceName)
	db = like(db, "resource_name", q.ResourceNameLike)
	db = eq(db, "category", q.Category)
	db = like(db, "category", q.CategoryLike)
	if q.CategoryNotEquals != "" {
		db = db.Where("category <> ?", q.CategoryNotEquals)
	}
	db = eq(db, "deployment_id", q.DeploymentID)
	if q.Latest {
		db = db.Where("version = (SELECT MAX(p2.version) FROM act_re_procdef p2 WHERE p2.key_ = act_re_procdef.key_ AND p2.tenant_id = act_re_procdef.tenant_id)")
	}
	if q.Suspended != nil {
		db = db.Where("suspension_state = ?", suspensionState(*q.Suspended))
	}
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *repositoryDaoImpl) CountDefinitions(ctx context.Context, q *model.ProcessDefinitionQuery) (int64, error) {
	var n int64
	err := d.definitionScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *repositoryDaoImpl) ListDefinitions(ctx context.Context, q *model.ProcessDefinitionQuery, page query.Page) ([]*model.ProcessDefinition, error) {
	var list []*model.ProcessDefinition
	err := paginate(d.definitionScope(ctx, q), page).Find(&list).Error
	return list, err
}

func (d *repositoryDaoImpl) ListDefinitionsByDeployment(ctx context.Context, deploymentID string) ([]*model.ProcessDefinition, error) {
	var list []*model.ProcessDefinition
	err := d.conn(ctx).Where("deployment_id = ?", deploymentID).Order("key_ asc").Find(&list).Error
	return list, err
}

func (d *repositoryDaoImpl) UpdateDefinitionSuspension(ctx context.Context, id string, state int) error {
	return d.conn(ctx).Model(&model.ProcessDefinition{}).Where("id = ?", id).Update("suspension_state", state).Error
}

func (d *repositoryDaoImpl) UpdateDefinitionCategory(ctx context.Context, id, category string) error {
	return d.conn(ctx).Model(&model.ProcessDefinition{}).Where("id = ?", id).Update("category", category).Error
}
