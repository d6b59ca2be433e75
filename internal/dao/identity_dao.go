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

// IdentityDao stores users, groups and memberships.
type IdentityDao interface {
	core.Component
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context, q *model.UserQuery) (int64, error)
	ListUsers(ctx context.Context, q *model.UserQuery, page query.Page) ([]*model.User, error)

	CreateGroup(ctx context.Context, g *model.Group) error
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	UpdateGroup(ctx context.Context, g *model.Group) error
	DeleteGroup(ctx context.Context, id string) error
	CountGroups(ctx context.Context, q *model.GroupQuery) (int64, error)
	ListGroups(ctx context.Context, q *model.GroupQuery, page query.Page) ([]*model.Group, error)

	CreateMembership(ctx context.Context, m *model.Membership) error
	GetMembership(ctx context.Context, userID, groupID string) (*model.Membership, error)
	DeleteMembership(ctx context.Context, userID, groupID string) error
	GroupIDsOfUser(ctx context.Context, userID string) ([]string, error)
}

type identityDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewIdentityDao(dsName string) IdentityDao {
	return &identityDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_IDENTITY),
		session:       session{dsName: dsName},
	}
}

func (d *identityDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *identityDaoImpl) CreateUser(ctx context.Context, u *model.User) error {
	if u.Revision == 0 {
		u.Revision = 1
	}
	return d.conn(ctx).Create(u).Error
}

func (d *identityDaoImpl) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := d.conn(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *identityDaoImpl) UpdateUser(ctx context.Context, u *model.User) error {
	u.Revision++
	return d.conn(ctx).Save(u).Error
}

func (d *identityDaoImpl) DeleteUser(ctx context.Context, id string) error {
	db := d.conn(ctx)
	if err := db.Where("user_id = ?", id).Delete(&model.Membership{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.User{}).Error
}

func (d *identityDaoImpl) userScope(ctx context.Context, q *model.UserQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.User{})
	db = eq(db, "id", q.ID)
	db = eq(db, "first_", q.FirstName)
	db = eq(db, "last_", q.LastName)
	db = eq(db, "email", q.Email)
	db = like(db, "first_", q.FirstNameLike)
	db = like(db, "last_", q.LastNameLike)
	db = like(db, "email", q.EmailLike)
	if q.MemberOfGroup != "" {
		db = db.Where("id IN (SELECT m.user_id FROM act_id_membership m WHERE m.group_id = ?)", q.MemberOfGroup)
	}
	return db
}

func (d *identityDaoImpl) CountUsers(ctx context.Context, q *model.UserQuery) (int64, error) {
	var n int64
	err := d.userScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *identityDaoImpl) ListUsers(ctx context.Context, q *model.UserQuery, page query.Page) ([]*model.User, error) {
	var list []*model.User
	err := paginate(d.userScope(ctx, q), page).Find(&list).Error
	return list, err
}

func (d *identityDaoImpl) CreateGroup(ctx context.Context, g *model.Group) error {
	if g.Revision == 0 {
		g.Revision = 1
	}
	return d.conn(ctx).Create(g).Error
}

func (d *identityDaoImpl) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	if err := d.conn(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (d *identityDaoImpl) UpdateGroup(ctx context.Context, g *model.Group) error {
	g.Revision++
	return d.conn(ctx).Save(g).Error
}

func (d *identityDaoImpl) DeleteGroup(ctx context.Context, id string) error {
	db := d.conn(ctx)
	if err := db.Where("group_id = ?", id).Delete(&model.Membership{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Group{}).Error
}

func (d *identityDaoImpl) groupScope(ctx context.Context, q *model.GroupQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.Group{})
	db = eq(db, "id", q.ID)
	db = eq(db, "name_", q.Name)
	db = like(db, "name_", q.NameLike)
	db = eq(db, "type_", q.Type)
	if q.Member != "" {
		db = db.Where("id IN (SELECT m.group_id FROM act_id_membership m WHERE m.user_id = ?)", q.Member)
	}
	return db
}

func (d *identityDaoImpl) CountGroups(ctx context.Context, q *model.GroupQuery) (int64, error) {
	var n int64
	err := d.groupScope(ctx, q).Count(&n).Error
	return n, err
}

func (d *identityDaoImpl) ListGroups(ctx context.Context, q *model.GroupQuery, page query.Page) ([]*model.Group, error) {
	var list []*model.Group
	err := paginate(d.groupScope(ctx, q), page).Find(&list).Error
	return list, err
}

func (d *identityDaoImpl) CreateMembership(ctx context.Context, m *model.Membership) error {
	return d.conn(ctx).Create(m).Error
}

func (d *identityDaoImpl) GetMembership(ctx context.Context, userID, groupID string) (*model.Membership, error) {
	var m model.Membership
	if err := d.conn(ctx).Where("user_id = ? AND group_id = ?", userID, groupID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *identityDaoImpl) DeleteMembership(ctx context.Context, userID, groupID string) error {
	return d.conn(ctx).Where("user_id = ? AND group_id = ?", userID, groupID).Delete(&model.Membership{}).Error
}

func (d *identityDaoImpl) GroupIDsOfUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := d.conn(ctx).Model(&model.Membership{}).Where("user_id = ?", userID).Pluck("group_id", &ids).Error
	return ids, err
}
