package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
)

type GormTransactor struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewTransactor(dsName string) *GormTransactor {
	return &GormTransactor{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_TX),
		session:       session{dsName: dsName},
	}
}

func (t *GormTransactor) Start(ctx context.Context) error {
	if err := t.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return t.open(t.DB)
}

func (t *GormTransactor) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
