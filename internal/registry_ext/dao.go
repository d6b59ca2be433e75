package registry_ext

import (
	"github.com/grand-thief-cash/procflow/infra/application/config"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/infra/application/registry"
	bizConfig "github.com/grand-thief-cash/procflow/internal/config"
	"github.com/grand-thief-cash/procflow/internal/dao"
)

func init() {
	engineCfg := bizConfig.GetBizConfig()

	// DataSource is read at build time, after biz_config has been decoded into engineCfg.
	daos := []func(dsName string) core.Component{
		func(ds string) core.Component { return dao.NewRepositoryDao(ds) },
		func(ds string) core.Component { return dao.NewExecutionDao(ds) },
		func(ds string) core.Component { return dao.NewTaskDao(ds) },
		func(ds string) core.Component { return dao.NewIdentityLinkDao(ds) },
		func(ds string) core.Component { return dao.NewVariableDao(ds) },
		func(ds string) core.Component { return dao.NewJobDao(ds) },
		func(ds string) core.Component { return dao.NewHistoryDao(ds) },
		func(ds string) core.Component { return dao.NewCommentDao(ds) },
		func(ds string) core.Component { return dao.NewIdentityDao(ds) },
		func(ds string) core.Component { return dao.NewTransactor(ds) },
	}
	for _, newDao := range daos {
		registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
			return true, newDao(engineCfg.Engine.DataSource), nil
		})
	}
}
