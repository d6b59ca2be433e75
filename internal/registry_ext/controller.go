package registry_ext

import (
	"github.com/grand-thief-cash/procflow/infra/application/config"
	appconsts "github.com/grand-thief-cash/procflow/infra/application/consts"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/infra/application/registry"
	"github.com/grand-thief-cash/procflow/internal/api"
	"github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/engine"
)

func init() {
	controllers := map[string]func(*engine.Engine) core.Component{
		consts.COMP_CTRL_REPOSITORY: func(e *engine.Engine) core.Component {
			ctrl := api.NewRepositoryController()
			ctrl.Engine = e
			return ctrl
		},
		consts.COMP_CTRL_RUNTIME: func(e *engine.Engine) core.Component {
			ctrl := api.NewRuntimeController()
			ctrl.Engine = e
			return ctrl
		},
		consts.COMP_CTRL_TASK: func(e *engine.Engine) core.Component {
			ctrl := api.NewTaskController()
			ctrl.Engine = e
			return ctrl
		},
		consts.COMP_CTRL_HISTORY: func(e *engine.Engine) core.Component {
			ctrl := api.NewHistoryController()
			ctrl.Engine = e
			return ctrl
		},
		consts.COMP_CTRL_MANAGEMENT: func(e *engine.Engine) core.Component {
			ctrl := api.NewManagementController()
			ctrl.Engine = e
			return ctrl
		},
		consts.COMP_CTRL_IDENTITY: func(e *engine.Engine) core.Component {
			ctrl := api.NewIdentityController()
			ctrl.Engine = e
			return ctrl
		},
	}

	for name, newCtrl := range controllers {
		// http_server mounts controller routes on Start, so it has to start after them.
		registry.ExtendRuntimeDependencies(appconsts.COMPONENT_HTTP_SERVER, name)
		registry.RegisterWithDeps(name, []string{consts.COMP_SVC_ENGINE}, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
			eng, err := resolveAs[*engine.Engine](c, consts.COMP_SVC_ENGINE)
			if err != nil {
				return true, nil, err
			}
			return true, newCtrl(eng), nil
		})
	}
}
