package registry_ext

import (
	"fmt"

	"github.com/grand-thief-cash/procflow/infra/application/config"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/infra/application/registry"
	bizConfig "github.com/grand-thief-cash/procflow/internal/config"
	"github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/jobexec"
	"github.com/grand-thief-cash/procflow/internal/metrics"
)

var daoNames = []string{
	consts.COMP_DAO_REPOSITORY, consts.COMP_DAO_EXECUTION, consts.COMP_DAO_TASK,
	consts.COMP_DAO_IDENTITY_LINK, consts.COMP_DAO_VARIABLE, consts.COMP_DAO_JOB,
	consts.COMP_DAO_HISTORY, consts.COMP_DAO_COMMENT, consts.COMP_DAO_IDENTITY, consts.COMP_DAO_TX,
}

// resolveAs resolves a component and asserts it to T.
func resolveAs[T any](c *core.Container, name string) (T, error) {
	var zero T
	comp, err := c.Resolve(name)
	if err != nil {
		return zero, fmt.Errorf("resolve %s failed: %w", name, err)
	}
	t, ok := comp.(T)
	if !ok {
		return zero, fmt.Errorf("%s type assertion failed", name)
	}
	return t, nil
}

func resolveDaos(c *core.Container) (*dao.Set, error) {
	var (
		set dao.Set
		err error
	)
	if set.Repository, err = resolveAs[dao.RepositoryDao](c, consts.COMP_DAO_REPOSITORY); err != nil {
		return nil, err
	}
	if set.Execution, err = resolveAs[dao.ExecutionDao](c, consts.COMP_DAO_EXECUTION); err != nil {
		return nil, err
	}
	if set.Task, err = resolveAs[dao.TaskDao](c, consts.COMP_DAO_TASK); err != nil {
		return nil, err
	}
	if set.IdentityLink, err = resolveAs[dao.IdentityLinkDao](c, consts.COMP_DAO_IDENTITY_LINK); err != nil {
		return nil, err
	}
	if set.Variable, err = resolveAs[dao.VariableDao](c, consts.COMP_DAO_VARIABLE); err != nil {
		return nil, err
	}
	if set.Job, err = resolveAs[dao.JobDao](c, consts.COMP_DAO_JOB); err != nil {
		return nil, err
	}
	if set.History, err = resolveAs[dao.HistoryDao](c, consts.COMP_DAO_HISTORY); err != nil {
		return nil, err
	}
	if set.Comment, err = resolveAs[dao.CommentDao](c, consts.COMP_DAO_COMMENT); err != nil {
		return nil, err
	}
	if set.Identity, err = resolveAs[dao.IdentityDao](c, consts.COMP_DAO_IDENTITY); err != nil {
		return nil, err
	}
	if set.Tx, err = resolveAs[dao.Transactor](c, consts.COMP_DAO_TX); err != nil {
		return nil, err
	}
	return &set, nil
}

func init() {
	engineCfg := bizConfig.GetBizConfig()

	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, metrics.NewEngineMetrics(), nil
	})

	// the engine talks to the DAOs directly; it also starts after them
	registry.RegisterWithDeps(consts.COMP_SVC_ENGINE, daoNames, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		daos, err := resolveDaos(c)
		if err != nil {
			return true, nil, err
		}
		// biz_config is decoded by now; fill what the file left out.
		engineCfg.Normalize()
		return true, engine.NewEngine(engineCfg, daos), nil
	})

	registry.RegisterWithDeps(consts.COMP_SVC_JOB_EXECUTOR, []string{consts.COMP_SVC_ENGINE}, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !engineCfg.JobExecutor.Enabled {
			return false, nil, nil
		}
		eng, err := resolveAs[*engine.Engine](c, consts.COMP_SVC_ENGINE)
		if err != nil {
			return true, nil, err
		}
		x := jobexec.NewExecutor(engineCfg.JobExecutor)
		x.Engine = eng
		return true, x, nil
	})
}
