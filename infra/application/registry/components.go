package registry

import (
	"github.com/grand-thief-cash/procflow/infra/application/components/blobstore"
	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/components/http_server"
	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/components/prometheus"
	"github.com/grand-thief-cash/procflow/infra/application/components/redis"
	"github.com/grand-thief-cash/procflow/infra/application/components/telemetry"
	"github.com/grand-thief-cash/procflow/infra/application/config"
	"github.com/grand-thief-cash/procflow/infra/application/consts"
	"github.com/grand-thief-cash/procflow/infra/application/core"
)

// factory is the shape shared by every built-in component factory.
type factory interface {
	Create(cfg interface{}) (core.Component, error)
}

func build(enabled bool, f factory, cfg interface{}) (bool, core.Component, error) {
	if !enabled {
		return false, nil, nil
	}
	comp, err := f.Create(cfg)
	if err != nil {
		return true, nil, err
	}
	return true, comp, nil
}

func init() {
	Register(consts.COMPONENT_LOGGING, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.Logging != nil && cfg.Logging.Enabled, logging.NewFactory(), cfg.Logging)
	})
	Register(consts.COMPONENT_TELEMETRY, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.Telemetry != nil && cfg.Telemetry.Enabled, telemetry.NewFactory(), cfg.Telemetry)
	})
	Register(consts.COMPONENT_DATABASE, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.Database != nil && cfg.Database.Enabled, database.NewFactory(), cfg.Database)
	})
	Register(consts.COMPONENT_REDIS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.Redis != nil && cfg.Redis.Enabled, redis.NewFactory(), cfg.Redis)
	})
	Register(consts.COMPONENT_PROMETHEUS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.Prometheus != nil && cfg.Prometheus.Enabled, prometheus.NewFactory(), cfg.Prometheus)
	})
	Register(consts.COMPONENT_BLOB_STORE, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.BlobStore != nil && cfg.BlobStore.Enabled, blobstore.NewFactory(), cfg.BlobStore)
	})
	Register(consts.COMPONENT_HTTP_SERVER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return build(cfg.HTTPServer != nil && cfg.HTTPServer.Enabled, http_server.NewFactory(c), cfg.HTTPServer)
	})
}
