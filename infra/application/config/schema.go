package config

import (
	"github.com/grand-thief-cash/procflow/infra/application/components/blobstore"
	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/components/http_server"
	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/components/prometheus"
	"github.com/grand-thief-cash/procflow/infra/application/components/redis"
	"github.com/grand-thief-cash/procflow/infra/application/components/telemetry"
)

type AppConfig struct {
	APPInfo    *APPInfo                      `yaml:"app_info" json:"app_info"`
	Logging    *logging.LoggingConfig        `yaml:"logging" json:"logging"`
	HTTPServer *http_server.HTTPServerConfig `yaml:"http_server" json:"http_server"`
	Database   *database.Config              `yaml:"database" json:"database"`
	Redis      *redis.Config                 `yaml:"redis" json:"redis"`
	Prometheus *prometheus.Config            `yaml:"prometheus" json:"prometheus"`
	Telemetry  *telemetry.Config             `yaml:"telemetry" json:"telemetry"`
	BlobStore  *blobstore.Config             `yaml:"blob_store" json:"blob_store"`

	// BizConfig holds the raw biz_config tree until a typed pointer is supplied via SetBizConfig.
	BizConfig any `yaml:"biz_config" json:"biz_config"`
}

type APPInfo struct {
	APPName string `yaml:"app_name" json:"app_name"`
	ENV     string `yaml:"env" json:"env"`
}
