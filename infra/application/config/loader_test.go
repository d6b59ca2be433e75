package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bizSample struct {
	EngineName   string        `yaml:"engine_name"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"`
	Keep         string        `yaml:"keep"`
}

const sampleYAML = `
app_info:
  app_name: procflow
http_server:
  enabled: true
  address: ":9000"
  read_timeout: 3s
telemetry:
  enabled: true
database:
  enabled: true
  data_sources:
    default:
      driver: sqlite
biz_config:
  engine_name: test-engine
  poll_interval: 250ms
  workers: "4"
`

func TestLoaderDecodesBizConfigWithDefaults(t *testing.T) {
	biz := &bizSample{Keep: "default"}
	l := NewLoader("", "x.yaml")
	l.SetBizConfig(biz)

	cfg, err := l.Parse([]byte(sampleYAML), ".yaml")
	require.NoError(t, err)

	assert.Same(t, biz, cfg.BizConfig)
	assert.Equal(t, "test-engine", biz.EngineName)
	assert.Equal(t, 250*time.Millisecond, biz.PollInterval)
	assert.Equal(t, 4, biz.Workers)
	assert.Equal(t, "default", biz.Keep)

	assert.Equal(t, 3*time.Second, cfg.HTTPServer.ReadTimeout)
	assert.Equal(t, "procflow", cfg.HTTPServer.ServiceName)
	assert.Equal(t, "procflow", cfg.Telemetry.ServiceName)
	assert.Equal(t, "development", cfg.APPInfo.ENV)
}

func TestValidatorRejectsUnknownDriver(t *testing.T) {
	l := NewLoader("test", "x.yaml")
	cfg, err := l.Parse([]byte(`
database:
  enabled: true
  data_sources:
    default:
      driver: oracle
`), ".yaml")
	require.NoError(t, err)
	assert.Error(t, NewValidator().ValidateAppConfig(cfg))
}

func TestParseRejectsUnknownExtension(t *testing.T) {
	_, err := NewLoader("", "").Parse([]byte("{}"), ".toml")
	assert.Error(t, err)
}
