package telemetry

import (
	"fmt"

	"github.com/grand-thief-cash/procflow/infra/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg interface{}) (core.Component, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for telemetry component (*Config required)")
	}
	if c == nil || !c.Enabled {
		return nil, fmt.Errorf("telemetry component disabled")
	}
	c.applyDefaults()
	if c.ServiceName == "" {
		return nil, fmt.Errorf("telemetry service_name must be set (app_info.app_name)")
	}
	if c.Exporter == ExporterOTLP && (c.OTLP == nil || c.OTLP.Endpoint == "") {
		return nil, fmt.Errorf("otlp exporter selected but otlp.endpoint empty")
	}
	return NewTelemetryComponent(c), nil
}
