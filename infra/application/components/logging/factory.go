package logging

import (
	"fmt"
	"strings"

	"github.com/grand-thief-cash/procflow/infra/application/core"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(cfg interface{}) (core.Component, error) {
	loggingConfig, ok := cfg.(*LoggingConfig)
	if !ok {
		return nil, fmt.Errorf("invalid config type for logging component, expected *LoggingConfig")
	}
	if !loggingConfig.Enabled {
		return nil, fmt.Errorf("logging component is disabled")
	}
	f.setDefaults(loggingConfig)
	if err := f.validate(loggingConfig); err != nil {
		return nil, err
	}
	return NewLoggerComponent(loggingConfig), nil
}

func (f *Factory) setDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if strings.EqualFold(cfg.Output, "file") && cfg.FileConfig == nil {
		cfg.FileConfig = &FileConfig{Dir: "./logs", Filename: "procflow"}
	}
	if rc := cfg.RotateConfig; rc != nil && rc.Enabled && rc.MaxSizeMB == 0 {
		rc.MaxSizeMB = 100
	}
}

func (f *Factory) validate(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Format)
	}
	if rc := cfg.RotateConfig; rc != nil && rc.Enabled {
		if rc.MaxSizeMB < 0 || rc.MaxBackups < 0 || rc.MaxAge < 0 {
			return fmt.Errorf("logging.rotate_config values must be >= 0")
		}
	}
	return nil
}
