package config

import (
	"fmt"

	"github.com/grand-thief-cash/procflow/infra/application/consts"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateAppConfig(config *AppConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Telemetry != nil && config.Telemetry.Enabled && config.Telemetry.ServiceName == "" {
		return fmt.Errorf("app_info.app_name is required when telemetry is enabled")
	}
	if config.Database != nil && config.Database.Enabled {
		for name, ds := range config.Database.DataSources {
			if ds == nil {
				return fmt.Errorf("database.data_sources.%s is empty", name)
			}
			switch ds.Driver {
			case "", "mysql", "postgres", "sqlite":
			default:
				return fmt.Errorf("database.data_sources.%s.driver %q must be mysql, postgres or sqlite", name, ds.Driver)
			}
		}
	}
	return nil
}

func (v *Validator) validateConfigFilePath(env string, path string) error {
	if path == "" {
		return fmt.Errorf("config file path cannot be empty")
	}
	if !fileExists(path) {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	return v.validateEnv(env)
}

func (v *Validator) validateEnv(env string) error {
	switch env {
	case "", consts.ENV_DEVELOPMENT, consts.ENV_TEST, consts.ENV_PRODUCTION:
		return nil
	}
	return fmt.Errorf("running environment is not valid: %s", env)
}
