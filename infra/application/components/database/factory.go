package database

import (
	"fmt"
	"strings"

	"github.com/grand-thief-cash/procflow/infra/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg interface{}) (core.Component, error) {
	dbCfg, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for database component (need *database.Config)")
	}
	if dbCfg == nil || !dbCfg.Enabled {
		return nil, fmt.Errorf("database component disabled")
	}
	if len(dbCfg.DataSources) == 0 {
		return nil, fmt.Errorf("database component has no data_sources")
	}
	for name, ds := range dbCfg.DataSources {
		if ds == nil {
			return nil, fmt.Errorf("datasource %s config is nil", name)
		}
		ds.Driver = strings.ToLower(strings.TrimSpace(ds.Driver))
		if ds.Driver == "" {
			ds.Driver = DriverMySQL
		}
		switch ds.Driver {
		case DriverMySQL, DriverPostgres, DriverSQLite:
		default:
			return nil, fmt.Errorf("datasource %s: unsupported driver %q", name, ds.Driver)
		}
	}
	return NewComponent(dbCfg), nil
}
