package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/consts"
	"github.com/grand-thief-cash/procflow/infra/application/core"
)

// Component manages one *gorm.DB per data source.
type Component struct {
	*core.BaseComponent
	Logger core.Component `infra:"dep:logging?"`

	cfg *Config
	log logger.Interface

	mu  sync.RWMutex
	dbs map[string]*gorm.DB
}

func NewComponent(cfg *Config) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_DATABASE),
		cfg:           cfg,
		dbs:           make(map[string]*gorm.DB),
		log:           newGormLogger(cfg),
	}
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if c.cfg == nil || !c.cfg.Enabled {
		return fmt.Errorf("database component disabled or nil config")
	}
	for name, ds := range c.cfg.DataSources {
		gdb, err := c.open(ctx, name, ds)
		if err != nil {
			c.closeAll(ctx)
			return err
		}
		c.mu.Lock()
		c.dbs[name] = gdb
		c.mu.Unlock()
		logging.Infof(ctx, "[database] datasource %s (%s) initialized", name, ds.Driver)
	}
	return nil
}

func (c *Component) open(ctx context.Context, name string, ds *DataSourceConfig) (*gorm.DB, error) {
	dial, err := dialector(ds)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", name, err)
	}
	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger:                                   c.log,
		SkipDefaultTransaction:                   ds.SkipDefaultTransaction,
		PrepareStmt:                              ds.PrepareStmt,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm db %s failed: %w", name, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB for %s failed: %w", name, err)
	}

	maxOpen := ds.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
		if ds.Driver == DriverSQLite {
			// a shared in-memory database must stay on one connection
			maxOpen = 1
		}
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	if ds.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(ds.MaxIdleConns)
	} else {
		sqlDB.SetMaxIdleConns(min(10, maxOpen))
	}
	if ds.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(ds.ConnMaxLife)
	} else if ds.Driver != DriverSQLite {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	if ds.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(ds.ConnMaxIdle)
	}

	if ds.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := sqlDB.PingContext(pingCtx)
		cancel()
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping db %s failed: %w", name, err)
		}
	}
	if ds.AutoMigrate {
		if err := gdb.WithContext(ctx).AutoMigrate(registeredModels()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate %s failed: %w", name, err)
		}
	}
	if ds.MigrateEnabled && ds.MigrateDir != "" {
		if err := runSQLDir(ctx, gdb, ds.MigrateDir); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate %s failed: %w", name, err)
		}
	}
	return gdb, nil
}

// runSQLDir executes every *.sql file of dir in lexical order. Not recursive.
func runSQLDir(ctx context.Context, gdb *gorm.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		body, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(body), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if err := gdb.WithContext(ctx).Exec(stmt).Error; err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
		}
		logging.Infof(ctx, "[database] applied migration %s", f)
	}
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	defer func() { _ = c.BaseComponent.Stop(ctx) }()
	c.closeAll(ctx)
	return nil
}

func (c *Component) closeAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, gdb := range c.dbs {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		delete(c.dbs, name)
		logging.Infof(ctx, "[database] datasource %s closed", name)
	}
}

func (c *Component) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, gdb := range c.dbs {
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("datasource %s get sql.DB failed: %w", name, err)
		}
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("datasource %s ping failed: %w", name, err)
		}
	}
	return nil
}

func (c *Component) GetDB(name string) (*gorm.DB, error) {
	if name == "" {
		name = DefaultDataSource
	}
	c.mu.RLock()
	db, ok := c.dbs[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database datasource %s not found", name)
	}
	return db, nil
}

// Driver reports the configured driver of a data source.
func (c *Component) Driver(name string) string {
	if name == "" {
		name = DefaultDataSource
	}
	if ds, ok := c.cfg.DataSources[name]; ok && ds != nil {
		return ds.Driver
	}
	return ""
}
