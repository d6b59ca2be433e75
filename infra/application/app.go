package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/grand-thief-cash/procflow/infra/application/autowire"
	"github.com/grand-thief-cash/procflow/infra/application/config"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/infra/application/hooks"
	"github.com/grand-thief-cash/procflow/infra/application/registry"
)

type App struct {
	container        *core.Container
	lifecycleManager *core.LifecycleManager
	configManager    *config.ConfigManager

	bootOnce sync.Once
	bootErr  error

	shutdownTimeout time.Duration
}

var (
	appMu     sync.RWMutex
	globalApp *App
)

func NewApp(env string, configPath string) *App {
	abs := configPath
	if p, err := filepath.Abs(configPath); err == nil {
		abs = p
	}
	container := core.NewContainer()
	app := &App{
		configManager:    config.NewConfigManager(env, abs),
		container:        container,
		lifecycleManager: core.NewLifecycleManagerWithManager(container, hooks.GetGlobalHookManager()),
		shutdownTimeout:  30 * time.Second,
	}
	appMu.Lock()
	globalApp = app
	appMu.Unlock()
	return app
}

// GetApp returns the most recently created App.
func GetApp() *App {
	appMu.RLock()
	defer appMu.RUnlock()
	return globalApp
}

func (app *App) SetShutdownTimeout(d time.Duration) { app.shutdownTimeout = d }

// SetBizConfig registers the typed pointer that biz_config is decoded into.
func (app *App) SetBizConfig(b any) { app.configManager.SetBizConfig(b) }

// Boot loads config, builds components and wires tagged dependencies. It runs once.
func (app *App) Boot() error {
	app.bootOnce.Do(func() {
		if err := app.configManager.LoadConfig(); err != nil {
			app.bootErr = fmt.Errorf("load config failed: %w", err)
			return
		}
		if err := registry.BuildAndRegisterAll(app.configManager.GetConfig(), app.container); err != nil {
			app.bootErr = fmt.Errorf("register components failed: %w", err)
			return
		}
		if err := autowire.InjectAll(app.container); err != nil {
			app.bootErr = fmt.Errorf("autowire failed: %w", err)
		}
	})
	return app.bootErr
}

func (app *App) Container() *core.Container { return app.container }

func (app *App) GetComponent(name string) (core.Component, error) {
	return app.container.Resolve(name)
}

func (app *App) GetConfig() *config.AppConfig {
	return app.configManager.GetConfig()
}

func (app *App) AddHook(name string, phase hooks.Phase, fn hooks.HookFunc, priority int) error {
	return app.lifecycleManager.AddHook(name, phase, fn, priority)
}

// Run blocks until SIGINT or SIGTERM.
func (app *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunWithContext(ctx)
}

// RunWithContext starts all components, waits for ctx and shuts down gracefully.
func (app *App) RunWithContext(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()
	app.Shutdown(shutdownCtx)
	return nil
}

func (app *App) Start(ctx context.Context) error {
	if err := app.Boot(); err != nil {
		return err
	}
	return app.lifecycleManager.StartAll(ctx)
}

func (app *App) Shutdown(ctx context.Context) {
	app.lifecycleManager.StopAll(ctx)
}
