// Package engine is the process engine: repository, runtime, task, history, management and
// identity services over the DAO layer, plus the agenda that moves executions through a
// parsed BPMN process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/grand-thief-cash/procflow/infra/application/components/blobstore"
	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/components/telemetry"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/bpmn"
	"github.com/grand-thief-cash/procflow/internal/config"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/metrics"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/script"
)

const tracerName = "procflow/engine"

type Engine struct {
	*core.BaseComponent
	Blobs     *blobstore.Component          `infra:"dep:blob_store?"`
	Metrics   *metrics.EngineMetrics        `infra:"dep:engine_metrics?"`
	Telemetry *telemetry.TelemetryComponent `infra:"dep:telemetry?"`

	cfg       config.EngineConfig
	jobCfg    config.JobExecutorConfig
	daos      *dao.Set
	clock     clock.Clock
	scripts   *script.Runtime
	models    *ttlcache.Cache[string, *bpmn.Process]
	delegates *Delegates
}

func NewEngine(cfg *config.BizConfig, daos *dao.Set) *Engine {
	return &Engine{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_ENGINE),
		cfg:           cfg.Engine,
		jobCfg:        cfg.JobExecutor,
		daos:          daos,
		clock:         clock.New(),
		scripts:       script.NewRuntime(),
		models: ttlcache.New[string, *bpmn.Process](
			ttlcache.WithCapacity[string, *bpmn.Process](uint64(cfg.Engine.DefinitionCacheSize)),
			ttlcache.WithTTL[string, *bpmn.Process](cfg.Engine.DefinitionCacheTTL),
		),
		delegates: NewDelegates(),
	}
}

// WithClock replaces the time source; tests pass clock.NewMock().
func (e *Engine) WithClock(c clock.Clock) *Engine {
	e.clock = c
	return e
}

func (e *Engine) Delegates() *Delegates { return e.delegates }

func (e *Engine) Config() config.EngineConfig { return e.cfg }

func (e *Engine) Start(ctx context.Context) error {
	if err := e.BaseComponent.Start(ctx); err != nil {
		return err
	}
	logging.Infof(ctx, "process engine '%s' started, history level %s", e.cfg.Name, e.cfg.HistoryLevel)
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.models.DeleteAll()
	return e.BaseComponent.Stop(ctx)
}

func (e *Engine) now() time.Time { return e.clock.Now().UTC() }

func (e *Engine) history(l bizConsts.HistoryLevel) bool { return e.cfg.HistoryLevel.AtLeast(l) }

type commitKey struct{}

// committed collects what a command may only report once its transaction commits.
type committed struct{ fns []func() }

// tx runs fn as one command. Work registered with onCommit runs after the outermost
// transaction commits and is dropped when it rolls back.
func (e *Engine) tx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(commitKey{}).(*committed); nested {
		return e.daos.Tx.Run(ctx, fn)
	}
	c := &committed{}
	if err := e.daos.Tx.Run(context.WithValue(ctx, commitKey{}, c), fn); err != nil {
		return err
	}
	for _, f := range c.fns {
		f()
	}
	return nil
}

// onCommit defers f to the commit of the command running on ctx, or runs it at once
// outside of one.
func onCommit(ctx context.Context, f func()) {
	if c, ok := ctx.Value(commitKey{}).(*committed); ok {
		c.fns = append(c.fns, f)
		return
	}
	f()
}

func (e *Engine) tracer() trace.Tracer {
	if e.Telemetry != nil {
		return e.Telemetry.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

func (e *Engine) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// flowScope pairs a definition row with its parsed process.
type flowScope struct {
	def  *model.ProcessDefinition
	proc *bpmn.Process
}

func (s *flowScope) element(id string) (*bpmn.Element, error) {
	el, ok := s.proc.Element(id)
	if !ok {
		return nil, fmt.Errorf("element '%s' not found in process definition %s", id, s.def.ID)
	}
	return el, nil
}

func (e *Engine) scopeOf(ctx context.Context, definitionID string) (*flowScope, error) {
	def, err := e.daos.Repository.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, notFound(err, "Could not find a process definition with id '%s'.", definitionID)
	}
	proc, err := e.processModel(ctx, def)
	if err != nil {
		return nil, err
	}
	return &flowScope{def: def, proc: proc}, nil
}

// processModel returns the parsed process of a definition, parsing its resource on a cache miss.
func (e *Engine) processModel(ctx context.Context, def *model.ProcessDefinition) (*bpmn.Process, error) {
	if item := e.models.Get(def.ID); item != nil {
		return item.Value(), nil
	}
	res, err := e.daos.Repository.GetResource(ctx, def.DeploymentID, def.ResourceName)
	if err != nil {
		return nil, notFound(err, "Could not find resource '%s' of deployment '%s'.", def.ResourceName, def.DeploymentID)
	}
	data, err := e.resourceBytes(ctx, res)
	if err != nil {
		return nil, err
	}
	defs, err := bpmn.Parse(data)
	if err != nil {
		return nil, err
	}
	for _, p := range defs.Processes {
		if p.ID == def.Key {
			e.models.Set(def.ID, p, ttlcache.DefaultTTL)
			return p, nil
		}
	}
	return nil, fmt.Errorf("process '%s' not found in resource '%s'", def.Key, def.ResourceName)
}

func newID() string { return uuid.NewString() }

// notFound turns a missing row into a NotFound error with the given message.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func isMissing(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
