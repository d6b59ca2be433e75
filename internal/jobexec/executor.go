// Package jobexec runs due jobs in the background: a poll loop acquires them through the
// engine and a worker pool executes them.
package jobexec

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	rediscomp "github.com/grand-thief-cash/procflow/infra/application/components/redis"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	"github.com/grand-thief-cash/procflow/internal/config"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/metrics"
	"github.com/grand-thief-cash/procflow/internal/model"
)

// JobRunner is the part of the engine the executor drives.
type JobRunner interface {
	AcquireJobs(ctx context.Context, owner string, max int) ([]*model.Job, error)
	ExecuteJob(ctx context.Context, id string) error
}

const meterName = "procflow/jobexec"

type Executor struct {
	*core.BaseComponent
	Engine JobRunner                 `infra:"dep:process_engine"`
	Redis  *rediscomp.RedisComponent `infra:"dep:redis?"`
	// start-order edge: the global meter provider must be installed before Start
	Telemetry core.Component `infra:"dep:telemetry?"`

	cfg      config.JobExecutorConfig
	clock    clock.Clock
	owner    string
	lease    *Lease
	duration metric.Float64Histogram

	mu     sync.Mutex
	ch     chan *model.Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExecutor(cfg config.JobExecutorConfig) *Executor {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.WorkerPoolSize * 16
	}
	if cfg.MaxJobsPerAcquisition <= 0 {
		cfg.MaxJobsPerAcquisition = 3
	}
	host, _ := os.Hostname()
	return &Executor{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_JOB_EXECUTOR),
		cfg:           cfg,
		clock:         clock.New(),
		owner:         fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
	}
}

// WithClock replaces the ticker source; tests pass clock.NewMock().
func (x *Executor) WithClock(c clock.Clock) *Executor {
	x.clock = c
	return x
}

// Owner is the lock owner written on acquired jobs.
func (x *Executor) Owner() string { return x.owner }

func (x *Executor) Start(ctx context.Context) error {
	if x.IsActive() {
		return nil
	}
	if err := x.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if x.Engine == nil {
		return fmt.Errorf("%s: no job runner", x.Name())
	}
	if x.lease == nil && x.Redis != nil && x.Redis.Client() != nil {
		x.lease = NewLease(x.Redis.Client(), x.cfg.LeaseKey, x.owner, x.cfg.PollInterval)
	}
	duration, err := otel.Meter(meterName).Float64Histogram("procflow.job.duration",
		metric.WithDescription("Wall time of one job execution"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create job duration histogram: %w", err)
	}
	x.duration = duration

	// the ctx handed to Start is cancelled once startup returns
	loopCtx, cancel := context.WithCancel(context.Background())
	x.mu.Lock()
	x.cancel = cancel
	x.ch = make(chan *model.Job, x.cfg.QueueSize)
	x.mu.Unlock()

	for i := 0; i < x.cfg.WorkerPoolSize; i++ {
		x.wg.Add(1)
		go x.worker(loopCtx, x.ch)
	}
	ticker := x.clock.Ticker(x.cfg.PollInterval)
	x.wg.Add(1)
	go x.loop(loopCtx, ticker, x.ch)

	logging.Info(ctx, "job executor started",
		zap.String("owner", x.owner),
		zap.Int("workers", x.cfg.WorkerPoolSize),
		zap.Duration("poll_interval", x.cfg.PollInterval))
	return nil
}

// Stop cancels the poll loop, lets running jobs finish and waits for the workers.
func (x *Executor) Stop(ctx context.Context) error {
	if !x.IsActive() {
		return nil
	}
	x.mu.Lock()
	cancel := x.cancel
	x.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	x.wg.Wait()
	if err := x.lease.Release(ctx); err != nil {
		logging.Warn(ctx, "release acquisition lease failed", zap.Error(err))
	}
	logging.Info(ctx, "job executor stopped")
	return x.BaseComponent.Stop(ctx)
}

// loop is the only sender on ch and closes it on exit.
func (x *Executor) loop(ctx context.Context, ticker *clock.Ticker, ch chan<- *model.Job) {
	defer x.wg.Done()
	defer close(ch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := x.poll(ctx, ch); err != nil && ctx.Err() == nil {
				logging.Warn(ctx, "job acquisition failed", zap.Error(err))
			}
		}
	}
}

func (x *Executor) poll(ctx context.Context, ch chan<- *model.Job) error {
	ok, err := x.lease.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquisition lease: %w", err)
	}
	if !ok {
		return nil
	}
	max := min(x.cfg.MaxJobsPerAcquisition, cap(ch)-len(ch))
	if max <= 0 {
		return nil
	}
	jobs, err := x.Engine.AcquireJobs(ctx, x.owner, max)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		select {
		case ch <- j:
		case <-ctx.Done():
			return nil
		}
	}
	if len(jobs) > 0 {
		logging.Debug(ctx, "jobs acquired", zap.Int("count", len(jobs)))
	}
	return nil
}

func (x *Executor) worker(ctx context.Context, ch <-chan *model.Job) {
	defer x.wg.Done()
	for job := range ch {
		if ctx.Err() != nil {
			// stays locked until its lock expires, then any node picks it up again
			continue
		}
		// a running job finishes its transaction even when Stop is called meanwhile
		jobCtx := context.WithoutCancel(ctx)
		began := time.Now()
		err := x.execute(jobCtx, job.ID)
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			logging.Warn(ctx, "job execution failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		x.duration.Record(jobCtx, time.Since(began).Seconds(), metric.WithAttributes(
			attribute.String("job.type", job.Type),
			attribute.String("outcome", outcome),
		))
	}
}

// execute keeps a panic escaping the runner from taking the worker down with it. The job
// stays locked and is picked up again once its lock expires.
func (x *Executor) execute(ctx context.Context, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", id, r)
		}
	}()
	return x.Engine.ExecuteJob(ctx, id)
}
