package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/go-errors/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/metrics"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

const maxExceptionMessage = 4000

type EngineInfo struct {
	Name        string
	Version     string
	ResourceURL string
	Exception   string
}

func (e *Engine) EngineInfo() EngineInfo {
	return EngineInfo{
		Name:        e.cfg.Name,
		Version:     bizConsts.ENGINE_VERSION,
		ResourceURL: "datasource:" + e.cfg.DataSource,
	}
}

func (e *Engine) Jobs(ctx context.Context, q *model.JobQuery, page query.Page) ([]*model.Job, int64, error) {
	q.Now = e.now()
	total, err := e.daos.Job.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Job.List(ctx, q, page)
	return list, total, err
}

func (e *Engine) Job(ctx context.Context, id string) (*model.Job, error) {
	j, err := e.daos.Job.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a job with id '%s'.", id)
	}
	return j, nil
}

func (e *Engine) DeleteJob(ctx context.Context, id string) error {
	if _, err := e.Job(ctx, id); err != nil {
		return err
	}
	return e.daos.Job.Delete(ctx, id)
}

func (e *Engine) JobExceptionStacktrace(ctx context.Context, id string) (string, error) {
	j, err := e.Job(ctx, id)
	if err != nil {
		return "", err
	}
	if j.ExceptionStacktrace == "" {
		return "", apperr.NotFound("Job with id '%s' doesn't have an exception stacktrace.", id)
	}
	return j.ExceptionStacktrace, nil
}

// AcquireJobs locks up to max executable jobs for owner until now + lock time.
func (e *Engine) AcquireJobs(ctx context.Context, owner string, max int) ([]*model.Job, error) {
	now := e.now()
	return e.daos.Job.Acquire(ctx, now, owner, now.Add(e.jobCfg.LockTime), max)
}

// ExecuteJob runs a job in its own transaction. A failure rolls the continuation back and
// records the error on the job: one retry less, the stack trace, and a due date pushed
// out by exponential backoff.
func (e *Engine) ExecuteJob(ctx context.Context, id string) error {
	ctx, span := e.span(ctx, "engine.ExecuteJob", attribute.String("job.id", id))
	defer span.End()

	job, err := e.Job(ctx, id)
	if err != nil {
		return err
	}
	root, err := e.daos.Execution.Get(ctx, job.ProcessInstanceID)
	if err != nil && !isMissing(err) {
		return err
	}
	if root != nil && root.Suspended() {
		return apperr.Conflict("Cannot execute job '%s': process instance '%s' is suspended", id, job.ProcessInstanceID)
	}

	runErr := e.tx(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				// still on the panicking stack, so the trace shows where the job broke
				err = goerrors.Wrap(r, 0)
			}
		}()
		return e.runJob(ctx, job)
	})
	if runErr == nil {
		e.Metrics.JobExecuted(metrics.OutcomeSuccess)
		logging.Debug(ctx, "job executed", zap.String("job_id", id), zap.String("handler", job.HandlerType))
		return nil
	}

	span.RecordError(runErr)
	span.SetStatus(codes.Error, runErr.Error())
	e.Metrics.JobExecuted(metrics.OutcomeFailure)
	if err := e.failJob(ctx, job.ID, runErr); err != nil {
		logging.Error(ctx, "record job failure failed", zap.String("job_id", id), zap.Error(err))
	}
	logging.Warn(ctx, "job failed", zap.String("job_id", id), zap.Error(runErr))
	return fmt.Errorf("job %s failed: %v", id, runErr)
}

func (e *Engine) runJob(ctx context.Context, job *model.Job) error {
	if err := e.daos.Job.Delete(ctx, job.ID); err != nil {
		return err
	}
	exec, err := e.daos.Execution.Get(ctx, job.ExecutionID)
	if err != nil {
		return notFound(err, "Execution '%s' of job '%s' no longer exists", job.ExecutionID, job.ID)
	}
	scope, err := e.scopeOf(ctx, exec.ProcessDefinitionID)
	if err != nil {
		return err
	}
	el, err := scope.element(job.HandlerCfg)
	if err != nil {
		return err
	}
	a := e.newAgenda()
	switch job.HandlerType {
	case bizConsts.JobHandlerAsyncContinuation:
		a.planResume(scope, exec, el)
	case bizConsts.JobHandlerTimerTransition:
		a.planLeave(scope, exec, el)
	default:
		return fmt.Errorf("job '%s' has unknown handler type '%s'", job.ID, job.HandlerType)
	}
	return a.run(ctx)
}

func (e *Engine) failJob(ctx context.Context, id string, cause error) error {
	return e.tx(ctx, func(ctx context.Context) error {
		job, err := e.daos.Job.Get(ctx, id)
		if err != nil {
			if isMissing(err) {
				return nil
			}
			return err
		}
		if job.Retries > 0 {
			job.Retries--
		}
		msg := cause.Error()
		if len(msg) > maxExceptionMessage {
			msg = msg[:maxExceptionMessage]
		}
		job.ExceptionMessage = msg
		job.ExceptionStacktrace = stacktrace(cause)
		job.LockOwner = ""
		job.LockExpirationTime = nil
		if job.Retries > 0 {
			due := e.now().Add(e.retryDelay(bizConsts.DefaultJobRetries - job.Retries))
			job.DueDate = &due
		}
		return e.daos.Job.Update(ctx, job)
	})
}

// stacktrace renders cause with the first stack captured on its chain, or the current
// stack when nothing on the chain carries one.
func stacktrace(cause error) string {
	var traced *goerrors.Error
	if !errors.As(cause, &traced) {
		traced = goerrors.Wrap(cause, 1)
	}
	return cause.Error() + "\n" + string(traced.Stack())
}

// retryDelay is the backoff interval before retry number attempt (1-based).
func (e *Engine) retryDelay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     e.jobCfg.RetryInitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         e.jobCfg.RetryMaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               e.clock,
	}
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
