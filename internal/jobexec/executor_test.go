package jobexec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/grand-thief-cash/procflow/internal/config"
	"github.com/grand-thief-cash/procflow/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu       sync.Mutex
	pending  []*model.Job
	owners   []string
	executed []string
	fail     map[string]bool
	panics   map[string]bool
}

func newFakeRunner(ids ...string) *fakeRunner {
	f := &fakeRunner{fail: map[string]bool{}, panics: map[string]bool{}}
	for _, id := range ids {
		f.pending = append(f.pending, &model.Job{ID: id})
	}
	return f
}

func (f *fakeRunner) AcquireJobs(_ context.Context, owner string, max int) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(max, len(f.pending))
	out := f.pending[:n]
	f.pending = f.pending[n:]
	f.owners = append(f.owners, owner)
	return out, nil
}

func (f *fakeRunner) ExecuteJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, id)
	if f.panics[id] {
		var m map[string]int
		m[id]++
	}
	if f.fail[id] {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeRunner) executedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func (f *fakeRunner) acquisitions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.owners)
}

func testConfig() config.JobExecutorConfig {
	cfg := config.Default().JobExecutor
	cfg.PollInterval = time.Second
	cfg.WorkerPoolSize = 2
	cfg.MaxJobsPerAcquisition = 2
	return cfg
}

func TestExecutorRunsAcquiredJobs(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	runner := newFakeRunner("j1", "j2", "j3")
	runner.fail["j2"] = true

	x := NewExecutor(testConfig()).WithClock(mock)
	x.Engine = runner
	require.NoError(t, x.Start(ctx))

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return runner.executedCount() == 2 }, time.Second, 5*time.Millisecond)

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return runner.executedCount() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, x.Stop(ctx))
	assert.False(t, x.IsActive())
	assert.ElementsMatch(t, []string{"j1", "j2", "j3"}, runner.executed)
	for _, owner := range runner.owners {
		assert.Equal(t, x.Owner(), owner)
	}
}

func TestExecutorWorkerSurvivesPanickingJob(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	runner := newFakeRunner("j1", "j2")
	runner.panics["j1"] = true

	cfg := testConfig()
	cfg.WorkerPoolSize = 1
	x := NewExecutor(cfg).WithClock(mock)
	x.Engine = runner
	require.NoError(t, x.Start(ctx))

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return runner.executedCount() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, x.Stop(ctx))
	assert.Equal(t, []string{"j1", "j2"}, runner.executed)
}

func TestExecutorStopWithoutTicks(t *testing.T) {
	ctx := context.Background()
	x := NewExecutor(testConfig()).WithClock(clock.NewMock())
	x.Engine = newFakeRunner()
	require.NoError(t, x.Start(ctx))
	require.NoError(t, x.Stop(ctx))
	require.NoError(t, x.Stop(ctx))
}

func TestExecutorRequiresRunner(t *testing.T) {
	x := NewExecutor(testConfig()).WithClock(clock.NewMock())
	assert.Error(t, x.Start(context.Background()))
}

func TestExecutorSkipsWhileLeaseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	require.NoError(t, mr.Set(cfg.LeaseKey, "other-node"))
	mr.SetTTL(cfg.LeaseKey, time.Minute)

	mock := clock.NewMock()
	runner := newFakeRunner("j1")
	x := NewExecutor(cfg).WithClock(mock)
	x.Engine = runner
	x.lease = NewLease(client, cfg.LeaseKey, x.Owner(), cfg.PollInterval)
	require.NoError(t, x.Start(ctx))

	mock.Add(time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runner.acquisitions())

	mr.Del(cfg.LeaseKey)
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return runner.executedCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, x.Stop(ctx))
	assert.False(t, mr.Exists(cfg.LeaseKey), "stop releases the lease")
}

func TestLease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewLease(client, "lease", "node-a", 10*time.Second)
	b := NewLease(client, "lease", "node-b", 10*time.Second)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(5 * time.Second)
	ok, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "holder extends its lease")
	assert.Equal(t, 10*time.Second, mr.TTL("lease"))

	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lease"), "only the holder may release")

	mr.FastForward(11 * time.Second)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseWithoutRedis(t *testing.T) {
	var l *Lease
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, NewLease(nil, "k", "o", time.Second).Release(context.Background()))
}
