package core

import (
	"context"
	"errors"
	"testing"
)

type recordingComponent struct {
	*BaseComponent
	log      *[]string
	startErr error
}

func newRecording(name string, log *[]string, deps ...string) *recordingComponent {
	return &recordingComponent{BaseComponent: NewBaseComponent(name, deps...), log: log}
}

func (r *recordingComponent) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.log = append(*r.log, "start:"+r.Name())
	return r.BaseComponent.Start(ctx)
}

func (r *recordingComponent) Stop(ctx context.Context) error {
	*r.log = append(*r.log, "stop:"+r.Name())
	return r.BaseComponent.Stop(ctx)
}

func TestStartStopOrderFollowsDependencies(t *testing.T) {
	var log []string
	c := NewContainer()
	_ = c.Register("api", newRecording("api", &log, "engine"))
	_ = c.Register("engine", newRecording("engine", &log, "database"))
	_ = c.Register("database", newRecording("database", &log))

	lm := NewLifecycleManager(c)
	if err := lm.StartAll(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	lm.StopAll(context.Background())
	lm.StopAll(context.Background())

	want := []string{"start:database", "start:engine", "start:api", "stop:api", "stop:engine", "stop:database"}
	if len(log) != len(want) {
		t.Fatalf("log=%v want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("step %d: got %s want %s", i, log[i], want[i])
		}
	}
}

func TestStartFailureStopsStartedComponents(t *testing.T) {
	var log []string
	c := NewContainer()
	_ = c.Register("a", newRecording("a", &log))
	bad := newRecording("b", &log, "a")
	bad.startErr = errors.New("boom")
	_ = c.Register("b", bad)

	if err := NewLifecycleManager(c).StartAll(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if len(log) != 2 || log[1] != "stop:a" {
		t.Fatalf("expected a to be stopped after failure, log=%v", log)
	}
}

func TestValidateDependenciesReportsMissingAndCycles(t *testing.T) {
	var log []string
	c := NewContainer()
	_ = c.Register("a", newRecording("a", &log, "ghost"))
	if _, err := c.ValidateDependencies(); err == nil {
		t.Fatalf("expected missing dependency error")
	}

	c = NewContainer()
	_ = c.Register("a", newRecording("a", &log, "b"))
	_ = c.Register("b", newRecording("b", &log, "a"))
	if _, err := c.ValidateDependencies(); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestAddDependenciesSkipsDuplicatesAndSelf(t *testing.T) {
	b := NewBaseComponent("x", "a")
	b.AddDependencies("a", "x", "b", "")
	deps := b.Dependencies()
	if len(deps) != 2 || deps[0] != "a" || deps[1] != "b" {
		t.Fatalf("unexpected deps %v", deps)
	}
}
