package engine

import (
	"context"
	"sync"

	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

// DelegateExecution is the view of an execution a service task delegate works with.
type DelegateExecution interface {
	ID() string
	ProcessInstanceID() string
	ProcessDefinitionID() string
	ActivityID() string
	BusinessKey() string
	GetVariable(name string) (any, bool)
	SetVariable(name string, value any) error
}

// Delegate is the Go side of a service task referenced by delegateExpression or class.
type Delegate interface {
	Execute(ctx context.Context, execution DelegateExecution) error
}

type DelegateFunc func(ctx context.Context, execution DelegateExecution) error

func (f DelegateFunc) Execute(ctx context.Context, execution DelegateExecution) error {
	return f(ctx, execution)
}

type Delegates struct {
	mu     sync.RWMutex
	byName map[string]Delegate
}

func NewDelegates() *Delegates {
	return &Delegates{byName: make(map[string]Delegate)}
}

// Register binds name; a later registration under the same name replaces the earlier one.
func (d *Delegates) Register(name string, delegate Delegate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[name] = delegate
}

func (d *Delegates) Get(name string) (Delegate, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	delegate, ok := d.byName[name]
	return delegate, ok
}

type delegateExecution struct {
	exec *model.Execution
	vars map[string]any
	set  func(name string, v variable.Value) error
}

func (d *delegateExecution) ID() string                  { return d.exec.ID }
func (d *delegateExecution) ProcessInstanceID() string   { return d.exec.ProcessInstanceID }
func (d *delegateExecution) ProcessDefinitionID() string { return d.exec.ProcessDefinitionID }
func (d *delegateExecution) ActivityID() string          { return d.exec.ActivityID }
func (d *delegateExecution) BusinessKey() string         { return d.exec.BusinessKey }

func (d *delegateExecution) GetVariable(name string) (any, bool) {
	v, ok := d.vars[name]
	return v, ok
}

func (d *delegateExecution) SetVariable(name string, value any) error {
	val, err := variable.Encode(value)
	if err != nil {
		return err
	}
	if err := d.set(name, val); err != nil {
		return err
	}
	d.vars[name] = val.Decode()
	return nil
}
