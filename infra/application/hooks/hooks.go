package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type HookFunc func(ctx context.Context) error

type Phase string

const (
	BeforeStart    Phase = "before_start"
	AfterStart     Phase = "after_start"
	BeforeShutdown Phase = "before_shutdown"
	AfterShutdown  Phase = "after_shutdown"
)

// Hook runs at a lifecycle phase. Lower Priority runs first.
type Hook struct {
	Name     string
	Phase    Phase
	Function HookFunc
	Priority int
}

type Manager struct {
	mu    sync.RWMutex
	hooks map[Phase][]*Hook
}

func NewManager() *Manager {
	return &Manager{hooks: make(map[Phase][]*Hook)}
}

func (m *Manager) Register(hook *Hook) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if hook.Function == nil {
		return fmt.Errorf("hook function cannot be nil")
	}
	switch hook.Phase {
	case BeforeStart, AfterStart, BeforeShutdown, AfterShutdown:
	default:
		return fmt.Errorf("invalid hook phase: %s", hook.Phase)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.hooks[hook.Phase], hook)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	m.hooks[hook.Phase] = list
	return nil
}

// Execute runs the hooks of a phase and stops at the first error.
func (m *Manager) Execute(ctx context.Context, phase Phase) error {
	m.mu.RLock()
	list := make([]*Hook, len(m.hooks[phase]))
	copy(list, m.hooks[phase])
	m.mu.RUnlock()

	for _, hook := range list {
		if err := hook.Function(ctx); err != nil {
			return fmt.Errorf("hook %s failed: %w", hook.Name, err)
		}
	}
	return nil
}
