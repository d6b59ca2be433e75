package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/grand-thief-cash/procflow/infra/application/config"
	"github.com/grand-thief-cash/procflow/infra/application/core"
)

// BuilderFunc returns (enabled, component, error). enabled=false skips registration.
type BuilderFunc func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error)

type Builder struct {
	Name string
	Fn   BuilderFunc
	// Auto builders get their name and build-time deps inferred from the built component.
	Auto bool
	// Deps orders builders. For RegisterWithDeps they are explicit.
	Deps []string

	prebuilt   core.Component
	preEnabled bool
}

var (
	mu       sync.Mutex
	builders []*Builder
)

func findBuilder(name string) *Builder {
	for _, b := range builders {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Register registers a builder under a fixed name.
func Register(name string, fn BuilderFunc) {
	RegisterWithDeps(name, nil, fn)
}

// RegisterWithDeps registers a named builder that runs after the builders in deps.
// deps that never get registered are ignored.
func RegisterWithDeps(name string, deps []string, fn BuilderFunc) {
	if name == "" {
		panic("registry: empty name in Register")
	}
	mu.Lock()
	defer mu.Unlock()
	if findBuilder(name) != nil {
		panic("registry: duplicate builder name " + name)
	}
	builders = append(builders, &Builder{Name: name, Fn: fn, Deps: deps})
}

// RegisterAuto registers a builder whose component name and build deps come from
// Name() and the `infra:"dep:<name>"` field tags of the built component.
func RegisterAuto(fn BuilderFunc) {
	mu.Lock()
	builders = append(builders, &Builder{Auto: true, Fn: fn})
	mu.Unlock()
}

// BuildAndRegisterAll builds every registered builder in dependency order and registers
// the enabled components. Runtime dependency extensions are applied last.
func BuildAndRegisterAll(cfg *config.AppConfig, c *core.Container) error {
	mu.Lock()
	defer mu.Unlock()

	for _, b := range builders {
		if !b.Auto {
			continue
		}
		b.Name, b.Deps = "", nil
		enabled, comp, err := b.Fn(cfg, c)
		if err != nil {
			return fmt.Errorf("auto builder failed: %w", err)
		}
		b.preEnabled, b.prebuilt = enabled, comp
		if !enabled || comp == nil {
			continue
		}
		name := comp.Name()
		if name == "" {
			return fmt.Errorf("auto builder produced unnamed component")
		}
		if existing := findBuilder(name); existing != nil && existing != b {
			return fmt.Errorf("duplicate inferred name: %s", name)
		}
		b.Name = name
	}
	for _, b := range builders {
		if b.Auto && b.prebuilt != nil && b.preEnabled {
			b.Deps = inferTagDependencies(b.prebuilt)
		}
	}

	ordered, err := topoSortBuilders(builders)
	if err != nil {
		return err
	}
	for _, b := range ordered {
		var (
			enabled bool
			comp    core.Component
		)
		if b.Auto {
			enabled, comp = b.preEnabled, b.prebuilt
		} else {
			enabled, comp, err = b.Fn(cfg, c)
			if err != nil {
				return fmt.Errorf("build %s failed: %w", b.Name, err)
			}
		}
		if !enabled || comp == nil {
			continue
		}
		if err := c.Register(b.Name, comp); err != nil {
			return fmt.Errorf("register %s failed: %w", b.Name, err)
		}
	}
	applyRuntimeDepExtensions(c)
	return nil
}

func inferTagDependencies(comp core.Component) []string {
	v := reflect.ValueOf(comp)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	seen := map[string]struct{}{}
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		tag := f.Tag.Get("infra")
		if !strings.HasPrefix(tag, "dep:") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(tag, "dep:")), "?")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// topoSortBuilders is Kahn's algorithm with name ordering among ready builders.
func topoSortBuilders(list []*Builder) ([]*Builder, error) {
	nameMap := map[string]*Builder{}
	inDeg := map[string]int{}
	adj := map[string][]string{}
	for _, b := range list {
		if b.Name != "" {
			nameMap[b.Name] = b
			inDeg[b.Name] = 0
		}
	}
	for _, b := range list {
		if b.Name == "" {
			continue
		}
		for _, d := range b.Deps {
			if _, ok := nameMap[d]; !ok || d == b.Name {
				continue
			}
			adj[d] = append(adj[d], b.Name)
			inDeg[b.Name]++
		}
	}
	var ready []string
	for n, d := range inDeg {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)
	ordered := make([]*Builder, 0, len(nameMap))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		ordered = append(ordered, nameMap[n])
		for _, nxt := range adj[n] {
			inDeg[nxt]--
			if inDeg[nxt] == 0 {
				ready = append(ready, nxt)
			}
		}
		sort.Strings(ready)
	}
	if len(ordered) != len(nameMap) {
		var cyc []string
		for n, d := range inDeg {
			if d > 0 {
				cyc = append(cyc, n)
			}
		}
		sort.Strings(cyc)
		return nil, fmt.Errorf("registry: cyclic builder deps: %v", cyc)
	}
	return ordered, nil
}
