package registry

import (
	"log"
	"sync"

	"github.com/grand-thief-cash/procflow/infra/application/core"
)

var (
	runtimeDepExtMu  sync.Mutex
	runtimeDepExtMap = map[string][]string{}
)

// ExtendRuntimeDependencies makes target start after deps. It only affects the lifecycle order,
// not the builder order, and must be declared before BuildAndRegisterAll.
func ExtendRuntimeDependencies(target string, deps ...string) {
	if target == "" || len(deps) == 0 {
		return
	}
	runtimeDepExtMu.Lock()
	runtimeDepExtMap[target] = append(runtimeDepExtMap[target], deps...)
	runtimeDepExtMu.Unlock()
}

func applyRuntimeDepExtensions(c *core.Container) {
	runtimeDepExtMu.Lock()
	defer runtimeDepExtMu.Unlock()
	for target, extra := range runtimeDepExtMap {
		comp, err := c.Resolve(target)
		if err != nil {
			log.Printf("registry: runtime dep extension target %s not registered (skipped)", target)
			continue
		}
		ext, ok := comp.(interface{ AddDependencies(...string) })
		if !ok {
			log.Printf("registry: component %s does not support AddDependencies; extension skipped", target)
			continue
		}
		var present []string
		for _, d := range extra {
			if _, err := c.Resolve(d); err == nil {
				present = append(present, d)
			}
		}
		ext.AddDependencies(present...)
	}
}
