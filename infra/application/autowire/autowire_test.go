package autowire

import (
	"testing"

	"github.com/grand-thief-cash/procflow/infra/application/core"
)

type storeComp struct{ *core.BaseComponent }

type consumerComp struct {
	*core.BaseComponent
	Store    *storeComp     `infra:"dep:store"`
	Optional core.Component `infra:"dep:cache?"`
}

func TestInjectAssignsFieldsAndRuntimeDeps(t *testing.T) {
	c := core.NewContainer()
	store := &storeComp{core.NewBaseComponent("store")}
	consumer := &consumerComp{BaseComponent: core.NewBaseComponent("consumer")}
	_ = c.Register("store", store)
	_ = c.Register("consumer", consumer)

	if err := InjectAll(c); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if consumer.Store != store {
		t.Fatalf("store not injected")
	}
	if consumer.Optional != nil {
		t.Fatalf("optional dep should stay nil")
	}
	deps := consumer.Dependencies()
	if len(deps) != 1 || deps[0] != "store" {
		t.Fatalf("runtime deps=%v", deps)
	}
}

func TestInjectFailsOnMissingRequiredDep(t *testing.T) {
	c := core.NewContainer()
	consumer := &consumerComp{BaseComponent: core.NewBaseComponent("consumer")}
	_ = c.Register("consumer", consumer)
	if err := InjectAll(c); err == nil {
		t.Fatalf("expected error for missing store")
	}
}
