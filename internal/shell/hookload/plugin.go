package hookload

import (
	"fmt"
	"plugin"

	"github.com/artpar/shipway/internal/core/hooks"
)

// FactorySymbol is the exported factory a hook plugin may provide. When
// present it wins over standalone point functions.
const FactorySymbol = "GetHooks"

// symbolSource is the slice of *plugin.Plugin the binder needs. Tests
// substitute it to exercise symbol resolution without building shared
// objects.
type symbolSource interface {
	Lookup(symName string) (plugin.Symbol, error)
}

func (s *Source) loadPlugin(path string) (hooks.Hooks, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return hooks.Hooks{}, hooks.NewLoadError(path, err)
	}
	s.log.Debug("loaded hook plugin", "path", path)
	return lookupHooks(p, path)
}

// lookupHooks binds a plugin's exported symbols to a hook set: the factory
// when exported, otherwise the standalone point functions by name. A symbol
// that exists with the wrong type is a load failure, not a skip, so a typo
// in a signature cannot silently disable a hook.
func lookupHooks(src symbolSource, ref string) (hooks.Hooks, error) {
	if sym, err := src.Lookup(FactorySymbol); err == nil {
		factory, ok := sym.(func() hooks.Hooks)
		if !ok {
			return hooks.Hooks{}, hooks.NewLoadError(ref,
				fmt.Errorf("symbol %s has type %T, want func() hooks.Hooks", FactorySymbol, sym))
		}
		return factory(), nil
	}

	var h hooks.Hooks
	found := 0
	binds := []error{
		bind(src, "PreValidateEnv", &h.PreValidateEnv, &found),
		bind(src, "PostValidateEnv", &h.PostValidateEnv, &found),
		bind(src, "BuildDeployPlan", &h.BuildDeployPlan, &found),
		bind(src, "PreRenderYAML", &h.PreRenderYAML, &found),
		bind(src, "PostRenderYAML", &h.PostRenderYAML, &found),
		bind(src, "PreApply", &h.PreApply, &found),
		bind(src, "PostDeploy", &h.PostDeploy, &found),
		bind(src, "OnError", &h.OnError, &found),
	}
	for _, err := range binds {
		if err != nil {
			return hooks.Hooks{}, hooks.NewLoadError(ref, err)
		}
	}
	if found == 0 {
		return hooks.Hooks{}, hooks.NewLoadError(ref,
			fmt.Errorf("exports neither %s nor any hook point function", FactorySymbol))
	}
	return h, nil
}

// bind looks up one exported function and stores it in the slot. A missing
// symbol is fine; a mistyped one is not.
func bind[F any](src symbolSource, name string, slot *F, found *int) error {
	sym, err := src.Lookup(name)
	if err != nil {
		return nil
	}
	fn, ok := sym.(F)
	if !ok {
		return fmt.Errorf("symbol %s has type %T, want %T", name, sym, *slot)
	}
	*slot = fn
	*found++
	return nil
}
