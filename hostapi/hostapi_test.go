package hostapi

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/lumenforge/scriptcore"
)

func newTestSurface(t *testing.T) (*Surface, scriptcoreEngine, func()) {
	t.Helper()

	engine, err := scriptcore.NewEngine(scriptcore.EngineConfig{})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}

	world := scriptcore.NewEntityWorld()
	bus := scriptcore.NewEventBus(scriptcore.DefaultEventBusConfig(), nil, nil)

	surface := &Surface{
		World: world,
		Bus:   bus,
		Log:   slog.Default(),
	}

	// events.on stores callbacks in the registry that ScriptRuntime.Bindings
	// bootstraps, so the runtime's installers run first, as a host does.
	rt := scriptcore.NewScriptRuntime(
		scriptcore.NewModuleResolver(scriptcore.NewPathNormalizer(), scriptcore.ResolverConfig{}),
		scriptcore.NewScriptCache(scriptcore.DefaultCacheConfig()),
		nil, engine, scriptcore.EngineConfig{}, nil, nil, nil,
	)
	for _, install := range append(rt.Bindings(), surface.Installer()...) {
		if err := install(engine); err != nil {
			t.Fatalf("installing bindings: %v", err)
		}
	}

	return surface, engine, func() { engine.Close() }
}

// scriptcoreEngine avoids importing internal/core in the test just for the
// return type; core.ScriptEngine's exported surface (Eval/EvalString/
// EvalBool) is all this file needs.
type scriptcoreEngine interface {
	Eval(js string) error
	EvalString(js string) (string, error)
	EvalBool(js string) (bool, error)
}

func TestSurface_LogBindingDoesNotError(t *testing.T) {
	_, engine, closeFn := newTestSurface(t)
	defer closeFn()

	if err := engine.Eval(`log.info("hello from a test");`); err != nil {
		t.Fatalf("log.info failed: %v", err)
	}
}

func TestSurface_EventsEmitAndOnRoundTrip(t *testing.T) {
	surface, engine, closeFn := newTestSurface(t)
	defer closeFn()

	if err := engine.Eval(`
		globalThis.__received = null;
		events.on("ping", function(payload){ globalThis.__received = payload; });
		events.emit("ping", {n: 1});
	`); err != nil {
		t.Fatalf("eval failed: %v", err)
	}

	surface.Bus.Pump()

	got, err := engine.EvalString(`JSON.stringify(globalThis.__received)`)
	if err != nil {
		t.Fatalf("reading received payload: %v", err)
	}
	if got != `{"n":1}` {
		t.Fatalf("got %q, want {\"n\":1}", got)
	}
}

func TestSurface_EntityHasReflectsWorldState(t *testing.T) {
	surface, engine, closeFn := newTestSurface(t)
	defer closeFn()

	e := surface.World.CreateEntity()
	surface.World.SetComponent(e, scriptcore.ComponentType(7), "anything")

	ok, err := engine.EvalBool(fmt.Sprintf(`entity.has(%d, 7)`, e))
	if err != nil {
		t.Fatalf("entity.has failed: %v", err)
	}
	if !ok {
		t.Fatalf("entity.has returned false for a present component")
	}

	ok, err = engine.EvalBool(fmt.Sprintf(`entity.has(%d, 8)`, e))
	if err != nil {
		t.Fatalf("entity.has failed: %v", err)
	}
	if ok {
		t.Fatalf("entity.has returned true for an absent component type")
	}
}

func TestSurface_AssetsReadTextRequiresAnAssetReader(t *testing.T) {
	_, engine, closeFn := newTestSurface(t)
	defer closeFn()

	if err := engine.Eval(`assets.readText("nope.js");`); err == nil {
		t.Fatalf("expected an error when no AssetReader is configured")
	}
}

func TestSurface_TimeTPFReflectsFrameTPFCallback(t *testing.T) {
	surface, engine, closeFn := newTestSurface(t)
	defer closeFn()

	surface.FrameTPF = func() float64 { return 0.25 }

	got, err := engine.EvalString(`String(time.tpf())`)
	if err != nil {
		t.Fatalf("time.tpf failed: %v", err)
	}
	if got != "0.25" {
		t.Fatalf("got %q, want 0.25", got)
	}
}
