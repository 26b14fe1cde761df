package scriptcore

import (
	"errors"
	"fmt"
	"testing"
)

// memAssetReader is an in-memory core.AssetReader for tests, keyed by
// already-normalized module id.
type memAssetReader struct {
	files map[string]string
}

func newMemAssetReader(files map[string]string) *memAssetReader {
	return &memAssetReader{files: files}
}

func (m *memAssetReader) ReadText(moduleID string) (string, error) {
	text, ok := m.files[moduleID]
	if !ok {
		return "", fmt.Errorf("no such module: %s", moduleID)
	}
	return text, nil
}

func newTestRuntime(t *testing.T, files map[string]string) (*ScriptRuntime, func()) {
	t.Helper()

	engine, err := NewEngine(EngineConfig{})
	if err != nil {
		t.Fatalf("constructing engine: %v", err)
	}

	resolver := NewModuleResolver(NewPathNormalizer(), ResolverConfig{})
	cache := NewScriptCache(DefaultCacheConfig())
	assets := newMemAssetReader(files)
	jobs := NewJobQueue(DefaultJobQueueConfig(), nil, nil)
	rt := NewScriptRuntime(resolver, cache, assets, engine, EngineConfig{}, nil, nil, jobs)

	for _, install := range rt.Bindings() {
		if err := install(engine); err != nil {
			t.Fatalf("installing runtime bindings: %v", err)
		}
	}

	return rt, func() { engine.Close() }
}

func TestScriptRuntime_RequireLoadsAndClassifiesObjectExport(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{
		"main.js": `module.exports = { value: 42 };`,
	})
	defer closeFn()

	result, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if result.Kind != KindObject {
		t.Fatalf("got kind %v, want KindObject", result.Kind)
	}
	if result.Version != 1 {
		t.Fatalf("got version %d, want 1", result.Version)
	}
}

func TestScriptRuntime_ClassifiesFactoryExport(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{
		"main.js": `module.exports = function() { return { n: 1 }; };`,
	})
	defer closeFn()

	result, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if result.Kind != KindFactory {
		t.Fatalf("got kind %v, want KindFactory", result.Kind)
	}
}

func TestScriptRuntime_ClassifiesProviderExport(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{
		"main.js": `module.exports = { create: function() { return { n: 1 }; } };`,
	})
	defer closeFn()

	result, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if result.Kind != KindProvider {
		t.Fatalf("got kind %v, want KindProvider", result.Kind)
	}
}

func TestScriptRuntime_RequireIsIdempotentAfterFirstLoad(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{
		"main.js": `module.exports = { value: 1 };`,
	})
	defer closeFn()

	first, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("first Require failed: %v", err)
	}
	second, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("second Require failed: %v", err)
	}
	if first.Version != second.Version {
		t.Fatalf("version changed across repeated Require calls without invalidation: %d != %d", first.Version, second.Version)
	}
}

func TestScriptRuntime_InvalidateBumpsVersionAndForcesReload(t *testing.T) {
	files := map[string]string{
		"main.js": `module.exports = { value: 1 };`,
	}
	rt, closeFn := newTestRuntime(t, files)
	defer closeFn()

	first, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	got, err := rt.engine.EvalString(`String(globalThis.__sc.modules["main.js"].exports.value)`)
	if err != nil {
		t.Fatalf("reading exports.value: %v", err)
	}
	if got != "1" {
		t.Fatalf("got exports.value=%s, want 1 before invalidate", got)
	}

	files["main.js"] = `module.exports = { value: 2 };`
	if !rt.Invalidate("main.js") {
		t.Fatalf("Invalidate reported no prior record for a loaded module")
	}

	second, err := rt.Require("main.js")
	if err != nil {
		t.Fatalf("Require after invalidate failed: %v", err)
	}
	if second.Version <= first.Version {
		t.Fatalf("version did not increase after invalidate+reload: %d -> %d", first.Version, second.Version)
	}

	got, err = rt.engine.EvalString(`String(globalThis.__sc.modules["main.js"].exports.value)`)
	if err != nil {
		t.Fatalf("reading exports.value after reload: %v", err)
	}
	if got != "2" {
		t.Fatalf("got exports.value=%s after invalidate+Require, want 2 (body did not actually re-run)", got)
	}
}

func TestScriptRuntime_RequireMissingModuleReturnsLoadError(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{})
	defer closeFn()

	_, err := rt.Require("missing.js")
	if err == nil {
		t.Fatalf("expected an error for a missing module")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("got error of type %T, want *LoadError", err)
	}
}

func TestScriptRuntime_CircularRequireSeesPartialExports(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{
		"a.js": `
			var b = require("./b");
			exports.name = "a";
			exports.bSeenDuringLoad = JSON.stringify(b);
		`,
		"b.js": `
			var a = require("./a");
			// a is mid-load here: its exports object exists but "name" is not
			// yet assigned, matching standard CommonJS circular semantics.
			exports.sawNameFromA = (typeof a.name);
		`,
	})
	defer closeFn()

	if _, err := rt.Require("a.js"); err != nil {
		t.Fatalf("Require(a.js) failed: %v", err)
	}
}

func TestScriptRuntime_MaxScriptSizeTriggersCompileError(t *testing.T) {
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	rt, closeFn := newTestRuntime(t, map[string]string{
		"big.js": "var s = '" + string(big) + "';",
	})
	defer closeFn()
	rt.cfg.MaxScriptSizeKB = 1

	_, err := rt.Require("big.js")
	if err == nil {
		t.Fatalf("expected an error for a module exceeding MaxScriptSizeKB")
	}
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("got error of type %T, want *CompileError", err)
	}
}

func TestScriptRuntime_RequireOffThreadReturnsInvariantError(t *testing.T) {
	rt, closeFn := newTestRuntime(t, map[string]string{
		"main.js": `module.exports = {};`,
	})
	defer closeFn()
	rt.onThread = func() bool { return false }

	_, err := rt.Require("main.js")
	var invErr *InvariantError
	if !errors.As(err, &invErr) {
		t.Fatalf("got error of type %T, want *InvariantError", err)
	}
}
