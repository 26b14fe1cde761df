package scriptcore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenforge/scriptcore/internal/bundler"
	"github.com/lumenforge/scriptcore/internal/core"
)

// RequireResult is what ScriptRuntime.Require returns: enough for a caller
// (typically ScriptLifecycle) to instantiate a script without the runtime
// ever handing a JS value across the Go/JS boundary — the real exports
// object stays resident in globalThis.__sc.modules[id].exports and is
// addressed from Go only by moduleID.
type RequireResult struct {
	ModuleID string
	Kind     ExportsKind
	Version  ModuleVersion
}

// BindingInstaller installs one capability into a freshly constructed
// ScriptEngine. WorldAppState runs the full ordered list on (re)start.
type BindingInstaller func(core.ScriptEngine) error

// ScriptRuntime loads, wraps, caches, and evaluates modules; exposes
// require() semantics to Go callers and, via registered bridge functions,
// to the JS module bodies it evaluates. It is single-threaded: every
// method must be called from the host thread, except Jobs(), which returns
// the thread-safe JobQueue background code should route through instead.
type ScriptRuntime struct {
	resolver *ModuleResolver
	cache    *ScriptCache
	assets   core.AssetReader
	engine   core.ScriptEngine
	cfg      EngineConfig
	log      *slog.Logger
	metrics  *Metrics
	jobs     *JobQueue

	mu       sync.Mutex
	versions map[string]ModuleVersion
	loaded   map[string]bool // true only while moduleID's JS entry is live; cleared by Invalidate
	kinds    map[string]ExportsKind
	lastErr  map[string]error
	onThread func() bool // nil means no check (tests); else must return true

	callOwner string // ownerId in effect for the script call currently in flight
}

// SetCallOwner records the ownerId in effect for the script call currently
// being made via the engine (set by ScriptLifecycle around each init/
// update/destroy invocation). Host-API bindings read it through CallOwner
// so subscriptions a script registers are automatically owner-tagged
// without the script having to pass its own entity id explicitly.
func (rt *ScriptRuntime) SetCallOwner(owner string) { rt.callOwner = owner }

// CallOwner returns the ownerId set by the most recent SetCallOwner call.
func (rt *ScriptRuntime) CallOwner() string { return rt.callOwner }

// NewScriptRuntime constructs a ScriptRuntime bound to engine and assets.
// It does not install bindings into engine; call Bindings() and run the
// returned installers (WorldAppState does this on start/restart).
func NewScriptRuntime(resolver *ModuleResolver, cache *ScriptCache, assets core.AssetReader, engine core.ScriptEngine, cfg EngineConfig, log *slog.Logger, metrics *Metrics, jobs *JobQueue) *ScriptRuntime {
	if log == nil {
		log = NewLogger()
	}
	return &ScriptRuntime{
		resolver: resolver,
		cache:    cache,
		assets:   assets,
		engine:   engine,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		jobs:     jobs,
		versions: make(map[string]ModuleVersion),
		loaded:   make(map[string]bool),
		kinds:    make(map[string]ExportsKind),
		lastErr:  make(map[string]error),
	}
}

// Jobs returns the JobQueue background producers should route work
// through instead of calling runtime methods directly off-thread.
func (rt *ScriptRuntime) Jobs() *JobQueue { return rt.jobs }

// Bindings returns the ordered installers the runtime itself needs on a
// fresh ScriptEngine: the module registry bootstrap and the require()
// bridge functions. A host installs these first, then its own host-API
// bindings (log/events/entity/assets/time), on every (re)start.
func (rt *ScriptRuntime) Bindings() []BindingInstaller {
	return []BindingInstaller{
		func(e core.ScriptEngine) error { return e.Eval(registryBootstrapJS) },
		func(e core.ScriptEngine) error { return e.RegisterFunc("__sc_go_resolve", rt.goResolve) },
		func(e core.ScriptEngine) error { return e.RegisterFunc("__sc_go_load", rt.goLoad) },
	}
}

// goResolve bridges the JS require() shim's id lookup back into
// ModuleResolver. Exposed as __sc_go_resolve.
func (rt *ScriptRuntime) goResolve(parentID, request string) (string, error) {
	id, err := rt.resolver.Resolve(parentID, request)
	if err != nil {
		return "", err
	}
	return id, nil
}

// goLoad bridges the JS require() shim's cache-miss path back into the
// full load pipeline. Exposed as __sc_go_load; on success the module's
// exports live at globalThis.__sc.modules[id].exports for the JS caller to
// read directly.
func (rt *ScriptRuntime) goLoad(id string) (string, error) {
	if err := rt.load(id); err != nil {
		return "", err
	}
	return "ok", nil
}

func (rt *ScriptRuntime) checkOnThread() error {
	if rt.onThread != nil && !rt.onThread() {
		return &InvariantError{Reason: "ScriptRuntime called off the host thread"}
	}
	return nil
}

// Require returns moduleID's exports descriptor, loading (or reusing a
// cached load of) the module as needed. Errors from the load pipeline
// propagate to the caller, per the taxonomy in errors.go.
func (rt *ScriptRuntime) Require(moduleID string) (RequireResult, error) {
	if err := rt.checkOnThread(); err != nil {
		return RequireResult{}, err
	}

	rt.mu.Lock()
	version := rt.versions[moduleID]
	kind := rt.kinds[moduleID]
	isLoaded := rt.loaded[moduleID]
	rt.mu.Unlock()

	if !isLoaded {
		if err := rt.load(moduleID); err != nil {
			return RequireResult{}, err
		}
		rt.mu.Lock()
		version = rt.versions[moduleID]
		kind = rt.kinds[moduleID]
		rt.mu.Unlock()
	}

	return RequireResult{ModuleID: moduleID, Kind: kind, Version: version}, nil
}

// ModuleVersion returns moduleID's current version counter, or 0 if it has
// never been loaded.
func (rt *ScriptRuntime) ModuleVersion(moduleID string) ModuleVersion {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.versions[moduleID]
}

// Invalidate removes moduleID from every runtime-owned cache and bumps its
// version, forcing the next Require to reload. Returns whether a prior
// record existed.
func (rt *ScriptRuntime) Invalidate(moduleID string) bool {
	rt.mu.Lock()
	existed := rt.loaded[moduleID]
	rt.mu.Unlock()

	rt.cache.Invalidate(moduleID)
	_ = rt.engine.Eval(fmt.Sprintf("delete globalThis.__sc.modules[%q];", moduleID))

	if existed {
		rt.mu.Lock()
		rt.versions[moduleID]++
		rt.loaded[moduleID] = false
		delete(rt.kinds, moduleID)
		delete(rt.lastErr, moduleID)
		rt.mu.Unlock()
	}
	return existed
}

// InvalidateMany invalidates every id in ids and returns the count that had
// a prior record.
func (rt *ScriptRuntime) InvalidateMany(ids []string) int {
	n := 0
	for _, id := range ids {
		if rt.Invalidate(id) {
			n++
		}
	}
	return n
}

// LastLoadError returns the error recorded on moduleID's most recent load
// attempt, if it failed, or nil otherwise.
func (rt *ScriptRuntime) LastLoadError(moduleID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.lastErr[moduleID]
}

// load runs the full resolve-independent pipeline for an already-canonical
// id: read text, size-check, transform ES module syntax, wrap, evaluate,
// classify. On any failure the
// partially registered JS module entry is removed so a later Require
// retries rather than being negatively cached.
func (rt *ScriptRuntime) load(id string) error {
	start := time.Now()

	text, err := rt.readText(id)
	if err != nil {
		rt.recordLoadFailure(id, err)
		return err
	}

	if rt.cfg.MaxScriptSizeKB > 0 && len(text) > rt.cfg.MaxScriptSizeKB*1024 {
		err := &CompileError{ModuleID: id, Err: fmt.Errorf("source exceeds %dKB limit", rt.cfg.MaxScriptSizeKB)}
		rt.recordLoadFailure(id, err)
		return err
	}

	if bundler.NeedsTransform(text) {
		transformed, terr := bundler.TransformToCommonJS(id, text)
		if terr != nil {
			err := &CompileError{ModuleID: id, Err: terr}
			rt.recordLoadFailure(id, err)
			return err
		}
		text = transformed
	}

	key := SourceKey{ModuleID: id, Hash: hashText(text)}
	wrapped, ok := rt.cache.GetWrappedCode(key)
	if !ok {
		wrapped = wrapSource(id, text)
		rt.cache.PutWrappedCode(key, wrapped)
	}

	evalJS := fmt.Sprintf(`(function(){
		var id = %q;
		var mod = { exports: {} };
		globalThis.__sc.modules[id] = { module: mod, exports: mod.exports, loaded: false };
		var requireFn = %s;
		var __body = %s;
		__body(mod, mod.exports, requireFn, id, %q);
		globalThis.__sc.modules[id].exports = mod.exports;
		globalThis.__sc.modules[id].loaded = true;
	})();`, id, requireShimJS(id), wrapped, dirnameOf(id))

	if err := rt.engine.Eval(evalJS); err != nil {
		_ = rt.engine.Eval(fmt.Sprintf("delete globalThis.__sc.modules[%q];", id))
		wrapErr := &EvaluateError{ModuleID: id, Err: err}
		rt.recordLoadFailure(id, wrapErr)
		return wrapErr
	}

	kind, err := rt.classify(id)
	if err != nil {
		_ = rt.engine.Eval(fmt.Sprintf("delete globalThis.__sc.modules[%q];", id))
		wrapErr := &EvaluateError{ModuleID: id, Err: err}
		rt.recordLoadFailure(id, wrapErr)
		return wrapErr
	}

	rt.mu.Lock()
	rt.versions[id]++
	rt.loaded[id] = true
	rt.kinds[id] = kind
	delete(rt.lastErr, id)
	rt.mu.Unlock()

	if rt.metrics != nil {
		rt.metrics.recordModuleLoad("success", float64(time.Since(start).Microseconds())/1000)
	}
	logModule(rt.log, id).Debug("module loaded", "kind", kind.String())
	return nil
}

func (rt *ScriptRuntime) recordLoadFailure(id string, err error) {
	rt.mu.Lock()
	rt.lastErr[id] = err
	rt.mu.Unlock()
	if rt.metrics != nil {
		rt.metrics.recordModuleLoad("failure", 0)
	}
	logModule(rt.log, id).Error("module load failed", "error", err)
}

func (rt *ScriptRuntime) readText(id string) (string, error) {
	if text, ok := rt.cache.GetModuleText(id); ok {
		return text, nil
	}
	text, err := rt.assets.ReadText(id)
	if err != nil {
		return "", &LoadError{ModuleID: id, Err: err}
	}
	rt.cache.PutModuleText(id, text)
	return text, nil
}

// classify inspects a just-loaded module's exports value once, so
// ScriptLifecycle never needs to reflect on the hot path.
func (rt *ScriptRuntime) classify(id string) (ExportsKind, error) {
	js := fmt.Sprintf(`(function(){
		var exp = globalThis.__sc.modules[%q].exports;
		if (typeof exp === 'function') return 'factory';
		if (exp && typeof exp.create === 'function') return 'provider';
		return 'object';
	})()`, id)
	s, err := rt.engine.EvalString(js)
	if err != nil {
		return KindObject, err
	}
	switch s {
	case "factory":
		return KindFactory, nil
	case "provider":
		return KindProvider, nil
	default:
		return KindObject, nil
	}
}

// dirnameOf returns the directory portion of a normalized module id, for
// the __dirname wrapper parameter.
func dirnameOf(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '/' {
			return id[:i]
		}
	}
	return "."
}
