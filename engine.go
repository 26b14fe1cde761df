package scriptcore

import "github.com/lumenforge/scriptcore/internal/core"

// NewEngine constructs a fresh ScriptEngine using whichever backend this
// binary was built with (QuickJS by default, V8 under the "v8" build tag).
// A host calls this once per (re)start and passes the result to
// NewScriptRuntime and WorldAppState.
func NewEngine(cfg EngineConfig) (core.ScriptEngine, error) {
	return newEngine(core.EngineConfig{
		MemoryLimitMB:   cfg.MemoryLimitMB,
		MaxScriptSizeKB: cfg.MaxScriptSizeKB,
	})
}
