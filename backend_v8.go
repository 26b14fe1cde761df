//go:build v8

package scriptcore

import (
	"github.com/lumenforge/scriptcore/internal/core"
	"github.com/lumenforge/scriptcore/internal/v8engine"
)

func newEngine(cfg core.EngineConfig) (core.ScriptEngine, error) {
	return v8engine.New(cfg)
}
