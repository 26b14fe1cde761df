//go:build !v8

package scriptcore

import (
	"github.com/lumenforge/scriptcore/internal/core"
	"github.com/lumenforge/scriptcore/internal/quickjsengine"
)

func newEngine(cfg core.EngineConfig) (core.ScriptEngine, error) {
	return quickjsengine.New(cfg)
}
