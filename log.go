package scriptcore

import (
	"log/slog"
	"os"
)

// NewLogger returns a structured text logger writing to stderr at info
// level, the default every scriptcore component uses when the host passes
// a nil logger to its constructor.
func NewLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler)
}

// logModule returns a logger scoped to one module, fixing the moduleId
// field every load/compile/evaluate log line carries.
func logModule(base *slog.Logger, moduleID string) *slog.Logger {
	return base.With("moduleId", moduleID)
}

// logEntity returns a logger scoped to one entity within a module, fixing
// both moduleId and entityId — the pair every per-instance script log
// carries.
func logEntity(base *slog.Logger, moduleID string, entityID EntityID) *slog.Logger {
	return base.With("moduleId", moduleID, "entityId", entityID)
}
