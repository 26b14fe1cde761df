package scriptcore

import (
	"log/slog"

	"github.com/lumenforge/scriptcore/internal/core"
)

// WorldAppState is the frame driver: each Tick drains the JobQueue, polls
// the HotReloadWatcher, performs a deterministic restart when anything was
// invalidated, pumps the EventBus, and updates the active world's systems
// — in that exact order, every frame.
type WorldAppState struct {
	jobs      *JobQueue
	watcher   *HotReloadWatcher
	bus       *EventBus
	runtime   *ScriptRuntime
	lifecycle *ScriptLifecycle
	engine    core.ScriptEngine
	log       *slog.Logger

	jobDrainBudget int
	bindings       func() []BindingInstaller // runtime bindings + host bindings, in order

	active *World
}

// NewWorldAppState assembles a frame driver. bindings is called on every
// (re)start to obtain the full ordered installer list (runtime bindings
// first, then host-supplied ones) to run against a fresh engine scope.
func NewWorldAppState(jobs *JobQueue, watcher *HotReloadWatcher, bus *EventBus, runtime *ScriptRuntime, lifecycle *ScriptLifecycle, engine core.ScriptEngine, jobDrainBudget int, bindings func() []BindingInstaller, log *slog.Logger) *WorldAppState {
	if log == nil {
		log = NewLogger()
	}
	return &WorldAppState{
		jobs:           jobs,
		watcher:        watcher,
		bus:            bus,
		runtime:        runtime,
		lifecycle:      lifecycle,
		engine:         engine,
		jobDrainBudget: jobDrainBudget,
		bindings:       bindings,
		log:            log,
	}
}

// SetWorld stops the current active world (if any), installs w as active,
// and starts it. w is started lazily on the next Tick if it is not already
// running by the time Tick reaches the update step.
func (a *WorldAppState) SetWorld(w *World) {
	if a.active != nil {
		a.active.Stop()
	}
	a.active = w
	if a.active != nil {
		a.active.Start()
	}
}

// Tick runs exactly one frame: drain -> poll -> restart -> pump -> update.
func (a *WorldAppState) Tick(tpf float64) {
	a.jobs.Drain(a.jobDrainBudget)

	restartRequested := false
	if a.watcher != nil {
		if changed := a.watcher.Poll(); len(changed) > 0 {
			n := a.runtime.InvalidateMany(changed)
			if a.lifecycle != nil {
				a.lifecycle.OnHotReloadChanged(changed)
			}
			if n > 0 {
				restartRequested = true
			}
		}
	}

	if restartRequested {
		a.restart()
	}

	a.bus.Pump()

	if a.active != nil {
		if !a.active.started {
			a.active.Start()
		}
		a.active.Update(tpf)
	}
}

// restart stops and restarts the active world and reinstalls script
// globals, guaranteeing scripts never observe a partially reloaded world:
// either the pre-reload or post-reload state is active during the next
// pump/update, never a mix.
func (a *WorldAppState) restart() {
	if a.active != nil {
		a.active.Stop()
	}
	if a.lifecycle != nil {
		a.lifecycle.Reset()
	}
	if a.bindings != nil {
		for _, install := range a.bindings() {
			if err := install(a.engine); err != nil {
				a.log.Error("binding install failed during restart", "error", err)
			}
		}
	}
	if a.active != nil {
		a.active.Start()
	}
}
