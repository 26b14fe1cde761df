// Package hostapi implements the minimal host-API surface named in the
// external interfaces section: log, events, entity, assets, and time
// bindings installed as globals in the script scope. It is intentionally
// thin — no audio, materials, shaders, or input — those remain real
// host-application concerns outside this module.
package hostapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenforge/scriptcore"
	"github.com/lumenforge/scriptcore/internal/core"
)

// Surface bundles the dependencies the host-API bindings close over.
type Surface struct {
	World    *scriptcore.EntityWorld
	Bus      *scriptcore.EventBus
	Runtime  *scriptcore.ScriptRuntime
	Assets   core.AssetReader
	Log      *slog.Logger
	FrameTPF func() float64 // current frame's time-per-frame, read by time.tpf()

	evalFn func(js string) error // captured from the engine on each install
}

// Installer returns the BindingInstaller list that wires log/events/
// entity/assets/time into a fresh ScriptEngine scope. A host appends these
// after ScriptRuntime.Bindings() on every (re)start.
func (s *Surface) Installer() []scriptcore.BindingInstaller {
	return []scriptcore.BindingInstaller{
		s.installLog,
		s.installEvents,
		s.installEntity,
		s.installAssets,
		s.installTime,
	}
}

func (s *Surface) installLog(e core.ScriptEngine) error {
	s.evalFn = e.Eval
	if err := e.RegisterFunc("__host_log", s.hostLog); err != nil {
		return err
	}
	return e.Eval(`globalThis.log = {
		debug: function(msg){ __host_log("debug", String(msg)); },
		info:  function(msg){ __host_log("info", String(msg)); },
		warn:  function(msg){ __host_log("warn", String(msg)); },
		error: function(msg){ __host_log("error", String(msg)); },
	};`)
}

func (s *Surface) hostLog(level, msg string) {
	switch level {
	case "debug":
		s.Log.Debug(msg)
	case "warn":
		s.Log.Warn(msg)
	case "error":
		s.Log.Error(msg)
	default:
		s.Log.Info(msg)
	}
}

func (s *Surface) installEvents(e core.ScriptEngine) error {
	if err := e.RegisterFunc("__host_emit", s.hostEmit); err != nil {
		return err
	}
	if err := e.RegisterFunc("__host_on", s.hostOn); err != nil {
		return err
	}
	return e.Eval(`globalThis.events = {
		emit: function(topic, payload){ __host_emit(topic, JSON.stringify(payload === undefined ? null : payload)); },
		on: function(topic, handler){
			var id = globalThis.__sc.nextCallbackId++;
			globalThis.__sc.callbacks[id] = handler;
			__host_on(topic, id);
			return id;
		},
	};`)
}

func (s *Surface) hostEmit(topic, payloadJSON string) {
	s.Bus.Emit(topic, payloadJSON)
}

// hostOn registers a MAIN-phase subscription that, on dispatch, invokes the
// JS-side callback stored at globalThis.__sc.callbacks[cbId] — mirroring
// the timer-callback-table pattern used for the embedded engine's own
// event loop. The subscription is tagged with whatever ownerId the runtime
// reports as the currently executing script call, so a handler a script
// instance registers is reaped automatically when its entity is destroyed
// — the script never has to unsubscribe itself.
func (s *Surface) hostOn(topic string, cbID int) {
	owner := ""
	if s.Runtime != nil {
		owner = s.Runtime.CallOwner()
	}
	s.Bus.OnEventOwned(topic, scriptcore.PhaseMain, 0, owner, func(env scriptcore.EventEnvelope) {
		payloadJSON := "null"
		if text, ok := env.Payload.(string); ok {
			payloadJSON = text
		}
		_ = s.invokeCallback(cbID, payloadJSON)
	})
}

func (s *Surface) invokeCallback(cbID int, payloadJSON string) error {
	js := fmt.Sprintf(`(function(){
		var cb = globalThis.__sc.callbacks[%d];
		if (typeof cb === 'function') cb(JSON.parse(%q));
	})();`, cbID, payloadJSON)
	return s.engineEval(js)
}

// engineEval runs js through evalFn, which installLog captures from the
// engine at install time since Surface itself holds no direct engine
// reference (the engine may be swapped across restarts).
func (s *Surface) engineEval(js string) error {
	if s.evalFn == nil {
		return fmt.Errorf("hostapi: engine not installed yet")
	}
	return s.evalFn(js)
}

func (s *Surface) installEntity(e core.ScriptEngine) error {
	if err := e.RegisterFunc("__host_entity_has", s.entityHas); err != nil {
		return err
	}
	return e.Eval(`globalThis.entity = {
		has: function(entityId, componentType){ return __host_entity_has(entityId, componentType); },
	};`)
}

func (s *Surface) entityHas(entityID, componentType int) bool {
	return s.World.HasComponent(scriptcore.EntityID(entityID), scriptcore.ComponentType(componentType))
}

func (s *Surface) installAssets(e core.ScriptEngine) error {
	if err := e.RegisterFunc("__host_assets_read_text", s.assetsReadText); err != nil {
		return err
	}
	return e.Eval(`globalThis.assets = {
		readText: function(moduleId){ return __host_assets_read_text(moduleId); },
	};`)
}

func (s *Surface) assetsReadText(moduleID string) (string, error) {
	if s.Assets == nil {
		return "", fmt.Errorf("hostapi: no AssetReader configured")
	}
	return s.Assets.ReadText(moduleID)
}

func (s *Surface) installTime(e core.ScriptEngine) error {
	if err := e.RegisterFunc("__host_time_now_ms", s.timeNowMs); err != nil {
		return err
	}
	if err := e.RegisterFunc("__host_time_tpf", s.timeTPF); err != nil {
		return err
	}
	return e.Eval(`globalThis.time = {
		nowMs: function(){ return __host_time_now_ms(); },
		tpf: function(){ return __host_time_tpf(); },
	};`)
}

func (s *Surface) timeNowMs() float64 {
	return float64(time.Now().UnixMilli())
}

func (s *Surface) timeTPF() float64 {
	if s.FrameTPF == nil {
		return 0
	}
	return s.FrameTPF()
}

// EntityAPI builds the per-entity API bundle ScriptLifecycle passes to an
// instance's init(api): entityId plus the world/events/log/assets/time
// façades, which are already installed as globals by this Surface, so the
// bundle only needs to carry entityId itself. Suitable as the apiBuilder
// argument to NewScriptLifecycle.
func (s *Surface) EntityAPI(entityID scriptcore.EntityID) string {
	return fmt.Sprintf(`{
		entityId: %d,
		world: { has: function(componentType){ return __host_entity_has(%d, componentType); } },
		log: globalThis.log,
		events: globalThis.events,
		assets: globalThis.assets,
		time: globalThis.time,
	}`, entityID, entityID)
}
