package scriptcore

import (
	"fmt"
	"log/slog"
)

// ScriptComponentType is the reserved ComponentType ScriptLifecycle uses to
// store ScriptComponent values in the EntityWorld. Hosts registering their
// own component types should pick any other value.
const ScriptComponentType ComponentType = 0

// ScriptComponent attaches a module to an entity. The actual script
// instance lives JS-side, addressed by instanceKey; ScriptComponent itself
// carries only the bookkeeping ScriptLifecycle needs to decide whether to
// (re)instantiate.
type ScriptComponent struct {
	ModuleID        string
	LastSeenVersion ModuleVersion
	HasInstance     bool
}

func instanceKey(moduleID string, entityID EntityID) string {
	return fmt.Sprintf("%s::%d", moduleID, entityID)
}

// ScriptLifecycle drives per-entity script instantiation and the
// init/update/destroy calls, re-instantiating whenever a ScriptComponent's
// module version falls behind the runtime's live version.
type ScriptLifecycle struct {
	world   *EntityWorld
	runtime *ScriptRuntime
	bus     *EventBus
	log     *slog.Logger
	metrics *Metrics

	// apiBuilder constructs the per-entity API object's JS source,
	// typically installed once by the host (entityId, world accessor,
	// event-bus façade, host application handle).
	apiBuilder func(entityID EntityID) string
}

// NewScriptLifecycle constructs a ScriptLifecycle over world, runtime, and
// bus. apiBuilder, if nil, passes undefined to init().
func NewScriptLifecycle(world *EntityWorld, runtime *ScriptRuntime, bus *EventBus, log *slog.Logger, metrics *Metrics, apiBuilder func(EntityID) string) *ScriptLifecycle {
	if log == nil {
		log = NewLogger()
	}
	lc := &ScriptLifecycle{world: world, runtime: runtime, bus: bus, log: log, metrics: metrics, apiBuilder: apiBuilder}
	world.OnDestroy(lc.OnEntityRemoved)
	return lc
}

// AttachScript attaches a ScriptComponent for moduleID to entityID. The
// instance is created lazily on the next Update call.
func (lc *ScriptLifecycle) AttachScript(entityID EntityID, moduleID string) {
	lc.world.SetComponent(entityID, ScriptComponentType, &ScriptComponent{ModuleID: moduleID})
}

// Update advances every entity's ScriptComponent by one frame: entities
// whose component is missing an instance or whose lastSeenVersion trails
// the runtime's live version are (re)instantiated first, then every
// instance's update(tpf) is invoked if present. A single script's failure
// is caught, logged, and never affects another entity's tick.
func (lc *ScriptLifecycle) Update(tpf float64) {
	for _, slot := range lc.world.View(ScriptComponentType) {
		entityID := slot.EntityID
		sc, ok := slot.Value.(*ScriptComponent)
		if !ok {
			continue
		}

		v := lc.runtime.ModuleVersion(sc.ModuleID)
		if !sc.HasInstance || sc.LastSeenVersion != v {
			lc.reinstantiate(entityID, sc, v)
		}

		if sc.HasInstance {
			lc.safeCall(sc.ModuleID, entityID, "update", fmt.Sprintf("%v", tpf))
		}
	}
}

func (lc *ScriptLifecycle) reinstantiate(entityID EntityID, sc *ScriptComponent, liveVersion ModuleVersion) {
	if sc.HasInstance {
		lc.safeCall(sc.ModuleID, entityID, "destroy", "")
		lc.bus.OffOwner(entityIDOwner(entityID))
		sc.HasInstance = false
	}

	result, err := lc.runtime.Require(sc.ModuleID)
	if err != nil {
		logEntity(lc.log, sc.ModuleID, entityID).Error("require failed during lifecycle update", "error", err)
		return
	}

	key := instanceKey(sc.ModuleID, entityID)
	instantiateJS := buildInstantiateJS(sc.ModuleID, key, result.Kind)
	lc.runtime.SetCallOwner(entityIDOwner(entityID))
	err = lc.runtime.engine.Eval(instantiateJS)
	lc.runtime.SetCallOwner("")
	if err != nil {
		if lc.metrics != nil {
			lc.metrics.recordScriptCallError("instantiate")
		}
		logEntity(lc.log, sc.ModuleID, entityID).Error("instantiate failed", "error", err)
		return
	}

	sc.HasInstance = true
	sc.LastSeenVersion = result.Version

	api := ""
	if lc.apiBuilder != nil {
		api = lc.apiBuilder(entityID)
	}
	lc.safeCall(sc.ModuleID, entityID, "init", api)
}

func buildInstantiateJS(moduleID, key string, kind ExportsKind) string {
	switch kind {
	case KindFactory:
		return fmt.Sprintf(`globalThis.__sc.instances[%q] = globalThis.__sc.modules[%q].exports();`, key, moduleID)
	case KindProvider:
		return fmt.Sprintf(`globalThis.__sc.instances[%q] = globalThis.__sc.modules[%q].exports.create();`, key, moduleID)
	default:
		return fmt.Sprintf(`globalThis.__sc.instances[%q] = globalThis.__sc.modules[%q].exports;`, key, moduleID)
	}
}

// safeCall invokes method on the entity's instance if present, passing argJS
// verbatim as the single argument expression (or no argument if empty).
// Exceptions are caught, logged, and never propagate.
func (lc *ScriptLifecycle) safeCall(moduleID string, entityID EntityID, method, argJS string) {
	key := instanceKey(moduleID, entityID)
	args := argJS
	js := fmt.Sprintf(`(function(){
		var inst = globalThis.__sc.instances[%q];
		if (inst && typeof inst.%s === 'function') inst.%s(%s);
	})();`, key, method, method, args)

	lc.runtime.SetCallOwner(entityIDOwner(entityID))
	err := lc.runtime.engine.Eval(js)
	lc.runtime.SetCallOwner("")
	if err != nil {
		if lc.metrics != nil {
			lc.metrics.recordScriptCallError(method)
		}
		logEntity(lc.log, moduleID, entityID).Error("script call failed", "phase", method,
			"error", &ScriptCallError{ModuleID: moduleID, EntityID: entityID, Phase: method, Err: err})
	}
}

// entityIDOwner formats an EntityID as the ownerId string used for
// EventBus.OffOwner, so every handler a script instance registers through
// the events host API is tagged the same way.
func entityIDOwner(entityID EntityID) string {
	return fmt.Sprintf("entity:%d", entityID)
}

// OnEntityRemoved destroys entityID's script instance (if any) and reaps
// every subscription it owns. Registered as the EntityWorld destroy hook,
// so it also fires for entities destroyed outside Update.
func (lc *ScriptLifecycle) OnEntityRemoved(entityID EntityID) {
	v, ok := lc.world.GetComponent(entityID, ScriptComponentType)
	if !ok {
		return
	}
	sc, ok := v.(*ScriptComponent)
	if !ok {
		return
	}
	if sc.HasInstance {
		lc.safeCall(sc.ModuleID, entityID, "destroy", "")
		key := instanceKey(sc.ModuleID, entityID)
		_ = lc.runtime.engine.Eval(fmt.Sprintf("delete globalThis.__sc.instances[%q];", key))
	}
	lc.bus.OffOwner(entityIDOwner(entityID))
}

// OnHotReloadChanged marks every ScriptComponent referencing one of the
// modules in changed for reinstantiation on the next Update. The caller
// (WorldAppState) is responsible for invalidating changed in the runtime
// itself, before or after this call — OnHotReloadChanged only deals with
// per-entity instance state.
func (lc *ScriptLifecycle) OnHotReloadChanged(changed []string) {
	changedSet := make(map[string]struct{}, len(changed))
	for _, id := range changed {
		changedSet[id] = struct{}{}
	}

	for _, slot := range lc.world.View(ScriptComponentType) {
		sc, ok := slot.Value.(*ScriptComponent)
		if !ok {
			continue
		}
		if _, hit := changedSet[sc.ModuleID]; !hit {
			continue
		}
		if sc.HasInstance {
			lc.safeCall(sc.ModuleID, slot.EntityID, "destroy", "")
			key := instanceKey(sc.ModuleID, slot.EntityID)
			_ = lc.runtime.engine.Eval(fmt.Sprintf("delete globalThis.__sc.instances[%q];", key))
			lc.bus.OffOwner(entityIDOwner(slot.EntityID))
		}
		sc.HasInstance = false
		sc.LastSeenVersion = 0
	}
}

// Reset destroys every script instance and clears every ScriptComponent's
// version, without removing the components or entities themselves.
func (lc *ScriptLifecycle) Reset() {
	for _, slot := range lc.world.View(ScriptComponentType) {
		sc, ok := slot.Value.(*ScriptComponent)
		if !ok {
			continue
		}
		if sc.HasInstance {
			lc.safeCall(sc.ModuleID, slot.EntityID, "destroy", "")
			key := instanceKey(sc.ModuleID, slot.EntityID)
			_ = lc.runtime.engine.Eval(fmt.Sprintf("delete globalThis.__sc.instances[%q];", key))
		}
		sc.HasInstance = false
		sc.LastSeenVersion = 0
	}
}
