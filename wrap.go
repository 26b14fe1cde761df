package scriptcore

import "fmt"

// wrapSource wraps raw module text in the stable CommonJS-style contract
// named in the file-format boundary: a function receiving module, exports,
// require, __filename, and __dirname. Wrapper parameters are the stable
// contract every module body may rely on.
func wrapSource(moduleID, source string) string {
	return fmt.Sprintf(
		"(function(module, exports, require, __filename, __dirname){\n%s\n})",
		source,
	) + fmt.Sprintf("\n//# sourceURL=%s\n", moduleID)
}

// registryBootstrapJS is evaluated once per fresh ScriptEngine to install
// the module registry and require() shim every wrapped module body closes
// over. globalThis.__sc.modules holds one entry per loaded module id, keyed
// by normalized id, so a re-entrant require() during a circular load sees
// the in-progress module's exports object rather than recursing.
const registryBootstrapJS = `
(function() {
  if (globalThis.__sc) return;
  globalThis.__sc = {
    modules: Object.create(null),
    instances: Object.create(null),
    callbacks: Object.create(null),
    nextCallbackId: 1,
  };
})();
`

// requireShimJS returns the JS source of a require() function bound to
// parentID, used as the "require" local every wrapped module body
// receives. It calls back into Go via __sc_go_resolve (resolve a request
// against parentID) and __sc_go_load (load+compile+evaluate a resolved id,
// called only when the registry has no entry for it), both registered on
// the engine by ScriptRuntime.
func requireShimJS(parentID string) string {
	return fmt.Sprintf(`(function(parentId) {
		return function(request) {
			var id = __sc_go_resolve(parentId, request);
			var entry = globalThis.__sc.modules[id];
			if (entry && entry.loaded) return entry.exports;
			if (entry) return entry.exports; // circular: in-progress, partial exports
			__sc_go_load(id);
			return globalThis.__sc.modules[id].exports;
		};
	})(%q)`, parentID)
}
