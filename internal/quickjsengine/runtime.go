//go:build !v8

// Package quickjsengine implements core.ScriptEngine on top of QuickJS,
// the default build of scriptcore. Select the V8 backend instead with
// "-tags v8".
package quickjsengine

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/lumenforge/scriptcore/internal/core"
	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// engine implements core.ScriptEngine for the QuickJS backend.
type engine struct {
	vm *quickjs.VM
}

var _ core.ScriptEngine = (*engine)(nil)

// New constructs a QuickJS-backed ScriptEngine.
func New(cfg core.EngineConfig) (core.ScriptEngine, error) {
	vm := quickjs.NewVM()
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uint64(cfg.MemoryLimitMB) * 1024 * 1024)
	}
	return &engine{vm: vm}, nil
}

// Eval evaluates JavaScript and discards the result.
func (e *engine) Eval(js string) error {
	v, err := e.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (e *engine) EvalString(js string) (string, error) {
	result, err := e.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (e *engine) EvalBool(js string) (bool, error) {
	result, err := e.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Multi-value Go returns (T, error) are unwrapped: on success returns T, on
// error throws — the QuickJS Go wrapper returns multi-value results as JS
// arrays, so the raw binding is wrapped in a small JS shim.
func (e *engine) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := e.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new Error("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return e.Eval(wrapJS)
}

// RunMicrotasks pumps the QuickJS pending job queue. The Go wrapper never
// calls JS_ExecutePendingJob itself, so without this Promise .then()
// callbacks would never fire.
func (e *engine) RunMicrotasks() {
	executePendingJobs(e.vm)
}

// Close releases the VM.
func (e *engine) Close() error {
	e.vm.Close()
	return nil
}

// executePendingJobs runs all pending microtasks in the QuickJS runtime
// using unsafe reflection to reach the Go wrapper's unexported internals,
// since the wrapper exposes no public pump method.
func executePendingJobs(vm *quickjs.VM) int {
	rt, tls, ok := extractRuntime(vm)
	if !ok {
		return 0
	}

	count := 0
	for {
		ret := lib.XJS_ExecutePendingJob(tls, rt, 0)
		if ret <= 0 {
			break
		}
		count++
	}
	return count
}

// extractRuntime pulls the unexported tls and cRuntime values out of a
// *quickjs.VM. VM struct layout (modernc.org/quickjs@v0.17.1):
//
//	type VM struct { ...; runtime *runtime; ... }
//	type runtime struct { cRuntime uintptr; tls *libc.TLS }
func extractRuntime(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, ok bool) {
	vmVal := reflect.ValueOf(vm).Elem()

	rtField := vmVal.FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return 0, nil, false
	}

	rtPtr := unsafe.Pointer(rtField.Pointer())
	rtVal := reflect.NewAt(rtField.Type().Elem(), rtPtr).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return 0, nil, false
	}
	cRuntime = uintptr(cRuntimeField.Uint())

	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, false
	}
	tls = (*libc.TLS)(unsafe.Pointer(tlsField.Pointer()))

	return cRuntime, tls, true
}
