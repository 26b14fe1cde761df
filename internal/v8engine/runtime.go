//go:build v8

// Package v8engine implements core.ScriptEngine on top of V8, selected
// with the build tag "v8" in place of the default QuickJS backend.
package v8engine

import (
	"fmt"
	"reflect"

	"github.com/lumenforge/scriptcore/internal/core"
	v8 "github.com/tommie/v8go"
)

// engine implements core.ScriptEngine for the V8 backend.
type engine struct {
	iso *v8.Isolate
	ctx *v8.Context
}

var _ core.ScriptEngine = (*engine)(nil)

// New constructs a V8-backed ScriptEngine.
func New(cfg core.EngineConfig) (core.ScriptEngine, error) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	return &engine{iso: iso, ctx: ctx}, nil
}

// Eval evaluates JavaScript and discards the result.
func (e *engine) Eval(js string) error {
	_, err := e.ctx.RunScript(js, "eval.js")
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (e *engine) EvalString(js string) (string, error) {
	val, err := e.ctx.RunScript(js, "eval_string.js")
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}
	return val.String(), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (e *engine) EvalBool(js string) (bool, error) {
	val, err := e.ctx.RunScript(js, "eval_bool.js")
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, nil
	}
	return val.Boolean(), nil
}

// RegisterFunc registers a Go function as a global JavaScript function
// using reflection to build a V8 FunctionTemplate that marshals arguments
// and return values.
//
// Supported signatures:
//   - func(args...)
//   - func(args...) T
//   - func(args...) (T, error) — throws on error, returns T on success
//
// Supported argument/return types: string, int, float64, bool.
func (e *engine) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(e.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()

		if len(args) < fnType.NumIn() {
			msg := fmt.Sprintf("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(args))
			jsMsg, _ := v8.NewValue(e.iso, msg)
			e.iso.ThrowException(jsMsg)
			return nil
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			goArgs[i] = jsToGoArg(args[i], fnType.In(i))
		}

		results := fnVal.Call(goArgs)

		switch fnType.NumOut() {
		case 0:
			return nil
		case 1:
			return goToJSValue(e.iso, results[0])
		case 2:
			errVal := results[1]
			if !errVal.IsNil() {
				errMsg := errVal.Interface().(error).Error()
				msg := fmt.Sprintf("calling %s: %s", name, errMsg)
				jsMsg, _ := v8.NewValue(e.iso, msg)
				e.iso.ThrowException(jsMsg)
				return nil
			}
			return goToJSValue(e.iso, results[0])
		default:
			return nil
		}
	})

	fnObj := tmpl.GetFunction(e.ctx)
	return e.ctx.Global().Set(name, fnObj)
}

// RunMicrotasks pumps the V8 microtask queue.
func (e *engine) RunMicrotasks() {
	e.ctx.PerformMicrotaskCheckpoint()
}

// Close disposes the context and isolate.
func (e *engine) Close() error {
	e.ctx.Close()
	e.iso.Dispose()
	return nil
}

// jsToGoArg converts a single V8 argument to the reflect.Value a registered
// Go function expects.
func jsToGoArg(val *v8.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Int64:
		return reflect.ValueOf(val.Integer())
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	default:
		return reflect.Zero(targetType)
	}
}

// goToJSValue converts a Go reflect.Value to a V8 value.
func goToJSValue(iso *v8.Isolate, val reflect.Value) *v8.Value {
	if !val.IsValid() {
		return nil
	}
	switch val.Kind() {
	case reflect.String:
		v, _ := v8.NewValue(iso, val.String())
		return v
	case reflect.Int, reflect.Int64, reflect.Int32:
		v, _ := v8.NewValue(iso, int32(val.Int()))
		return v
	case reflect.Float64, reflect.Float32:
		v, _ := v8.NewValue(iso, val.Float())
		return v
	case reflect.Bool:
		v, _ := v8.NewValue(iso, val.Bool())
		return v
	default:
		return nil
	}
}
