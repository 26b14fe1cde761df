// Package bundler lets module authors write ES module syntax (import/export)
// even though the host only evaluates the CommonJS wrapper contract
// (module, exports, require, __filename, __dirname). It uses esbuild's
// Transform API to lower import/export down to the require()/exports calls
// that contract already understands, the same way the reference worker host
// uses esbuild to lower ESM down to a single global assignment.
package bundler

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// NeedsTransform reports whether source uses import/export syntax and must
// be run through esbuild before it can be handed to the CommonJS wrapper.
// Plain CommonJS modules (the common case, and the fast path) skip esbuild
// entirely.
func NeedsTransform(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "import(") ||
		strings.Contains(source, "export ") ||
		strings.Contains(source, "export{") ||
		strings.Contains(source, "export default")
}

// TransformToCommonJS lowers ES module syntax to CommonJS, targeting the
// same module/exports/require locals the wrapper function already provides.
// On an esbuild error the original source is returned unchanged together
// with a *TransformError; ScriptRuntime reports that as a CompileError and
// does not evaluate the module.
func TransformToCommonJS(moduleID, source string) (string, error) {
	if !NeedsTransform(source) {
		return source, nil
	}

	result := api.Transform(source, api.TransformOptions{
		Sourcefile: moduleID,
		Loader:     api.LoaderJS,
		Format:     api.FormatCommonJS,
		Target:     api.ESNext,
	})
	if len(result.Errors) > 0 {
		return source, transformError(moduleID, result.Errors)
	}
	return string(result.Code), nil
}

func transformError(moduleID string, errs []api.Message) error {
	var b strings.Builder
	b.WriteString("bundler: transforming ")
	b.WriteString(moduleID)
	b.WriteString(": ")
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Text)
	}
	return &TransformError{ModuleID: moduleID, Message: b.String()}
}

// TransformError reports an esbuild failure while lowering a module's ES
// module syntax to CommonJS.
type TransformError struct {
	ModuleID string
	Message  string
}

func (e *TransformError) Error() string { return e.Message }
