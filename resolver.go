package scriptcore

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// ResolverConfig configures the ModuleResolver's strategy chain. It is a
// plain struct filled in by the host; the core never reads environment
// variables or flags to populate it.
type ResolverConfig struct {
	// ModsRoot is the filesystem-relative root under which namespaced
	// requests ("ns:relative/path") resolve.
	ModsRoot string
	// Aliases maps a request prefix ("@env/") to its replacement
	// ("Scripts/environment/"). Applied only at the prefix.
	Aliases map[string]string
	// Builtins is the set of request strings that resolve to the
	// reserved "@builtin/" namespace even without the explicit prefix.
	Builtins []string
}

// BuiltinNamespace is the reserved prefix every builtin module id carries
// once resolved.
const BuiltinNamespace = "@builtin/"

// resolveStrategy maps a (parentId, request) pair to a candidate module id,
// or reports that it does not apply ("pass") by returning ok=false.
type resolveStrategy func(parentID, request string) (candidate string, ok bool)

// ModuleResolver is a chain of strategies that maps a (parentId, request)
// pair to a canonical module id. The first strategy to produce a value
// wins; resolution always runs the result through PathNormalizer.
type ModuleResolver struct {
	norm     *PathNormalizer
	cfg      ResolverConfig
	builtins map[string]struct{}
	chain    []resolveStrategy
}

// NewModuleResolver builds the strategy chain in spec order: builtin,
// alias, namespace, relative, absolute.
func NewModuleResolver(norm *PathNormalizer, cfg ResolverConfig) *ModuleResolver {
	builtins := make(map[string]struct{}, len(cfg.Builtins))
	for _, b := range cfg.Builtins {
		builtins[b] = struct{}{}
	}

	r := &ModuleResolver{norm: norm, cfg: cfg, builtins: builtins}
	r.chain = []resolveStrategy{
		r.resolveBuiltin,
		r.resolveAlias,
		r.resolveNamespace,
		r.resolveRelative,
		r.resolveAbsolute,
	}
	return r
}

// Resolve runs the strategy chain and returns the canonical module id.
// Failure to resolve is always reported as an error, never a silent empty
// string.
func (r *ModuleResolver) Resolve(parentID, request string) (string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", &ResolveError{ParentID: parentID, Request: request, Reason: "empty request"}
	}

	for _, strategy := range r.chain {
		candidate, ok := strategy(parentID, request)
		if !ok {
			continue
		}
		id, err := r.norm.Normalize(candidate)
		if err != nil {
			return "", &ResolveError{ParentID: parentID, Request: request, Reason: err.Error()}
		}
		return id, nil
	}

	return "", &ResolveError{ParentID: parentID, Request: request, Reason: "no strategy resolved the request"}
}

// resolveBuiltin handles "@builtin/*" requests and requests matching the
// registered builtin set.
func (r *ModuleResolver) resolveBuiltin(_ string, request string) (string, bool) {
	if strings.HasPrefix(request, BuiltinNamespace) {
		return request, true
	}
	if _, ok := r.builtins[request]; ok {
		return BuiltinNamespace + strings.TrimPrefix(request, "/"), true
	}
	return "", false
}

// resolveAlias applies the configured prefix->replacement map.
func (r *ModuleResolver) resolveAlias(_ string, request string) (string, bool) {
	if len(r.cfg.Aliases) == 0 {
		return "", false
	}

	// Longest-prefix-first so a more specific alias wins over a shorter one.
	prefixes := make([]string, 0, len(r.cfg.Aliases))
	for p := range r.cfg.Aliases {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, prefix := range prefixes {
		if strings.HasPrefix(request, prefix) {
			return r.cfg.Aliases[prefix] + strings.TrimPrefix(request, prefix), true
		}
	}
	return "", false
}

// resolveNamespace handles "ns:relative/path" requests under ModsRoot. An
// empty namespace or empty path passes to the next strategy.
func (r *ModuleResolver) resolveNamespace(_ string, request string) (string, bool) {
	idx := strings.Index(request, ":")
	if idx <= 0 || idx == len(request)-1 {
		return "", false
	}
	// A colon inside what is clearly a path ("./a:b") is not a namespace;
	// namespaces never contain a slash before the colon.
	ns := request[:idx]
	if strings.ContainsAny(ns, "/\\") {
		return "", false
	}
	rel := request[idx+1:]
	if ns == "" || rel == "" {
		return "", false
	}
	if r.cfg.ModsRoot == "" {
		return "", false
	}
	return path.Join(r.cfg.ModsRoot, ns, rel), true
}

// resolveRelative handles "./" and "../" requests against parentID's directory.
func (r *ModuleResolver) resolveRelative(parentID string, request string) (string, bool) {
	if !strings.HasPrefix(request, "./") && !strings.HasPrefix(request, "../") {
		return "", false
	}
	dir := "."
	if parentID != "" {
		dir = path.Dir(parentID)
	}
	return path.Join(dir, request), true
}

// resolveAbsolute is the catch-all: anything else is asset-root-relative.
func (r *ModuleResolver) resolveAbsolute(_ string, request string) (string, bool) {
	return request, true
}

// String is a debugging aid for tests and logs.
func (r *ModuleResolver) String() string {
	return fmt.Sprintf("ModuleResolver{modsRoot=%q aliases=%d builtins=%d}", r.cfg.ModsRoot, len(r.cfg.Aliases), len(r.builtins))
}
