package scriptcore

import "testing"

func newTestResolver(t *testing.T, cfg ResolverConfig) *ModuleResolver {
	t.Helper()
	return NewModuleResolver(NewPathNormalizer(), cfg)
}

func TestModuleResolver_RelativeRequest(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{})

	got, err := r.Resolve("a/b/parent.js", "./sibling")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a/b/sibling.js" {
		t.Fatalf("got %q, want a/b/sibling.js", got)
	}
}

func TestModuleResolver_ParentRelativeRequest(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{})

	got, err := r.Resolve("a/b/parent.js", "../uncle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a/uncle.js" {
		t.Fatalf("got %q, want a/uncle.js", got)
	}
}

func TestModuleResolver_AbsoluteRequestIsAssetRootRelative(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{})

	got, err := r.Resolve("anything.js", "top/level")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "top/level.js" {
		t.Fatalf("got %q, want top/level.js", got)
	}
}

func TestModuleResolver_NamespacedRequest(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{ModsRoot: "Mods"})

	got, err := r.Resolve("", "combat:abilities/fireball")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Mods/combat/abilities/fireball.js" {
		t.Fatalf("got %q", got)
	}
}

func TestModuleResolver_NamespaceRequiresModsRoot(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{})

	// Without ModsRoot configured, a "ns:path" request falls through to the
	// absolute strategy and is treated as a literal asset-root-relative id.
	got, err := r.Resolve("", "combat:abilities/fireball")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "combat:abilities/fireball.js" {
		t.Fatalf("got %q", got)
	}
}

func TestModuleResolver_Alias(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{
		Aliases: map[string]string{"@env/": "Scripts/environment/"},
	})

	got, err := r.Resolve("", "@env/weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Scripts/environment/weather.js" {
		t.Fatalf("got %q", got)
	}
}

func TestModuleResolver_AliasLongestPrefixWins(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{
		Aliases: map[string]string{
			"@env/":        "Scripts/environment/",
			"@env/special": "Scripts/special-environment",
		},
	})

	got, err := r.Resolve("", "@env/special/thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Scripts/special-environment/thing.js" {
		t.Fatalf("got %q, longest-prefix alias did not win", got)
	}
}

func TestModuleResolver_Builtin(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{Builtins: []string{"events"}})

	got, err := r.Resolve("", "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != BuiltinNamespace+"events.js" {
		t.Fatalf("got %q, want %q", got, BuiltinNamespace+"events.js")
	}

	got, err = r.Resolve("", "@builtin/time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != BuiltinNamespace+"time.js" {
		t.Fatalf("got %q", got)
	}
}

func TestModuleResolver_EmptyRequestIsError(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{})

	if _, err := r.Resolve("", "   "); err == nil {
		t.Fatalf("expected error for an empty/whitespace-only request")
	}
}

func TestModuleResolver_IsIdempotentForAlreadyCanonicalID(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{})

	first, err := r.Resolve("", "top/level")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve("", first)
	if err != nil {
		t.Fatalf("unexpected error resolving an already-canonical id: %v", err)
	}
	if first != second {
		t.Fatalf("resolution is not idempotent: %q != %q", first, second)
	}
}
