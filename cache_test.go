package scriptcore

import (
	"strings"
	"testing"
	"time"
)

func TestScriptCache_ModuleTextRoundTrip(t *testing.T) {
	c := NewScriptCache(DefaultCacheConfig())

	if _, ok := c.GetModuleText("a.js"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.PutModuleText("a.js", "console.log(1)")
	got, ok := c.GetModuleText("a.js")
	if !ok || got != "console.log(1)" {
		t.Fatalf("got (%q, %v), want (%q, true)", got, ok, "console.log(1)")
	}
}

func TestScriptCache_CompressesLargeEntries(t *testing.T) {
	cfg := DefaultCacheConfig()
	cfg.CompressMinBytes = 16
	c := NewScriptCache(cfg)

	big := strings.Repeat("a", 1024)
	c.PutModuleText("big.js", big)

	got, ok := c.GetModuleText("big.js")
	if !ok || got != big {
		t.Fatalf("round trip through compression failed: ok=%v len(got)=%d", ok, len(got))
	}
}

func TestScriptCache_WrappedAndCompiledKeyedBySourceKey(t *testing.T) {
	c := NewScriptCache(DefaultCacheConfig())

	keyA := SourceKey{ModuleID: "m.js", Hash: 1}
	keyB := SourceKey{ModuleID: "m.js", Hash: 2}

	c.PutWrappedCode(keyA, "wrappedA")
	c.PutWrappedCode(keyB, "wrappedB")

	gotA, ok := c.GetWrappedCode(keyA)
	if !ok || gotA != "wrappedA" {
		t.Fatalf("keyA: got (%q, %v)", gotA, ok)
	}
	gotB, ok := c.GetWrappedCode(keyB)
	if !ok || gotB != "wrappedB" {
		t.Fatalf("keyB: got (%q, %v)", gotB, ok)
	}

	c.PutCompiled(keyA, []byte{1, 2, 3})
	if compiled, ok := c.GetCompiled(keyA); !ok || len(compiled) != 3 {
		t.Fatalf("compiled round trip failed: ok=%v", ok)
	}
}

func TestScriptCache_InvalidateClearsAllTiersForModule(t *testing.T) {
	c := NewScriptCache(DefaultCacheConfig())

	c.PutModuleText("m.js", "source")
	key := SourceKey{ModuleID: "m.js", Hash: hashText("source")}
	c.PutWrappedCode(key, "wrapped")
	c.PutCompiled(key, []byte("compiled"))

	c.Invalidate("m.js")

	if _, ok := c.GetModuleText("m.js"); ok {
		t.Fatalf("module text survived invalidation")
	}
	if _, ok := c.GetWrappedCode(key); ok {
		t.Fatalf("wrapped code survived invalidation")
	}
	if _, ok := c.GetCompiled(key); ok {
		t.Fatalf("compiled source survived invalidation")
	}
}

func TestScriptCache_InvalidateDoesNotAffectOtherModules(t *testing.T) {
	c := NewScriptCache(DefaultCacheConfig())

	c.PutModuleText("a.js", "A")
	c.PutModuleText("b.js", "B")

	c.Invalidate("a.js")

	if _, ok := c.GetModuleText("a.js"); ok {
		t.Fatalf("a.js survived its own invalidation")
	}
	if got, ok := c.GetModuleText("b.js"); !ok || got != "B" {
		t.Fatalf("unrelated module b.js was affected: got (%q, %v)", got, ok)
	}
}

func TestBoundedLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newBoundedLRU(2, 0, 0)
	c.put("a", []byte("1"))
	c.put("b", []byte("2"))
	c.put("c", []byte("3")) // evicts "a"

	if _, ok := c.get("a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if _, ok := c.get("b"); !ok {
		t.Fatalf("expected b to remain")
	}
	if _, ok := c.get("c"); !ok {
		t.Fatalf("expected c to remain")
	}
}

func TestBoundedLRU_IdleExpiry(t *testing.T) {
	c := newBoundedLRU(10, time.Millisecond, 0)
	c.put("a", []byte("1"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.get("a"); ok {
		t.Fatalf("expected a to have idle-expired")
	}
}

func TestHashText_Deterministic(t *testing.T) {
	if hashText("hello") != hashText("hello") {
		t.Fatalf("hashText is not deterministic for identical input")
	}
	if hashText("hello") == hashText("world") {
		t.Fatalf("hashText collided for distinct short inputs")
	}
}
