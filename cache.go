package scriptcore

import (
	"bytes"
	"container/list"
	"hash/fnv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
)

// hashText returns the FNV-1a 64-bit hash of text, used as the content
// component of every SourceKey.
func hashText(text string) uint64 {
	h := fnv.New64a()
	_, _ = io.WriteString(h, text)
	return h.Sum64()
}

type lruEntry struct {
	key        string
	value      []byte
	compressed bool
	storedAt   time.Time
}

// boundedLRU is a capacity-bounded, optionally idle-expiring cache of
// []byte values keyed by string, evicting least-recently-used entries
// first. Safe for concurrent use.
type boundedLRU struct {
	mu          sync.Mutex
	capacity    int
	idleExpiry  time.Duration
	compressMin int
	ll          *list.List
	items       map[string]*list.Element
}

func newBoundedLRU(capacity int, idleExpiry time.Duration, compressMin int) *boundedLRU {
	return &boundedLRU{
		capacity:    capacity,
		idleExpiry:  idleExpiry,
		compressMin: compressMin,
		ll:          list.New(),
		items:       make(map[string]*list.Element),
	}
}

func (c *boundedLRU) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	if c.idleExpiry > 0 && time.Since(entry.storedAt) > c.idleExpiry {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	entry.storedAt = time.Now()

	if !entry.compressed {
		return entry.value, true
	}
	decompressed, err := decompress(entry.value)
	if err != nil {
		return nil, false
	}
	return decompressed, true
}

func (c *boundedLRU) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := value
	compressed := false
	if c.compressMin > 0 && len(value) >= c.compressMin {
		if z, err := compress(value); err == nil && len(z) < len(value) {
			stored = z
			compressed = true
		}
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).value = stored
		el.Value.(*lruEntry).compressed = compressed
		el.Value.(*lruEntry).storedAt = time.Now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&lruEntry{key: key, value: stored, compressed: compressed, storedAt: time.Now()})
	c.items[key] = el

	if c.capacity > 0 {
		for c.ll.Len() > c.capacity {
			back := c.ll.Back()
			if back == nil {
				break
			}
			c.ll.Remove(back)
			delete(c.items, back.Value.(*lruEntry).key)
		}
	}
}

func (c *boundedLRU) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// deletePrefix removes every entry whose key has the given prefix,
// returning the number removed. Used by ScriptCache.Invalidate.
func (c *boundedLRU) deletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.items {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.ll.Remove(el)
			delete(c.items, key)
			n++
		}
	}
	return n
}

func (c *boundedLRU) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}

// ScriptCache is the bounded, three-tier cache described in the component
// design: raw module source text, CommonJS-wrapped source, and compiled
// source handles (each engine backend's own serialized/compiled
// representation, opaque to ScriptCache). All three are keyed by module id
// (and, for wrapped/compiled, by content hash) so a changed file's stale
// entries are never served.
type ScriptCache struct {
	cfg           CacheConfig
	moduleText    *boundedLRU
	wrappedCode   *boundedLRU
	compiledCache *boundedLRU
}

// NewScriptCache builds a ScriptCache from cfg.
func NewScriptCache(cfg CacheConfig) *ScriptCache {
	return &ScriptCache{
		cfg:           cfg,
		moduleText:    newBoundedLRU(cfg.ModuleTextCapacity, cfg.ModuleTextIdleExpiry, cfg.CompressMinBytes),
		wrappedCode:   newBoundedLRU(cfg.WrappedCodeCapacity, 0, cfg.CompressMinBytes),
		compiledCache: newBoundedLRU(cfg.CompiledSourceCapacity, 0, 0),
	}
}

// GetModuleText returns the cached raw source text for moduleID, if present
// and not idle-expired.
func (c *ScriptCache) GetModuleText(moduleID string) (string, bool) {
	b, ok := c.moduleText.get(moduleID)
	if !ok {
		return "", false
	}
	return string(b), true
}

// PutModuleText caches raw source text for moduleID.
func (c *ScriptCache) PutModuleText(moduleID, text string) {
	c.moduleText.put(moduleID, []byte(text))
}

// sourceCacheKey formats a SourceKey into the string key used by the
// wrapped-code and compiled-source tiers.
func sourceCacheKey(key SourceKey) string {
	return key.ModuleID + "#" + strconv.FormatUint(key.Hash, 16)
}

// GetWrappedCode returns the cached CommonJS-wrapped source for key.
func (c *ScriptCache) GetWrappedCode(key SourceKey) (string, bool) {
	b, ok := c.wrappedCode.get(sourceCacheKey(key))
	if !ok {
		return "", false
	}
	return string(b), true
}

// PutWrappedCode caches wrapped source for key.
func (c *ScriptCache) PutWrappedCode(key SourceKey, wrapped string) {
	c.wrappedCode.put(sourceCacheKey(key), []byte(wrapped))
}

// GetCompiled returns the cached compiled-source bytes for key. The
// representation is backend-defined; ScriptCache stores it opaquely.
func (c *ScriptCache) GetCompiled(key SourceKey) ([]byte, bool) {
	return c.compiledCache.get(sourceCacheKey(key))
}

// PutCompiled caches compiled-source bytes for key.
func (c *ScriptCache) PutCompiled(key SourceKey, compiled []byte) {
	c.compiledCache.put(sourceCacheKey(key), compiled)
}

// Invalidate removes every cached tier's entries for moduleID, called when
// HotReloadWatcher reports the module's source changed.
func (c *ScriptCache) Invalidate(moduleID string) {
	c.moduleText.delete(moduleID)
	c.wrappedCode.deletePrefix(moduleID + "#")
	c.compiledCache.deletePrefix(moduleID + "#")
}

// Stats reports the current entry count of each tier, for diagnostics and
// tests.
type CacheStats struct {
	ModuleTextEntries    int
	WrappedCodeEntries   int
	CompiledCacheEntries int
}

func (c *ScriptCache) Stats() CacheStats {
	return CacheStats{
		ModuleTextEntries:    c.moduleText.len(),
		WrappedCodeEntries:   c.wrappedCode.len(),
		CompiledCacheEntries: c.compiledCache.len(),
	}
}
