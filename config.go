package scriptcore

import "time"

// CacheConfig configures ScriptCache's three bounded LRU tiers.
type CacheConfig struct {
	// ModuleTextCapacity bounds the number of raw source-text entries kept.
	ModuleTextCapacity int
	// ModuleTextIdleExpiry evicts a module-text entry unused for this long,
	// even if the cache is below capacity. Zero disables idle expiry.
	ModuleTextIdleExpiry time.Duration
	// WrappedCodeCapacity bounds the number of wrapped-source entries kept.
	WrappedCodeCapacity int
	// CompiledSourceCapacity bounds the number of compiled-source entries
	// kept.
	CompiledSourceCapacity int
	// CompressMinBytes is the entry size at or above which module-text and
	// wrapped-code entries are brotli-compressed in the cache. Zero disables
	// compression.
	CompressMinBytes int
}

// DefaultCacheConfig matches the capacities and idle-expiry windows named
// in the component design: 2000 module-text entries expiring after 30s of
// inactivity, 512 wrapped/compiled entries kept until explicitly
// invalidated.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ModuleTextCapacity:     2000,
		ModuleTextIdleExpiry:   30 * time.Second,
		WrappedCodeCapacity:    512,
		CompiledSourceCapacity: 512,
		CompressMinBytes:       4096,
	}
}

// EventBusConfig configures EventBus dispatch and history capture.
type EventBusConfig struct {
	// HistorySize is the number of past envelopes retained for
	// introspection. Zero disables history capture entirely.
	HistorySize int
}

// DefaultEventBusConfig disables history capture.
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{HistorySize: 0}
}

// JobQueueConfig configures the background->main job queue.
type JobQueueConfig struct {
	// DrainBudget is the maximum number of jobs executed per drain() call.
	// Zero means unbounded.
	DrainBudget int
}

// DefaultJobQueueConfig drains up to 256 jobs per frame.
func DefaultJobQueueConfig() JobQueueConfig {
	return JobQueueConfig{DrainBudget: 256}
}

// LifecycleConfig configures ScriptLifecycle.
type LifecycleConfig struct {
	// InstanceIdleExpiry is carried in Config but is not read by
	// ScriptLifecycle: no script instance is removed for being idle. An
	// instance ends only through OnEntityRemoved, OnHotReloadChanged, Reset,
	// or reinstantiation after a version change.
	InstanceIdleExpiry time.Duration
}

// DefaultLifecycleConfig leaves InstanceIdleExpiry zero.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{}
}

// WatcherConfig configures HotReloadWatcher.
type WatcherConfig struct {
	// Roots are the filesystem directories watched for changes.
	Roots []string
	// DebounceWindow collapses a burst of filesystem events for the same
	// path into a single reported change per poll.
	DebounceWindow time.Duration
	// Enabled toggles the watcher; when false, Poll always returns empty.
	Enabled bool
}

// DefaultWatcherConfig debounces over 150ms and is disabled by default —
// a host opts in by setting Enabled and Roots.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{DebounceWindow: 150 * time.Millisecond}
}

// EngineConfig carries backend-agnostic script engine construction
// parameters. The core never reads environment variables or flags to
// populate any Config field; a host (e.g. cmd/scripthost) is responsible
// for assembling one from flags, a config file, or hardcoded defaults.
type EngineConfig struct {
	MemoryLimitMB   int
	MaxScriptSizeKB int
}

// Config aggregates every tunable of the scripting core. The zero Config
// is usable; DefaultConfig fills in the same defaults each sub-config's
// DefaultX function provides.
type Config struct {
	Resolver  ResolverConfig
	Cache     CacheConfig
	EventBus  EventBusConfig
	JobQueue  JobQueueConfig
	Lifecycle LifecycleConfig
	Watcher   WatcherConfig
	Engine    EngineConfig
}

// DefaultConfig returns a Config populated with every component's default
// sub-config. Resolver and Engine are left zero-valued; a host must set
// Resolver.ModsRoot (and typically Watcher.Roots) to something real.
func DefaultConfig() Config {
	return Config{
		Cache:     DefaultCacheConfig(),
		EventBus:  DefaultEventBusConfig(),
		JobQueue:  DefaultJobQueueConfig(),
		Lifecycle: DefaultLifecycleConfig(),
		Watcher:   DefaultWatcherConfig(),
	}
}
