package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/lumenforge/scriptcore"
)

// fileConfig is the on-disk TOML shape for a scripthost deployment. Most
// of its sections mirror scriptcore.Config and toCoreConfig lowers them into
// the core's own Config; the host-only sections (asset root, entry module,
// run-loop tick rate) stay on fileConfig and are read by the host directly.
type fileConfig struct {
	Engine struct {
		MemoryLimitMB   int `toml:"memory_limit_mb"`
		MaxScriptSizeKB int `toml:"max_script_size_kb"`
	} `toml:"engine"`

	Resolver struct {
		ModsRoot string            `toml:"mods_root"`
		Aliases  map[string]string `toml:"aliases"`
		Builtins []string          `toml:"builtins"`
	} `toml:"resolver"`

	Cache struct {
		ModuleTextCapacity     int           `toml:"module_text_capacity"`
		ModuleTextIdleExpiry   time.Duration `toml:"module_text_idle_expiry"`
		WrappedCodeCapacity    int           `toml:"wrapped_code_capacity"`
		CompiledSourceCapacity int           `toml:"compiled_source_capacity"`
		CompressMinBytes       int           `toml:"compress_min_bytes"`
	} `toml:"cache"`

	EventBus struct {
		HistorySize int `toml:"history_size"`
	} `toml:"event_bus"`

	JobQueue struct {
		DrainBudget int `toml:"drain_budget"`
	} `toml:"job_queue"`

	Watcher struct {
		Enabled        bool          `toml:"enabled"`
		Roots          []string      `toml:"roots"`
		DebounceWindow time.Duration `toml:"debounce_window"`
	} `toml:"watcher"`

	Assets struct {
		Root string `toml:"root"`
	} `toml:"assets"`

	Run struct {
		EntryModule string        `toml:"entry_module"`
		TickRate    time.Duration `toml:"tick_rate"`
	} `toml:"run"`
}

// defaultFileConfig mirrors scriptcore.DefaultConfig for every field the
// core itself defaults, plus the host-only run settings.
func defaultFileConfig() fileConfig {
	var fc fileConfig
	def := scriptcore.DefaultConfig()
	fc.Cache.ModuleTextCapacity = def.Cache.ModuleTextCapacity
	fc.Cache.ModuleTextIdleExpiry = def.Cache.ModuleTextIdleExpiry
	fc.Cache.WrappedCodeCapacity = def.Cache.WrappedCodeCapacity
	fc.Cache.CompiledSourceCapacity = def.Cache.CompiledSourceCapacity
	fc.Cache.CompressMinBytes = def.Cache.CompressMinBytes
	fc.EventBus.HistorySize = def.EventBus.HistorySize
	fc.JobQueue.DrainBudget = def.JobQueue.DrainBudget
	fc.Watcher.DebounceWindow = def.Watcher.DebounceWindow
	fc.Run.TickRate = 16 * time.Millisecond
	fc.Run.EntryModule = "main.js"
	return fc
}

// loadFileConfig reads and parses a TOML config file, falling back to
// defaultFileConfig when path is empty.
func loadFileConfig(path string) (fileConfig, error) {
	fc := defaultFileConfig()
	if path == "" {
		return fc, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return fc, nil
}

// toCoreConfig lowers fc into the scriptcore.Config the runtime components
// are constructed from.
func (fc fileConfig) toCoreConfig() scriptcore.Config {
	cfg := scriptcore.DefaultConfig()
	cfg.Engine = scriptcore.EngineConfig{
		MemoryLimitMB:   fc.Engine.MemoryLimitMB,
		MaxScriptSizeKB: fc.Engine.MaxScriptSizeKB,
	}
	cfg.Resolver = scriptcore.ResolverConfig{
		ModsRoot: fc.Resolver.ModsRoot,
		Aliases:  fc.Resolver.Aliases,
		Builtins: fc.Resolver.Builtins,
	}
	cfg.Cache = scriptcore.CacheConfig{
		ModuleTextCapacity:     fc.Cache.ModuleTextCapacity,
		ModuleTextIdleExpiry:   fc.Cache.ModuleTextIdleExpiry,
		WrappedCodeCapacity:    fc.Cache.WrappedCodeCapacity,
		CompiledSourceCapacity: fc.Cache.CompiledSourceCapacity,
		CompressMinBytes:       fc.Cache.CompressMinBytes,
	}
	cfg.EventBus = scriptcore.EventBusConfig{HistorySize: fc.EventBus.HistorySize}
	cfg.JobQueue = scriptcore.JobQueueConfig{DrainBudget: fc.JobQueue.DrainBudget}
	cfg.Watcher = scriptcore.WatcherConfig{
		Enabled:        fc.Watcher.Enabled,
		Roots:          fc.Watcher.Roots,
		DebounceWindow: fc.Watcher.DebounceWindow,
	}
	return cfg
}
