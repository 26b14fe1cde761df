package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lumenforge/scriptcore"
	"github.com/lumenforge/scriptcore/hostapi"
)

func runCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the entry module and drive it with the frame loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(configFile)
			if err != nil {
				return err
			}
			return runHost(fc, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runHost(fc fileConfig, metricsAddr string) error {
	cfg := fc.toCoreConfig()
	log := scriptcore.NewLogger()

	registry := prometheus.NewRegistry()
	metrics := scriptcore.NewMetrics(registry)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		log.Info("metrics listening", "addr", metricsAddr)
	}

	engine, err := scriptcore.NewEngine(cfg.Engine)
	if err != nil {
		return fmt.Errorf("constructing script engine: %w", err)
	}
	defer engine.Close()

	assets := scriptcore.NewFileAssetReader(fc.Assets.Root)
	norm := scriptcore.NewPathNormalizer()
	resolver := scriptcore.NewModuleResolver(norm, cfg.Resolver)
	cache := scriptcore.NewScriptCache(cfg.Cache)
	jobs := scriptcore.NewJobQueue(cfg.JobQueue, log, metrics)
	runtime := scriptcore.NewScriptRuntime(resolver, cache, assets, engine, cfg.Engine, log, metrics, jobs)
	bus := scriptcore.NewEventBus(cfg.EventBus, log, metrics)

	world := scriptcore.NewWorld()
	surface := &hostapi.Surface{
		World:    world.Entities,
		Bus:      bus,
		Runtime:  runtime,
		Assets:   assets,
		Log:      log,
		FrameTPF: currentTPF,
	}
	lifecycle := scriptcore.NewScriptLifecycle(world.Entities, runtime, bus, log, metrics, surface.EntityAPI)
	world.AddSystem(lifecycle)

	var watcher *scriptcore.HotReloadWatcher
	watcherCfg := cfg.Watcher
	if watcherCfg.Enabled && len(watcherCfg.Roots) == 0 {
		watcherCfg.Roots = []string{fc.Assets.Root}
	}
	watcher, err = scriptcore.NewHotReloadWatcher(watcherCfg, resolver, log)
	if err != nil {
		return fmt.Errorf("starting hot reload watcher: %w", err)
	}
	defer watcher.Close()

	bindings := func() []scriptcore.BindingInstaller {
		return append(runtime.Bindings(), surface.Installer()...)
	}
	for _, install := range bindings() {
		if err := install(engine); err != nil {
			return fmt.Errorf("installing bindings: %w", err)
		}
	}

	app := scriptcore.NewWorldAppState(jobs, watcher, bus, runtime, lifecycle, engine, cfg.JobQueue.DrainBudget, bindings, log)
	app.SetWorld(world)

	if fc.Run.EntryModule != "" {
		if _, err := runtime.Require(fc.Run.EntryModule); err != nil {
			return fmt.Errorf("loading entry module %s: %w", fc.Run.EntryModule, err)
		}
		entity := world.Entities.CreateEntity()
		lifecycle.AttachScript(entity, fc.Run.EntryModule)
		log.Info("entry module loaded", "module", fc.Run.EntryModule, "entity", entity)
	}

	return driveLoop(app, fc.Run.TickRate, log)
}

// driveLoop runs app.Tick at the configured rate until SIGINT/SIGTERM.
func driveLoop(app *scriptcore.WorldAppState, tickRate time.Duration, log *slog.Logger) error {
	if tickRate <= 0 {
		tickRate = 16 * time.Millisecond
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	tpf := tickRate.Seconds()
	setCurrentTPF(tpf)

	log.Info("frame driver started", "tick_rate", tickRate)
	for {
		select {
		case <-sigCh:
			log.Info("shutdown signal received")
			return nil
		case <-ticker.C:
			app.Tick(tpf)
		}
	}
}

var currentTPFValue float64

func setCurrentTPF(v float64) { currentTPFValue = v }
func currentTPF() float64     { return currentTPFValue }
