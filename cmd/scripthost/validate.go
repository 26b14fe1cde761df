package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lumenforge/scriptcore"
)

func validateCmd() *cobra.Command {
	var module string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a single module and report success or the load error, without running the frame loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(configFile)
			if err != nil {
				return err
			}
			if module == "" {
				module = fc.Run.EntryModule
			}
			return validateModule(fc, module)
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "module id to load (defaults to run.entry_module)")
	return cmd
}

func validateModule(fc fileConfig, module string) error {
	cfg := fc.toCoreConfig()
	log := scriptcore.NewLogger()
	metrics := scriptcore.NewMetrics(prometheus.NewRegistry())

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

	for _, install := range runtime.Bindings() {
		if err := install(engine); err != nil {
			return fmt.Errorf("installing runtime bindings: %w", err)
		}
	}

	result, err := runtime.Require(module)
	if err != nil {
		return fmt.Errorf("%s: %w", module, err)
	}
	fmt.Printf("%s: ok (kind=%s version=%d)\n", module, result.Kind, result.Version)
	return nil
}
