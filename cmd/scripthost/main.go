// Command scripthost is a standalone runner for the scripting core: it
// wires an engine backend, the module runtime and lifecycle, the event
// bus and job queue, and the frame driver into a headless tick loop,
// driven by a single TOML config file. It exists for local iteration and
// smoke-testing modules outside a real engine host — the frame driver and
// every package it drives are equally at home embedded in one.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "scripthost",
		Short: "Run and inspect scriptcore modules outside a full engine host",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML config file")

	root.AddCommand(runCmd(), validateCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scripthost version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("scripthost (scriptcore)")
			return nil
		},
	}
}
