// Package main is the mesisim driver: it wires shared memory, the
// snooping bus, four MESI caches, four memory ports, and four PEs into
// the dot-product benchmark, then reports the result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/config"
)

var rootCmd = &cobra.Command{
	Use:   "mesisim",
	Short: "mesisim runs a small 4-PE MESI multiprocessor simulation.",
	Long: "mesisim wires a shared-memory backing store, a snooping MESI bus, " +
		"and four register-machine PEs into a parallel dot-product benchmark, " +
		"then reports coherence metrics and the numeric result.",
	RunE: runSim,
}

func init() {
	rootCmd.Flags().String("mode", string(config.ModeDot), `run mode: "dot" or "demo"`)
	rootCmd.Flags().Int("N", config.DefaultN, "vector length")
	rootCmd.Flags().Bool("nostep", false, "disable pausing between bus events in demo mode")
	rootCmd.Flags().String("monitor-addr", "", `start a live HTTP monitor at this address, e.g. ":6060"`)
	rootCmd.Flags().String("trace-db", "", "persist every bus transaction to this SQLite file")
	rootCmd.Flags().String("csv-out", "", "path for the per-cache metrics CSV")
}

// Execute runs the root command, exiting the process with the code the
// simulation determined (0 pass, 1 numeric mismatch, 2 bad config).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
