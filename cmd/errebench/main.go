package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "errebench",
		Short: "Benchmark scenarios for erre streams",
		Long: `errebench drives erre streams through a fixed set of workloads and
reports throughput for each of them.

Flags may also be set through ERREBENCH_* environment variables, for
example ERREBENCH_ITERATIONS=50000 or ERREBENCH_LOG_LEVEL=debug.`,
		Version: version,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console or json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}
