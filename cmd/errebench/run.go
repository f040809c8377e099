package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoobzio/erre/internal/bench"
)

var runCmd = &cobra.Command{
	Use:     "run [scenario...]",
	Aliases: []string{"bench"},
	Short:   "Run benchmark scenarios",
	Long: `Run one or more benchmark scenarios. With no arguments every scenario runs.

Available scenarios:
  create-destroy  Create a stream, push once, end it from a value listener
  stress          Push seven mixed values through four stages and four listeners
  fork            Push, fork, end the original, then drive the fork`,
	ValidArgsFunction: func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range bench.Names() {
			if strings.HasPrefix(name, toComplete) {
				completions = append(completions, name)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		scenarios, err := selectScenarios(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		logger := newLogger(cfg, cmd.ErrOrStderr())
		runner := bench.NewRunner().WithLogger(logger)
		for _, s := range scenarios {
			report, err := runner.Measure(ctx, s, cfg.Iterations)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Int("iterations", 10000, "Iterations per scenario")
}

func selectScenarios(names []string) ([]bench.Scenario, error) {
	if len(names) == 0 {
		return bench.Scenarios(), nil
	}
	scenarios := make([]bench.Scenario, 0, len(names))
	for _, name := range names {
		s, ok := bench.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario: %s\n\nRun 'errebench list' to see available scenarios", name)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
