package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zoobzio/erre/internal/bench"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available scenarios",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "Available scenarios:")
		fmt.Fprintln(cmd.OutOrStdout())
		for _, s := range bench.Scenarios() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-15s %s\n", s.Name, s.Description)
		}
	},
}
