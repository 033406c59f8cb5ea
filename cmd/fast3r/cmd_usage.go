package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fast3r/internal/config"
	"fast3r/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show provider token usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return printUsage(cmd.OutOrStdout(), a.tracker.Stats())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (API key redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		if shown.Provider.APIKey != "" {
			shown.Provider.APIKey = "<redacted>"
		}
		out, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func printUsage(w io.Writer, stats usage.AggregatedStats) error {
	if stats.Total.Calls == 0 {
		fmt.Fprintln(w, "No provider calls recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tNAME\tCALLS\tINPUT\tOUTPUT\tTHINKING\tTOTAL")
	writeCounts(tw, "model", stats.ByModel)
	writeCounts(tw, "operation", stats.ByOperation)
	t := stats.Total
	fmt.Fprintf(tw, "total\t\t%d\t%d\t%d\t%d\t%d\n", t.Calls, t.Input, t.Output, t.Thinking, t.Total)
	return tw.Flush()
}

func writeCounts(w io.Writer, scope string, m map[string]usage.TokenCounts) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := m[name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n", scope, name, c.Calls, c.Input, c.Output, c.Thinking, c.Total)
	}
}
