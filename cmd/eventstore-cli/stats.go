package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics (requires admin privileges)",
		Long:  "Display event counts per type. Log in with client id \"admin\" to get an admin token.",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stats, err := client.AdminGetStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📊 Store Statistics:\n")
	fmt.Fprintf(out, "   Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(out, "   Event Types: %d\n", stats.TypeCount)

	types := make([]string, 0, len(stats.TypeCounts))
	for t := range stats.TypeCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "   %s: %d\n", t, stats.TypeCounts[t])
	}

	return nil
}
