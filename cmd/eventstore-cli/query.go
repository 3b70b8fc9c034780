package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/httpclient"
)

func newQueryCommand() *cobra.Command {
	var (
		eventType  string
		start, end int64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List events of a type in a time range",
		Long: `List the events of one type whose timestamp lies in [start, end).
Omitted bounds cover the whole timeline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, eventType, httpclient.QueryOptions{
				Start: optionalInt64(cmd, "start", start),
				End:   optionalInt64(cmd, "end", end),
				Limit: limit,
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Event type (required)")
	cmd.Flags().Int64Var(&start, "start", 0, "Inclusive lower bound")
	cmd.Flags().Int64Var(&end, "end", 0, "Exclusive upper bound")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events (server default when 0)")
	markRequired(cmd, "type")

	return cmd
}

func runQuery(cmd *cobra.Command, eventType string, opts httpclient.QueryOptions) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.Query(ctx, eventType, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Count == 0 {
		fmt.Fprintf(out, "📭 No %s events in [%d, %d)\n", eventType, resp.Start, resp.End)
		return nil
	}

	fmt.Fprintf(out, "📊 %d %s events in [%d, %d):\n", resp.Count, eventType, resp.Start, resp.End)
	for _, e := range resp.Events {
		fmt.Fprintf(out, "   %s@%d\n", e.Type, e.Timestamp)
	}
	if resp.Truncated {
		fmt.Fprintf(out, "⚠️  Result truncated; narrow the range or raise --limit\n")
	}

	return nil
}

func newRemoveCommand() *cobra.Command {
	var eventType string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove every event of a type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.RemoveAll(ctx, eventType); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed all %s events\n", eventType)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Event type (required)")
	markRequired(cmd, "type")

	return cmd
}

func newPruneCommand() *cobra.Command {
	var (
		eventType  string
		start, end int64
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove events of a type in a time range",
		Long: `Remove the events of one type whose timestamp lies in [start, end).
Omitted bounds cover the whole timeline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			resp, err := client.Prune(ctx, eventType, optionalInt64(cmd, "start", start), optionalInt64(cmd, "end", end))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed %d %s events in [%d, %d)\n", resp.Removed, eventType, resp.Start, resp.End)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Event type (required)")
	cmd.Flags().Int64Var(&start, "start", 0, "Inclusive lower bound")
	cmd.Flags().Int64Var(&end, "end", 0, "Exclusive upper bound")
	markRequired(cmd, "type")

	return cmd
}

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List stored event types",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			types, err := client.ListTypes(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(types) == 0 {
				fmt.Fprintf(out, "📭 No event types stored\n")
				return nil
			}
			fmt.Fprintf(out, "📋 %d event types:\n", len(types))
			for _, t := range types {
				fmt.Fprintf(out, "   %s\n", t)
			}
			return nil
		},
	}
}
