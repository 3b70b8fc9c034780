package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newInsertCommand() *cobra.Command {
	var (
		eventType string
		timestamp int64
	)

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert an event",
		Long: `Insert a single event of the given type. The timestamp is an opaque
ordering key; when omitted the current Unix time in milliseconds is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timestamp") {
				timestamp = time.Now().UnixMilli()
			}
			return runInsert(cmd, eventType, timestamp)
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Event type (required)")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "Event timestamp (default: now in Unix milliseconds)")
	markRequired(cmd, "type")

	return cmd
}

func runInsert(cmd *cobra.Command, eventType string, timestamp int64) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	event, err := client.InsertEvent(ctx, eventType, timestamp)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Inserted %s@%d\n", event.Type, event.Timestamp)
	return nil
}
