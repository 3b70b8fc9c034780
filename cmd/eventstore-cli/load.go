package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/httpclient"
)

func newLoadCommand() *cobra.Command {
	var (
		file        string
		batchSize   int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Bulk insert events from a JSON lines file",
		Long: `Read events from a file (or stdin with "-") holding one JSON object per line,
e.g. {"type":"user.created","timestamp":42}, and insert them in batches.
Batches are sent concurrently, so the arrival order of events of the same type
across batches is not guaranteed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, file, batchSize, concurrency)
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "JSON lines file to read, - for stdin")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "Events per request")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent requests")

	return cmd
}

func runLoad(cmd *cobra.Command, file string, batchSize, concurrency int) error {
	if err := requireAuthentication(); err != nil {
		return err
	}
	if batchSize <= 0 || concurrency <= 0 {
		return fmt.Errorf("batch-size and concurrency must be positive")
	}

	var in io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		in = f
	}

	events, err := readEvents(in)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "📭 No events to load\n")
		return nil
	}

	var inserted, rejected atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(concurrency)

	for start := 0; start < len(events); start += batchSize {
		batch := events[start:min(start+batchSize, len(events))]
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp, err := client.InsertEvents(reqCtx, batch)
			if err != nil {
				return err
			}
			inserted.Add(int64(resp.Inserted))
			rejected.Add(int64(resp.Rejected))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Loaded %d events (%d inserted, %d rejected)\n",
		len(events), inserted.Load(), rejected.Load())
	return nil
}

// readEvents parses one event per non-blank line
func readEvents(r io.Reader) ([]httpclient.Event, error) {
	var events []httpclient.Event

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var event httpclient.Event
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(text, &event); err != nil {
			return nil, fmt.Errorf("line %d: invalid event: %w", line, err)
		}
		if event.Type == "" {
			return nil, fmt.Errorf("line %d: type is required", line)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}
