package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pubsub-go/pkg/httpclient"
)

func newStreamCommand() *cobra.Command {
	var (
		channels     []string
		bufferSize   int
		prettyFormat bool
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream events in real-time",
		Long: `Stream events in real-time using Server-Sent Events.
With --channel (repeatable, literal or pattern) the stream subscribes to those
channels for its own lifetime. Without it the stream delivers everything this
client subscribed to with 'subscribe'. Press Ctrl+C to stop streaming.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, channels, bufferSize, prettyFormat, limit)
		},
	}

	cmd.Flags().StringArrayVar(&channels, "channel", nil, "Channel or pattern to stream (repeatable)")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 100, "Event buffer size")
	cmd.Flags().BoolVar(&prettyFormat, "pretty", false, "Pretty print JSON payloads")
	cmd.Flags().IntVar(&limit, "limit", 0, "Exit after this many events (0 = unlimited)")

	return cmd
}

func runStream(cmd *cobra.Command, channels []string, bufferSize int, prettyFormat bool, limit int) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🌊 Starting event stream from %s", serverURL)
	if len(channels) > 0 {
		fmt.Fprintf(out, " (channels: %v)", channels)
	} else {
		fmt.Fprintf(out, " (mailbox)")
	}
	fmt.Fprintln(out, "...")

	streamClient, err := client.Stream(ctx, httpclient.StreamConfig{
		Channels:   channels,
		BufferSize: bufferSize,
	})
	if err != nil {
		return fmt.Errorf("failed to start streaming: %w", err)
	}
	defer streamClient.Close()

	ready := streamClient.Ready()
	errs := streamClient.Errors()
	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "\n✅ Stream stopped. Received %d events.\n", eventCount)
			return nil

		case <-ready:
			fmt.Fprintln(out, "Connected. Press Ctrl+C to stop streaming")
			ready = nil

		case event, ok := <-streamClient.Events():
			if !ok {
				fmt.Fprintf(out, "\n🔌 Event stream closed. Received %d events.\n", eventCount)
				return nil
			}

			eventCount++
			printEvent(out, event, eventCount, prettyFormat)
			if limit > 0 && eventCount >= limit {
				return nil
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// errors are non-fatal while the client reconnects
			fmt.Fprintf(out, "❌ Stream error: %v\n", err)
		}
	}
}

func printEvent(out io.Writer, event httpclient.EventStreamMessage, count int, pretty bool) {
	fmt.Fprintf(out, "📨 Event #%d:\n", count)
	fmt.Fprintf(out, "   ID: %s\n", event.EventID)
	fmt.Fprintf(out, "   Channel: %s\n", event.Channel)
	if event.Publisher != "" {
		fmt.Fprintf(out, "   Publisher: %s\n", event.Publisher)
	}
	fmt.Fprintf(out, "   Time: %s\n", event.Timestamp.Format("2006-01-02 15:04:05.000"))

	if len(event.Payload) == 0 {
		fmt.Fprintf(out, "   Payload: null\n\n")
		return
	}

	if pretty {
		var v any
		if err := json.Unmarshal(event.Payload, &v); err == nil {
			if indented, err := json.MarshalIndent(v, "            ", "  "); err == nil {
				fmt.Fprintf(out, "   Payload:\n            %s\n\n", indented)
				return
			}
		}
	}
	fmt.Fprintf(out, "   Payload: %s\n\n", event.Payload)
}
