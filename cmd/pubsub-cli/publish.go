package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var (
		channel string
		payload string
		text    bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an event to a channel",
		Long: `Publish an event to a literal channel. Every client subscribed to the
channel, or to a pattern matching it, receives the event once.
The payload must be valid JSON unless --text is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, channel, payload, text)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel to publish to (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "Event payload as JSON")
	cmd.Flags().BoolVar(&text, "text", false, "Send the payload as a plain string")
	if err := cmd.MarkFlagRequired("channel"); err != nil {
		panic(fmt.Sprintf("Failed to mark channel as required: %v", err))
	}

	return cmd
}

func runPublish(cmd *cobra.Command, channel, payloadStr string, text bool) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	var payload any
	switch {
	case text:
		payload = payloadStr
	case payloadStr != "":
		if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
			return fmt.Errorf("invalid JSON payload: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Publishing event to channel '%s'...\n", channel)

	response, err := client.PublishEvent(ctx, channel, payload)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Event published successfully!\n")
	fmt.Fprintf(out, "Event ID: %s\n", response.EventID)
	fmt.Fprintf(out, "Subscribers: %d\n", response.Subscribers)
	fmt.Fprintf(out, "Timestamp: %s\n", response.Timestamp.Format("2006-01-02 15:04:05"))

	return nil
}
