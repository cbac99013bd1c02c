package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscribeCommand() *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to a channel or pattern",
		Long: `Subscribe this client to a literal channel or a glob pattern such as
"news.*". Events are delivered to the client's mailbox; use 'stream' without
--channel to receive them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(cmd, channel)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel or pattern to subscribe to (required)")
	if err := cmd.MarkFlagRequired("channel"); err != nil {
		panic(fmt.Sprintf("Failed to mark channel as required: %v", err))
	}

	return cmd
}

func newUnsubscribeCommand() *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Remove a subscription",
		Long: `Remove this client's subscription to exactly the given channel or pattern.
Unsubscribing from "news.*" does not affect a subscription to "news.sport".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnsubscribe(cmd, channel)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel or pattern to unsubscribe from (required)")
	if err := cmd.MarkFlagRequired("channel"); err != nil {
		panic(fmt.Sprintf("Failed to mark channel as required: %v", err))
	}

	return cmd
}

func runSubscribe(cmd *cobra.Command, channel string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subscribing to '%s'...\n", channel)

	response, err := client.CreateSubscription(ctx, channel)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Subscribed!\n")
	fmt.Fprintf(out, "Channel: %s\n", response.Channel)
	fmt.Fprintf(out, "Pattern: %t\n", response.Pattern)
	fmt.Fprintf(out, "Client ID: %s\n", response.ClientID)

	return nil
}

func runUnsubscribe(cmd *cobra.Command, channel string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Unsubscribing from '%s'...\n", channel)

	if err := client.DeleteSubscription(ctx, channel); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Unsubscribed!\n")
	return nil
}
