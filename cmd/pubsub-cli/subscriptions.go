package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscriptionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "List this client's subscriptions",
		Long:  "List every channel and pattern this client is subscribed to",
		RunE:  runSubscriptionsList,
	}
}

func runSubscriptionsList(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listing subscriptions for client '%s'...\n", clientID)

	subscriptions, err := client.ListSubscriptions(ctx)
	if err != nil {
		return err
	}

	if len(subscriptions) == 0 {
		fmt.Fprintln(out, "No subscriptions found")
		return nil
	}

	fmt.Fprintf(out, "\nFound %d subscription(s):\n\n", len(subscriptions))
	for i, sub := range subscriptions {
		kind := "literal"
		if sub.Pattern {
			kind = "pattern"
		}
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, sub.Channel, kind)
	}

	return nil
}
