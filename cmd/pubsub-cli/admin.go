package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin commands (requires admin privileges)",
		Long:  "Administrative commands for monitoring the PubSub registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clients",
		Short: "List all connected clients",
		Long:  "List every client registered with the server and its subscriptions",
		RunE:  runAdminClients,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "channels",
		Short: "List all channels and patterns",
		Long:  "List every literal channel and pattern with its subscriber count",
		RunE:  runAdminChannels,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show system statistics",
		Long:  "Display registry and delivery statistics",
		RunE:  runAdminStats,
	})

	return cmd
}

func runAdminClients(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	response, err := client.AdminListClients(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(response.Clients) == 0 {
		fmt.Fprintln(out, "No clients currently connected")
		return nil
	}

	fmt.Fprintf(out, "Found %d connected client(s):\n\n", len(response.Clients))
	for i, info := range response.Clients {
		fmt.Fprintf(out, "%d. Client ID: %s\n", i+1, info.ID)
		if len(info.Subscriptions) > 0 {
			fmt.Fprintf(out, "   Channels: %s\n", strings.Join(info.Subscriptions, ", "))
		}
	}

	return nil
}

func runAdminChannels(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	response, err := client.AdminListChannels(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(response.Channels) == 0 {
		fmt.Fprintln(out, "No channels")
		return nil
	}

	for _, info := range response.Channels {
		kind := "literal"
		if info.Pattern {
			kind = "pattern"
		}
		fmt.Fprintf(out, "%-30s %-8s %d subscriber(s)\n", info.Channel, kind, info.Subscribers)
	}

	return nil
}

func runAdminStats(cmd *cobra.Command, args []string) error {
	if err := requireAuthentication(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	response, err := client.AdminGetStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📊 PubSub Statistics (%s):\n\n", response.NodeID)
	fmt.Fprintf(out, "Connected Clients: %d\n", response.ConnectedClients)
	fmt.Fprintf(out, "Channels: %d\n", response.TotalChannels)
	fmt.Fprintf(out, "Literal Subscriptions: %d\n", response.LiteralSubscriptions)
	fmt.Fprintf(out, "Pattern Subscriptions: %d\n", response.PatternSubscriptions)
	fmt.Fprintf(out, "Events Published: %d\n", response.EventsPublished)
	fmt.Fprintf(out, "Events Delivered: %d\n", response.EventsDelivered)
	fmt.Fprintf(out, "HTTP Sessions: %d\n", response.HTTPSessions)

	return nil
}
