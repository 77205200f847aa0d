package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// publishCmd sends one message and exits once it has been transmitted
var publishCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "publish TOPIC BODY...",
	Short: "Publish a single message to a topic",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	topic, body := args[0], strings.Join(args[1:], " ")
	if err := client.Publish(topic, body); err != nil {
		_ = shutdownClient(cmd.Context(), client)
		return err
	}

	// Stop returns once everything queued, this message included, has been
	// handed to the broker.
	return shutdownClient(cmd.Context(), client)
}
