package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vodstitch/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if !resp.Sent {
					return fmt.Errorf("test notification failed: %s", resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent: %s\n", resp.Message)
				return nil
			})
		},
	}
}
