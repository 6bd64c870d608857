package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var unregisterCmd = &cobra.Command{
	Use:   "unregister <desktop-id>",
	Short: "Remove an application from the messaging menu",
	Long: `Ask the broker to stop listing an application.

This works for any registered application, not only ones registered by
msgmenu. The owning process is not notified.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnregister,
}

func init() {
	rootCmd.AddCommand(unregisterCmd)
}

func runUnregister(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := newProxy(conn).UnregisterApplication(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("unregistered %s\n", args[0])
	return nil
}
