package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/msgmenu/internal/model"
)

var statusOpts struct {
	waybar bool
}

// WaybarStatus is the JSON output format for waybar custom modules.
type WaybarStatus struct {
	Text    string `json:"text"`
	Alt     string `json:"alt"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the global presence status",
	Long: `Show the global presence status the broker broadcasts to applications.

Use 'msgmenu status set <status>' to change it.

With --waybar the status is written as JSON for a waybar custom module:
  "custom/msgmenu": {
    "exec": "msgmenu status --waybar",
    "return-type": "json",
    "interval": 5,
    "on-click": "msgmenu status set busy"
  }`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusSetCmd = &cobra.Command{
	Use:       "set <status>",
	Short:     "Change the global presence status",
	Long:      `Change the global presence status. Every registered application is told about the new value.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: statusNames(),
	RunE:      runStatusSet,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusSetCmd)

	statusCmd.Flags().BoolVar(&statusOpts.waybar, "waybar", false,
		"Output JSON for a waybar custom module")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connect()
	if err != nil {
		if statusOpts.waybar {
			return outputStatus(offlineStatus(err))
		}
		return err
	}
	defer conn.Close()

	proxy := newProxy(conn)
	status, err := proxy.GetStatus(ctx)
	if err != nil {
		if statusOpts.waybar {
			return outputStatus(offlineStatus(err))
		}
		return err
	}

	if !statusOpts.waybar {
		fmt.Println(status)
		return nil
	}

	apps, err := proxy.ListApplications(ctx)
	if err != nil {
		logger.Debug("failed to list applications", "error", err)
	}
	return outputStatus(generateStatus(status, apps))
}

func runStatusSet(cmd *cobra.Command, args []string) error {
	status, err := model.ParseStatus(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := newProxy(conn).ChangeStatus(ctx, status); err != nil {
		return err
	}
	fmt.Printf("global status set to %s\n", status)
	return nil
}

// generateStatus builds the waybar view of the global status.
func generateStatus(status model.Status, apps []model.Application) WaybarStatus {
	return WaybarStatus{
		Text:    status.String(),
		Alt:     status.String(),
		Tooltip: buildTooltip(apps),
		Class:   status.String(),
	}
}

// buildTooltip lists the registered applications and their statuses.
func buildTooltip(apps []model.Application) string {
	if len(apps) == 0 {
		return "No applications registered"
	}
	lines := make([]string, 0, len(apps)+1)
	lines = append(lines, fmt.Sprintf("%d registered", len(apps)))
	for _, app := range apps {
		lines = append(lines, fmt.Sprintf("%s: %s", app.ID, app.Status))
	}
	return strings.Join(lines, "\n")
}

func offlineStatus(err error) WaybarStatus {
	return WaybarStatus{
		Text:    "",
		Alt:     "offline",
		Tooltip: "Messaging menu broker unavailable: " + err.Error(),
		Class:   "disconnected",
	}
}

func statusNames() []string {
	all := model.AllStatuses()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.String()
	}
	return names
}

// outputStatus writes the status as JSON.
func outputStatus(status WaybarStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(status)
}
