package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/msgmenu/internal/adapter/output"
	"github.com/jmylchreest/msgmenu/internal/core"
	"github.com/jmylchreest/msgmenu/internal/model"
)

var listOpts struct {
	// Filter options
	status string
	owner  string
	since  string
	filter string
	limit  int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format    string
	template  string
	showOwner bool
}

var listCmd = &cobra.Command{
	Use:   "list [index|id]",
	Short: "List registered applications",
	Long: `List the applications registered with the broker.

Without arguments, lists every registration in registration order. With a
1-based index or desktop id, outputs only that registration.

Filter expressions combine conditions with commas (all must match):
  status=busy              reported status
  status>=away             away, busy, invisible or offline
  id~thunder               desktop id contains "thunder"
  owner=:1.42              owning bus name
  status_set=false         never reported a status
  registered<1h            registered within the last hour

Examples:
  # Human readable listing
  msgmenu list

  # Busy applications as JSON
  msgmenu list --status busy --format json

  # Pick one with a launcher
  msgmenu list --format dmenu | fuzzel -d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	// Filter flags
	listCmd.Flags().StringVar(&listOpts.status, "status", "",
		"Only applications reporting this status")
	listCmd.Flags().StringVar(&listOpts.owner, "owner", "",
		"Only applications owned by this bus name")
	listCmd.Flags().StringVar(&listOpts.since, "since", "",
		"Only applications registered within the duration (e.g., 1h, 7d)")
	listCmd.Flags().StringVar(&listOpts.filter, "filter", "",
		"Filter expression (e.g., \"status>=away,id~chat\")")
	listCmd.Flags().IntVarP(&listOpts.limit, "limit", "n", 0,
		"Maximum number of applications to show (0=unlimited)")

	// Sort flags
	listCmd.Flags().StringVar(&listOpts.sortBy, "sort", "registered",
		"Sort by field (registered, id, status, owner)")
	listCmd.Flags().StringVar(&listOpts.sortOrder, "order", "asc",
		"Sort order (asc, desc)")

	// Output flags
	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, dmenu, ids)")
	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Custom Go template for plain and dmenu output")
	listCmd.Flags().BoolVar(&listOpts.showOwner, "show-owner", false,
		"Show the bus name owning each registration")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormatType(listOpts.format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	apps, err := newProxy(conn).ListApplications(ctx)
	if err != nil {
		return err
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = listOpts.template
	opts.ShowOwner = listOpts.showOwner
	formatter := output.NewFormatter(format, opts)

	if len(args) > 0 {
		app := core.Lookup(apps, args[0])
		if app == nil {
			return fmt.Errorf("application not found: %s", args[0])
		}
		return formatter.Format(os.Stdout, []model.Application{*app})
	}

	apps, err = selectApplications(apps)
	if err != nil {
		return err
	}
	return formatter.Format(os.Stdout, apps)
}

// selectApplications applies the filter and sort flags.
func selectApplications(apps []model.Application) ([]model.Application, error) {
	filterOpts := core.FilterOptions{
		Owner: listOpts.owner,
	}
	if listOpts.status != "" {
		status, err := model.ParseStatus(listOpts.status)
		if err != nil {
			return nil, err
		}
		filterOpts.Status = &status
	}
	if listOpts.since != "" {
		since, err := core.ParseDuration(listOpts.since)
		if err != nil {
			return nil, err
		}
		filterOpts.Since = since
	}

	expr, err := core.ParseFilter(listOpts.filter)
	if err != nil {
		return nil, err
	}

	sortField, err := core.ParseSortField(listOpts.sortBy)
	if err != nil {
		return nil, err
	}
	sortOrder, err := core.ParseSortOrder(listOpts.sortOrder)
	if err != nil {
		return nil, err
	}

	apps = core.FilterWithExpr(apps, expr)
	core.Sort(apps, core.SortOptions{Field: sortField, Order: sortOrder})

	// Limit after sorting so --limit keeps the first entries shown
	filterOpts.Limit = listOpts.limit
	return core.Filter(apps, filterOpts), nil
}
