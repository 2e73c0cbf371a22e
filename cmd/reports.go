// File: cmd/reports.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/service"
)

// parseID parses a positive row id given on the command line.
func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &schemas.ValidationError{Field: kind + " id", Value: arg}
	}
	return id, nil
}

func addPageFlags(cmd *cobra.Command, page *schemas.Page) {
	cmd.Flags().IntVar(&page.Page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&page.PerPage, "per-page", schemas.DefaultPerPage, "results per page")
}

// newReportsCmd groups the report management commands.
func newReportsCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List, inspect, annotate and delete imported reports",
	}
	cmd.AddCommand(
		newReportsListCmd(factory),
		newReportsShowCmd(factory),
		newReportsDeleteCmd(factory),
		newReportsNotesCmd(factory),
	)
	return cmd
}

func newReportsListCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		filter schemas.ReportFilter
		format string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest import first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runReportsList(ctx, cmd.OutOrStdout(), svc, filter, format)
			})
		},
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "only reports whose site URL contains this text")
	addPageFlags(cmd, &filter.Page)
	addFormatFlag(cmd, &format)
	return cmd
}

func runReportsList(ctx context.Context, out io.Writer, svc service.Interface, filter schemas.ReportFilter, format string) error {
	page, err := svc.ListReports(ctx, filter)
	if err != nil {
		return err
	}
	return render(out, format, page)
}

func newReportsShowCmd(factory service.ComponentFactory) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show REPORT_ID",
		Short: "Show a report with its vulnerabilities and instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("report", args[0])
			if err != nil {
				return err
			}
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				graph, err := svc.ReportGraph(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, graph)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func newReportsDeleteCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete REPORT_ID",
		Short: "Delete a report together with its vulnerabilities and instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("report", args[0])
			if err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				if err := svc.DeleteReport(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %d.\n", id)
				return nil
			})
		},
	}
}

func newReportsNotesCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "notes REPORT_ID NOTES",
		Short: "Replace the notes of a report (an empty string clears them)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("report", args[0])
			if err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				if err := svc.UpdateNotes(ctx, id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated notes of report %d.\n", id)
				return nil
			})
		},
	}
}

// newSearchCmd creates the `search` command.
func newSearchCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		filter   schemas.SearchFilter
		severity string
		status   string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search instances across all reports",
		Long: `Matches QUERY against the instance URL, the vulnerability title and the
report site URL. Results can be narrowed by severity and remediation status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				filter.Query = args[0]
			}
			if err := buildSearchFilter(&filter, severity, status); err != nil {
				return err
			}
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runSearch(ctx, cmd.OutOrStdout(), svc, filter, format)
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "only this severity (High, Medium, Low, Informational)")
	cmd.Flags().StringVar(&status, "status", "", "only this status (pending, in_progress, fixed, wont_fix, false_positive)")
	addPageFlags(cmd, &filter.Page)
	addFormatFlag(cmd, &format)
	return cmd
}

// buildSearchFilter validates the optional severity and status filters.
func buildSearchFilter(filter *schemas.SearchFilter, severity, status string) error {
	if severity != "" {
		s := schemas.Severity(severity)
		if !s.Valid() {
			return &schemas.ValidationError{Field: "severity", Value: severity}
		}
		filter.Severity = s
	}
	if status != "" {
		st, err := schemas.ParseFixStatus(status)
		if err != nil {
			return err
		}
		filter.Status = st
	}
	return nil
}

func runSearch(ctx context.Context, out io.Writer, svc service.Interface, filter schemas.SearchFilter, format string) error {
	hits, err := svc.Search(ctx, filter)
	if err != nil {
		return err
	}
	return render(out, format, hits)
}

// newTreeCmd creates the `tree` command.
func newTreeCmd(factory service.ComponentFactory) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tree [REPORT_ID]",
		Short: "Show the report > severity > vulnerability > instance tree",
		Long:  "Without REPORT_ID the tree of every report is printed, newest import first.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reportID int64
			if len(args) == 1 {
				id, err := parseID("report", args[0])
				if err != nil {
					return err
				}
				reportID = id
			}
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runTree(ctx, cmd.OutOrStdout(), svc, reportID, format)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

// runTree prints one report tree, or the whole forest when reportID is zero.
func runTree(ctx context.Context, out io.Writer, svc service.Interface, reportID int64, format string) error {
	if reportID == 0 {
		forest, err := svc.Forest(ctx)
		if err != nil {
			return err
		}
		return render(out, format, forest)
	}
	tree, err := svc.Tree(ctx, reportID)
	if err != nil {
		return err
	}
	return render(out, format, tree)
}

// newDashboardCmd creates the `dashboard` command.
func newDashboardCmd(factory service.ComponentFactory) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, severity and status breakdowns and recent reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				d, err := svc.Dashboard(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, d)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

// newLogsCmd creates the `logs` command.
func newLogsCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		filter schemas.LogFilter
		format string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List operation log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				logs, err := svc.Logs(ctx, filter)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, logs)
			})
		},
	}
	cmd.Flags().StringVar(&filter.ActionType, "action", "", "only entries of this action type (IMPORT, EXPORT, DELETE, NOTES, STATUS)")
	addPageFlags(cmd, &filter.Page)
	addFormatFlag(cmd, &format)
	return cmd
}
