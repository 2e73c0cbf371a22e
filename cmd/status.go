// File: cmd/status.go
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/vulntrack/internal/service"
)

// statusFlags are shared by the set and batch subcommands.
type statusFlags struct {
	notes   string
	fixedBy string
	format  string
}

func (f *statusFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.notes, "notes", "n", "", "remediation notes (replaces any previous notes)")
	cmd.Flags().StringVar(&f.fixedBy, "fixed-by", "", "who fixed the instance (recorded only for fixed)")
	addFormatFlag(cmd, &f.format)
}

// newStatusCmd groups the remediation status commands.
func newStatusCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Track the remediation status of vulnerability instances",
		Long: `Statuses: pending, in_progress, fixed, wont_fix, false_positive.
Moving an instance to fixed stamps the fix time and author; leaving fixed keeps them.`,
	}
	cmd.AddCommand(
		newStatusSetCmd(factory),
		newStatusBatchCmd(factory),
		newStatusSummaryCmd(factory),
	)
	return cmd
}

func newStatusSetCmd(factory service.ComponentFactory) *cobra.Command {
	var flags statusFlags
	cmd := &cobra.Command{
		Use:   "set INSTANCE_ID STATUS",
		Short: "Set the status of one instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("instance", args[0])
			if err != nil {
				return err
			}
			if err := checkOutputFormat(flags.format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runStatusSet(ctx, cmd.OutOrStdout(), svc, id, args[1], flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runStatusSet(ctx context.Context, out io.Writer, svc service.Interface, id int64, status string, flags statusFlags) error {
	inst, err := svc.UpdateStatus(ctx, id, status, flags.notes, flags.fixedBy)
	if err != nil {
		return err
	}
	return render(out, flags.format, inst)
}

func newStatusBatchCmd(factory service.ComponentFactory) *cobra.Command {
	var flags statusFlags
	cmd := &cobra.Command{
		Use:   "batch STATUS INSTANCE_ID...",
		Short: "Set the same status on several instances",
		Long:  "Each instance is updated independently; unknown ids are counted and skipped.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := parseID("instance", arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			if err := checkOutputFormat(flags.format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				res := svc.BatchUpdateStatus(ctx, ids, args[0], flags.notes, flags.fixedBy)
				return render(cmd.OutOrStdout(), flags.format, res)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStatusSummaryCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		reportArg string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count instances per status, globally or for one report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reportID *int64
			if reportArg != "" {
				id, err := parseID("report", reportArg)
				if err != nil {
					return err
				}
				reportID = &id
			}
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				summary, err := svc.StatusSummary(ctx, reportID)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, summary)
			})
		},
	}
	cmd.Flags().StringVarP(&reportArg, "report", "r", "", "limit the summary to this report id")
	addFormatFlag(cmd, &format)
	return cmd
}
