// File: cmd/import.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/importer"
	"github.com/xkilldash9x/vulntrack/internal/observability"
	"github.com/xkilldash9x/vulntrack/internal/reporting"
	"github.com/xkilldash9x/vulntrack/internal/service"
)

// newMigrateCmd creates the `migrate` command, which bootstraps the schema.
func newMigrateCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
				if c.Store == nil {
					return errors.New("migrate requires a database store")
				}
				if err := c.Store.EnsureSchema(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			})
		},
	}
}

// importSummary is printed by the import command.
type importSummary struct {
	Imported []importer.FileResult `json:"imported"`
	Errors   []importer.FileError  `json:"errors"`
}

// newImportCmd creates the `import` command.
func newImportCmd(factory service.ComponentFactory) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import one or more scanner report documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runImport(ctx, cmd.OutOrStdout(), svc, args, format)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

// runImport imports every path independently and prints what happened. It
// fails when at least one file could not be imported.
func runImport(ctx context.Context, out io.Writer, svc service.Interface, paths []string, format string) error {
	logger := observability.GetLogger()
	summary := importSummary{Imported: []importer.FileResult{}, Errors: []importer.FileError{}}

	for _, path := range paths {
		res, err := svc.ImportFile(ctx, path)
		if err != nil {
			logger.Warn("Failed to import report.", zap.String("file", path), zap.Error(err))
			summary.Errors = append(summary.Errors, importer.FileError{File: path, Error: err.Error()})
			continue
		}
		summary.Imported = append(summary.Imported, importer.FileResult{
			File:     path,
			ReportID: res.Report.ID,
			SiteURL:  res.Report.SiteURL,
			Dropped:  res.Dropped.Total(),
		})
	}

	if err := render(out, format, summary); err != nil {
		return err
	}
	if n := len(summary.Errors); n > 0 {
		return fmt.Errorf("%d of %d files failed to import", n, len(paths))
	}
	return nil
}

// newImportDirCmd creates the `import-dir` command.
func newImportDirCmd(factory service.ComponentFactory) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import-dir DIR",
		Short: "Import every *.json report document in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(format); err != nil {
				return err
			}
			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runImportDir(ctx, cmd.OutOrStdout(), svc, args[0], format)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func runImportDir(ctx context.Context, out io.Writer, svc service.Interface, dir, format string) error {
	res, err := svc.ImportDir(ctx, dir)
	if res != nil {
		if rerr := render(out, format, res); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return err
	}
	if n := len(res.Errors); n > 0 {
		return fmt.Errorf("%d of %d files failed to import", n, n+len(res.Imported))
	}
	return nil
}

// exportOptions control a single export.
type exportOptions struct {
	Format        string
	OutputPath    string
	IncludeStatus bool
	Indent        string
}

// newExportCmd creates the `export` command.
func newExportCmd(factory service.ComponentFactory) *cobra.Command {
	var opts exportOptions
	var noStatus bool

	cmd := &cobra.Command{
		Use:   "export REPORT_ID",
		Short: "Export a stored report as a scanner document or SARIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID("report", args[0])
			if err != nil {
				return err
			}
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			resolveExportDefaults(cmd, cfg.Export(), &opts, noStatus)

			return withTracker(cmd, factory, func(ctx context.Context, svc service.Interface) error {
				return runExport(ctx, cmd.OutOrStdout(), svc, reportID, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "output format (json, sarif)")
	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "", "output file path (default is stdout)")
	cmd.Flags().BoolVar(&opts.IncludeStatus, "include-status", true, "annotate each instance with its _fix_status block")
	cmd.Flags().BoolVar(&noStatus, "no-status", false, "omit _fix_status blocks")
	cmd.Flags().StringVar(&opts.Indent, "indent", "", "JSON indentation (default from export.indent)")
	cmd.MarkFlagsMutuallyExclusive("include-status", "no-status")
	return cmd
}

// resolveExportDefaults fills the options the user did not set from the
// export configuration.
func resolveExportDefaults(cmd *cobra.Command, cfg config.ExportConfig, opts *exportOptions, noStatus bool) {
	switch {
	case noStatus:
		opts.IncludeStatus = false
	case !cmd.Flags().Changed("include-status"):
		opts.IncludeStatus = cfg.IncludeStatus
	}
	if !cmd.Flags().Changed("indent") {
		opts.Indent = cfg.Indent
	}
}

// runExport loads the report document and writes it with the reporter for
// opts.Format.
func runExport(ctx context.Context, out io.Writer, svc service.Interface, reportID int64, opts exportOptions) error {
	if err := reporting.CheckFormat(opts.Format); err != nil {
		return err
	}

	doc, err := svc.Export(ctx, reportID, opts.IncludeStatus)
	if err != nil {
		return err
	}

	reporterOpts := reporting.Options{Indent: opts.Indent, ToolVersion: Version}
	var reporter reporting.Reporter
	if opts.OutputPath == "" {
		reporter, err = reporting.NewWithWriter(opts.Format, reporting.NopCloser(out), reporterOpts)
	} else {
		reporter, err = reporting.New(opts.Format, opts.OutputPath, reporterOpts)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}

	if err := reporter.Write(doc); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return err
	}

	if opts.OutputPath != "" {
		observability.GetLogger().Info("Report exported.",
			zap.Int64("report_id", reportID),
			zap.String("format", opts.Format),
			zap.String("path", opts.OutputPath))
	}
	return nil
}
