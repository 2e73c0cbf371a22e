package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/document"
	"github.com/xkilldash9x/vulntrack/internal/exporter"
	"github.com/xkilldash9x/vulntrack/internal/importer"
	"github.com/xkilldash9x/vulntrack/internal/remediation"
	"github.com/xkilldash9x/vulntrack/internal/views"
)

// Interface is the application surface used by the CLI.
type Interface interface {
	ImportFile(ctx context.Context, path string) (*importer.Result, error)
	ImportDir(ctx context.Context, dir string) (*importer.BulkResult, error)
	Export(ctx context.Context, reportID int64, includeStatus bool) (*document.Document, error)

	ListReports(ctx context.Context, filter schemas.ReportFilter) (schemas.Paged[schemas.ReportSummary], error)
	ReportGraph(ctx context.Context, reportID int64) (*schemas.ReportGraph, error)
	DeleteReport(ctx context.Context, reportID int64) error
	UpdateNotes(ctx context.Context, reportID int64, notes string) error

	UpdateStatus(ctx context.Context, instanceID int64, status, notes, fixedBy string) (*schemas.VulnInstance, error)
	BatchUpdateStatus(ctx context.Context, instanceIDs []int64, status, notes, fixedBy string) remediation.BatchResult
	StatusSummary(ctx context.Context, reportID *int64) (remediation.Summary, error)

	Search(ctx context.Context, filter schemas.SearchFilter) (schemas.Paged[schemas.SearchHit], error)
	Tree(ctx context.Context, reportID int64) (views.TreeNode, error)
	Forest(ctx context.Context) ([]views.TreeNode, error)
	Dashboard(ctx context.Context) (*views.Dashboard, error)
	Logs(ctx context.Context, filter schemas.LogFilter) (schemas.Paged[schemas.OperationLog], error)
}

// Tracker wires the importer, exporter, status engine and views to one store
// and records an operation log entry for every mutating call and every
// export.
type Tracker struct {
	store       schemas.Store
	importer    *importer.Importer
	exporter    *exporter.Exporter
	remediation *remediation.Engine
	views       *views.Aggregator
	logger      *zap.Logger
}

var _ Interface = (*Tracker)(nil)

// NewTracker creates a Tracker over store.
func NewTracker(store schemas.Store, cfg config.Interface, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:       store,
		importer:    importer.New(store, logger, cfg.Importer()),
		exporter:    exporter.New(store, logger),
		remediation: remediation.New(store, logger),
		views:       views.New(store, logger),
		logger:      logger.Named("tracker"),
	}
}

// audit appends an operation log entry. A failed append is logged and does
// not fail the operation that already succeeded.
func (t *Tracker) audit(ctx context.Context, action, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if err := t.store.AppendLog(ctx, action, msg); err != nil {
		t.logger.Warn("Failed to append operation log.",
			zap.String("action", action),
			zap.String("message", msg),
			zap.Error(err))
	}
}

func (t *Tracker) ImportFile(ctx context.Context, path string) (*importer.Result, error) {
	res, err := t.importer.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	t.audit(ctx, schemas.ActionImport, "Imported report: %s -> %s (ID: %d)",
		res.Report.FileName, res.Report.SiteURL, res.Report.ID)
	return res, nil
}

func (t *Tracker) ImportDir(ctx context.Context, dir string) (*importer.BulkResult, error) {
	res, err := t.importer.ImportDir(ctx, dir)
	if res == nil {
		return nil, err
	}
	t.audit(ctx, schemas.ActionImport, "Bulk import %s: %d imported, %d failed (batch %s)",
		dir, len(res.Imported), len(res.Errors), res.BatchID)
	return res, err
}

func (t *Tracker) Export(ctx context.Context, reportID int64, includeStatus bool) (*document.Document, error) {
	doc, err := t.exporter.Export(ctx, reportID, includeStatus)
	if err != nil {
		return nil, err
	}
	t.audit(ctx, schemas.ActionExport, "Exported report ID: %d", reportID)
	return doc, nil
}

func (t *Tracker) ListReports(ctx context.Context, filter schemas.ReportFilter) (schemas.Paged[schemas.ReportSummary], error) {
	return t.views.ReportSummaries(ctx, filter)
}

func (t *Tracker) ReportGraph(ctx context.Context, reportID int64) (*schemas.ReportGraph, error) {
	return t.store.GetReportGraph(ctx, reportID)
}

func (t *Tracker) DeleteReport(ctx context.Context, reportID int64) error {
	report, err := t.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if err := t.store.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	t.audit(ctx, schemas.ActionDelete, "Deleted report: %s (ID: %d)", report.SiteURL, reportID)
	return nil
}

func (t *Tracker) UpdateNotes(ctx context.Context, reportID int64, notes string) error {
	if err := t.store.UpdateReportNotes(ctx, reportID, notes); err != nil {
		return err
	}
	t.audit(ctx, schemas.ActionNotes, "Updated notes of report ID: %d", reportID)
	return nil
}

func (t *Tracker) UpdateStatus(ctx context.Context, instanceID int64, status, notes, fixedBy string) (*schemas.VulnInstance, error) {
	inst, err := t.remediation.UpdateStatus(ctx, instanceID, status, notes, fixedBy)
	if err != nil {
		return nil, err
	}
	t.audit(ctx, schemas.ActionStatus, "Updated status: instance #%d -> %s", instanceID, inst.FixStatus)
	return inst, nil
}

func (t *Tracker) BatchUpdateStatus(ctx context.Context, instanceIDs []int64, status, notes, fixedBy string) remediation.BatchResult {
	res := t.remediation.BatchUpdateStatus(ctx, instanceIDs, status, notes, fixedBy)
	if res.Updated > 0 {
		t.audit(ctx, schemas.ActionStatus, "Batch status update: %d instances -> %s", res.Updated, status)
	}
	return res
}

func (t *Tracker) StatusSummary(ctx context.Context, reportID *int64) (remediation.Summary, error) {
	return t.remediation.StatusSummary(ctx, reportID)
}

func (t *Tracker) Search(ctx context.Context, filter schemas.SearchFilter) (schemas.Paged[schemas.SearchHit], error) {
	hits, total, err := t.store.SearchInstances(ctx, filter)
	if err != nil {
		return schemas.Paged[schemas.SearchHit]{}, err
	}
	return schemas.NewPaged(hits, total, filter.Page), nil
}

func (t *Tracker) Tree(ctx context.Context, reportID int64) (views.TreeNode, error) {
	return t.views.Tree(ctx, reportID)
}

func (t *Tracker) Forest(ctx context.Context) ([]views.TreeNode, error) {
	return t.views.Forest(ctx)
}

func (t *Tracker) Dashboard(ctx context.Context) (*views.Dashboard, error) {
	return t.views.Dashboard(ctx)
}

func (t *Tracker) Logs(ctx context.Context, filter schemas.LogFilter) (schemas.Paged[schemas.OperationLog], error) {
	logs, total, err := t.store.ListLogs(ctx, filter)
	if err != nil {
		return schemas.Paged[schemas.OperationLog]{}, err
	}
	return schemas.NewPaged(logs, total, filter.Page), nil
}
