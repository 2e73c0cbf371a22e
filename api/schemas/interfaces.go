package schemas

import (
	"context"
	"time"
)

// -- Store Interface --

// Store defines the persistence contract for reports and their findings.
// This abstraction keeps the importer, exporter and status engine independent
// of the database implementation.
type Store interface {
	ReportStore
	InstanceStore
	LogStore
}

// ReportStore covers report level persistence.
type ReportStore interface {
	// CreateReportGraph inserts a report with all of its vulnerabilities and
	// instances atomically. The returned graph carries the assigned ids.
	CreateReportGraph(ctx context.Context, graph *ReportGraph) (*ReportGraph, error)
	// GetReport returns a single report row or ErrNotFound.
	GetReport(ctx context.Context, id int64) (*Report, error)
	// GetReportGraph loads a report with its children ordered by id.
	GetReportGraph(ctx context.Context, id int64) (*ReportGraph, error)
	// ListReports returns report rows, newest import first.
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, int, error)
	// ListReportIDs returns every report id, newest import first.
	ListReportIDs(ctx context.Context) ([]int64, error)
	// ListVulnerabilities returns the vulnerability rows of the given reports.
	ListVulnerabilities(ctx context.Context, reportIDs []int64) ([]Vulnerability, error)
	// DeleteReport removes a report and, by cascade, its descendants.
	DeleteReport(ctx context.Context, id int64) error
	// UpdateReportNotes replaces the free text notes of a report.
	UpdateReportNotes(ctx context.Context, id int64, notes string) error
	// Counts returns raw row counts for the dashboard.
	Counts(ctx context.Context) (EntityCounts, error)
}

// InstanceStore covers per-instance access and the status aggregation input.
type InstanceStore interface {
	// GetInstance returns a single instance or ErrNotFound.
	GetInstance(ctx context.Context, id int64) (*VulnInstance, error)
	// UpdateInstanceStatus applies one status transition as a single atomic
	// row update and returns the updated row. fixed_at and fixed_by are only
	// written when status is StatusFixed.
	UpdateInstanceStatus(ctx context.Context, update StatusUpdate) (*VulnInstance, error)
	// ListInstanceStatuses returns the raw stored status of every instance,
	// optionally scoped to one report.
	ListInstanceStatuses(ctx context.Context, reportID *int64) ([]FixStatus, error)
	// SearchInstances runs a paginated cross-report search.
	SearchInstances(ctx context.Context, filter SearchFilter) ([]SearchHit, int, error)
}

// LogStore is the append-only operation log.
type LogStore interface {
	AppendLog(ctx context.Context, actionType, message string) error
	ListLogs(ctx context.Context, filter LogFilter) ([]OperationLog, int, error)
}

// StatusUpdate is a validated transition request for one instance.
type StatusUpdate struct {
	InstanceID int64
	Status     FixStatus
	Notes      string
	FixedBy    string
	// At is the transition time; it becomes fixed_at when Status is fixed.
	At time.Time
}
