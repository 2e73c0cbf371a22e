package views

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/remediation"
)

// RecentReportLimit is the number of reports shown on the dashboard.
const RecentReportLimit = 5

// forestConcurrency bounds the number of report graphs loaded at once.
const forestConcurrency = 4

// RecentReport is a dashboard entry.
type RecentReport struct {
	ID         int64                    `json:"id" yaml:"id"`
	SiteURL    string                   `json:"site_url" yaml:"site_url"`
	ImportedAt time.Time                `json:"imported_at" yaml:"imported_at"`
	Stats      map[schemas.Severity]int `json:"stats" yaml:"stats"`
}

// Dashboard is the global overview.
type Dashboard struct {
	TotalReports         int                      `json:"total_reports" yaml:"total_reports"`
	TotalVulnerabilities int                      `json:"total_vulnerabilities" yaml:"total_vulnerabilities"`
	TotalInstances       int                      `json:"total_instances" yaml:"total_instances"`
	SeverityStats        map[schemas.Severity]int `json:"severity_stats" yaml:"severity_stats"`
	StatusStats          remediation.Summary      `json:"status_stats" yaml:"status_stats"`
	RecentReports        []RecentReport           `json:"recent_reports" yaml:"recent_reports"`
}

// Aggregator derives views from a store.
type Aggregator struct {
	store  schemas.Store
	logger *zap.Logger
}

// New creates an Aggregator.
func New(store schemas.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger.Named("views")}
}

// ReportSummaries lists one page of reports with their severity counts.
func (a *Aggregator) ReportSummaries(ctx context.Context, filter schemas.ReportFilter) (schemas.Paged[schemas.ReportSummary], error) {
	reports, total, err := a.store.ListReports(ctx, filter)
	if err != nil {
		return schemas.Paged[schemas.ReportSummary]{}, err
	}
	byReport, err := a.vulnerabilitiesByReport(ctx, reportIDs(reports))
	if err != nil {
		return schemas.Paged[schemas.ReportSummary]{}, err
	}

	items := make([]schemas.ReportSummary, 0, len(reports))
	for _, r := range reports {
		vulns := byReport[r.ID]
		items = append(items, schemas.ReportSummary{
			Report:    r,
			Stats:     SeverityStats(vulns),
			VulnCount: len(vulns),
		})
	}
	return schemas.NewPaged(items, total, filter.Page), nil
}

// Tree builds the tree of one report.
func (a *Aggregator) Tree(ctx context.Context, reportID int64) (TreeNode, error) {
	graph, err := a.store.GetReportGraph(ctx, reportID)
	if err != nil {
		return TreeNode{}, err
	}
	return BuildTree(graph), nil
}

// Forest builds the tree of every report, newest import first.
func (a *Aggregator) Forest(ctx context.Context) ([]TreeNode, error) {
	ids, err := a.store.ListReportIDs(ctx)
	if err != nil {
		return nil, err
	}

	graphs := make([]*schemas.ReportGraph, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(forestConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			graph, err := a.store.GetReportGraph(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load report %d: %w", id, err)
			}
			graphs[i] = graph
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return BuildForest(graphs), nil
}

// Dashboard computes the global overview. The independent reads run
// concurrently.
func (a *Aggregator) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		counts   schemas.EntityCounts
		allVulns []schemas.Vulnerability
		statuses []schemas.FixStatus
		recent   []schemas.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = a.store.Counts(gctx)
		return err
	})
	g.Go(func() error {
		ids, err := a.store.ListReportIDs(gctx)
		if err != nil {
			return err
		}
		allVulns, err = a.store.ListVulnerabilities(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = a.store.ListInstanceStatuses(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		recent, _, err = a.store.ListReports(gctx, schemas.ReportFilter{
			Page: schemas.Page{Page: 1, PerPage: RecentReportLimit},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	byReport := make(map[int64][]schemas.Vulnerability)
	for _, v := range allVulns {
		byReport[v.ReportID] = append(byReport[v.ReportID], v)
	}

	d := &Dashboard{
		TotalReports:         counts.Reports,
		TotalVulnerabilities: counts.Vulnerabilities,
		TotalInstances:       counts.Instances,
		SeverityStats:        SeverityStats(allVulns),
		StatusStats:          remediation.Summarize(statuses),
		RecentReports:        make([]RecentReport, 0, len(recent)),
	}
	for _, r := range recent {
		d.RecentReports = append(d.RecentReports, RecentReport{
			ID:         r.ID,
			SiteURL:    r.SiteURL,
			ImportedAt: r.ImportedAt,
			Stats:      SeverityStats(byReport[r.ID]),
		})
	}

	a.logger.Debug("Dashboard computed.",
		zap.Int("reports", d.TotalReports),
		zap.Int("instances", d.TotalInstances))
	return d, nil
}

func (a *Aggregator) vulnerabilitiesByReport(ctx context.Context, ids []int64) (map[int64][]schemas.Vulnerability, error) {
	vulns, err := a.store.ListVulnerabilities(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]schemas.Vulnerability, len(ids))
	for _, v := range vulns {
		out[v.ReportID] = append(out[v.ReportID], v)
	}
	return out, nil
}

func reportIDs(reports []schemas.Report) []int64 {
	ids := make([]int64, len(reports))
	for i, r := range reports {
		ids[i] = r.ID
	}
	return ids
}
