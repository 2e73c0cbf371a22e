// Package exporter rebuilds report documents from stored report graphs.
package exporter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/document"
)

// Exporter reads report graphs and turns them back into documents. It never
// writes to the store.
type Exporter struct {
	store  schemas.ReportStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Exporter backed by store.
func New(store schemas.ReportStore, logger *zap.Logger) *Exporter {
	return &Exporter{
		store:  store,
		logger: logger.Named("exporter"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export loads the report and rebuilds its document. When includeStatus is
// set, every instance carries a _fix_status block.
func (ex *Exporter) Export(ctx context.Context, reportID int64, includeStatus bool) (*document.Document, error) {
	graph, err := ex.store.GetReportGraph(ctx, reportID)
	if err != nil {
		return nil, err
	}

	doc, err := Build(graph, includeStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild report %d: %w", reportID, err)
	}
	at := ex.now()
	doc.ExportedAt = &at

	ex.logger.Debug("Report exported.",
		zap.Int64("report_id", reportID),
		zap.Int("groups", len(doc.Groups)),
		zap.Bool("include_status", includeStatus))
	return doc, nil
}

// Build maps a report graph onto a document without touching storage.
// Severity groups follow the order in which each severity is first seen
// among the vulnerabilities. ExportedAt is left unset.
func Build(graph *schemas.ReportGraph, includeStatus bool) (*document.Document, error) {
	doc := &document.Document{
		SiteURL:            graph.SiteURL,
		SummaryOfSequences: graph.SummarySequences,
		SequenceDetails:    graph.SequenceDetails,
		ReportNotes:        graph.Notes,
	}

	groupIndex := make(map[schemas.Severity]int)
	for _, vg := range graph.Vulnerabilities {
		finding := document.Finding{
			Title:       vg.Title,
			Description: vg.Description,
		}
		for _, inst := range vg.Instances {
			di, err := buildInstance(inst, includeStatus)
			if err != nil {
				return nil, fmt.Errorf("instance %d: %w", inst.ID, err)
			}
			finding.Instances = append(finding.Instances, di)
		}

		i, ok := groupIndex[vg.Severity]
		if !ok {
			i = len(doc.Groups)
			groupIndex[vg.Severity] = i
			doc.Groups = append(doc.Groups, document.Group{Severity: vg.Severity})
		}
		doc.Groups[i].Findings = append(doc.Groups[i].Findings, finding)
	}
	return doc, nil
}

func buildInstance(inst schemas.VulnInstance, includeStatus bool) (document.Instance, error) {
	fields := document.Fields{
		Method:    inst.Method,
		Parameter: inst.Parameter,
		Attack:    inst.Attack,
		Evidence:  inst.Evidence,
		OtherInfo: inst.OtherInfo,
	}
	out := document.Instance{
		URL:     inst.URL,
		Content: fields.Content(),
	}

	if len(inst.ExtraData) > 0 {
		extras, err := document.ParseObject(inst.ExtraData)
		if err != nil {
			return out, fmt.Errorf("corrupt extra data: %w", err)
		}
		out.Top = extras
	}

	if includeStatus {
		out.Status = &document.StatusBlock{
			Status:  inst.FixStatus,
			FixedAt: inst.FixedAt,
			FixedBy: inst.FixedBy,
			Notes:   inst.FixNotes,
		}
	}
	return out, nil
}
