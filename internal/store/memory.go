package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

// Memory is an in-process schemas.Store with the same observable behaviour as
// Store: cascade on delete, fixed stamps only written on fixed, newest first
// listings. Nothing is persisted; it backs tests.
type Memory struct {
	mu        sync.RWMutex
	nextID    int64
	reports   map[int64]schemas.Report
	vulns     map[int64]schemas.Vulnerability
	instances map[int64]schemas.VulnInstance
	logs      []schemas.OperationLog
	now       func() time.Time
}

var _ schemas.Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		reports:   make(map[int64]schemas.Report),
		vulns:     make(map[int64]schemas.Vulnerability),
		instances: make(map[int64]schemas.VulnInstance),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateReportGraph stores the graph and assigns ids to every row.
func (m *Memory) CreateReportGraph(_ context.Context, graph *schemas.ReportGraph) (*schemas.ReportGraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *graph
	out.ID = m.id()
	m.reports[out.ID] = out.Report

	out.Vulnerabilities = make([]schemas.VulnerabilityGraph, len(graph.Vulnerabilities))
	for i, vg := range graph.Vulnerabilities {
		v := vg.Vulnerability
		v.ID, v.ReportID = m.id(), out.ID
		m.vulns[v.ID] = v

		instances := make([]schemas.VulnInstance, len(vg.Instances))
		for j, inst := range vg.Instances {
			inst.ID, inst.VulnerabilityID = m.id(), v.ID
			if inst.FixStatus == "" {
				inst.FixStatus = schemas.StatusPending
			}
			inst.ExtraData = slices.Clone(inst.ExtraData)
			m.instances[inst.ID] = inst
			instances[j] = inst
		}
		out.Vulnerabilities[i] = schemas.VulnerabilityGraph{Vulnerability: v, Instances: instances}
	}
	return &out, nil
}

// GetReport returns a single report.
func (m *Memory) GetReport(_ context.Context, id int64) (*schemas.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, &schemas.NotFoundError{Entity: "report", ID: id}
	}
	return &r, nil
}

// GetReportGraph returns a report with its vulnerabilities and instances.
func (m *Memory) GetReportGraph(ctx context.Context, id int64) (*schemas.ReportGraph, error) {
	r, err := m.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	graph := &schemas.ReportGraph{Report: *r}
	for _, v := range m.sortedVulns(func(v schemas.Vulnerability) bool { return v.ReportID == id }) {
		graph.Vulnerabilities = append(graph.Vulnerabilities, schemas.VulnerabilityGraph{
			Vulnerability: v,
			Instances:     m.sortedInstances(func(i schemas.VulnInstance) bool { return i.VulnerabilityID == v.ID }),
		})
	}
	return graph, nil
}

// ListReports returns one page of reports, newest import first.
func (m *Memory) ListReports(_ context.Context, filter schemas.ReportFilter) ([]schemas.Report, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []schemas.Report
	for _, r := range m.newestReports() {
		if containsFold(r.SiteURL, filter.Search) {
			matched = append(matched, r)
		}
	}
	return paginate(matched, filter.Page), len(matched), nil
}

// ListReportIDs returns every report id, newest import first.
func (m *Memory) ListReportIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, r := range m.newestReports() {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ListVulnerabilities returns the vulnerabilities of the given reports.
func (m *Memory) ListVulnerabilities(_ context.Context, reportIDs []int64) ([]schemas.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedVulns(func(v schemas.Vulnerability) bool { return slices.Contains(reportIDs, v.ReportID) }), nil
}

// DeleteReport removes a report together with its vulnerabilities and instances.
func (m *Memory) DeleteReport(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return &schemas.NotFoundError{Entity: "report", ID: id}
	}
	delete(m.reports, id)
	for vid, v := range m.vulns {
		if v.ReportID != id {
			continue
		}
		delete(m.vulns, vid)
		for iid, inst := range m.instances {
			if inst.VulnerabilityID == vid {
				delete(m.instances, iid)
			}
		}
	}
	return nil
}

// UpdateReportNotes replaces the notes of a report.
func (m *Memory) UpdateReportNotes(_ context.Context, id int64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return &schemas.NotFoundError{Entity: "report", ID: id}
	}
	r.Notes = notes
	m.reports[id] = r
	return nil
}

// Counts returns the number of stored reports, vulnerabilities and instances.
func (m *Memory) Counts(_ context.Context) (schemas.EntityCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return schemas.EntityCounts{
		Reports:         len(m.reports),
		Vulnerabilities: len(m.vulns),
		Instances:       len(m.instances),
	}, nil
}

// GetInstance returns a single instance.
func (m *Memory) GetInstance(_ context.Context, id int64) (*schemas.VulnInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, &schemas.NotFoundError{Entity: "instance", ID: id}
	}
	return &inst, nil
}

// UpdateInstanceStatus applies a status change to one instance.
func (m *Memory) UpdateInstanceStatus(_ context.Context, u schemas.StatusUpdate) (*schemas.VulnInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[u.InstanceID]
	if !ok {
		return nil, &schemas.NotFoundError{Entity: "instance", ID: u.InstanceID}
	}
	inst.FixStatus = u.Status
	inst.FixNotes = u.Notes
	if u.Status == schemas.StatusFixed {
		at := u.At.UTC()
		inst.FixedAt = &at
		inst.FixedBy = u.FixedBy
	}
	inst.UpdatedAt = u.At.UTC()
	m.instances[inst.ID] = inst
	return &inst, nil
}

// ListInstanceStatuses returns the status of every instance, optionally
// scoped to one report.
func (m *Memory) ListInstanceStatuses(_ context.Context, reportID *int64) ([]schemas.FixStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schemas.FixStatus
	for _, inst := range m.sortedInstances(func(schemas.VulnInstance) bool { return true }) {
		if reportID != nil && m.vulns[inst.VulnerabilityID].ReportID != *reportID {
			continue
		}
		out = append(out, inst.FixStatus)
	}
	return out, nil
}

// SearchInstances returns one page of instances matching the filter.
func (m *Memory) SearchInstances(_ context.Context, f schemas.SearchFilter) ([]schemas.SearchHit, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []schemas.SearchHit
	for _, inst := range m.sortedInstances(func(schemas.VulnInstance) bool { return true }) {
		v := m.vulns[inst.VulnerabilityID]
		r := m.reports[v.ReportID]
		if !containsFold(inst.URL, f.Query) && !containsFold(v.Title, f.Query) && !containsFold(r.SiteURL, f.Query) {
			continue
		}
		if f.Severity != "" && v.Severity != f.Severity {
			continue
		}
		if f.Status != "" && inst.FixStatus != f.Status {
			continue
		}
		hits = append(hits, schemas.SearchHit{
			InstanceID: inst.ID, URL: inst.URL, Severity: v.Severity, Title: v.Title,
			FixStatus: inst.FixStatus, ReportID: r.ID, SiteURL: r.SiteURL,
		})
	}
	return paginate(hits, f.Page), len(hits), nil
}

// AppendLog records an operation log entry.
func (m *Memory) AppendLog(_ context.Context, actionType, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, schemas.OperationLog{
		ID: m.id(), ActionType: actionType, Message: message, CreatedAt: m.now(),
	})
	return nil
}

// ListLogs returns one page of log entries, newest first.
func (m *Memory) ListLogs(_ context.Context, f schemas.LogFilter) ([]schemas.OperationLog, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []schemas.OperationLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if f.ActionType == "" || m.logs[i].ActionType == f.ActionType {
			matched = append(matched, m.logs[i])
		}
	}
	return paginate(matched, f.Page), len(matched), nil
}

// newestReports returns reports ordered by import time then id, newest first.
func (m *Memory) newestReports() []schemas.Report {
	out := make([]schemas.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.After(out[j].ImportedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *Memory) sortedVulns(keep func(schemas.Vulnerability) bool) []schemas.Vulnerability {
	var out []schemas.Vulnerability
	for _, v := range m.vulns {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) sortedInstances(keep func(schemas.VulnInstance) bool) []schemas.VulnInstance {
	var out []schemas.VulnInstance
	for _, inst := range m.instances {
		if keep(inst) {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func paginate[T any](items []T, p schemas.Page) []T {
	off := p.Offset()
	if off >= len(items) {
		return nil
	}
	end := min(off+p.Normalize().PerPage, len(items))
	return items[off:end]
}
