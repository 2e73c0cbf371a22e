package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

func TestMemory_CreateAndLoadGraph(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	stored, err := m.CreateReportGraph(ctx, sampleGraph(at))
	require.NoError(t, err)
	require.NotZero(t, stored.ID)

	loaded, err := m.GetReportGraph(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Vulnerabilities, 2)
	assert.Equal(t, "SQL Injection", loaded.Vulnerabilities[0].Title)
	require.Len(t, loaded.Vulnerabilities[0].Instances, 2)
	assert.Equal(t, "https://shop.example/a", loaded.Vulnerabilities[0].Instances[0].URL)
	assert.Equal(t, stored.Vulnerabilities[0].Instances[1].ID, loaded.Vulnerabilities[0].Instances[1].ID)
	assert.Empty(t, loaded.Vulnerabilities[1].Instances)

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemas.EntityCounts{Reports: 1, Vulnerabilities: 2, Instances: 2}, counts)
}

func TestMemory_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	stored, err := m.CreateReportGraph(ctx, sampleGraph(time.Now()))
	require.NoError(t, err)
	instanceID := stored.Vulnerabilities[0].Instances[0].ID

	require.NoError(t, m.DeleteReport(ctx, stored.ID))

	_, err = m.GetReport(ctx, stored.ID)
	assert.ErrorIs(t, err, schemas.ErrNotFound)
	_, err = m.GetInstance(ctx, instanceID)
	assert.ErrorIs(t, err, schemas.ErrNotFound)

	vulns, err := m.ListVulnerabilities(ctx, []int64{stored.ID})
	require.NoError(t, err)
	assert.Empty(t, vulns)

	assert.ErrorIs(t, m.DeleteReport(ctx, stored.ID), schemas.ErrNotFound)
}

func TestMemory_ListReportsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, site := range []string{"https://a.example", "https://b.example", "https://c.test"} {
		_, err := m.CreateReportGraph(ctx, &schemas.ReportGraph{
			Report: schemas.Report{SiteURL: site, ImportedAt: base.Add(time.Duration(i) * time.Hour)},
		})
		require.NoError(t, err)
	}

	reports, total, err := m.ListReports(ctx, schemas.ReportFilter{Search: "EXAMPLE"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, reports, 2)
	assert.Equal(t, "https://b.example", reports[0].SiteURL)

	page, total, err := m.ListReports(ctx, schemas.ReportFilter{Page: schemas.Page{Page: 2, PerPage: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "https://a.example", page[0].SiteURL)

	empty, _, err := m.ListReports(ctx, schemas.ReportFilter{Page: schemas.Page{Page: 9}})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemory_UpdateInstanceStatusStampsOnlyFixed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	stored, err := m.CreateReportGraph(ctx, sampleGraph(time.Now()))
	require.NoError(t, err)
	id := stored.Vulnerabilities[0].Instances[0].ID

	t1 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	inst, err := m.UpdateInstanceStatus(ctx, schemas.StatusUpdate{InstanceID: id, Status: schemas.StatusFixed, FixedBy: "alice", At: t1})
	require.NoError(t, err)
	require.NotNil(t, inst.FixedAt)
	assert.Equal(t, t1, *inst.FixedAt)

	t2 := t1.Add(24 * time.Hour)
	inst, err = m.UpdateInstanceStatus(ctx, schemas.StatusUpdate{InstanceID: id, Status: schemas.StatusInProgress, Notes: "regressed", At: t2})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusInProgress, inst.FixStatus)
	assert.Equal(t, t1, *inst.FixedAt)
	assert.Equal(t, "alice", inst.FixedBy)
	assert.Equal(t, "regressed", inst.FixNotes)
	assert.Equal(t, t2, inst.UpdatedAt)
}

func TestMemory_SearchAndStatuses(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	stored, err := m.CreateReportGraph(ctx, sampleGraph(time.Now()))
	require.NoError(t, err)

	hits, total, err := m.SearchInstances(ctx, schemas.SearchFilter{Query: "injection", Severity: schemas.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, hits, 2)
	assert.Equal(t, stored.ID, hits[0].ReportID)

	hits, _, err = m.SearchInstances(ctx, schemas.SearchFilter{Query: "/b"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://shop.example/b", hits[0].URL)

	hits, total, err = m.SearchInstances(ctx, schemas.SearchFilter{Status: schemas.StatusFixed})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, hits)

	other := int64(9999)
	statuses, err := m.ListInstanceStatuses(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	statuses, err = m.ListInstanceStatuses(ctx, &stored.ID)
	require.NoError(t, err)
	assert.Equal(t, []schemas.FixStatus{schemas.StatusPending, schemas.StatusPending}, statuses)
}

func TestMemory_Logs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.AppendLog(ctx, schemas.ActionImport, "first"))
	require.NoError(t, m.AppendLog(ctx, schemas.ActionDelete, "second"))
	require.NoError(t, m.AppendLog(ctx, schemas.ActionImport, "third"))

	logs, total, err := m.ListLogs(ctx, schemas.LogFilter{ActionType: schemas.ActionImport})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].Message)
	assert.Equal(t, "first", logs[1].Message)
}
