package exporter

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/document"
	"github.com/xkilldash9x/vulntrack/internal/importer"
	"github.com/xkilldash9x/vulntrack/internal/mocks"
	"github.com/xkilldash9x/vulntrack/internal/store"
)

const scanDocument = `{
  "SiteURL": "https://shop.example",
  "SummaryofSequences": "3 sequences",
  "SequenceDetails": "login, cart",
  "Low": [
    {"Cookie Flags": {"Description": "cookie flags", "instances": [
      {"URL": "https://shop.example/", "content": {"Evidence": "Set-Cookie: sid"}}
    ]}}
  ],
  "High": [
    {"SQL Injection": {"Description": "unsanitised input", "instances": [
      {"URL": "https://shop.example/item?id=1", "content": {"方法": "GET", "Nested": "dropped"}, "Parameter": "id", "risk_id": 40018, "tags": ["a", "b"]}
    ]}}
  ]
}`

var exportTime = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// importSample stores scanDocument and returns the stored graph.
func importSample(t *testing.T, st *store.Memory) *schemas.ReportGraph {
	t.Helper()
	im := importer.New(st, zap.NewNop(), config.ImporterConfig{})
	res, err := im.Import(context.Background(), []byte(scanDocument), "scan.json")
	require.NoError(t, err)
	return res.Report
}

func newTestExporter(st schemas.ReportStore) *Exporter {
	ex := New(st, zap.NewNop())
	ex.now = func() time.Time { return exportTime }
	return ex
}

func TestExport_RoundTrip(t *testing.T) {
	st := store.NewMemory()
	stored := importSample(t, st)

	doc, err := newTestExporter(st).Export(context.Background(), stored.ID, false)
	require.NoError(t, err)
	require.NotNil(t, doc.ExportedAt)
	assert.True(t, exportTime.Equal(*doc.ExportedAt))

	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf, ""))
	assert.Contains(t, buf.String(), `"exported_at":"`+exportTime.UTC().Format(time.RFC3339)+`"`)

	again, err := document.Decode(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example", again.SiteURL)
	assert.Equal(t, "3 sequences", again.SummaryOfSequences)
	assert.Equal(t, "login, cart", again.SequenceDetails)
	assert.Nil(t, again.ExportedAt, "decoding ignores export metadata")

	require.Len(t, again.Groups, 2)
	assert.Equal(t, schemas.SeverityLow, again.Groups[0].Severity, "first seen order")
	assert.Equal(t, schemas.SeverityHigh, again.Groups[1].Severity)

	sqli := again.Groups[1].Findings[0]
	assert.Equal(t, "SQL Injection", sqli.Title)
	assert.Equal(t, "unsanitised input", sqli.Description)
	require.Len(t, sqli.Instances, 1)
	inst := sqli.Instances[0]
	assert.Equal(t, "https://shop.example/item?id=1", inst.URL)
	assert.Equal(t, document.Fields{Method: "GET", Parameter: "id"}, inst.Fields())
	assert.Equal(t, []string{string(document.LabelMethod), string(document.LabelParameter)}, inst.Content.Names())
	assert.False(t, inst.Content.Has("Nested"), "non-label content keys are not kept")
	assert.Equal(t, []string{"risk_id", "tags"}, inst.Top.Names())
	tags, _ := inst.Top.Get("tags")
	assert.Equal(t, `["a","b"]`, string(tags))
	assert.Nil(t, inst.Status)
}

func TestExport_IncludeStatus(t *testing.T) {
	st := store.NewMemory()
	stored := importSample(t, st)
	sqliInstance := stored.Vulnerabilities[1].Instances[0]

	fixedAt := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	_, err := st.UpdateInstanceStatus(context.Background(), schemas.StatusUpdate{
		InstanceID: sqliInstance.ID, Status: schemas.StatusFixed, Notes: "patched", FixedBy: "alice", At: fixedAt,
	})
	require.NoError(t, err)

	doc, err := newTestExporter(st).Export(context.Background(), stored.ID, true)
	require.NoError(t, err)

	low := doc.Groups[0].Findings[0].Instances[0]
	require.NotNil(t, low.Status)
	assert.Equal(t, schemas.StatusPending, low.Status.Status)
	assert.Nil(t, low.Status.FixedAt)

	high := doc.Groups[1].Findings[0].Instances[0]
	require.NotNil(t, high.Status)
	assert.Equal(t, schemas.StatusFixed, high.Status.Status)
	assert.Equal(t, "alice", high.Status.FixedBy)
	assert.Equal(t, "patched", high.Status.Notes)

	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf, ""))
	assert.Contains(t, buf.String(),
		`"_fix_status":{"status":"fixed","fixed_at":"2024-06-03T09:30:00Z","fixed_by":"alice","notes":"patched"}`)
	assert.Contains(t, buf.String(),
		`"_fix_status":{"status":"pending","fixed_at":null,"fixed_by":null,"notes":null}`)
}

func TestBuild_NotesAndEmptyReport(t *testing.T) {
	doc, err := Build(&schemas.ReportGraph{Report: schemas.Report{Notes: "triaged"}}, true)
	require.NoError(t, err)
	assert.Empty(t, doc.Groups)
	assert.Equal(t, "triaged", doc.ReportNotes)

	v, err := doc.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"SiteURL":"","SummaryofSequences":"","SequenceDetails":"","report_notes":"triaged"}`, string(v))
}

func TestBuild_StatusReplacesCollidingExtra(t *testing.T) {
	graph := &schemas.ReportGraph{
		Vulnerabilities: []schemas.VulnerabilityGraph{{
			Vulnerability: schemas.Vulnerability{Severity: schemas.SeverityMedium, Title: "CSP"},
			Instances: []schemas.VulnInstance{{
				URL:       "https://x",
				ExtraData: []byte(`{"a":1,"_fix_status":"stale","b":2}`),
				FixStatus: schemas.StatusWontFix,
			}},
		}},
	}
	doc, err := Build(graph, true)
	require.NoError(t, err)

	v, err := doc.Value()
	require.NoError(t, err)
	assert.Equal(t,
		`{"SiteURL":"","SummaryofSequences":"","SequenceDetails":"","Medium":[{"CSP":{"Description":"","instances":[`+
			`{"URL":"https://x","content":{},"a":1,"_fix_status":{"status":"wont_fix","fixed_at":null,"fixed_by":null,"notes":null},"b":2}]}}]}`,
		string(v))
}

func TestBuild_CorruptExtraData(t *testing.T) {
	graph := &schemas.ReportGraph{
		Vulnerabilities: []schemas.VulnerabilityGraph{{
			Vulnerability: schemas.Vulnerability{Severity: schemas.SeverityLow, Title: "t"},
			Instances:     []schemas.VulnInstance{{ID: 5, URL: "u", ExtraData: []byte(`[1,2]`)}},
		}},
	}
	_, err := Build(graph, false)
	assert.ErrorContains(t, err, "instance 5")
}

func TestExport_NotFound(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockStore.On("GetReportGraph", mock.Anything, int64(77)).
		Return(nil, &schemas.NotFoundError{Entity: "report", ID: 77})

	_, err := New(mockStore, zap.NewNop()).Export(context.Background(), 77, true)
	assert.ErrorIs(t, err, schemas.ErrNotFound)
	mockStore.AssertExpectations(t)
}
