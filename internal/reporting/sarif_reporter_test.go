// internal/reporting/sarif_reporter_test.go
package reporting_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/document"
	"github.com/xkilldash9x/vulntrack/internal/reporting"
	"github.com/xkilldash9x/vulntrack/internal/reporting/sarif"
)

// MockWriteCloser allows capturing output and simulating I/O errors.
type MockWriteCloser struct {
	Buffer    *bytes.Buffer
	FailWrite bool
	FailClose bool
	Closed    bool
}

// Write writes to the internal buffer, simulating a write error if configured.
func (m *MockWriteCloser) Write(p []byte) (n int, err error) {
	if m.FailWrite {
		return 0, errors.New("simulated write error")
	}
	return m.Buffer.Write(p)
}

// Close simulates a closing error if configured.
func (m *MockWriteCloser) Close() error {
	m.Closed = true
	if m.FailClose {
		return errors.New("simulated close error")
	}
	return nil
}

func setupSARIFTest(_ *testing.T) (*reporting.SARIFReporter, *MockWriteCloser) {
	mockWriter := &MockWriteCloser{Buffer: new(bytes.Buffer)}
	reporter := reporting.NewSARIFReporter(mockWriter, "v1.2.3-test")
	return reporter, mockWriter
}

func decodeLog(t *testing.T, raw []byte) sarif.Log {
	t.Helper()
	var log sarif.Log
	require.NoError(t, json.Unmarshal(raw, &log), "Output should be valid SARIF JSON")
	return log
}

func instance(url string, content ...string) document.Instance {
	inst := document.Instance{URL: url}
	for i := 0; i+1 < len(content); i += 2 {
		inst.Content.Set(content[i], document.StringValue(content[i+1]))
	}
	return inst
}

func sampleDocument() *document.Document {
	exportedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedAt := time.Date(2024, 2, 28, 9, 30, 0, 0, time.UTC)

	fixed := instance("https://shop.example/login", string(document.LabelMethod), "POST", "Parameter", "user")
	fixed.Status = &document.StatusBlock{Status: schemas.StatusFixed, FixedAt: &fixedAt, FixedBy: "alice"}
	ignored := instance("https://shop.example/search")
	ignored.Status = &document.StatusBlock{Status: schemas.StatusWontFix, Notes: "legacy endpoint"}

	return &document.Document{
		SiteURL:     "https://shop.example",
		ExportedAt:  &exportedAt,
		ReportNotes: "quarterly scan",
		Groups: []document.Group{
			{Severity: schemas.SeverityHigh, Findings: []document.Finding{
				{Title: "SQL Injection", Description: "Unsanitized input reaches a query.", Instances: []document.Instance{fixed, ignored}},
			}},
			{Severity: schemas.SeverityLow, Findings: []document.Finding{
				{Title: "Server Banner", Instances: []document.Instance{instance("https://shop.example/")}},
			}},
			{Severity: schemas.SeverityMedium, Findings: []document.Finding{
				{Title: "SQL Injection", Description: "Blind variant.", Instances: []document.Instance{instance("https://shop.example/item")}},
			}},
		},
	}
}

// TestSARIFReporter_Initialization verifies the structure of an empty report.
func TestSARIFReporter_Initialization(t *testing.T) {
	reporter, writer := setupSARIFTest(t)
	require.NoError(t, reporter.Close())
	assert.True(t, writer.Closed)

	log := decodeLog(t, writer.Buffer.Bytes())
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]

	require.NotNil(t, run.Tool)
	require.NotNil(t, run.Tool.Driver)
	assert.Equal(t, reporting.ToolName, run.Tool.Driver.Name)
	assert.Equal(t, "v1.2.3-test", *run.Tool.Driver.Version)

	// Results must encode as [] rather than null.
	require.NotNil(t, run.Results)
	assert.Empty(t, run.Results)
	assert.Empty(t, run.Tool.Driver.Rules)
	assert.Nil(t, run.Properties)
}

// TestSARIFReporter_WriteAndClose verifies the end-to-end process.
func TestSARIFReporter_WriteAndClose(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	require.NoError(t, reporter.Write(sampleDocument()))
	require.NoError(t, reporter.Close())

	run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]

	// One result per instance.
	require.Len(t, run.Results, 4)
	// Same title with a different description collides and gets a suffix.
	require.Len(t, run.Tool.Driver.Rules, 3)
	assert.Equal(t, "VULNTRACK-SQL-INJECTION", run.Tool.Driver.Rules[0].ID)
	assert.Equal(t, "VULNTRACK-SERVER-BANNER", run.Tool.Driver.Rules[1].ID)
	assert.Equal(t, "VULNTRACK-SQL-INJECTION-1", run.Tool.Driver.Rules[2].ID)

	require.NotNil(t, run.Properties)
	assert.Equal(t, "https://shop.example", (*run.Properties)["siteUrl"])
	assert.Equal(t, "2024-03-01T12:00:00Z", (*run.Properties)["exportedAt"])
	assert.Equal(t, "quarterly scan", (*run.Properties)["reportNotes"])

	t.Run("fixed instance", func(t *testing.T) {
		r := run.Results[0]
		assert.Equal(t, "VULNTRACK-SQL-INJECTION", r.RuleID)
		assert.Equal(t, sarif.LevelError, r.Level)
		assert.Equal(t, "Unsanitized input reaches a query.", *r.Message.Text)
		assert.Equal(t, "https://shop.example/login", *r.Locations[0].PhysicalLocation.ArtifactLocation.URI)
		assert.Empty(t, r.Suppressions)

		props := *r.Properties
		assert.Equal(t, "High", props["severity"])
		assert.Equal(t, "POST", props["method"])
		assert.Equal(t, "user", props["parameter"])
		assert.Equal(t, "fixed", props["fixStatus"])
		assert.Equal(t, "2024-02-28T09:30:00Z", props["fixedAt"])
		assert.Equal(t, "alice", props["fixedBy"])
	})

	t.Run("wont_fix instance is suppressed", func(t *testing.T) {
		r := run.Results[1]
		require.Len(t, r.Suppressions, 1)
		assert.Equal(t, sarif.SuppressionExternal, r.Suppressions[0].Kind)
		assert.Equal(t, "legacy endpoint", *r.Suppressions[0].Justification)
		assert.Equal(t, "wont_fix", (*r.Properties)["fixStatus"])
	})

	t.Run("empty description falls back to title", func(t *testing.T) {
		r := run.Results[2]
		assert.Equal(t, sarif.LevelNote, r.Level)
		assert.Equal(t, "Server Banner", *r.Message.Text)
		assert.NotContains(t, *r.Properties, "fixStatus")
	})

	t.Run("medium maps to warning", func(t *testing.T) {
		r := run.Results[3]
		assert.Equal(t, sarif.LevelWarning, r.Level)
		assert.Equal(t, "VULNTRACK-SQL-INJECTION-1", r.RuleID)
	})
}

// TestSARIFReporter_RuleSanitization checks rule id normalization.
func TestSARIFReporter_RuleSanitization(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"Cross-Site Scripting (Reflected)", "VULNTRACK-CROSS-SITE-SCRIPTING-REFLECTED"},
		{"X-Frame-Options Header Not Set", "VULNTRACK-X-FRAME-OPTIONS-HEADER-NOT-SET"},
		{"Version 1.2 Disclosure", "VULNTRACK-VERSION-1.2-DISCLOSURE"},
		{"", "VULNTRACK-UNNAMED-VULNERABILITY"},
		{"()!!", "VULNTRACK-UNKNOWN-VULNERABILITY"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reporter, writer := setupSARIFTest(t)
			doc := &document.Document{Groups: []document.Group{{
				Severity: schemas.SeverityInformational,
				Findings: []document.Finding{{Title: tt.title, Instances: []document.Instance{instance("https://a.example/")}}},
			}}}
			require.NoError(t, reporter.Write(doc))
			require.NoError(t, reporter.Close())

			run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]
			require.Len(t, run.Tool.Driver.Rules, 1)
			assert.Equal(t, tt.expected, run.Tool.Driver.Rules[0].ID)
		})
	}
}

// TestSARIFReporter_MultipleDocuments shares rules across documents and
// keeps the first document's run properties.
func TestSARIFReporter_MultipleDocuments(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	require.NoError(t, reporter.Write(sampleDocument()))
	second := sampleDocument()
	second.SiteURL = "https://other.example"
	require.NoError(t, reporter.Write(second))
	require.NoError(t, reporter.Close())

	run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]
	assert.Len(t, run.Results, 8)
	assert.Len(t, run.Tool.Driver.Rules, 3)
	assert.Equal(t, "https://shop.example", (*run.Properties)["siteUrl"])
}

// TestSARIFReporter_CloseErrors covers writer failures.
func TestSARIFReporter_CloseErrors(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		reporter, writer := setupSARIFTest(t)
		writer.FailWrite = true

		err := reporter.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to encode SARIF output")
		assert.True(t, writer.Closed, "writer is closed even when encoding fails")
	})

	t.Run("close failure", func(t *testing.T) {
		reporter, writer := setupSARIFTest(t)
		writer.FailClose = true

		err := reporter.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to close output writer")
	})
}

// TestSARIFReporter_ConcurrentWrites ensures thread safety.
func TestSARIFReporter_ConcurrentWrites(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := &document.Document{Groups: []document.Group{{
				Severity: schemas.SeverityMedium,
				Findings: []document.Finding{
					{Title: "Shared", Description: "same", Instances: []document.Instance{instance(fmt.Sprintf("https://a.example/%d", i))}},
					{Title: fmt.Sprintf("Unique %d", i), Instances: []document.Instance{instance("https://a.example/")}},
				},
			}}}
			assert.NoError(t, reporter.Write(doc))
		}(i)
	}
	wg.Wait()
	require.NoError(t, reporter.Close())

	run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]
	assert.Len(t, run.Results, 2*writers)
	assert.Len(t, run.Tool.Driver.Rules, writers+1)
}
