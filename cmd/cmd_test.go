// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/service"
	"github.com/xkilldash9x/vulntrack/internal/store"
)

const scanDocument = `{
  "SiteURL": "https://shop.example",
  "SummaryofSequences": "",
  "SequenceDetails": "",
  "High": [
    {"SQL Injection": {"Description": "d", "instances": [
      {"URL": "https://shop.example/a", "content": {"方法": "GET", "Parameter": "id"}},
      {"URL": "https://shop.example/b", "risk": "3"}
    ]}}
  ],
  "Low": [{"Banner": {"Description": "", "instances": [{"URL": "https://shop.example/"}]}}]
}`

// -- Test Helpers --

// memoryFactory hands out trackers over one shared in-memory store so a test
// can chain several commands.
type memoryFactory struct {
	store *store.Memory
	err   error
}

func (f *memoryFactory) Create(_ context.Context, cfg config.Interface, logger *zap.Logger) (*service.Components, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.Components{Tracker: service.NewTracker(f.store, cfg, logger)}, nil
}

func newMemoryFactory() *memoryFactory {
	return &memoryFactory{store: store.NewMemory()}
}

// executeCommand runs a fresh root command and returns everything it printed.
func executeCommand(t *testing.T, factory service.ComponentFactory, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(factory)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// importSample imports scanDocument and returns the instance ids in order.
func importSample(t *testing.T, factory service.ComponentFactory) []int64 {
	t.Helper()
	_, err := executeCommand(t, factory, "import", writeTempFile(t, "scan.json", scanDocument))
	require.NoError(t, err)

	out, err := executeCommand(t, factory, "reports", "show", "1")
	require.NoError(t, err)

	var graph struct {
		Vulnerabilities []struct {
			Instances []struct {
				ID int64 `json:"id"`
			} `json:"instances"`
		} `json:"vulnerabilities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &graph))

	var ids []int64
	for _, v := range graph.Vulnerabilities {
		for _, inst := range v.Instances {
			ids = append(ids, inst.ID)
		}
	}
	require.Len(t, ids, 3)
	return ids
}

// -- Test Cases --

func TestImportCmd(t *testing.T) {
	factory := newMemoryFactory()
	path := writeTempFile(t, "scan.json", scanDocument)

	out, err := executeCommand(t, factory, "import", path)
	require.NoError(t, err)

	var summary importSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Imported, 1)
	assert.Equal(t, int64(1), summary.Imported[0].ReportID)
	assert.Equal(t, "https://shop.example", summary.Imported[0].SiteURL)
	assert.Empty(t, summary.Errors)

	t.Run("partial failure", func(t *testing.T) {
		out, err := executeCommand(t, factory, "import", path, filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 files failed to import")
		assert.Contains(t, out, `"imported"`)
	})

	t.Run("requires a file", func(t *testing.T) {
		out, err := executeCommand(t, factory, "import")
		require.Error(t, err)
		assert.Contains(t, out, "requires at least 1 arg(s), only received 0")
	})
}

func TestImportDirCmd(t *testing.T) {
	factory := newMemoryFactory()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(scanDocument), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	out, err := executeCommand(t, factory, "import-dir", dir, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "batch_id: ")
	assert.Contains(t, out, "site_url: https://shop.example")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`["not", "an", "object"]`), 0o600))
	_, err = executeCommand(t, factory, "import-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed to import")
}

func TestExportCmd(t *testing.T) {
	factory := newMemoryFactory()
	ids := importSample(t, factory)
	_, err := executeCommand(t, factory, "status", "set", itoa(ids[0]), "fixed", "--fixed-by", "alice")
	require.NoError(t, err)

	t.Run("includes status by default", func(t *testing.T) {
		out, err := executeCommand(t, factory, "export", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "\n  \"SiteURL\": \"https://shop.example\"")
		assert.Contains(t, out, `"_fix_status"`)
		assert.Contains(t, out, `"fixed_by": "alice"`)
	})

	t.Run("compact without status", func(t *testing.T) {
		out, err := executeCommand(t, factory, "export", "1", "--no-status", "--indent", "")
		require.NoError(t, err)
		assert.Contains(t, out, `{"SiteURL":"https://shop.example"`)
		assert.NotContains(t, out, "_fix_status")
		assert.Contains(t, out, `"risk":"3"`)
	})

	t.Run("sarif to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.sarif")
		_, err := executeCommand(t, factory, "export", "1", "-f", "sarif", "-o", path)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"version": "2.1.0"`)
		assert.Contains(t, string(data), `"ruleId": "VULNTRACK-SQL-INJECTION"`)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := executeCommand(t, factory, "export", "1", "-f", "csv")
		assert.ErrorContains(t, err, "unsupported output format: csv")
	})

	t.Run("conflicting status flags", func(t *testing.T) {
		_, err := executeCommand(t, factory, "export", "1", "--include-status", "--no-status")
		assert.Error(t, err)
	})

	t.Run("missing report", func(t *testing.T) {
		_, err := executeCommand(t, factory, "export", "99")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
	})
}

func TestExportCmd_ConfigDefaults(t *testing.T) {
	factory := newMemoryFactory()
	importSample(t, factory)
	cfgFile := writeTempFile(t, "vulntrack.yaml", "export:\n  include_status: false\n  indent: \"\"\n")

	out, err := executeCommand(t, factory, "--config", cfgFile, "export", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `{"SiteURL":"https://shop.example"`)
	assert.NotContains(t, out, "_fix_status")

	out, err = executeCommand(t, factory, "--config", cfgFile, "export", "1", "--include-status")
	require.NoError(t, err)
	assert.Contains(t, out, `"_fix_status":{"status":"pending"`)
}

func TestReportsCmds(t *testing.T) {
	factory := newMemoryFactory()
	importSample(t, factory)

	out, err := executeCommand(t, factory, "reports", "list", "--search", "shop")
	require.NoError(t, err)
	var page schemas.Paged[schemas.ReportSummary]
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Items[0].Stats[schemas.SeverityHigh])
	assert.Equal(t, 2, page.Items[0].VulnCount)

	out, err = executeCommand(t, factory, "reports", "notes", "1", "triaged")
	require.NoError(t, err)
	assert.Equal(t, "Updated notes of report 1.\n", out)

	out, err = executeCommand(t, factory, "reports", "show", "1", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "notes: triaged\n")

	out, err = executeCommand(t, factory, "reports", "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted report 1.\n", out)

	_, err = executeCommand(t, factory, "reports", "show", "1")
	assert.ErrorIs(t, err, schemas.ErrNotFound)

	_, err = executeCommand(t, factory, "reports", "show", "abc")
	assert.ErrorIs(t, err, schemas.ErrValidation)

	_, err = executeCommand(t, factory, "reports", "list", "-f", "xml")
	assert.ErrorContains(t, err, "unsupported output format: xml")
}

func TestStatusCmds(t *testing.T) {
	factory := newMemoryFactory()
	ids := importSample(t, factory)

	out, err := executeCommand(t, factory, "status", "set", itoa(ids[0]), "in_progress", "-n", "looking")
	require.NoError(t, err)
	assert.Contains(t, out, `"fix_status": "in_progress"`)
	assert.Contains(t, out, `"fix_notes": "looking"`)

	_, err = executeCommand(t, factory, "status", "set", itoa(ids[0]), "done")
	assert.ErrorIs(t, err, schemas.ErrValidation)

	out, err = executeCommand(t, factory, "status", "batch", "wont_fix", itoa(ids[1]), itoa(ids[2]), "9999")
	require.NoError(t, err)
	assert.Contains(t, out, `"requested": 3`)
	assert.Contains(t, out, `"updated": 2`)
	assert.Contains(t, out, `"not_found": 1`)

	out, err = executeCommand(t, factory, "status", "summary", "--report", "1", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "  in_progress: 1\n")
	assert.Contains(t, out, "  wont_fix: 2\n")
	assert.Contains(t, out, "total: 3\n")

	_, err = executeCommand(t, factory, "status", "batch", "fixed")
	assert.Error(t, err)
}

func TestSearchCmd(t *testing.T) {
	factory := newMemoryFactory()
	importSample(t, factory)

	out, err := executeCommand(t, factory, "search", "/b")
	require.NoError(t, err)
	var hits schemas.Paged[schemas.SearchHit]
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Equal(t, 1, hits.Total)
	assert.Equal(t, "https://shop.example/b", hits.Items[0].URL)

	out, err = executeCommand(t, factory, "search", "--severity", "Low")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	assert.Equal(t, 1, hits.Total)

	_, err = executeCommand(t, factory, "search", "--severity", "Critical")
	assert.ErrorIs(t, err, schemas.ErrValidation)
	_, err = executeCommand(t, factory, "search", "--status", "closed")
	assert.ErrorIs(t, err, schemas.ErrValidation)
}

func TestViewCmds(t *testing.T) {
	factory := newMemoryFactory()
	importSample(t, factory)

	out, err := executeCommand(t, factory, "tree", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "report-1"`)
	assert.Contains(t, out, `"type": "severity"`)

	out, err = executeCommand(t, factory, "tree")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "https://shop.example"`)

	out, err = executeCommand(t, factory, "dashboard", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "total_reports: 1\n")
	assert.Contains(t, out, "total_instances: 3\n")

	out, err = executeCommand(t, factory, "logs", "--action", schemas.ActionImport)
	require.NoError(t, err)
	var logs schemas.Paged[schemas.OperationLog]
	require.NoError(t, json.Unmarshal([]byte(out), &logs))
	require.Equal(t, 1, logs.Total)
	assert.Contains(t, logs.Items[0].Message, "scan.json -> https://shop.example")
}

func TestMigrateCmd_RequiresDatabase(t *testing.T) {
	_, err := executeCommand(t, newMemoryFactory(), "migrate")
	assert.ErrorContains(t, err, "migrate requires a database store")
}

func TestCommands_FactoryFailure(t *testing.T) {
	factory := &memoryFactory{err: errors.New("connection refused")}
	_, err := executeCommand(t, factory, "reports", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize components")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	cfgFile := writeTempFile(t, "vulntrack.yaml", "database:\n  max_conns: 0\n")
	_, err := executeCommand(t, newMemoryFactory(), "--config", cfgFile, "dashboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.max_conns must be a positive integer")
}
