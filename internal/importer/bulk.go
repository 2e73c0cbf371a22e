package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileResult records one file that was imported.
type FileResult struct {
	File     string `json:"file" yaml:"file"`
	ReportID int64  `json:"report_id" yaml:"report_id"`
	SiteURL  string `json:"site_url" yaml:"site_url"`
	Dropped  int    `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// FileError records one file that could not be imported.
type FileError struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// BulkResult summarises a multi-file import. BatchID ties together the log
// lines written for the batch.
type BulkResult struct {
	BatchID  string       `json:"batch_id" yaml:"batch_id"`
	Imported []FileResult `json:"imported" yaml:"imported"`
	Errors   []FileError  `json:"errors" yaml:"errors"`
}

// ImportDir imports every *.json file directly inside dir, in name order.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*BulkResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read import directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return im.ImportFiles(ctx, paths)
}

// ImportFiles imports each path in turn. A failing file is recorded and the
// next one proceeds; only cancellation stops the batch early.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) (*BulkResult, error) {
	result := &BulkResult{
		BatchID:  uuid.NewString(),
		Imported: []FileResult{},
		Errors:   []FileError{},
	}
	logger := im.logger.With(zap.String("batch_id", result.BatchID))
	logger.Info("Starting bulk import.", zap.Int("files", len(paths)))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := filepath.Base(path)
		res, err := im.ImportFile(ctx, path)
		if err != nil {
			logger.Warn("File import failed.", zap.String("file", name), zap.Error(err))
			result.Errors = append(result.Errors, FileError{File: name, Error: err.Error()})
			continue
		}
		result.Imported = append(result.Imported, FileResult{
			File:     name,
			ReportID: res.Report.ID,
			SiteURL:  res.Report.SiteURL,
			Dropped:  res.Dropped.Total(),
		})
	}

	logger.Info("Bulk import finished.",
		zap.Int("imported", len(result.Imported)),
		zap.Int("failed", len(result.Errors)))
	return result, nil
}
