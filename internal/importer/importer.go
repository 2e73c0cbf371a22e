// Package importer turns scanner report documents into report graphs and
// hands them to the store as a single unit of work.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/document"
)

// Result describes one successful import.
type Result struct {
	Report  *schemas.ReportGraph
	Dropped document.Dropped
}

// Importer decomposes documents and persists the resulting graphs.
type Importer struct {
	store    schemas.ReportStore
	logger   *zap.Logger
	maxBytes int64
	now      func() time.Time
}

// New creates an Importer backed by store.
func New(store schemas.ReportStore, logger *zap.Logger, cfg config.ImporterConfig) *Importer {
	return &Importer{
		store:    store,
		logger:   logger.Named("importer"),
		maxBytes: cfg.MaxDocumentBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Import decodes data and stores it as a new report labelled with
// sourceLabel. Decoding happens before anything is written, so a
// FormatError never leaves rows behind.
func (im *Importer) Import(ctx context.Context, data []byte, sourceLabel string) (*Result, error) {
	if im.maxBytes > 0 && int64(len(data)) > im.maxBytes {
		return nil, &schemas.FormatError{Path: "$", Reason: fmt.Sprintf("document exceeds %d bytes", im.maxBytes)}
	}

	doc, err := document.Decode(data)
	if err != nil {
		return nil, err
	}

	graph, err := Decompose(doc, sourceLabel, im.now())
	if err != nil {
		return nil, err
	}

	stored, err := im.store.CreateReportGraph(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("failed to persist report from %q: %w", sourceLabel, err)
	}

	if doc.Dropped.Total() > 0 {
		im.logger.Warn("Skipped malformed elements during import.",
			zap.String("source", sourceLabel),
			zap.Int("findings", doc.Dropped.Findings),
			zap.Int("instances", doc.Dropped.Instances))
	}
	im.logger.Info("Report imported.",
		zap.Int64("report_id", stored.ID),
		zap.String("source", sourceLabel),
		zap.Int("vulnerabilities", len(stored.Vulnerabilities)),
		zap.Int("instances", stored.InstanceCount()))

	return &Result{Report: stored, Dropped: doc.Dropped}, nil
}

// ImportReader reads a whole document from r before importing it.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, sourceLabel string) (*Result, error) {
	if im.maxBytes > 0 {
		// One extra byte lets Import detect the overflow.
		r = io.LimitReader(r, im.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", sourceLabel, err)
	}
	return im.Import(ctx, data, sourceLabel)
}

// ImportFile imports the document at path, labelled with its base name.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()
	return im.ImportReader(ctx, f, filepath.Base(path))
}

// Decompose maps a decoded document onto a report graph without touching any
// storage. Every instance starts out pending.
func Decompose(doc *document.Document, sourceLabel string, importedAt time.Time) (*schemas.ReportGraph, error) {
	graph := &schemas.ReportGraph{
		Report: schemas.Report{
			SiteURL:          doc.SiteURL,
			SummarySequences: doc.SummaryOfSequences,
			SequenceDetails:  doc.SequenceDetails,
			FileName:         sourceLabel,
			ImportedAt:       importedAt,
		},
	}

	for _, group := range doc.Groups {
		for _, finding := range group.Findings {
			vg := schemas.VulnerabilityGraph{
				Vulnerability: schemas.Vulnerability{
					Severity:    group.Severity,
					Title:       finding.Title,
					Description: finding.Description,
				},
			}
			for _, inst := range finding.Instances {
				vi, err := decomposeInstance(inst, importedAt)
				if err != nil {
					return nil, fmt.Errorf("finding %q: %w", finding.Title, err)
				}
				vg.Instances = append(vg.Instances, vi)
			}
			graph.Vulnerabilities = append(graph.Vulnerabilities, vg)
		}
	}
	return graph, nil
}

func decomposeInstance(inst document.Instance, at time.Time) (schemas.VulnInstance, error) {
	fields := inst.Fields()
	vi := schemas.VulnInstance{
		URL:       inst.URL,
		Method:    fields.Method,
		Parameter: fields.Parameter,
		Attack:    fields.Attack,
		Evidence:  fields.Evidence,
		OtherInfo: fields.OtherInfo,
		FixStatus: schemas.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if extras := inst.Extras(); len(extras) > 0 {
		raw, err := extras.Value()
		if err != nil {
			return vi, fmt.Errorf("encoding extra fields of %q: %w", inst.URL, err)
		}
		vi.ExtraData = raw
	}
	return vi, nil
}
