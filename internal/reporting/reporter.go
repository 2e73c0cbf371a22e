// Package reporting writes exported report documents to an output, either as
// the scanner's own JSON shape or as SARIF 2.1.0.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/vulntrack/internal/document"
)

// Reporter defines the interface for writing exported documents to an output.
type Reporter interface {
	// Write processes a single exported document.
	Write(doc *document.Document) error
	// Close finalizes the output and closes any underlying resources.
	Close() error
}

// Options tune the reporters.
type Options struct {
	// Indent is used for JSON output. Empty means compact.
	Indent      string
	ToolVersion string
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// NopCloser turns w into an io.WriteCloser whose Close does nothing.
func NopCloser(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}

// New creates a reporter for format writing to outputPath, or to stdout when
// outputPath is empty or "stdout".
func New(format, outputPath string, opts Options) (Reporter, error) {
	if err := CheckFormat(format); err != nil {
		return nil, err
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = NopCloser(os.Stdout)
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWithWriter(format, writer, opts)
}

// NewWithWriter creates a reporter that takes ownership of writer.
func NewWithWriter(format string, writer io.WriteCloser, opts Options) (Reporter, error) {
	switch format {
	case "json":
		return NewJSONReporter(writer, opts.Indent), nil
	case "sarif":
		return NewSARIFReporter(writer, opts.ToolVersion), nil
	default:
		writer.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// CheckFormat reports whether format names a supported reporter.
func CheckFormat(format string) error {
	switch format {
	case "json", "sarif":
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// JSONReporter writes documents in the scanner's nested shape, one JSON value
// per document.
type JSONReporter struct {
	writer io.WriteCloser
	indent string
}

// NewJSONReporter creates a JSONReporter.
func NewJSONReporter(writer io.WriteCloser, indent string) *JSONReporter {
	return &JSONReporter{writer: writer, indent: indent}
}

func (r *JSONReporter) Write(doc *document.Document) error {
	if err := doc.Encode(r.writer, r.indent); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
