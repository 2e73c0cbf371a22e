// Package document models the scanner's nested report document: an object
// keyed by severity, holding single-key finding entries whose instances mix
// a URL, an optional content object and arbitrary scanner specific members.
//
// Member order is preserved in both directions so that exported documents
// read like the ones that were imported.
package document

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

// Member names with a fixed meaning.
const (
	KeySiteURL            = "SiteURL"
	KeySummaryOfSequences = "SummaryofSequences"
	KeySequenceDetails    = "SequenceDetails"
	KeyExportedAt         = "exported_at"
	KeyReportNotes        = "report_notes"
	KeyDescription        = "Description"
	KeyInstances          = "instances"
	KeyURL                = "URL"
	KeyContent            = "content"
	KeyFixStatus          = "_fix_status"
)

// Document is the typed view of one report document.
type Document struct {
	SiteURL            string
	SummaryOfSequences string
	SequenceDetails    string

	// ExportedAt and ReportNotes are only written by the exporter.
	ExportedAt  *time.Time
	ReportNotes string

	// Groups appear in document order, one per severity key.
	Groups []Group

	// Dropped counts malformed elements skipped while decoding.
	Dropped Dropped
}

// Group is the array of findings stored under one severity key.
type Group struct {
	Severity schemas.Severity
	Findings []Finding
}

// Finding is a single-key entry: the key is the title.
type Finding struct {
	Title       string
	Description string
	Instances   []Instance
}

// Instance is one occurrence of a finding.
type Instance struct {
	URL     string
	Content Object
	// Top holds every top-level member other than URL and content.
	Top Object
	// Status is emitted as _fix_status when set.
	Status *StatusBlock
}

// Fields resolves the named content fields of the instance.
func (i Instance) Fields() Fields {
	return ResolveFields(i.Content, i.Top)
}

// Extras returns the top-level members that are not named labels.
func (i Instance) Extras() Object {
	var out Object
	for _, m := range i.Top {
		if !IsLabel(m.Name) {
			out = append(out, m)
		}
	}
	return out
}

// StatusBlock is the remediation annotation attached on export.
type StatusBlock struct {
	Status  schemas.FixStatus
	FixedAt *time.Time
	FixedBy string
	Notes   string
}

// Dropped counts elements that were skipped because they were malformed.
type Dropped struct {
	Findings  int
	Instances int
}

// Total returns the number of skipped elements.
func (d Dropped) Total() int { return d.Findings + d.Instances }

// Decode parses a report document. It fails with a *schemas.FormatError when
// the input is not a JSON object or a severity key holds something other than
// an array. Malformed findings and instances are skipped and counted.
func Decode(data []byte) (*Document, error) {
	if k := jsontext.Value(bytes.TrimSpace(data)).Kind(); k != '{' {
		return nil, &schemas.FormatError{Path: "$", Reason: "document is not a JSON object"}
	}
	top, err := ParseObject(data)
	if err != nil {
		return nil, &schemas.FormatError{Path: "$", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	doc := &Document{}
	if v, ok := top.Get(KeySiteURL); ok {
		doc.SiteURL = Text(v)
	}
	if v, ok := top.Get(KeySummaryOfSequences); ok {
		doc.SummaryOfSequences = Text(v)
	}
	if v, ok := top.Get(KeySequenceDetails); ok {
		doc.SequenceDetails = Text(v)
	}

	for _, m := range top {
		sev := schemas.Severity(m.Name)
		if !sev.Valid() || isNull(m.Value) {
			continue
		}
		items, ok := asArray(m.Value)
		if !ok {
			return nil, &schemas.FormatError{Path: "$." + m.Name, Reason: "severity value must be an array"}
		}
		group := Group{Severity: sev}
		for _, item := range items {
			f, ok := decodeFinding(item, &doc.Dropped)
			if !ok {
				doc.Dropped.Findings++
				continue
			}
			group.Findings = append(group.Findings, f)
		}
		doc.Groups = append(doc.Groups, group)
	}
	return doc, nil
}

func decodeFinding(item jsontext.Value, dropped *Dropped) (Finding, bool) {
	entry, ok := asObject(item)
	if !ok || len(entry) != 1 {
		return Finding{}, false
	}
	body, ok := asObject(entry[0].Value)
	if !ok {
		return Finding{}, false
	}

	f := Finding{Title: entry[0].Name}
	if v, ok := body.Get(KeyDescription); ok {
		f.Description = Text(v)
	}

	raw, ok := body.Get(KeyInstances)
	if !ok || isNull(raw) {
		return f, true
	}
	instances, ok := asArray(raw)
	if !ok {
		dropped.Instances++
		return f, true
	}
	for _, rawInst := range instances {
		inst, ok := decodeInstance(rawInst)
		if !ok {
			dropped.Instances++
			continue
		}
		f.Instances = append(f.Instances, inst)
	}
	return f, true
}

func decodeInstance(raw jsontext.Value) (Instance, bool) {
	obj, ok := asObject(raw)
	if !ok {
		return Instance{}, false
	}
	url, ok := obj.Get(KeyURL)
	if !ok || url.Kind() != '"' {
		return Instance{}, false
	}

	inst := Instance{URL: Text(url)}
	for _, m := range obj {
		switch m.Name {
		case KeyURL:
		case KeyContent:
			// A content member that is not an object contributes nothing.
			inst.Content, _ = asObject(m.Value)
		default:
			inst.Top = append(inst.Top, m)
		}
	}
	return inst, true
}

// Encode writes the document as JSON. An empty indent produces compact
// output.
func (d *Document) Encode(w io.Writer, indent string) error {
	v, err := d.Value()
	if err != nil {
		return err
	}
	opts := []jsontext.Options{jsonOptions}
	if indent != "" {
		opts = append(opts, jsontext.WithIndent(indent))
	}
	enc := jsontext.NewEncoder(w, opts...)
	return enc.WriteValue(v)
}

// Value returns the compact JSON encoding of the document.
func (d *Document) Value() (jsontext.Value, error) {
	var top Object
	top.Set(KeySiteURL, StringValue(d.SiteURL))
	top.Set(KeySummaryOfSequences, StringValue(d.SummaryOfSequences))
	top.Set(KeySequenceDetails, StringValue(d.SequenceDetails))
	if d.ExportedAt != nil {
		top.Set(KeyExportedAt, StringValue(d.ExportedAt.UTC().Format(time.RFC3339)))
	}
	if d.ReportNotes != "" {
		top.Set(KeyReportNotes, StringValue(d.ReportNotes))
	}

	for _, g := range d.Groups {
		items := make([]jsontext.Value, 0, len(g.Findings))
		for _, f := range g.Findings {
			v, err := f.value()
			if err != nil {
				return nil, fmt.Errorf("encoding finding %q: %w", f.Title, err)
			}
			items = append(items, v)
		}
		arr, err := arrayValue(items)
		if err != nil {
			return nil, err
		}
		top.Set(string(g.Severity), arr)
	}
	return top.Value()
}

func (f Finding) value() (jsontext.Value, error) {
	instances := make([]jsontext.Value, 0, len(f.Instances))
	for _, inst := range f.Instances {
		v, err := inst.value()
		if err != nil {
			return nil, err
		}
		instances = append(instances, v)
	}
	arr, err := arrayValue(instances)
	if err != nil {
		return nil, err
	}

	body := Object{
		{Name: KeyDescription, Value: StringValue(f.Description)},
		{Name: KeyInstances, Value: arr},
	}
	bodyValue, err := body.Value()
	if err != nil {
		return nil, err
	}
	return Object{{Name: f.Title, Value: bodyValue}}.Value()
}

func (i Instance) value() (jsontext.Value, error) {
	content, err := i.Content.Value()
	if err != nil {
		return nil, err
	}
	out := Object{
		{Name: KeyURL, Value: StringValue(i.URL)},
		{Name: KeyContent, Value: content},
	}
	for _, m := range i.Top {
		out.Set(m.Name, m.Value)
	}
	if i.Status != nil {
		block, err := i.Status.value()
		if err != nil {
			return nil, err
		}
		out.Set(KeyFixStatus, block)
	}
	return out.Value()
}

func (s StatusBlock) value() (jsontext.Value, error) {
	fixedAt := jsontext.Value("null")
	if s.FixedAt != nil {
		fixedAt = StringValue(s.FixedAt.UTC().Format(time.RFC3339))
	}
	return Object{
		{Name: "status", Value: StringValue(string(s.Status))},
		{Name: "fixed_at", Value: fixedAt},
		{Name: "fixed_by", Value: optionalString(s.FixedBy)},
		{Name: "notes", Value: optionalString(s.Notes)},
	}.Value()
}

// optionalString encodes an unset string as null.
func optionalString(s string) jsontext.Value {
	if s == "" {
		return jsontext.Value("null")
	}
	return StringValue(s)
}
