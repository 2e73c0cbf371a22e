package schemas

import (
	"time"
)

// -- Relational Entities --

// Report is the normalized record of one imported scan document. A report
// exclusively owns its vulnerabilities; deleting it cascades.
type Report struct {
	ID               int64     `json:"id"`
	SiteURL          string    `json:"site_url"`
	SummarySequences string    `json:"summary_sequences"`
	SequenceDetails  string    `json:"sequence_details"`
	FileName         string    `json:"file_name"`
	ImportedAt       time.Time `json:"imported_at"`
	// Notes is user supplied and independent of the import.
	Notes string `json:"notes"`
}

// Vulnerability is a finding type (title + severity) within one report.
type Vulnerability struct {
	ID          int64    `json:"id"`
	ReportID    int64    `json:"report_id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// VulnInstance is one concrete occurrence of a vulnerability. Only the
// remediation fields change after import.
type VulnInstance struct {
	ID              int64  `json:"id"`
	VulnerabilityID int64  `json:"vulnerability_id"`
	URL             string `json:"url"`
	Method          string `json:"method"`
	Parameter       string `json:"parameter"`
	Attack          string `json:"attack"`
	Evidence        string `json:"evidence"`
	OtherInfo       string `json:"other_info"`

	// ExtraData holds scanner specific top-level instance members as an
	// ordered JSON object. Nil when the instance carried none.
	ExtraData []byte `json:"extra_data,omitempty"`

	FixStatus FixStatus  `json:"fix_status"`
	FixedAt   *time.Time `json:"fixed_at"`
	FixedBy   string     `json:"fixed_by"`
	FixNotes  string     `json:"fix_notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OperationLog is an append-only audit entry.
type OperationLog struct {
	ID         int64     `json:"id"`
	ActionType string    `json:"action_type"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// -- Aggregates --

// VulnerabilityGraph is a vulnerability together with its instances.
type VulnerabilityGraph struct {
	Vulnerability
	Instances []VulnInstance `json:"instances"`
}

// ReportGraph is the full import unit: a report, its vulnerabilities and
// their instances, in id order.
type ReportGraph struct {
	Report
	Vulnerabilities []VulnerabilityGraph `json:"vulnerabilities"`
}

// InstanceCount returns the number of instances across all vulnerabilities.
func (g *ReportGraph) InstanceCount() int {
	n := 0
	for _, v := range g.Vulnerabilities {
		n += len(v.Instances)
	}
	return n
}

// ReportSummary is a report row enriched with its derived severity counts,
// as shown in listings.
type ReportSummary struct {
	Report
	Stats     map[Severity]int `json:"stats"`
	VulnCount int              `json:"vuln_count"`
}

// SearchHit is one instance returned by a cross-report search.
type SearchHit struct {
	InstanceID int64     `json:"instance_id"`
	URL        string    `json:"url"`
	Severity   Severity  `json:"severity"`
	Title      string    `json:"title"`
	FixStatus  FixStatus `json:"fix_status"`
	ReportID   int64     `json:"report_id"`
	SiteURL    string    `json:"site_url"`
}

// EntityCounts holds raw row counts across the whole store.
type EntityCounts struct {
	Reports         int `json:"total_reports"`
	Vulnerabilities int `json:"total_vulnerabilities"`
	Instances       int `json:"total_instances"`
}
