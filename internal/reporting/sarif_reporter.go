// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/api/schemas"
	"github.com/xkilldash9x/vulntrack/internal/document"
	"github.com/xkilldash9x/vulntrack/internal/observability"
	"github.com/xkilldash9x/vulntrack/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "vulntrack"
	ToolInfoURI  = "https://github.com/xkilldash9x/vulntrack"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	rulePrefix   = "VULNTRACK-"
)

// sarifJSON sorts map keys so property bags encode deterministically.
var sarifJSON = json.ConfigCompatibleWithStandardLibrary

// ruleIDSanitizer matches runs of characters that are not allowed in rule
// ids. Each run collapses to a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// RuleFingerprint identifies a rule definition by its content.
type RuleFingerprint string

// calculateFingerprint hashes the title and description of a finding.
func calculateFingerprint(f document.Finding) RuleFingerprint {
	data := struct {
		Title       string
		Description string
	}{f.Title, f.Description}

	h := sha1.New()
	_ = sarifJSON.NewEncoder(h).Encode(data)
	return RuleFingerprint(hex.EncodeToString(h.Sum(nil)))
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is safe for concurrent use.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the maps.
	mu                 sync.Mutex
	rulesByFingerprint map[RuleFingerprint]string
	ruleIDUsage        map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:             writer,
		logger:             observability.GetLogger().Named("sarif_reporter"),
		log:                log,
		rulesByFingerprint: make(map[RuleFingerprint]string),
		ruleIDUsage:        make(map[string]int),
	}
}

// Write adds one result per instance of the document to the log.
func (r *SARIFReporter) Write(doc *document.Document) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.annotateRun(run, doc)

	count := 0
	for _, group := range doc.Groups {
		level := mapSeverityToSARIFLevel(group.Severity)
		for _, finding := range group.Findings {
			ruleID := r.ensureRule(finding)

			messageText := finding.Description
			if messageText == "" {
				messageText = finding.Title
			}
			for _, inst := range finding.Instances {
				run.Results = append(run.Results, &sarif.Result{
					RuleID:       ruleID,
					Message:      &sarif.Message{Text: pString(messageText)},
					Level:        level,
					Locations:    createLocations(inst),
					Suppressions: createSuppressions(inst.Status),
					Properties:   createProperties(group.Severity, inst),
				})
				count++
			}
		}
	}

	if count > 0 {
		r.logger.Debug("Wrote instances to SARIF buffer",
			zap.Int("results_count", count),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := sarifJSON.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// annotateRun records report level data on the run. The first document wins.
func (r *SARIFReporter) annotateRun(run *sarif.Run, doc *document.Document) {
	if run.Properties != nil {
		return
	}
	props := sarif.PropertyBag{"siteUrl": doc.SiteURL}
	if doc.ExportedAt != nil {
		props["exportedAt"] = doc.ExportedAt.UTC().Format(time.RFC3339)
	}
	if doc.ReportNotes != "" {
		props["reportNotes"] = doc.ReportNotes
	}
	run.Properties = &props
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-VULNERABILITY"
	}
	sanitized := ruleIDSanitizer.ReplaceAllString(strings.ToUpper(name), "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "UNKNOWN-VULNERABILITY"
	}
	return sanitized
}

// ensureRule returns the rule id for finding, registering a new rule the
// first time its fingerprint is seen. Must be called with mu held.
func (r *SARIFReporter) ensureRule(finding document.Finding) string {
	fingerprint := calculateFingerprint(finding)
	if ruleID, exists := r.rulesByFingerprint[fingerprint]; exists {
		return ruleID
	}

	baseRuleID := rulePrefix + sanitizeRuleName(finding.Title)
	usageCount := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usageCount + 1

	finalRuleID := baseRuleID
	if usageCount > 0 {
		finalRuleID = fmt.Sprintf("%s-%d", baseRuleID, usageCount)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", finalRuleID),
		)
	}

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               finalRuleID,
		Name:             pString(finding.Title),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(finding.Title)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(finding.Description)},
		Properties: &sarif.PropertyBag{
			"tags": []string{"security", "vulntrack"},
		},
	})
	r.rulesByFingerprint[fingerprint] = finalRuleID
	return finalRuleID
}

// createLocations points the result at the instance URL.
func createLocations(inst document.Instance) []*sarif.Location {
	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(inst.URL)},
		},
		Message: &sarif.Message{Text: pString(fmt.Sprintf("Vulnerability found at %s", inst.URL))},
	}}
}

// createSuppressions marks triaged instances. wont_fix and false_positive are
// accepted suppressions; other statuses produce none.
func createSuppressions(status *document.StatusBlock) []*sarif.Suppression {
	if status == nil {
		return nil
	}
	switch status.Status {
	case schemas.StatusWontFix, schemas.StatusFalsePositive:
		s := &sarif.Suppression{
			Kind:   sarif.SuppressionExternal,
			Status: pString("accepted"),
		}
		if status.Notes != "" {
			s.Justification = pString(status.Notes)
		}
		return []*sarif.Suppression{s}
	}
	return nil
}

// propertyNames maps content labels to SARIF property bag keys.
var propertyNames = map[document.Label]string{
	document.LabelMethod:    "method",
	document.LabelParameter: "parameter",
	document.LabelAttack:    "attack",
	document.LabelEvidence:  "evidence",
	document.LabelOtherInfo: "otherInfo",
}

// createProperties carries the severity, the resolved content fields and the
// remediation state.
func createProperties(severity schemas.Severity, inst document.Instance) *sarif.PropertyBag {
	props := sarif.PropertyBag{"severity": string(severity)}
	fields := inst.Fields()
	for _, label := range document.Labels {
		if v := fields.Get(label); v != "" {
			props[propertyNames[label]] = v
		}
	}
	if inst.Status != nil {
		props["fixStatus"] = string(inst.Status.Status)
		if inst.Status.FixedAt != nil {
			props["fixedAt"] = inst.Status.FixedAt.UTC().Format(time.RFC3339)
		}
		if inst.Status.FixedBy != "" {
			props["fixedBy"] = inst.Status.FixedBy
		}
	}
	return &props
}

// mapSeverityToSARIFLevel converts a report severity to a SARIF level.
func mapSeverityToSARIFLevel(severity schemas.Severity) sarif.Level {
	switch severity {
	case schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
