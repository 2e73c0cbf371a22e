package schemas

// -- Severity --

// Severity classifies the risk of a vulnerability. The values match the keys
// the scanner uses in its report documents, so they are capitalised.
type Severity string

// Constants for the four recognised severity levels.
const (
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityInformational Severity = "Informational"
)

// Severities lists every recognised severity in display order.
var Severities = [...]Severity{
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInformational,
}

// Valid reports whether s is one of the recognised severity levels.
func (s Severity) Valid() bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}
	return false
}

// Rank returns the display position of s, or len(Severities) for values
// outside the enumeration so they sort last.
func (s Severity) Rank() int {
	for i, known := range Severities {
		if s == known {
			return i
		}
	}
	return len(Severities)
}

// -- Fix Status --

// FixStatus is the remediation state of a single vulnerability instance.
type FixStatus string

// Constants for the remediation lifecycle. Any state may move to any other.
const (
	StatusPending       FixStatus = "pending"
	StatusInProgress    FixStatus = "in_progress"
	StatusFixed         FixStatus = "fixed"
	StatusWontFix       FixStatus = "wont_fix"
	StatusFalsePositive FixStatus = "false_positive"
)

// FixStatuses lists every recognised fix status.
var FixStatuses = [...]FixStatus{
	StatusPending,
	StatusInProgress,
	StatusFixed,
	StatusWontFix,
	StatusFalsePositive,
}

// Valid reports whether s is one of the recognised fix statuses.
func (s FixStatus) Valid() bool {
	for _, known := range FixStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseFixStatus converts raw input into a FixStatus, returning a
// ValidationError when the value is not part of the enumeration.
func ParseFixStatus(raw string) (FixStatus, error) {
	s := FixStatus(raw)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Value: raw}
	}
	return s, nil
}

// -- Operation Log Actions --

// Action types recorded in the operation log.
const (
	ActionImport = "IMPORT"
	ActionDelete = "DELETE"
	ActionStatus = "STATUS"
	ActionExport = "EXPORT"
	ActionNotes  = "NOTES"
)
