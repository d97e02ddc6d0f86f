package finding

// Severity represents the severity level of a vulnerable finding.
// Values are uppercase strings matching the report wire format.
type Severity string

const (
	// SeverityCritical represents immediate compromise (auth bypass, injection).
	SeverityCritical Severity = "CRITICAL"

	// SeverityHigh represents significant impact requiring prompt fix.
	SeverityHigh Severity = "HIGH"

	// SeverityMedium represents moderate impact.
	SeverityMedium Severity = "MEDIUM"

	// SeverityLow represents limited impact (verbose banners, minor leaks).
	SeverityLow Severity = "LOW"

	// SeverityInfo represents observations with no direct security impact.
	SeverityInfo Severity = "INFO"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank returns a numeric rank for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// Ordered returns all severities from most to least severe.
func Ordered() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}
