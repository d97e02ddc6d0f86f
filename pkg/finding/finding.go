package finding

import "fmt"

// Status classifies a single probe observation.
type Status string

const (
	// StatusVulnerable indicates a confirmed or strongly-indicated weakness.
	StatusVulnerable Status = "VULNERABLE"

	// StatusPassed indicates the check ran and found no issue.
	StatusPassed Status = "PASSED"

	// StatusInfo indicates a neutral observation worth reporting.
	StatusInfo Status = "INFO"

	// StatusError indicates the probe itself failed to complete.
	StatusError Status = "ERROR"
)

// IsValid reports whether s is a recognized status.
func (s Status) IsValid() bool {
	switch s {
	case StatusVulnerable, StatusPassed, StatusInfo, StatusError:
		return true
	}
	return false
}

// Finding is one observation produced by a probe against a target.
//
// Severity is meaningful only when Status is VULNERABLE; ERROR findings
// carry no severity. Evidence is display-only data and must never be
// interpreted or executed by consumers.
type Finding struct {
	Test           string   `json:"test"`
	Category       string   `json:"category"`
	Status         Status   `json:"status"`
	Severity       Severity `json:"severity,omitempty"`
	URL            string   `json:"url,omitempty"`
	Method         string   `json:"method,omitempty"`
	Description    string   `json:"description,omitempty"`
	Evidence       string   `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Validate checks the structural invariants of a finding:
// a non-empty test name, a known status, and severity present iff the
// status is VULNERABLE.
func (f Finding) Validate() error {
	if f.Test == "" {
		return fmt.Errorf("finding: empty test name")
	}
	if !f.Status.IsValid() {
		return fmt.Errorf("finding %q: unknown status %q", f.Test, f.Status)
	}
	if f.Status == StatusVulnerable {
		if !f.Severity.IsValid() {
			return fmt.Errorf("finding %q: vulnerable without valid severity", f.Test)
		}
		return nil
	}
	if f.Severity != "" {
		return fmt.Errorf("finding %q: severity %q on non-vulnerable status %q", f.Test, f.Severity, f.Status)
	}
	return nil
}
