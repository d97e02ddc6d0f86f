package finding

import "testing"

func TestValidateSeverityInvariant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		f       Finding
		wantErr bool
	}{
		{"vulnerable with severity", Finding{Test: "t", Status: StatusVulnerable, Severity: SeverityHigh}, false},
		{"vulnerable without severity", Finding{Test: "t", Status: StatusVulnerable}, true},
		{"vulnerable with bogus severity", Finding{Test: "t", Status: StatusVulnerable, Severity: "URGENT"}, true},
		{"passed without severity", Finding{Test: "t", Status: StatusPassed}, false},
		{"passed with severity", Finding{Test: "t", Status: StatusPassed, Severity: SeverityLow}, true},
		{"error without severity", Finding{Test: "t", Status: StatusError}, false},
		{"error with severity", Finding{Test: "t", Status: StatusError, Severity: SeverityHigh}, true},
		{"info without severity", Finding{Test: "t", Status: StatusInfo}, false},
		{"empty test name", Finding{Status: StatusPassed}, true},
		{"unknown status", Finding{Test: "t", Status: "MAYBE"}, true},
	}

	for _, tc := range cases {
		if err := tc.f.Validate(); (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	t.Parallel()

	ordered := Ordered()
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() <= ordered[i].Rank() {
			t.Errorf("Rank not strictly decreasing: %s=%d, %s=%d",
				ordered[i-1], ordered[i-1].Rank(), ordered[i], ordered[i].Rank())
		}
	}
	if Severity("bogus").Rank() != 0 {
		t.Errorf("unknown severity should rank 0")
	}
}

func TestStatusIsValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusVulnerable, StatusPassed, StatusInfo, StatusError} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("SKIPPED").IsValid() {
		t.Error("SKIPPED should not be valid")
	}
}
