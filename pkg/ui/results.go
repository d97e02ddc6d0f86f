package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

// RenderFinding prints one finding line: status, severity badge, test
// name, and description.
func RenderFinding(w io.Writer, f finding.Finding) {
	badge := StatusStyle(f.Status).Render(fmt.Sprintf("%-10s", f.Status))
	sev := ""
	if f.Severity != "" {
		sev = " " + SeverityStyle(f.Severity).Render("["+string(f.Severity)+"]")
	}
	fmt.Fprintf(w, "%s%s %s: %s\n", badge, sev, f.Test, f.Description)
	if f.Evidence != "" {
		fmt.Fprintf(w, "           %s\n", LabelStyle.Render(f.Evidence))
	}
}

// RenderSummary prints the scan wrap-up: tally by severity, risk score,
// and level.
func RenderSummary(w io.Writer, snap session.Snapshot, score int, level scoring.Level) {
	fmt.Fprintln(w, SectionStyle.Render("Scan summary"))

	rows := []struct {
		label string
		value string
	}{
		{"Scan ID", snap.ScanID},
		{"Target", snap.Target},
		{"Duration", fmt.Sprintf("%.2fs", snap.Duration)},
		{"Tests run", fmt.Sprintf("%d", snap.Summary.TotalTests)},
		{"Vulnerabilities", fmt.Sprintf("%d", snap.Summary.VulnerabilitiesFound)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render(r.label), ValueStyle.Render(r.value))
	}

	var parts []string
	for _, b := range []struct {
		sev   finding.Severity
		count int
	}{
		{finding.SeverityCritical, snap.Summary.Critical},
		{finding.SeverityHigh, snap.Summary.High},
		{finding.SeverityMedium, snap.Summary.Medium},
		{finding.SeverityLow, snap.Summary.Low},
	} {
		if b.count == 0 {
			continue
		}
		parts = append(parts, SeverityStyle(b.sev).Render(fmt.Sprintf("%s: %d", b.sev, b.count)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("By severity"), strings.Join(parts, "  "))
	}
	if snap.Summary.Errors > 0 {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Probe errors"),
			StatusStyle(finding.StatusError).Render(fmt.Sprintf("%d", snap.Summary.Errors)))
	}

	levelStyle := SeverityStyle(finding.Severity(level))
	fmt.Fprintf(w, "%s %s %s\n",
		LabelStyle.Render("Risk score"),
		ValueStyle.Render(fmt.Sprintf("%d/%d", score, scoring.MaxScore)),
		levelStyle.Render("("+string(level)+")"))
}
