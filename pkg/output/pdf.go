package output

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/apivet/apivet/pkg/finding"
)

// PDFWriter renders a printable report for hand-off outside the team.
type PDFWriter struct{}

// NewPDFWriter creates the PDF report writer.
func NewPDFWriter() *PDFWriter { return &PDFWriter{} }

func (*PDFWriter) Format() string { return "pdf" }

func severityRGB(s finding.Severity) (int, int, int) {
	switch s {
	case finding.SeverityCritical:
		return 192, 57, 43
	case finding.SeverityHigh:
		return 231, 76, 60
	case finding.SeverityMedium:
		return 243, 156, 18
	case finding.SeverityLow:
		return 39, 174, 96
	default:
		return 41, 128, 185
	}
}

func (*PDFWriter) Write(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("API Security Scan "+r.Snapshot.ScanID, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "API Security Scan")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Scan ID: %s", r.Snapshot.ScanID),
		fmt.Sprintf("Target: %s", r.Snapshot.Target),
		fmt.Sprintf("Duration: %.2fs", r.Snapshot.Duration),
		fmt.Sprintf("Tests: %d, vulnerabilities: %d, errors: %d",
			r.Snapshot.Summary.TotalTests,
			r.Snapshot.Summary.VulnerabilitiesFound,
			r.Snapshot.Summary.Errors),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 14)
	cr, cg, cb := severityRGB(finding.Severity(r.Level))
	pdf.SetTextColor(cr, cg, cb)
	pdf.Cell(0, 8, fmt.Sprintf("Risk score: %d/100 (%s)", r.Score, r.Level))
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(8)

	for _, f := range r.Snapshot.Results {
		if f.Status != finding.StatusVulnerable && f.Status != finding.StatusError {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		if f.Severity != "" {
			sr, sg, sb := severityRGB(f.Severity)
			pdf.SetTextColor(sr, sg, sb)
			pdf.Cell(0, 6, fmt.Sprintf("[%s] %s (%s)", f.Severity, f.Test, f.Category))
		} else {
			pdf.SetTextColor(211, 84, 0)
			pdf.Cell(0, 6, fmt.Sprintf("[%s] %s (%s)", f.Status, f.Test, f.Category))
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(6)

		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, f.Description, "", "L", false)
		if f.Evidence != "" {
			pdf.SetFont("Courier", "", 8)
			pdf.MultiCell(0, 4, f.Evidence, "", "L", false)
		}
		if f.Recommendation != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, "Fix: "+f.Recommendation, "", "L", false)
		}
		pdf.Ln(2)
	}

	return pdf.Output(w)
}
