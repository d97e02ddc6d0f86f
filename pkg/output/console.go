package output

import (
	"io"

	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/ui"
)

// ConsoleWriter renders a colored terminal report: vulnerable findings
// first, then the summary block.
type ConsoleWriter struct {
	// All includes PASSED and INFO rows, not just problems.
	All bool
}

// NewConsoleWriter creates the terminal report writer.
func NewConsoleWriter() *ConsoleWriter { return &ConsoleWriter{} }

func (*ConsoleWriter) Format() string { return "console" }

func (c *ConsoleWriter) Write(w io.Writer, r Report) error {
	for _, f := range r.Snapshot.Results {
		if !c.All && f.Status != finding.StatusVulnerable && f.Status != finding.StatusError {
			continue
		}
		ui.RenderFinding(w, f)
	}
	ui.RenderSummary(w, r.Snapshot, r.Score, r.Level)
	return nil
}
