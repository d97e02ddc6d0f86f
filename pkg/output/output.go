// Package output renders finished scans into report formats.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

// Report is everything a writer needs to render a scan.
type Report struct {
	Snapshot session.Snapshot `json:"scan"`
	Score    int              `json:"risk_score"`
	Level    scoring.Level    `json:"risk_level"`
}

// Writer renders a report to a stream.
type Writer interface {
	// Format returns the writer's format name (json, console, html...).
	Format() string

	// Write renders the report.
	Write(w io.Writer, r Report) error
}

// ForFormat returns the writer for a format name. The template format
// is built separately since it needs a template source.
func ForFormat(format string) (Writer, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONWriter(), nil
	case "console", "text":
		return NewConsoleWriter(), nil
	case "html":
		return NewHTMLWriter(), nil
	case "pdf":
		return NewPDFWriter(), nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}
