package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/apivet/apivet/pkg/finding"
)

// ANSI escape codes for simple terminal output (CLI commands)
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Cyan    = "\033[36m"
	BoldRed = "\033[1;31m"
)

// Severity colors, matching the usual security-tool palette.
var (
	Primary   = lipgloss.Color("#00D4AA")
	Critical  = lipgloss.Color("#FF0000")
	High      = lipgloss.Color("#FF6B6B")
	Medium    = lipgloss.Color("#FFD93D")
	Low       = lipgloss.Color("#6BCB77")
	Info      = lipgloss.Color("#4D96FF")
	PassGreen = lipgloss.Color("#00D26A")
	ErrAmber  = lipgloss.Color("#FFB800")
	Muted     = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(16)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))
)

var severityStyles = map[finding.Severity]lipgloss.Style{
	finding.SeverityCritical: lipgloss.NewStyle().Foreground(Critical).Bold(true),
	finding.SeverityHigh:     lipgloss.NewStyle().Foreground(High).Bold(true),
	finding.SeverityMedium:   lipgloss.NewStyle().Foreground(Medium),
	finding.SeverityLow:      lipgloss.NewStyle().Foreground(Low),
	finding.SeverityInfo:     lipgloss.NewStyle().Foreground(Info),
}

var statusStyles = map[finding.Status]lipgloss.Style{
	finding.StatusVulnerable: lipgloss.NewStyle().Foreground(Critical).Bold(true),
	finding.StatusPassed:     lipgloss.NewStyle().Foreground(PassGreen),
	finding.StatusInfo:       lipgloss.NewStyle().Foreground(Info),
	finding.StatusError:      lipgloss.NewStyle().Foreground(ErrAmber),
}

// SeverityStyle returns the lipgloss style for a severity badge.
func SeverityStyle(s finding.Severity) lipgloss.Style {
	if st, ok := severityStyles[s]; ok {
		return st
	}
	return lipgloss.NewStyle().Foreground(Muted)
}

// StatusStyle returns the lipgloss style for a status badge.
func StatusStyle(s finding.Status) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return lipgloss.NewStyle().Foreground(Muted)
}

var (
	noColorMu   sync.RWMutex
	noColorMode bool
)

// SetNoColor disables colored output globally.
func SetNoColor(noColor bool) {
	noColorMu.Lock()
	defer noColorMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor reports whether color is disabled.
func IsNoColor() bool {
	noColorMu.RLock()
	defer noColorMu.RUnlock()
	return noColorMode
}
