// Package session aggregates probe findings into a scan session with a
// running summary and an immutable finalized snapshot.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apivet/apivet/pkg/finding"
)

// ErrAlreadyFinalized is returned by Append after Finalize.
var ErrAlreadyFinalized = errors.New("session already finalized")

// Summary is the running tally over a session's findings. It is always
// recomputable from the result list.
type Summary struct {
	TotalTests           int `json:"total_tests"`
	VulnerabilitiesFound int `json:"vulnerabilities_found"`
	Critical             int `json:"critical"`
	High                 int `json:"high"`
	Medium               int `json:"medium"`
	Low                  int `json:"low"`
	Info                 int `json:"info"`
	Passed               int `json:"passed"`
	Errors               int `json:"errors"`
}

// add folds one finding into the tally.
func (s *Summary) add(f finding.Finding) {
	s.TotalTests++
	switch f.Status {
	case finding.StatusVulnerable:
		s.VulnerabilitiesFound++
		switch f.Severity {
		case finding.SeverityCritical:
			s.Critical++
		case finding.SeverityHigh:
			s.High++
		case finding.SeverityMedium:
			s.Medium++
		case finding.SeverityLow:
			s.Low++
		case finding.SeverityInfo:
			s.Info++
		}
	case finding.StatusInfo:
		s.Info++
	case finding.StatusPassed:
		s.Passed++
	case finding.StatusError:
		s.Errors++
	}
}

// Recompute rebuilds a Summary from scratch.
func Recompute(results []finding.Finding) Summary {
	var s Summary
	for _, f := range results {
		s.add(f)
	}
	return s
}

// Snapshot is a self-contained copy of a finalized (or in-progress)
// session, safe to hand to report writers.
type Snapshot struct {
	ScanID    string            `json:"scan_id"`
	Target    string            `json:"target"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitzero"`
	Duration  float64           `json:"duration_seconds"`
	Summary   Summary           `json:"summary"`
	Results   []finding.Finding `json:"results"`
}

// Session collects findings for one scan. Safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	scanID    string
	target    string
	startTime time.Time
	endTime   time.Time
	finalized bool
	summary   Summary
	results   []finding.Finding
}

// New opens a session against the target. The scan ID embeds the start
// timestamp so report files sort chronologically.
func New(target string) *Session {
	now := time.Now()
	return &Session{
		scanID:    now.Format("20060102_150405") + "_" + uuid.NewString()[:8],
		target:    target,
		startTime: now,
	}
}

// ScanID returns the session's identifier.
func (s *Session) ScanID() string { return s.scanID }

// Target returns the scanned base URL.
func (s *Session) Target() string { return s.target }

// Append records findings and updates the summary. It fails once the
// session is finalized; partial batches are never recorded.
func (s *Session) Append(fs ...finding.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrAlreadyFinalized
	}
	for _, f := range fs {
		s.results = append(s.results, f)
		s.summary.add(f)
	}
	return nil
}

// Summary returns the current tally.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Len returns the number of recorded findings.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Finalize closes the session. The first call stamps the end time;
// later calls return ErrAlreadyFinalized and preserve it.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrAlreadyFinalized
	}
	s.finalized = true
	s.endTime = time.Now()
	return nil
}

// Finalized reports whether Finalize has run.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// Snapshot returns a deep copy of the session state. Mutating the
// returned value never affects the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]finding.Finding, len(s.results))
	copy(results, s.results)

	snap := Snapshot{
		ScanID:    s.scanID,
		Target:    s.target,
		StartTime: s.startTime,
		EndTime:   s.endTime,
		Summary:   s.summary,
		Results:   results,
	}
	if !s.endTime.IsZero() {
		snap.Duration = s.endTime.Sub(s.startTime).Seconds()
	}
	return snap
}
