// Package defaults centralizes tuning constants shared across packages.
// Keeping them in one place avoids magic numbers drifting apart between
// the orchestrator, runner, and CLI flag defaults.
package defaults

import "time"

// Tool identity.
const (
	ToolName = "apivet"
	Version  = "0.3.1"
)

// UserAgent is sent on every probe request.
const UserAgent = ToolName + "/" + Version

// Execution defaults.
const (
	// Concurrency is the default probe worker count. API probing is
	// deliberately gentle compared to fuzzing workloads.
	Concurrency = 4

	// RateLimit is the default client-side request ceiling (req/sec)
	// applied across all probe workers.
	RateLimit = 10

	// ProbeTimeout bounds a single probe's execution.
	ProbeTimeout = 30 * time.Second

	// AdvisorTimeout bounds the single plan-advisor request per scan.
	AdvisorTimeout = 20 * time.Second
)

// Evidence and body handling limits.
const (
	// MaxBodySample caps how much of a response body a probe reads.
	MaxBodySample = 64 * 1024

	// MaxEvidenceLen caps evidence strings stored on findings.
	MaxEvidenceLen = 300

	// MaxErrorLen caps sanitized failure summaries on ERROR findings.
	MaxErrorLen = 200
)
