// Package runner executes a single probe with isolation: per-probe
// timeout, panic recovery, and translation of execution errors into
// ERROR findings so one misbehaving probe cannot sink a scan.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/probes"
)

// Runner wraps probe execution. The zero value is not usable; call New.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger used for probe lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimeout overrides the per-probe deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a Runner with the default probe timeout.
func New(opts ...Option) *Runner {
	r := &Runner{
		timeout: defaults.ProbeTimeout,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type probeResult struct {
	findings []finding.Finding
	err      error
}

// Run executes one probe against the target. It always returns at least
// one finding: the probe's normalized output on success, or exactly one
// ERROR finding when the probe fails, panics, or exceeds the deadline.
func (r *Runner) Run(ctx context.Context, p probes.Probe, target string, headers map[string]string) []finding.Finding {
	d := p.Descriptor()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan probeResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- probeResult{err: fmt.Errorf("probe panicked: %v", rec)}
			}
		}()
		fs, err := p.Execute(ctx, target, headers)
		ch <- probeResult{findings: fs, err: err}
	}()

	var res probeResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		// Leave the goroutine to drain into the buffered channel.
		res = probeResult{err: translateContext(ctx.Err())}
	}

	elapsed := time.Since(start)
	if res.err != nil {
		r.logger.Warn("probe failed",
			slog.String("probe", d.Name),
			slog.Duration("elapsed", elapsed),
			slog.String("error", res.err.Error()))
		return []finding.Finding{errorFinding(d, target, res.err)}
	}

	r.logger.Debug("probe finished",
		slog.String("probe", d.Name),
		slog.Int("findings", len(res.findings)),
		slog.Duration("elapsed", elapsed))

	if len(res.findings) == 0 {
		// A silent probe still yields a row in the session.
		return []finding.Finding{{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Description: "Probe completed without findings",
		}}
	}
	return normalize(d, res.findings)
}

// normalize enforces the severity/status invariant on probe output:
// non-VULNERABLE findings carry no severity, VULNERABLE findings missing
// one get the probe's default.
func normalize(d probes.Descriptor, fs []finding.Finding) []finding.Finding {
	out := make([]finding.Finding, len(fs))
	for i, f := range fs {
		if f.Test == "" {
			f.Test = d.Name
		}
		if f.Category == "" {
			f.Category = d.Category
		}
		switch f.Status {
		case finding.StatusVulnerable:
			if !f.Severity.IsValid() {
				f.Severity = d.DefaultSeverity
			}
		default:
			f.Severity = ""
		}
		out[i] = f
	}
	return out
}

// errorFinding builds the single ERROR row for a failed probe. The error
// text is sanitized so connection noise does not flood reports.
func errorFinding(d probes.Descriptor, target string, err error) finding.Finding {
	return finding.Finding{
		Test:        d.Name,
		Category:    d.Category,
		Status:      finding.StatusError,
		URL:         target,
		Description: sanitizeError(err),
	}
}

func translateContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return finding.ErrTimeout
	}
	return err
}

// sanitizeError maps transport errors onto the package sentinels and
// truncates whatever remains.
func sanitizeError(err error) string {
	switch {
	case errors.Is(err, finding.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return finding.ErrTimeout.Error()
	case errors.Is(err, finding.ErrRateLimited):
		return finding.ErrRateLimited.Error()
	case errors.Is(err, finding.ErrTargetUnreachable):
		return finding.ErrTargetUnreachable.Error()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return finding.ErrTimeout.Error()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return finding.ErrTargetUnreachable.Error()
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return finding.ErrTargetUnreachable.Error()
	}
	if len(msg) > defaults.MaxErrorLen {
		msg = msg[:defaults.MaxErrorLen]
	}
	return msg
}
