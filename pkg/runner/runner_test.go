package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/probes"
)

type fakeProbe struct {
	desc     probes.Descriptor
	findings []finding.Finding
	err      error
	panics   bool
	delay    time.Duration
}

func (f *fakeProbe) Descriptor() probes.Descriptor { return f.desc }

func (f *fakeProbe) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.findings, f.err
}

func quietRunner(opts ...Option) *Runner {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(opts...)
}

func desc() probes.Descriptor {
	return probes.Descriptor{Name: "fake", Category: "API1:2023", DefaultSeverity: finding.SeverityHigh}
}

func TestRunPassesThroughFindings(t *testing.T) {
	t.Parallel()

	want := []finding.Finding{{
		Test: "fake", Category: "API1:2023",
		Status: finding.StatusVulnerable, Severity: finding.SeverityHigh,
	}}
	got := quietRunner().Run(context.Background(), &fakeProbe{desc: desc(), findings: want}, "http://t", nil)
	assert.Equal(t, want, got)
}

func TestRunErrorYieldsSingleErrorFinding(t *testing.T) {
	t.Parallel()

	p := &fakeProbe{desc: desc(), err: errors.New("dial tcp: connection refused")}
	got := quietRunner().Run(context.Background(), p, "http://t", nil)

	require.Len(t, got, 1)
	assert.Equal(t, finding.StatusError, got[0].Status)
	assert.Empty(t, got[0].Severity)
	assert.Equal(t, finding.ErrTargetUnreachable.Error(), got[0].Description)
	assert.NoError(t, got[0].Validate())
}

func TestRunPanicContained(t *testing.T) {
	t.Parallel()

	got := quietRunner().Run(context.Background(), &fakeProbe{desc: desc(), panics: true}, "http://t", nil)

	require.Len(t, got, 1)
	assert.Equal(t, finding.StatusError, got[0].Status)
	assert.Contains(t, got[0].Description, "panicked")
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	r := quietRunner(WithTimeout(20 * time.Millisecond))
	start := time.Now()
	got := r.Run(context.Background(), &fakeProbe{desc: desc(), delay: 5 * time.Second}, "http://t", nil)

	require.Len(t, got, 1)
	assert.Equal(t, finding.StatusError, got[0].Status)
	assert.Equal(t, finding.ErrTimeout.Error(), got[0].Description)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunNormalizesSeverity(t *testing.T) {
	t.Parallel()

	p := &fakeProbe{desc: desc(), findings: []finding.Finding{
		{Status: finding.StatusVulnerable},                                    // severity filled in
		{Status: finding.StatusPassed, Severity: finding.SeverityCritical},    // severity cleared
		{Test: "other", Status: finding.StatusInfo, Severity: "bogus"},        // severity cleared
	}}
	got := quietRunner().Run(context.Background(), p, "http://t", nil)

	require.Len(t, got, 3)
	assert.Equal(t, finding.SeverityHigh, got[0].Severity)
	assert.Equal(t, "fake", got[0].Test)
	assert.Empty(t, got[1].Severity)
	assert.Empty(t, got[2].Severity)
	assert.Equal(t, "other", got[2].Test)
	for _, f := range got {
		assert.NoError(t, f.Validate())
	}
}

func TestRunEmptyOutputBecomesPassed(t *testing.T) {
	t.Parallel()

	got := quietRunner().Run(context.Background(), &fakeProbe{desc: desc()}, "http://t", nil)

	require.Len(t, got, 1)
	assert.Equal(t, finding.StatusPassed, got[0].Status)
	assert.Equal(t, "fake", got[0].Test)
}
