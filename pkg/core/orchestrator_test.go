package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apivet/apivet/pkg/advisor"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/probes"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/testutil"
)

// recordProbe notes execution order and emits one configurable finding.
type recordProbe struct {
	desc  probes.Descriptor
	out   finding.Finding
	err   error
	delay time.Duration

	mu    *sync.Mutex
	order *[]string
}

func (p *recordProbe) Descriptor() probes.Descriptor { return p.desc }

func (p *recordProbe) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	p.mu.Lock()
	*p.order = append(*p.order, p.desc.Name)
	p.mu.Unlock()
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return []finding.Finding{p.out}, nil
}

type testFixture struct {
	registry *probes.Registry
	mu       sync.Mutex
	order    []string
}

func newFixture(severities map[string]finding.Severity) *testFixture {
	f := &testFixture{registry: probes.NewRegistry()}
	for _, name := range []string{"bola", "broken-auth", "property-auth"} {
		sev, ok := severities[name]
		if !ok {
			continue
		}
		f.registry.Register(&recordProbe{
			desc: probes.Descriptor{Name: name, Category: "API", DefaultSeverity: sev},
			out: finding.Finding{
				Test: name, Category: "API",
				Status: finding.StatusVulnerable, Severity: sev,
			},
			mu: &f.mu, order: &f.order,
		})
	}
	return f
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fixedAdvisor struct {
	plan *advisor.Plan
	err  error
}

func (a *fixedAdvisor) Name() string { return "fixed" }

func (a *fixedAdvisor) Propose(ctx context.Context, target string, headers map[string]string, probeNames []string) (*advisor.Plan, error) {
	return a.plan, a.err
}

func allSev() map[string]finding.Severity {
	return map[string]finding.Severity{
		"bola":          finding.SeverityHigh,
		"broken-auth":   finding.SeverityCritical,
		"property-auth": finding.SeverityMedium,
	}
}

func TestScanAllProbesAggregates(t *testing.T) {
	t.Parallel()

	f := newFixture(allSev())
	o := NewOrchestrator(Config{Target: "http://t", RateLimit: -1}, f.registry, quiet())

	res, err := o.Scan(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Snapshot.Summary.TotalTests)
	assert.Equal(t, 3, res.Snapshot.Summary.VulnerabilitiesFound)
	assert.Equal(t, 1, res.Snapshot.Summary.Critical)
	assert.Equal(t, 25+15+8, res.Score)
	assert.Equal(t, scoring.LevelMedium, res.Level)
	assert.Equal(t, "http://t", res.Snapshot.Target)
	assert.False(t, res.Snapshot.EndTime.IsZero())
}

func TestScanPlanOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture(allSev())
	adv := &fixedAdvisor{plan: &advisor.Plan{PriorityOrder: []string{"property-auth", "broken-auth", "not-selected"}}}
	o := NewOrchestrator(Config{
		Target:      "http://t",
		Concurrency: 1, // serialize so recorded order is deterministic
		RateLimit:   -1,
		Advisor:     adv,
	}, f.registry, quiet())

	res, err := o.Scan(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"property-auth", "broken-auth", "bola"}, f.order)
}

func TestScanAdvisorFailureDegrades(t *testing.T) {
	t.Parallel()

	f := newFixture(allSev())
	o := NewOrchestrator(Config{
		Target:    "http://t",
		RateLimit: -1,
		Advisor:   &fixedAdvisor{err: advisor.ErrUnavailable},
	}, f.registry, quiet())

	res, err := o.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Plan)
	assert.Equal(t, 3, res.Snapshot.Summary.TotalTests)
}

func TestScanProbeFailureContained(t *testing.T) {
	t.Parallel()

	f := newFixture(allSev())
	f.registry.Register(&recordProbe{
		desc: probes.Descriptor{Name: "bola", Category: "API", DefaultSeverity: finding.SeverityHigh},
		err:  errors.New("dial tcp: connection refused"),
		mu:   &f.mu, order: &f.order,
	})
	o := NewOrchestrator(Config{Target: "http://t", RateLimit: -1}, f.registry, quiet())

	res, err := o.Scan(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Snapshot.Summary.TotalTests)
	assert.Equal(t, 1, res.Snapshot.Summary.Errors)
	assert.Equal(t, 2, res.Snapshot.Summary.VulnerabilitiesFound)
}

func TestScanInvalidSelection(t *testing.T) {
	t.Parallel()

	f := newFixture(allSev())
	o := NewOrchestrator(Config{Target: "http://t", RateLimit: -1}, f.registry, quiet())

	_, err := o.Scan(context.Background(), []string{"bola", "nope", "also-nope"})
	var invalid *InvalidSelectionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"nope", "also-nope"}, invalid.Names)
}

func TestScanSubsetSelection(t *testing.T) {
	t.Parallel()

	f := newFixture(allSev())
	o := NewOrchestrator(Config{Target: "http://t", RateLimit: -1}, f.registry, quiet())

	res, err := o.Scan(context.Background(), []string{"broken-auth"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Snapshot.Summary.TotalTests)
	assert.Equal(t, 25, res.Score)
}

func TestScanCancellationReturnsPartialSession(t *testing.T) {
	t.Parallel()

	f := &testFixture{registry: probes.NewRegistry()}
	for _, name := range []string{"a", "b", "c", "d"} {
		f.registry.Register(&recordProbe{
			desc:  probes.Descriptor{Name: name, Category: "API", DefaultSeverity: finding.SeverityLow},
			out:   finding.Finding{Test: name, Category: "API", Status: finding.StatusPassed},
			delay: 100 * time.Millisecond,
			mu:    &f.mu, order: &f.order,
		})
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(Config{Target: "http://t", Concurrency: 1, RateLimit: -1}, f.registry, quiet())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res, err := o.Scan(ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	// The in-flight probe finished; queued ones never started.
	assert.GreaterOrEqual(t, res.Snapshot.Summary.TotalTests, 1)
	assert.Less(t, res.Snapshot.Summary.TotalTests, 4)
	assert.False(t, res.Snapshot.EndTime.IsZero())
	assert.Equal(t, res.Snapshot.Summary.TotalTests, len(res.Snapshot.Results))
}

func TestScanConcurrencyBounded(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	var active, peak int

	reg := probes.NewRegistry()
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		reg.Register(&gaugeProbe{name: name, mu: &mu, order: &order, active: &active, peak: &peak})
	}
	o := NewOrchestrator(Config{Target: "http://t", Concurrency: 2, RateLimit: -1}, reg, quiet())

	res, err := o.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Snapshot.Summary.TotalTests)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestScanLeavesNoGoroutines(t *testing.T) {
	tracker := testutil.TrackGoroutines()

	f := newFixture(allSev())
	o := NewOrchestrator(Config{Target: "http://t", Concurrency: 3, RateLimit: -1}, f.registry, quiet())

	testutil.AssertTimeout(t, "scan", 10*time.Second, func() {
		_, err := o.Scan(context.Background(), nil)
		require.NoError(t, err)
	})
	tracker.CheckLeaks(t, 2)
}

type gaugeProbe struct {
	name         string
	mu           *sync.Mutex
	order        *[]string
	active, peak *int
}

func (p *gaugeProbe) Descriptor() probes.Descriptor {
	return probes.Descriptor{Name: p.name, Category: "API", DefaultSeverity: finding.SeverityLow}
}

func (p *gaugeProbe) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	p.mu.Lock()
	*p.active++
	if *p.active > *p.peak {
		*p.peak = *p.active
	}
	*p.order = append(*p.order, p.name)
	p.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	p.mu.Lock()
	*p.active--
	p.mu.Unlock()
	return []finding.Finding{{Test: p.name, Category: "API", Status: finding.StatusPassed}}, nil
}
