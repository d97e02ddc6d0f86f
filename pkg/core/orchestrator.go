// Package core drives a scan: it resolves the probe selection, consults
// the plan advisor, fans work out to a bounded pool, and aggregates
// findings into a finalized session.
package core

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/apivet/apivet/pkg/advisor"
	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/probes"
	"github.com/apivet/apivet/pkg/runner"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

// Config controls a scan.
type Config struct {
	// Target is the base URL under test.
	Target string

	// Headers are sent with every probe request (auth tokens, cookies).
	Headers map[string]string

	// Concurrency is the worker pool size. Zero selects the default.
	Concurrency int

	// RateLimit caps outbound probe starts per second. Zero selects the
	// default; negative disables limiting.
	RateLimit float64

	// ProbeTimeout bounds each probe. Zero selects the default.
	ProbeTimeout time.Duration

	// Advisor proposes the execution order. Nil skips planning.
	Advisor advisor.Advisor

	// AdvisorTimeout bounds the single planning call.
	AdvisorTimeout time.Duration

	// OnStart, when set, fires once after the session opens.
	OnStart func(scanID string, probeCount int)

	// OnBatch, when set, receives each probe's findings as they settle.
	OnBatch func(probe string, findings []finding.Finding)
}

// InvalidSelectionError reports probe names that no registered probe
// matches. The scan does not start.
type InvalidSelectionError struct {
	Names []string
}

func (e *InvalidSelectionError) Error() string {
	return "unknown probes: " + strings.Join(e.Names, ", ")
}

// Result is a completed scan.
type Result struct {
	Snapshot session.Snapshot
	Plan     *advisor.Plan
	Score    int
	Level    scoring.Level
}

// Orchestrator runs scans against one registry.
type Orchestrator struct {
	cfg      Config
	registry *probes.Registry
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator. Zero-valued config fields
// take package defaults.
func NewOrchestrator(cfg Config, registry *probes.Registry, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.AdvisorTimeout <= 0 {
		cfg.AdvisorTimeout = defaults.AdvisorTimeout
	}
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scan executes the selected probes (all registered probes when the
// selection is empty) and returns the finalized session. Cancelling ctx
// stops new submissions; probes already running finish under their own
// deadline, so the returned partial session is still consistent.
func (o *Orchestrator) Scan(ctx context.Context, selection []string) (*Result, error) {
	names, err := o.resolve(selection)
	if err != nil {
		return nil, err
	}

	plan := o.consultAdvisor(ctx, names)
	ordered := applyPlan(names, plan)

	sess := session.New(o.cfg.Target)
	o.logger.Info("scan started",
		slog.String("scan_id", sess.ScanID()),
		slog.String("target", o.cfg.Target),
		slog.Int("probes", len(ordered)),
		slog.Int("concurrency", o.cfg.Concurrency))
	if o.cfg.OnStart != nil {
		o.cfg.OnStart(sess.ScanID(), len(ordered))
	}

	run := runner.New(runner.WithTimeout(o.cfg.ProbeTimeout), runner.WithLogger(o.logger))

	var limiter *rate.Limiter
	if o.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.cfg.RateLimit), 1)
	}

	type batch struct {
		probe    string
		findings []finding.Finding
	}

	tasks := make(chan probes.Probe)
	batches := make(chan batch)

	var workers sync.WaitGroup
	for i := 0; i < o.cfg.Concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for p := range tasks {
				// Cancellation drains the queue but lets this probe
				// finish; the runner's own deadline still applies.
				fs := run.Run(context.WithoutCancel(ctx), p, o.cfg.Target, o.cfg.Headers)
				batches <- batch{probe: p.Descriptor().Name, findings: fs}
			}
		}()
	}

	go func() {
	submit:
		for _, name := range ordered {
			p, _ := o.registry.Get(name)
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					break submit
				}
			}
			select {
			case tasks <- p:
			case <-ctx.Done():
				break submit
			}
		}
		close(tasks)
	}()

	go func() {
		workers.Wait()
		close(batches)
	}()

	for b := range batches {
		if err := sess.Append(b.findings...); err != nil {
			// Finalize only runs after this loop; appends cannot race it.
			o.logger.Error("dropping findings", slog.String("probe", b.probe), slog.String("error", err.Error()))
			continue
		}
		if o.cfg.OnBatch != nil {
			o.cfg.OnBatch(b.probe, b.findings)
		}
	}

	_ = sess.Finalize()
	snap := sess.Snapshot()
	score, level := scoring.Score(snap.Summary)

	o.logger.Info("scan finished",
		slog.String("scan_id", snap.ScanID),
		slog.Int("findings", snap.Summary.TotalTests),
		slog.Int("vulnerabilities", snap.Summary.VulnerabilitiesFound),
		slog.Int("score", score),
		slog.String("level", string(level)),
		slog.Duration("elapsed", time.Duration(snap.Duration*float64(time.Second))))

	return &Result{Snapshot: snap, Plan: plan, Score: score, Level: level}, ctx.Err()
}

// resolve expands an empty selection to all registered probes and
// rejects unknown names before any request is sent.
func (o *Orchestrator) resolve(selection []string) ([]string, error) {
	if len(selection) == 0 {
		return o.registry.Names(), nil
	}
	var unknown []string
	seen := make(map[string]bool, len(selection))
	var names []string
	for _, name := range selection {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		if !o.registry.Has(name) {
			unknown = append(unknown, name)
			continue
		}
		names = append(names, name)
	}
	if len(unknown) > 0 {
		return nil, &InvalidSelectionError{Names: unknown}
	}
	return names, nil
}

// consultAdvisor asks for a plan once, under its own timeout. Any
// failure degrades to nil (default ordering).
func (o *Orchestrator) consultAdvisor(ctx context.Context, names []string) *advisor.Plan {
	if o.cfg.Advisor == nil {
		return nil
	}
	actx, cancel := context.WithTimeout(ctx, o.cfg.AdvisorTimeout)
	defer cancel()

	plan, err := o.cfg.Advisor.Propose(actx, o.cfg.Target, o.cfg.Headers, names)
	if err != nil {
		o.logger.Warn("advisor unavailable, using default order",
			slog.String("advisor", o.cfg.Advisor.Name()),
			slog.String("error", err.Error()))
		return nil
	}
	o.logger.Info("plan proposed",
		slog.String("advisor", o.cfg.Advisor.Name()),
		slog.String("order", strings.Join(plan.PriorityOrder, ",")),
		slog.String("rationale", plan.Rationale))
	return plan
}

// applyPlan moves plan-named probes (intersected with the selection) to
// the front in plan order; the rest keep their selection order.
func applyPlan(names []string, plan *advisor.Plan) []string {
	if plan == nil || len(plan.PriorityOrder) == 0 {
		return names
	}
	selected := make(map[string]bool, len(names))
	for _, n := range names {
		selected[n] = true
	}
	prioritized := make(map[string]bool, len(plan.PriorityOrder))
	ordered := make([]string, 0, len(names))
	for _, n := range plan.PriorityOrder {
		if selected[n] && !prioritized[n] {
			prioritized[n] = true
			ordered = append(ordered, n)
		}
	}
	for _, n := range names {
		if !prioritized[n] {
			ordered = append(ordered, n)
		}
	}
	return ordered
}
