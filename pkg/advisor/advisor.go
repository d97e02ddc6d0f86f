// Package advisor proposes a probe execution order for a target. An
// advisor is optional: callers fall back to registry order (or the
// heuristic advisor) when no LLM provider is configured or reachable.
package advisor

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/apivet/apivet/pkg/probes"
)

// ErrUnavailable means the advisor could not produce a plan; callers
// should degrade to their default ordering, never abort the scan.
var ErrUnavailable = errors.New("advisor unavailable")

// Plan is an advisor's proposed probe ordering. Names not in the
// caller's selection are ignored; missing names keep their default
// position after the prioritized ones.
type Plan struct {
	PriorityOrder []string `json:"priority_order"`
	Rationale     string   `json:"rationale,omitempty"`
}

// Advisor proposes a scan plan for a target.
type Advisor interface {
	// Name identifies the advisor in logs and reports.
	Name() string

	// Propose returns a plan for the given probes. Implementations
	// return an error wrapping ErrUnavailable on any provider failure.
	Propose(ctx context.Context, target string, headers map[string]string, probeNames []string) (*Plan, error)
}

// sanitizePlan keeps only known probe names, deduplicated, preserving
// the advisor's order. Model output is untrusted.
func sanitizePlan(p *Plan, known []string) *Plan {
	valid := make(map[string]bool, len(known))
	for _, n := range known {
		valid[n] = true
	}
	seen := make(map[string]bool, len(p.PriorityOrder))
	var order []string
	for _, n := range p.PriorityOrder {
		n = strings.TrimSpace(n)
		if valid[n] && !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}
	return &Plan{PriorityOrder: order, Rationale: p.Rationale}
}

// Heuristic orders probes by their default severity, most severe
// first, keeping registry order within a severity band. It never fails.
type Heuristic struct {
	registry *probes.Registry
}

// NewHeuristic creates the fallback advisor.
func NewHeuristic(registry *probes.Registry) *Heuristic {
	return &Heuristic{registry: registry}
}

func (h *Heuristic) Name() string { return "heuristic" }

func (h *Heuristic) Propose(ctx context.Context, target string, headers map[string]string, probeNames []string) (*Plan, error) {
	type ranked struct {
		name string
		rank int
		pos  int
	}
	rs := make([]ranked, 0, len(probeNames))
	for i, name := range probeNames {
		r := 0
		if p, ok := h.registry.Get(name); ok {
			r = p.Descriptor().DefaultSeverity.Rank()
		}
		rs = append(rs, ranked{name: name, rank: r, pos: i})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].rank != rs[j].rank {
			return rs[i].rank > rs[j].rank
		}
		return rs[i].pos < rs[j].pos
	})
	order := make([]string, len(rs))
	for i, r := range rs {
		order[i] = r.name
	}
	return &Plan{
		PriorityOrder: order,
		Rationale:     "ordered by default severity of each check",
	}, nil
}
