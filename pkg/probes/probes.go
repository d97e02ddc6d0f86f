// Package probes defines the probe contract and ships the built-in
// OWASP API Security Top-10 probe pack.
//
// A probe is a pluggable check: given a target URL and a header mapping it
// produces a finite sequence of findings or fails. Probes hold no mutable
// state; the registry assembled at process start is read-only configuration.
// Adding a probe means implementing Probe and registering it; the runner,
// aggregator, and orchestrator are untouched.
package probes

import (
	"context"

	"github.com/apivet/apivet/pkg/finding"
)

// Descriptor is the static metadata of a probe.
type Descriptor struct {
	// Name uniquely identifies the probe within a registry.
	Name string `json:"name"`

	// Category is the taxonomy identifier, e.g. "API1:2023".
	Category string `json:"category"`

	// DefaultSeverity is applied to vulnerable findings the probe emits
	// without an explicit severity.
	DefaultSeverity finding.Severity `json:"default_severity"`

	// Description is a one-line summary for listings.
	Description string `json:"description,omitempty"`
}

// Probe is the capability every security check implements.
//
// Execute must terminate when ctx is done (the runner enforces a deadline),
// must not mutate state outside its return value, and performs network
// calls to the target only.
type Probe interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error)
}

// Registry is an ordered, read-only collection of probes. Iteration order
// is registration order and is the default execution order absent a plan.
type Registry struct {
	probes map[string]Probe
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Probe)}
}

// Register adds a probe. Registering the same name twice replaces the
// probe but keeps its original position.
func (r *Registry) Register(p Probe) {
	name := p.Descriptor().Name
	if _, exists := r.probes[name]; !exists {
		r.order = append(r.order, name)
	}
	r.probes[name] = p
}

// Get returns the probe with the given name.
func (r *Registry) Get(name string) (Probe, bool) {
	p, ok := r.probes[name]
	return p, ok
}

// Has reports whether a probe with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.probes[name]
	return ok
}

// Names returns all probe names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns all probe descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.probes[name].Descriptor())
	}
	return out
}

// Len returns the number of registered probes.
func (r *Registry) Len() int {
	return len(r.probes)
}
