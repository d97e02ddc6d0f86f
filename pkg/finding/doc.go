// Package finding provides the shared vulnerability finding types used
// across all probe packages and the session aggregator.
//
// A Finding is the atomic unit a probe emits: one observation about the
// target, classified by status and (for vulnerable observations) severity.
// The package holds no behavior beyond validation so that every other
// component can depend on it without cycles.
package finding
