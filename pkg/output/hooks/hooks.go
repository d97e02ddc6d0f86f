// Package hooks exports scan telemetry to external systems. Hooks
// observe the scan lifecycle; a failing hook never fails the scan.
package hooks

import (
	"context"

	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

// Hook observes scan lifecycle events.
type Hook interface {
	// OnScanStart fires once before the first probe runs.
	OnScanStart(ctx context.Context, scanID, target string, probeCount int) error

	// OnFindings fires as each probe's findings settle.
	OnFindings(ctx context.Context, probe string, findings []finding.Finding) error

	// OnScanComplete fires once with the finalized session.
	OnScanComplete(ctx context.Context, snap session.Snapshot, score int, level scoring.Level) error

	// Close releases resources and flushes pending telemetry.
	Close() error
}

// Multi fans lifecycle events out to several hooks, continuing past
// individual failures and returning the first error seen.
type Multi []Hook

func (m Multi) OnScanStart(ctx context.Context, scanID, target string, probeCount int) error {
	var first error
	for _, h := range m {
		if err := h.OnScanStart(ctx, scanID, target, probeCount); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) OnFindings(ctx context.Context, probe string, findings []finding.Finding) error {
	var first error
	for _, h := range m {
		if err := h.OnFindings(ctx, probe, findings); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) OnScanComplete(ctx context.Context, snap session.Snapshot, score int, level scoring.Level) error {
	var first error
	for _, h := range m {
		if err := h.OnScanComplete(ctx, snap, score, level); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, h := range m {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
