// Package audit carries security-relevant events from the authorization
// core to whatever sink the deployment wires in. The core only emits;
// retention policy belongs to the sink.
package audit

import (
	"context"
	"time"
)

// Severity classifies an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event describes one security-relevant occurrence.
type Event struct {
	Actor     int64          `json:"actor"`
	Action    string         `json:"action"`
	Target    string         `json:"target,omitempty"`
	Severity  Severity       `json:"severity"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Emitter is the narrow contract components call to signal events.
// Implementations must not fail the caller: emission problems are
// theirs to log and swallow.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(context.Context, Event) {}
