package notify

import (
	"context"
	"time"
)

// EventType represents the type of run or apply event.
type EventType string

// Event type constants.
const (
	EventRunStarted      EventType = "run_started"
	EventRunEnded        EventType = "run_ended"
	EventFeatureSaved    EventType = "feature_saved"
	EventApplyStarted    EventType = "apply_started"
	EventApplyCompleted  EventType = "apply_completed"
	EventApplyConflicts  EventType = "apply_conflicts"
	EventApplyFailed     EventType = "apply_failed"
	EventApplyRolledBack EventType = "apply_rolled_back"
)

// Severity constants for notifications.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Event describes a run or apply event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Feature   string         `json:"feature,omitempty"`
	Target    string         `json:"target,omitempty"`
	Status    string         `json:"status,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier delivers run and apply events. Callers treat delivery as best
// effort: a returned error is logged and never changes the outcome of the
// operation that raised the event.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
