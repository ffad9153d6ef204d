package notify

import (
	"context"
	"errors"
	"log/slog"
)

// =============================================================================
// MultiNotifier
// =============================================================================

// MultiNotifier fans an event out to several notifiers. Every notifier is
// called even when an earlier one fails.
type MultiNotifier struct {
	Notifiers []Notifier
	Logger    *slog.Logger
}

// NewMultiNotifier creates a fan-out notifier logging failures to slog.Default.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		Notifiers: notifiers,
		Logger:    slog.Default(),
	}
}

// Notify implements Notifier. The returned error joins every failure.
func (n *MultiNotifier) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, notifier := range n.Notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, err)
			if n.Logger != nil {
				n.Logger.Warn("notifier failed",
					"error", err,
					"event_type", event.Type,
					"run_id", event.RunID,
				)
			}
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Severity filter
// =============================================================================

var severityRank = map[string]int{
	"":               0,
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// AtLeast reports whether severity is min or more severe. Unknown
// severities rank as info.
func AtLeast(severity, min string) bool {
	return severityRank[severity] >= severityRank[min]
}

// SeverityFilter forwards only events at or above MinSeverity.
type SeverityFilter struct {
	Next        Notifier
	MinSeverity string
}

// NewSeverityFilter wraps next. An empty min forwards everything.
func NewSeverityFilter(next Notifier, min string) *SeverityFilter {
	return &SeverityFilter{Next: next, MinSeverity: min}
}

// Notify implements Notifier.
func (f *SeverityFilter) Notify(ctx context.Context, event Event) error {
	if !AtLeast(event.Severity, f.MinSeverity) {
		return nil
	}
	return f.Next.Notify(ctx, event)
}

// =============================================================================
// NopNotifier
// =============================================================================

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) error {
	return nil
}
