// Package notify delivers run and apply lifecycle events.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: Notification event with type, feature, target and metadata
//   - EventType: Type of event (run started, apply completed, rolled back, etc.)
//
// Implementations:
//   - WebhookNotifier: POSTs events as JSON to a generic webhook, retrying
//     network failures, 429 and 5xx responses
//   - LogNotifier: Logs events through slog
//   - MultiNotifier: Fans out to several notifiers
//   - SeverityFilter: Drops events below a minimum severity
//   - NopNotifier: Discards events
//
// Example usage:
//
//	notifier := notify.NewMultiNotifier(
//	    notify.NewLogNotifier(logger),
//	    notify.NewSeverityFilter(notify.NewWebhookNotifier(webhookURL, nil), notify.SeverityWarning),
//	)
//	err := notifier.Notify(ctx, notify.Event{
//	    Type:    notify.EventApplyCompleted,
//	    Feature: "login",
//	    Message: "applied 3 files",
//	})
package notify
