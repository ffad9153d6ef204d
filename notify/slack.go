package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// =============================================================================
// SlackNotifier
// =============================================================================

// SlackNotifier posts events to a Slack incoming webhook as message
// attachments. Delivery shares the WebhookNotifier's retry policy.
type SlackNotifier struct {
	Channel  string
	Username string

	transport *WebhookNotifier
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		Username:  "genstage",
		transport: NewWebhookNotifier(webhookURL, nil),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the channel to post to.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// WithSlackTransport replaces the webhook used for delivery, e.g. to change
// retries or the HTTP client.
func WithSlackTransport(w *WebhookNotifier) SlackOption {
	return func(n *SlackNotifier) { n.transport = w }
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(n.payload(event))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.transport.post(ctx, body); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

func (n *SlackNotifier) payload(event Event) slackPayload {
	return slackPayload{
		Username: n.Username,
		Channel:  n.Channel,
		Attachments: []slackAttachment{{
			Color:     colorForSeverity(event.Severity),
			Title:     emojiForEvent(event.Type) + " " + string(event.Type),
			Text:      event.Message,
			Footer:    slackFooter(event),
			Timestamp: event.Timestamp.Unix(),
			Fields:    fieldsFromMetadata(event.Metadata),
		}},
	}
}

func emojiForEvent(t EventType) string {
	switch t {
	case EventRunStarted, EventApplyStarted:
		return ":rocket:"
	case EventRunEnded, EventApplyCompleted:
		return ":white_check_mark:"
	case EventFeatureSaved:
		return ":package:"
	case EventApplyConflicts:
		return ":warning:"
	case EventApplyFailed:
		return ":x:"
	case EventApplyRolledBack:
		return ":rewind:"
	default:
		return ":loudspeaker:"
	}
}

func colorForSeverity(severity string) string {
	switch severity {
	case SeverityCritical, SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

func slackFooter(event Event) string {
	var parts []string
	if event.RunID != "" {
		parts = append(parts, "Run: "+event.RunID)
	}
	if event.Feature != "" {
		parts = append(parts, "Feature: "+event.Feature)
	}
	if event.Target != "" {
		parts = append(parts, "Target: "+event.Target)
	}
	return strings.Join(parts, " | ")
}

// fieldsFromMetadata renders metadata as short fields, sorted by key.
func fieldsFromMetadata(metadata map[string]any) []slackField {
	if len(metadata) == 0 {
		return nil
	}
	fields := make([]slackField, 0, len(metadata))
	for _, k := range slices.Sorted(maps.Keys(metadata)) {
		fields = append(fields, slackField{Title: k, Value: fmt.Sprint(metadata[k]), Short: true})
	}
	return fields
}

// Slack webhook payload types
type slackPayload struct {
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
