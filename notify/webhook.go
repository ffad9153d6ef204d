package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// WebhookNotifier
// =============================================================================

// Webhook defaults.
const (
	DefaultWebhookRetries   = 3
	DefaultWebhookRetryWait = 500 * time.Millisecond
	maxRetryAfter           = 30 * time.Second
)

// WebhookNotifier sends notifications to a generic HTTP webhook. Network
// failures, 429 and 5xx responses are retried with exponential backoff.
type WebhookNotifier struct {
	URL     string
	Headers map[string]string
	Client  *http.Client

	// MaxRetries is the total number of attempts. Values below 1 mean one.
	MaxRetries int

	// RetryWait is the first backoff; each retry doubles it. A Retry-After
	// header takes precedence.
	RetryWait time.Duration
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		Headers:    headers,
		Client:     &http.Client{Timeout: 10 * time.Second},
		MaxRetries: DefaultWebhookRetries,
		RetryWait:  DefaultWebhookRetryWait,
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.post(ctx, body)
}

// post delivers body, retrying transient failures.
func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	attempts := max(n.MaxRetries, 1)
	var lastErr error
	for attempt := range attempts {
		wait, err := n.send(ctx, body, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if wait < 0 || attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// send performs one attempt. A negative wait means the failure is permanent.
func (n *WebhookNotifier) send(ctx context.Context, body []byte, attempt int) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return -1, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.Headers {
		req.Header.Set(k, v)
	}

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return n.backoff(attempt), fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return n.retryWait(resp, attempt), fmt.Errorf("webhook returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return -1, fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return 0, nil
}

func (n *WebhookNotifier) retryWait(resp *http.Response, attempt int) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if seconds, err := strconv.Atoi(s); err == nil && seconds >= 0 {
			return min(time.Duration(seconds)*time.Second, maxRetryAfter)
		}
	}
	return n.backoff(attempt)
}

func (n *WebhookNotifier) backoff(attempt int) time.Duration {
	return n.RetryWait * time.Duration(1<<attempt)
}
