package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Channel delivers an alert to an external sink.
type Channel interface {
	Send(ctx context.Context, alert Alert) error
}

// WebhookChannel posts alerts to a webhook endpoint. Deliveries retry with
// exponential backoff behind a circuit breaker so a dead sink cannot stall
// the ingest path.
type WebhookChannel struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	maxWait time.Duration
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithMaxElapsedTime caps the total retry window.
func WithMaxElapsedTime(d time.Duration) WebhookOption {
	return func(ch *WebhookChannel) {
		if d > 0 {
			ch.maxWait = d
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("alert webhook: empty url")
	}
	ch := &WebhookChannel{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		maxWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(ch)
	}
	ch.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return ch, nil
}

// Send posts the alert, retrying transient failures.
func (ch *WebhookChannel) Send(ctx context.Context, alert Alert) error {
	if ch == nil || ch.url == "" {
		return errors.New("alert webhook: empty url")
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	policy := backoff.WithContext(newPolicy(ch.maxWait), ctx)
	operation := func() error {
		_, err := ch.breaker.Execute(func() (any, error) {
			return nil, ch.post(ctx, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, policy)
}

func (ch *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ch.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("alert webhook: response %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return backoff.Permanent(fmt.Errorf("alert webhook: response %d", resp.StatusCode))
	}
	return nil
}

func newPolicy(maxWait time.Duration) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = maxWait
	return policy
}
