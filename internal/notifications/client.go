package notifications

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"kitchen_demo_sync/internal/model"

	"github.com/rs/zerolog/log"
)

// Message is one ntfy post. Empty Priority falls back to the client default.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Client posts sync outcomes to an ntfy topic. Delivery is best effort: the
// Notify helpers send in the background and never block a sync cycle.
type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	batchMode  bool
	priority   string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	breaker  *breaker
	inflight sync.WaitGroup
}

type NotificationError struct {
	Type       string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s] attempt %d: %v", e.Type, e.Attempt, e.Underlying)
}

func (e *NotificationError) Unwrap() error {
	return e.Underlying
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout", "rate_limit":
		return true
	case "auth", "client", "circuit_open":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, topic string, enabled, batchMode bool, priority string, maxRetries int, baseDelay, maxDelay time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		topic:      topic,
		enabled:    enabled,
		batchMode:  batchMode,
		priority:   priority,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		breaker:    newBreaker(),
	}
}

// Send delivers msg, retrying network and server failures with backoff.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}
	if !c.breaker.allow() {
		log.Warn().Str("title", msg.Title).Msg("Notification circuit open, dropping message")
		return &NotificationError{Type: "circuit_open", Underlying: errors.New("circuit breaker is open")}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if attempt > 1 {
			delay := c.calculateBackoff(attempt - 1)
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("Retrying notification after delay")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.breaker.retried()
		}

		err := c.post(ctx, msg, attempt)
		if err == nil {
			c.breaker.success()
			return nil
		}
		lastErr = err

		var notifErr *NotificationError
		if errors.As(err, &notifErr) && !notifErr.IsRetryable() {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Non-retryable notification error, giving up")
			c.breaker.failure()
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Notification attempt failed")
	}

	c.breaker.failure()
	return &NotificationError{Type: "max_retries_exceeded", Attempt: c.maxRetries + 1, Underlying: lastErr}
}

// post is one HTTP attempt. ntfy reads the title, tags and priority from headers.
func (c *Client) post(ctx context.Context, msg Message, attempt int) error {
	url := c.baseURL + "/" + c.topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg.Body))
	if err != nil {
		return &NotificationError{Type: "client", Attempt: attempt, Underlying: err}
	}

	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if priority := cmp.Or(msg.Priority, c.priority); priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Attempt: attempt, Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().Str("title", msg.Title).Int("status_code", resp.StatusCode).Int("attempt", attempt).Msg("Notification sent")
	return nil
}

// sendAsync detaches the send from ctx cancellation so a finished cycle does
// not abort delivery.
func (c *Client) sendAsync(ctx context.Context, msg Message) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.Send(context.WithoutCancel(ctx), msg); err != nil {
			log.Warn().Err(err).Str("title", msg.Title).Msg("Async notification failed")
		}
	}()
}

// Close waits for background sends to finish.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.inflight.Wait()
}

// NotifyWarnings forwards merge warnings from one sync. Batch mode sends one
// summary; otherwise each warning kind gets its own message.
func (c *Client) NotifyWarnings(ctx context.Context, warnings []model.Warning) {
	if c == nil || !c.enabled || len(warnings) == 0 {
		return
	}
	if c.batchMode {
		log.Info().Int("warnings", len(warnings)).Msg("Sending batch notification for sync warnings")
		c.sendAsync(ctx, Message{Title: "Demo sync warnings", Body: FormatWarnings(warnings), Tags: []string{"warning"}})
		return
	}
	for _, group := range groupByKind(warnings) {
		c.sendAsync(ctx, Message{
			Title: "Demo sync warnings: " + group[0].Kind,
			Body:  FormatWarnings(group),
			Tags:  []string{"warning"},
		})
	}
}

// NotifyStatusChanges reports cancellations and reschedules the kitchen
// should react to. Other transitions are only logged.
func (c *Client) NotifyStatusChanges(ctx context.Context, changes []model.StatusChange) {
	if c == nil || !c.enabled {
		return
	}
	var relevant []model.StatusChange
	for _, ch := range changes {
		if ch.To == model.LeadCancelled || ch.To == model.LeadRescheduled {
			relevant = append(relevant, ch)
		}
	}
	if len(relevant) == 0 {
		return
	}
	c.sendAsync(ctx, Message{Title: "Demo status changes", Body: FormatStatusChanges(relevant), Tags: []string{"calendar"}})
}

// NotifySyncFailure reports a failed cycle. The board keeps its last state.
func (c *Client) NotifySyncFailure(ctx context.Context, err error) {
	if c == nil || !c.enabled || err == nil {
		return
	}
	c.sendAsync(ctx, Message{
		Title:    "Demo sync failed",
		Body:     fmt.Sprintf("⚠️ Showing last known schedule\n%v", err),
		Tags:     []string{"rotating_light"},
		Priority: "high",
	})
}

// Metrics returns delivery counters.
func (c *Client) Metrics() Metrics {
	if c == nil {
		return Metrics{}
	}
	return c.breaker.metrics()
}

func (c *Client) calculateBackoff(retry int) time.Duration {
	backoff := float64(c.baseDelay) * math.Pow(2, float64(retry-1))
	// ±25% jitter
	backoff *= 1 + rand.Float64()*0.5 - 0.25
	if maxBackoff := float64(c.maxDelay); backoff > maxBackoff {
		backoff = maxBackoff
	}
	return time.Duration(backoff)
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return "auth"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}
